package httpsig

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"strings"
)

// PEM block types.
const (
	pemPrivateKey  = "PRIVATE KEY"
	pemPublicKey   = "PUBLIC KEY"
	pemCertificate = "CERTIFICATE"
)

// pemBody strips the header and footer lines of a single PEM block and
// base64-decodes the remaining lines. It returns the block type from the
// header line.
func pemBody(data []byte) (string, []byte, error) {
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}

	if len(lines) < 3 {
		return "", nil, fmt.Errorf("%w: pem must have header, body and footer lines", ErrKeyLoad)
	}

	header := strings.TrimSpace(lines[0])
	footer := strings.TrimSpace(lines[len(lines)-1])

	typ, ok := strings.CutPrefix(header, "-----BEGIN ")
	if !ok || !strings.HasSuffix(typ, "-----") || !strings.HasPrefix(footer, "-----END ") {
		return "", nil, fmt.Errorf("%w: missing pem header or footer", ErrKeyLoad)
	}

	typ = strings.TrimSuffix(typ, "-----")

	var b strings.Builder
	for _, line := range lines[1 : len(lines)-1] {
		b.WriteString(strings.TrimSpace(line))
	}

	der, err := base64.StdEncoding.DecodeString(b.String())
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrKeyLoad, err)
	}

	return typ, der, nil
}

// ParsePrivateKeyPEM decodes a PKCS#8 "PRIVATE KEY" PEM block holding an
// RSA key.
func ParsePrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	typ, der, err := pemBody(data)
	if err != nil {
		return nil, err
	}

	if typ != pemPrivateKey {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrKeyLoad, pemPrivateKey, typ)
	}

	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyLoad, err)
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an rsa private key", ErrKeyLoad)
	}

	return rsaKey, nil
}

// ParseCertificatePEM decodes a single X.509 "CERTIFICATE" PEM block.
func ParseCertificatePEM(data []byte) (*x509.Certificate, error) {
	typ, der, err := pemBody(data)
	if err != nil {
		return nil, err
	}

	if typ != pemCertificate {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrKeyLoad, pemCertificate, typ)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyLoad, err)
	}

	return cert, nil
}

// ParsePublicKeyPEM decodes an RSA public key from either a PKIX
// "PUBLIC KEY" block or a "CERTIFICATE" block.
func ParsePublicKeyPEM(data []byte) (*rsa.PublicKey, error) {
	typ, der, err := pemBody(data)
	if err != nil {
		return nil, err
	}

	var key any

	switch typ {
	case pemPublicKey:
		key, err = x509.ParsePKIXPublicKey(der)
	case pemCertificate:
		var cert *x509.Certificate
		cert, err = x509.ParseCertificate(der)
		if err == nil {
			key = cert.PublicKey
		}
	default:
		return nil, fmt.Errorf("%w: unexpected pem type %s", ErrKeyLoad, typ)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyLoad, err)
	}

	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an rsa public key", ErrKeyLoad)
	}

	return rsaKey, nil
}

// LoadPrivateKeyFile reads and decodes a PKCS#8 RSA private key file.
func LoadPrivateKeyFile(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyLoad, err)
	}

	return ParsePrivateKeyPEM(data)
}

// LoadPublicKeyFile reads and decodes an RSA public key or certificate file.
func LoadPublicKeyFile(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyLoad, err)
	}

	return ParsePublicKeyPEM(data)
}

// EncodePrivateKeyPEM encodes key as a PKCS#8 "PRIVATE KEY" block.
func EncodePrivateKeyPEM(key *rsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, err
	}

	return pem.EncodeToMemory(&pem.Block{Type: pemPrivateKey, Bytes: der}), nil
}

// EncodePublicKeyPEM encodes key as a PKIX "PUBLIC KEY" block.
func EncodePublicKeyPEM(key *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return nil, err
	}

	return pem.EncodeToMemory(&pem.Block{Type: pemPublicKey, Bytes: der}), nil
}

// EncodeCertificatePEM encodes cert as a "CERTIFICATE" block.
func EncodeCertificatePEM(cert *x509.Certificate) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: pemCertificate, Bytes: cert.Raw})
}
