// Package keygen creates the RSA key pairs and self-signed certificates the
// API expects: one set for request signing and one for the TLS client
// identity.
package keygen

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"software.sslmate.com/src/go-pkcs12"

	"github.com/vitalvas/ingsig/httpsig"
)

const (
	DefaultBits = 2048
	DefaultDays = 365
)

// DefaultSubject is the distinguished name of generated certificates.
var DefaultSubject = pkix.Name{
	CommonName:         "INGTestAPI",
	OrganizationalUnit: []string{"Test"},
	Organization:       []string{"Test"},
	Country:            []string{"NL"},
}

// SetNames are the key sets written by the genkeys command.
var SetNames = []string{"sign", "tls"}

var ErrInvalidOptions = errors.New("keygen: invalid options")

// Options configures Generate. Zero values select the defaults.
type Options struct {
	Bits    int
	Days    int
	Subject *pkix.Name

	// DNSNames and IPAddresses are added as subject alternative names.
	DNSNames    []string
	IPAddresses []net.IP

	// Now is the start of the validity period. Defaults to time.Now.
	Now func() time.Time
}

// Material is a generated key pair with its self-signed certificate.
type Material struct {
	Key         *rsa.PrivateKey
	Certificate *x509.Certificate
}

// Generate creates an RSA key and a self-signed X.509 v3 certificate for
// it, signed with SHA256WithRSA.
func Generate(opts Options) (*Material, error) {
	bits := opts.Bits
	if bits == 0 {
		bits = DefaultBits
	}

	if bits < DefaultBits {
		return nil, fmt.Errorf("%w: key size %d below %d", ErrInvalidOptions, bits, DefaultBits)
	}

	days := opts.Days
	if days == 0 {
		days = DefaultDays
	}

	if days < 0 {
		return nil, fmt.Errorf("%w: negative validity", ErrInvalidOptions)
	}

	subject := DefaultSubject
	if opts.Subject != nil {
		subject = *opts.Subject
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("keygen: generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 64))
	if err != nil {
		return nil, fmt.Errorf("keygen: serial number: %w", err)
	}

	since := now().UTC()

	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               subject,
		Issuer:                subject,
		NotBefore:             since,
		NotAfter:              since.Add(time.Duration(days) * 24 * time.Hour),
		SignatureAlgorithm:    x509.SHA256WithRSA,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		DNSNames:              opts.DNSNames,
		IPAddresses:           opts.IPAddresses,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("keygen: create certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("keygen: parse certificate: %w", err)
	}

	return &Material{Key: key, Certificate: cert}, nil
}

// KeyPEM returns the private key as PKCS#8 PEM.
func (m *Material) KeyPEM() ([]byte, error) {
	return httpsig.EncodePrivateKeyPEM(m.Key)
}

// CertificatePEM returns the certificate as PEM.
func (m *Material) CertificatePEM() []byte {
	return httpsig.EncodeCertificatePEM(m.Certificate)
}

// PublicKeyPEM returns the public key as PKIX PEM.
func (m *Material) PublicKeyPEM() ([]byte, error) {
	return httpsig.EncodePublicKeyPEM(&m.Key.PublicKey)
}

// Keystore returns a PKCS#12 keystore holding the key and certificate,
// protected by password.
func (m *Material) Keystore(password string) ([]byte, error) {
	data, err := pkcs12.Modern.Encode(m.Key, m.Certificate, nil, password)
	if err != nil {
		return nil, fmt.Errorf("keygen: encode keystore: %w", err)
	}

	return data, nil
}

// TLSCertificate returns the material as a tls.Certificate.
func (m *Material) TLSCertificate() tls.Certificate {
	return tls.Certificate{
		Certificate: [][]byte{m.Certificate.Raw},
		PrivateKey:  m.Key,
		Leaf:        m.Certificate,
	}
}

// Files are the paths written by WriteSet.
type Files struct {
	Key         string
	Certificate string
	Keystore    string
}

// SetFiles returns the file names of the named set inside dir.
func SetFiles(dir, name string) Files {
	return Files{
		Key:         filepath.Join(dir, "key-"+name+".pem"),
		Certificate: filepath.Join(dir, "cert-"+name+".pem"),
		Keystore:    filepath.Join(dir, "keystore-"+name+".p12"),
	}
}

// WriteSet generates material and writes key-<name>.pem, cert-<name>.pem
// and keystore-<name>.p12 into dir. The key and keystore are written with
// mode 0600.
func WriteSet(dir, name, password string, opts Options) (*Material, Files, error) {
	files := SetFiles(dir, name)

	m, err := Generate(opts)
	if err != nil {
		return nil, files, err
	}

	keyPEM, err := m.KeyPEM()
	if err != nil {
		return nil, files, err
	}

	keystore, err := m.Keystore(password)
	if err != nil {
		return nil, files, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, files, fmt.Errorf("keygen: %w", err)
	}

	writes := []struct {
		path string
		data []byte
		perm os.FileMode
	}{
		{files.Key, keyPEM, 0o600},
		{files.Certificate, m.CertificatePEM(), 0o644},
		{files.Keystore, keystore, 0o600},
	}

	for _, w := range writes {
		if err := os.WriteFile(w.path, w.data, w.perm); err != nil {
			return nil, files, fmt.Errorf("keygen: %w", err)
		}
	}

	return m, files, nil
}
