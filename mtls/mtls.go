// Package mtls builds the TLS client identity used to reach the API, from
// either a PEM key and certificate pair or a PKCS#12 keystore.
package mtls

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"software.sslmate.com/src/go-pkcs12"
)

var (
	ErrNoIdentity      = errors.New("mtls: certificate and key, or keystore, required")
	ErrAmbiguous       = errors.New("mtls: both keystore and certificate pair configured")
	ErrKeyPassword     = errors.New("mtls: key password must match keystore password")
	ErrInvalidKeystore = errors.New("mtls: invalid keystore")
	ErrInvalidCABundle = errors.New("mtls: no certificates in CA bundle")
)

// Options locates the client identity. Set either CertPath and KeyPath or
// KeystorePath.
type Options struct {
	CertPath string
	KeyPath  string

	KeystorePath     string
	KeystorePassword string

	// KeyPassword protects the key inside the keystore. PKCS#12 files
	// read here use one password for both, so it must be empty or equal
	// to KeystorePassword.
	KeyPassword string

	// CAPath is a PEM bundle of trusted server roots. Empty means the
	// system pool.
	CAPath string

	ServerName string
}

// ClientConfig returns a TLS 1.2+ client configuration presenting the
// configured identity.
func ClientConfig(opts Options) (*tls.Config, error) {
	cert, err := loadIdentity(opts)
	if err != nil {
		return nil, err
	}

	cfg := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
		ServerName:   opts.ServerName,
	}

	if opts.CAPath != "" {
		pool, err := loadPool(opts.CAPath)
		if err != nil {
			return nil, err
		}

		cfg.RootCAs = pool
	}

	return cfg, nil
}

// NewHTTPClient returns an *http.Client using cfg on a fresh transport.
func NewHTTPClient(cfg *tls.Config, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = cfg

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// LoadCertPool reads a PEM bundle into a certificate pool.
func LoadCertPool(path string) (*x509.CertPool, error) {
	return loadPool(path)
}

func loadIdentity(opts Options) (tls.Certificate, error) {
	hasPair := opts.CertPath != "" || opts.KeyPath != ""

	switch {
	case opts.KeystorePath != "" && hasPair:
		return tls.Certificate{}, ErrAmbiguous
	case opts.KeystorePath != "":
		return loadKeystore(opts)
	case opts.CertPath != "" && opts.KeyPath != "":
		cert, err := tls.LoadX509KeyPair(opts.CertPath, opts.KeyPath)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("mtls: load key pair: %w", err)
		}

		return cert, nil
	default:
		return tls.Certificate{}, ErrNoIdentity
	}
}

func loadKeystore(opts Options) (tls.Certificate, error) {
	if opts.KeyPassword != "" && opts.KeyPassword != opts.KeystorePassword {
		return tls.Certificate{}, ErrKeyPassword
	}

	data, err := os.ReadFile(opts.KeystorePath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("mtls: %w", err)
	}

	key, leaf, chain, err := pkcs12.DecodeChain(data, opts.KeystorePassword)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("%w: %v", ErrInvalidKeystore, err)
	}

	cert := tls.Certificate{
		Certificate: [][]byte{leaf.Raw},
		PrivateKey:  key,
		Leaf:        leaf,
	}

	for _, c := range chain {
		cert.Certificate = append(cert.Certificate, c.Raw)
	}

	return cert, nil
}

func loadPool(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mtls: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCABundle, path)
	}

	return pool, nil
}
