package ingapi

import (
	"crypto/rsa"
	"fmt"

	"github.com/vitalvas/ingsig/httpsig"
)

// Credentials identify the client: the id registered with the API and the
// private key its requests are signed with. The value is read-only once
// built and may be shared between flows.
type Credentials struct {
	ClientID   string
	SigningKey *rsa.PrivateKey
}

// LoadCredentials reads a PKCS#8 PEM signing key from keyPath.
func LoadCredentials(clientID, keyPath string) (Credentials, error) {
	key, err := httpsig.LoadPrivateKeyFile(keyPath)
	if err != nil {
		return Credentials{}, err
	}

	return Credentials{ClientID: clientID, SigningKey: key}, nil
}

// Signer returns an rsa-sha256 signer keyed by the client id.
func (c Credentials) Signer() (httpsig.Signer, error) {
	if c.ClientID == "" || c.SigningKey == nil {
		return nil, ErrNoCredentials
	}

	s, err := httpsig.NewRSASHA256Signer(c.ClientID, c.SigningKey)
	if err != nil {
		return nil, fmt.Errorf("ingapi: signing key: %w", err)
	}

	return s, nil
}
