package httpsig

import (
	"crypto/rsa"
	"fmt"

	jose "github.com/go-jose/go-jose/v4"
)

// ParseJWK decodes a JSON Web Key describing an RSA public key.
func ParseJWK(data []byte) (*rsa.PublicKey, error) {
	var jwk jose.JSONWebKey
	if err := jwk.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyLoad, err)
	}

	if !jwk.IsPublic() {
		return nil, fmt.Errorf("%w: jwk must be a public key", ErrKeyLoad)
	}

	key, ok := jwk.Key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: jwk is not an rsa key", ErrKeyLoad)
	}

	return key, nil
}

// MarshalJWK encodes an RSA public key as a JSON Web Key for signature
// verification.
func MarshalJWK(keyID string, key *rsa.PublicKey) ([]byte, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: rsa public key must not be nil", ErrInvalidKey)
	}

	jwk := jose.JSONWebKey{
		Key:       key,
		KeyID:     keyID,
		Algorithm: string(jose.RS256),
		Use:       "sig",
	}

	return jwk.MarshalJSON()
}
