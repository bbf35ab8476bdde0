package httpsig

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
)

// Minimum RSA key size in bits.
const minRSAKeyBits = 2048

type rsaSHA256Signer struct {
	key   *rsa.PrivateKey
	keyID string
}

// NewRSASHA256Signer creates a Signer using RSASSA-PKCS1-v1_5 with SHA-256.
func NewRSASHA256Signer(keyID string, key *rsa.PrivateKey) (Signer, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: rsa private key must not be nil", ErrInvalidKey)
	}

	if key.N.BitLen() < minRSAKeyBits {
		return nil, fmt.Errorf("%w: rsa key must be at least %d bits", ErrInvalidKey, minRSAKeyBits)
	}

	return &rsaSHA256Signer{key: key, keyID: keyID}, nil
}

func (s *rsaSHA256Signer) Sign(message []byte) ([]byte, error) {
	digest := sha256.Sum256(message)

	return rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
}

func (s *rsaSHA256Signer) Algorithm() Algorithm { return AlgorithmRSASHA256 }
func (s *rsaSHA256Signer) KeyID() string        { return s.keyID }

type rsaSHA256Verifier struct {
	key   *rsa.PublicKey
	keyID string
}

// NewRSASHA256Verifier creates a Verifier using RSASSA-PKCS1-v1_5 with SHA-256.
func NewRSASHA256Verifier(keyID string, key *rsa.PublicKey) (Verifier, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: rsa public key must not be nil", ErrInvalidKey)
	}

	if key.N.BitLen() < minRSAKeyBits {
		return nil, fmt.Errorf("%w: rsa key must be at least %d bits", ErrInvalidKey, minRSAKeyBits)
	}

	return &rsaSHA256Verifier{key: key, keyID: keyID}, nil
}

func (v *rsaSHA256Verifier) Verify(message, signature []byte) error {
	digest := sha256.Sum256(message)

	err := rsa.VerifyPKCS1v15(v.key, crypto.SHA256, digest[:], signature)
	if err != nil {
		return ErrSignatureInvalid
	}

	return nil
}

func (v *rsaSHA256Verifier) Algorithm() Algorithm { return AlgorithmRSASHA256 }
func (v *rsaSHA256Verifier) KeyID() string        { return v.keyID }

// SignString signs the UTF-8 bytes of a signing string and returns the
// signature in standard base64.
func SignString(s Signer, signingString string) (string, error) {
	if s == nil {
		return "", ErrNoSigner
	}

	sig, err := s.Sign([]byte(signingString))
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(sig), nil
}

// VerifyString checks a base64 signature against a signing string.
//
// A well-formed signature that does not match yields false and a nil error.
// An undecodable signature yields ErrMalformedSignature.
func VerifyString(v Verifier, signingString, signature string) (bool, error) {
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}

	err = v.Verify([]byte(signingString), sig)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrSignatureInvalid):
		return false, nil
	default:
		return false, err
	}
}
