package httpsig

// Algorithm identifies the signature algorithm advertised in the
// algorithm field of a Signature header.
type Algorithm string

const (
	// AlgorithmRSASHA256 is RSASSA-PKCS1-v1_5 using SHA-256.
	AlgorithmRSASHA256 Algorithm = "rsa-sha256"
)

// String returns the wire representation of the algorithm.
func (a Algorithm) String() string {
	return string(a)
}

// Signer creates signatures over signing strings.
type Signer interface {
	// Sign produces a signature over the given message bytes.
	Sign(message []byte) ([]byte, error)

	// Algorithm returns the algorithm identifier for this signer.
	Algorithm() Algorithm

	// KeyID returns the key identifier advertised in the keyId field.
	KeyID() string
}

// Verifier validates signatures over signing strings.
type Verifier interface {
	// Verify checks that signature is valid for the given message bytes.
	// Returns nil on success and ErrSignatureInvalid on mismatch.
	Verify(message, signature []byte) error

	// Algorithm returns the algorithm identifier for this verifier.
	Algorithm() Algorithm

	// KeyID returns the key identifier for this verifier.
	KeyID() string
}
