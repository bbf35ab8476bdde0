package httpsig

import "errors"

// Signing errors.
var (
	// ErrNoSigner is returned when SignConfig has no Signer configured.
	ErrNoSigner = errors.New("httpsig: signer must not be nil")
)

// Verification errors.
var (
	// ErrNoResolver is returned when VerifyConfig has no KeyResolver configured.
	ErrNoResolver = errors.New("httpsig: key resolver must not be nil")

	// ErrSignatureNotFound is returned when the message carries no signature
	// header for the expected placement.
	ErrSignatureNotFound = errors.New("httpsig: signature not found")

	// ErrSignatureInvalid is returned when signature verification fails.
	ErrSignatureInvalid = errors.New("httpsig: signature verification failed")

	// ErrSignatureExpired is returned when the Date header is outside the
	// allowed clock skew.
	ErrSignatureExpired = errors.New("httpsig: signature expired")

	// ErrMissingHeader is returned when a covered header has no value on the
	// message, or a required header is absent from the covered list.
	ErrMissingHeader = errors.New("httpsig: covered header missing")

	// ErrInvalidHeaderName is returned when a covered header name is not a
	// valid HTTP field name.
	ErrInvalidHeaderName = errors.New("httpsig: invalid header name")

	// ErrMalformedHeader is returned when a Signature or Digest header
	// cannot be parsed.
	ErrMalformedHeader = errors.New("httpsig: malformed signature header")

	// ErrMalformedSignature is returned when the signature value is not
	// valid base64.
	ErrMalformedSignature = errors.New("httpsig: malformed signature value")

	// ErrUnsupportedAlgorithm is returned when a signature header names an
	// algorithm the verifier does not implement.
	ErrUnsupportedAlgorithm = errors.New("httpsig: unsupported signature algorithm")
)

// Key material errors.
var (
	// ErrInvalidKey is returned when key material is invalid (nil,
	// insufficient size, etc.).
	ErrInvalidKey = errors.New("httpsig: invalid key material")

	// ErrKeyLoad is returned when PEM or JWK key material cannot be decoded
	// into a key of the expected type.
	ErrKeyLoad = errors.New("httpsig: cannot load key")
)

// Digest errors.
var (
	// ErrDigestMismatch is returned when Digest verification fails.
	ErrDigestMismatch = errors.New("httpsig: digest mismatch")

	// ErrDigestNotFound is returned when the Digest header is required
	// but not present.
	ErrDigestNotFound = errors.New("httpsig: digest not found")

	// ErrUnsupportedDigest is returned when the digest algorithm is not
	// supported.
	ErrUnsupportedDigest = errors.New("httpsig: unsupported digest algorithm")
)
