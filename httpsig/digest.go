package httpsig

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DigestSHA256 is the algorithm tag of the Digest header value.
const DigestSHA256 = "SHA-256"

// Digest is a content digest of a message body in the form carried by the
// Digest header: "SHA-256=<base64>".
type Digest struct {
	Algorithm string
	Value     string
}

// String renders the digest as a Digest header value.
func (d Digest) String() string {
	return d.Algorithm + "=" + d.Value
}

// ComputeDigest hashes body with SHA-256. A nil body is treated as empty.
func ComputeDigest(body []byte) Digest {
	h := sha256.Sum256(body)

	return Digest{
		Algorithm: DigestSHA256,
		Value:     base64.StdEncoding.EncodeToString(h[:]),
	}
}

// ParseDigest parses a Digest header value produced by Digest.String.
func ParseDigest(s string) (Digest, error) {
	alg, value, ok := strings.Cut(strings.TrimSpace(s), "=")
	if !ok || value == "" {
		return Digest{}, fmt.Errorf("%w: digest %q has no value", ErrMalformedHeader, s)
	}

	if !strings.EqualFold(alg, DigestSHA256) {
		return Digest{}, fmt.Errorf("%w: %s", ErrUnsupportedDigest, alg)
	}

	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil || len(raw) != sha256.Size {
		return Digest{}, fmt.Errorf("%w: invalid base64 in digest", ErrMalformedHeader)
	}

	return Digest{Algorithm: DigestSHA256, Value: value}, nil
}

// VerifyDigest compares a Digest header value with the digest of body.
func VerifyDigest(header string, body []byte) error {
	if header == "" {
		return ErrDigestNotFound
	}

	got, err := ParseDigest(header)
	if err != nil {
		return err
	}

	if got.Value != ComputeDigest(body).Value {
		return ErrDigestMismatch
	}

	return nil
}

// SetDigest reads the request body, sets the Digest header, and replaces
// the body so it can be read again.
func SetDigest(r *http.Request) (Digest, error) {
	body, err := readAndRestoreBody(r)
	if err != nil {
		return Digest{}, err
	}

	d := ComputeDigest(body)
	r.Header.Set(HeaderNameDigest, d.String())

	return d, nil
}

// readAndRestoreBody reads the entire request body and replaces it with a
// new reader so the body can be consumed again by downstream handlers.
func readAndRestoreBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))

	return body, nil
}
