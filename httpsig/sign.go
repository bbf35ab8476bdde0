package httpsig

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Header names set on signed messages.
const (
	HeaderNameAuthorization = "Authorization"
	HeaderNameSignature     = "Signature"
	HeaderNameDigest        = "Digest"
	HeaderNameDate          = "Date"
	HeaderNameRequestID     = "X-ING-ReqID"
	HeaderNameResponseID    = "X-ING-Response-ID"
)

// dateLayout is RFC 1123 with a zero-padded day and a literal GMT zone.
const dateLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

// Placement selects the header that carries a request signature.
type Placement int

const (
	// PlacementAuthorization sends "Authorization: Signature keyId=...".
	// Used when the signature itself authenticates the client.
	PlacementAuthorization Placement = iota

	// PlacementSignature sends "Signature: keyId=..." and leaves the
	// Authorization header to the caller (typically a bearer token).
	PlacementSignature
)

// String returns the header name used by the placement.
func (p Placement) String() string {
	if p == PlacementSignature {
		return HeaderNameSignature
	}

	return HeaderNameAuthorization
}

// FormatDate formats t for the Date header, e.g.
// "Tue, 01 Jan 2019 00:00:00 GMT".
func FormatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// NewRequestID returns a random UUID for the X-ING-ReqID header.
func NewRequestID() string {
	return uuid.NewString()
}

// SignConfig configures request signing.
type SignConfig struct {
	// Signer produces signatures. Required.
	Signer Signer

	// Placement selects the signature header. Defaults to
	// PlacementAuthorization.
	Placement Placement

	// RequestID sets X-ING-ReqID. When empty, a random UUID is used.
	RequestID string

	// Date sets the signing time. When zero, time.Now() is used.
	Date time.Time
}

// SignRequest signs r in-place. It computes the body digest and sets the
// Digest, Date and X-ING-ReqID headers, then signs RequestHeaders and sets
// the header selected by cfg.Placement. The returned context holds the
// signed values.
func SignRequest(r *http.Request, cfg SignConfig) (SigningContext, error) {
	if cfg.Signer == nil {
		return SigningContext{}, ErrNoSigner
	}

	body, err := readAndRestoreBody(r)
	if err != nil {
		return SigningContext{}, err
	}

	return SignHeader(r.Header, r.Method, r.URL.EscapedPath(), body, cfg)
}

// SignHeader is SignRequest for callers that hold the request parts
// separately. path may carry a query; it is not signed.
func SignHeader(h http.Header, method, path string, body []byte, cfg SignConfig) (SigningContext, error) {
	if cfg.Signer == nil {
		return SigningContext{}, ErrNoSigner
	}

	date := cfg.Date
	if date.IsZero() {
		date = time.Now()
	}

	reqID := cfg.RequestID
	if reqID == "" {
		reqID = NewRequestID()
	}

	sc := SigningContext{
		Method:    method,
		Path:      path,
		Date:      FormatDate(date),
		RequestID: reqID,
		Digest:    ComputeDigest(body),
	}

	sig, err := SignString(cfg.Signer, sc.String())
	if err != nil {
		return SigningContext{}, err
	}

	header := SignatureHeader{
		KeyID:     cfg.Signer.KeyID(),
		Algorithm: cfg.Signer.Algorithm(),
		Headers:   RequestHeaders,
		Signature: sig,
	}

	h.Set(HeaderNameDigest, sc.Digest.String())
	h.Set(HeaderNameDate, sc.Date)
	h.Set(HeaderNameRequestID, sc.RequestID)

	if cfg.Placement == PlacementSignature {
		h.Set(HeaderNameSignature, header.String())
	} else {
		h.Set(HeaderNameAuthorization, header.Authorization())
	}

	return sc, nil
}

// SignResponse signs the given response headers, in order, and sets the
// Signature header on h. Used by servers answering signed requests.
func SignResponse(h http.Header, headers []string, s Signer) error {
	if s == nil {
		return ErrNoSigner
	}

	signingString, err := BuildSigningString(headers, FromHeader(h))
	if err != nil {
		return err
	}

	sig, err := SignString(s, signingString)
	if err != nil {
		return err
	}

	h.Set(HeaderNameSignature, SignatureHeader{
		KeyID:     s.KeyID(),
		Algorithm: s.Algorithm(),
		Headers:   headers,
		Signature: sig,
	}.String())

	return nil
}
