package httpsig

import (
	"fmt"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// RequestHeaders is the fixed, ordered list of headers covered by request
// signatures. The same order is advertised in the headers field.
var RequestHeaders = []string{HeaderRequestTarget, HeaderDate, HeaderDigest, HeaderRequestID}

// SigningContext holds the values signed for one outgoing request.
type SigningContext struct {
	Method    string
	Path      string
	Date      string
	RequestID string
	Digest    Digest
}

// Lookup resolves the covered request headers from the context.
func (c SigningContext) Lookup(name string) (string, bool) {
	switch name {
	case HeaderRequestTarget:
		return requestTarget(c.Method, c.Path), true
	case HeaderDate:
		return c.Date, true
	case HeaderDigest:
		return c.Digest.String(), true
	case HeaderRequestID:
		return c.RequestID, true
	default:
		return "", false
	}
}

// String returns the signing string for the context.
func (c SigningContext) String() string {
	// Every name in RequestHeaders resolves, so the error path is unreachable.
	s, _ := BuildSigningString(RequestHeaders, c.Lookup)

	return s
}

// BuildRequestSigningString returns
//
//	(request-target): <method> <path>
//	date: <date>
//	digest: <digest>
//	x-ing-reqid: <requestID>
//
// with the method lowercased, the query stripped from path, and no
// trailing newline.
func BuildRequestSigningString(method, path, date string, digest Digest, requestID string) string {
	return SigningContext{
		Method:    method,
		Path:      path,
		Date:      date,
		RequestID: requestID,
		Digest:    digest,
	}.String()
}

// BuildSigningString produces one "<name>: <value>" line per header in the
// given order, joined by newlines. Names are lowercased.
func BuildSigningString(headers []string, lookup HeaderLookup) (string, error) {
	var b strings.Builder

	for i, h := range headers {
		name := strings.ToLower(h)
		if name != HeaderRequestTarget && !httpguts.ValidHeaderFieldName(name) {
			return "", fmt.Errorf("%w: %q", ErrInvalidHeaderName, h)
		}

		value, ok := lookup(name)
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrMissingHeader, name)
		}

		if i > 0 {
			b.WriteByte('\n')
		}

		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(value)
	}

	return b.String(), nil
}
