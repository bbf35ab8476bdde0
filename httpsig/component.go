package httpsig

import (
	"net/http"
	"strings"
)

// Header names covered by request signatures.
const (
	HeaderRequestTarget = "(request-target)"
	HeaderDate          = "date"
	HeaderDigest        = "digest"
	HeaderRequestID     = "x-ing-reqid"
	HeaderResponseID    = "x-ing-response-id"
)

// HeaderLookup returns the value of a covered header by lowercase name.
// The boolean reports whether the header is present.
type HeaderLookup func(name string) (string, bool)

// FromHeader returns a HeaderLookup over h. The values of a repeated
// header are joined with ", ".
func FromHeader(h http.Header) HeaderLookup {
	return func(name string) (string, bool) {
		values := h.Values(name)
		if len(values) == 0 {
			return "", false
		}

		return strings.Join(values, ", "), true
	}
}

// FromRequest returns a HeaderLookup over r that also resolves the
// (request-target) pseudo-header.
func FromRequest(r *http.Request) HeaderLookup {
	headers := FromHeader(r.Header)

	return func(name string) (string, bool) {
		if name == HeaderRequestTarget {
			return requestTarget(r.Method, r.URL.EscapedPath()), true
		}

		return headers(name)
	}
}

// requestTarget returns the (request-target) value: lowercased method and
// the path without query.
func requestTarget(method, path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	if path == "" {
		path = "/"
	}

	return strings.ToLower(method) + " " + path
}
