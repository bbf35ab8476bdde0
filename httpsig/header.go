package httpsig

import (
	"fmt"
	"strings"
)

const authorizationScheme = "Signature"

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// SignatureHeader is the decoded form of a Signature header value:
//
//	keyId="<id>",algorithm="rsa-sha256",headers="<names>",signature="<b64>"
type SignatureHeader struct {
	KeyID     string
	Algorithm Algorithm
	Headers   []string
	Signature string
}

// String encodes the header value. Header names are lowercased and joined
// with single spaces in their given order. Backslashes and double quotes in
// values are escaped.
func (h SignatureHeader) String() string {
	names := make([]string, len(h.Headers))
	for i, name := range h.Headers {
		names[i] = strings.ToLower(name)
	}

	return fmt.Sprintf(`keyId="%s",algorithm="%s",headers="%s",signature="%s"`,
		quoteEscaper.Replace(h.KeyID),
		quoteEscaper.Replace(string(h.Algorithm)),
		quoteEscaper.Replace(strings.Join(names, " ")),
		quoteEscaper.Replace(h.Signature))
}

// Authorization encodes the value for an Authorization header.
func (h SignatureHeader) Authorization() string {
	return authorizationScheme + " " + h.String()
}

// ParseSignatureHeader decodes a Signature header value, or an
// Authorization header value using the Signature scheme.
//
// Only headers and signature are required. keyId and algorithm are
// extracted when present; any other field is ignored.
func ParseSignatureHeader(value string) (SignatureHeader, error) {
	var h SignatureHeader

	value = strings.TrimSpace(value)
	if scheme, rest, ok := strings.Cut(value, " "); ok && strings.EqualFold(scheme, authorizationScheme) {
		value = rest
	}

	for _, entry := range splitQuoteAware(value, ',') {
		key, raw, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}

		raw = strings.TrimSpace(raw)
		if len(raw) < 2 || raw[0] != '"' || raw[len(raw)-1] != '"' {
			continue
		}

		switch strings.TrimSpace(key) {
		case "keyId":
			h.KeyID = unquote(raw)
		case "algorithm":
			h.Algorithm = Algorithm(unquote(raw))
		case "headers":
			h.Headers = strings.Fields(unquote(raw))
		case "signature":
			h.Signature = unquote(raw)
		}
	}

	if len(h.Headers) == 0 {
		return h, fmt.Errorf("%w: headers field missing", ErrMalformedHeader)
	}

	if h.Signature == "" {
		return h, fmt.Errorf("%w: signature field missing", ErrMalformedHeader)
	}

	return h, nil
}

// splitQuoteAware splits s on delim while respecting "..." quoted regions.
// Backslash-escaped quotes (\") inside quoted strings are handled. Each
// resulting part is trimmed of whitespace and empty parts are skipped.
func splitQuoteAware(s string, delim byte) []string {
	var result []string
	var part strings.Builder
	inQuote := false

	for i := 0; i < len(s); i++ {
		ch := s[i]

		if inQuote {
			if ch == '\\' && i+1 < len(s) {
				part.WriteByte(ch)
				i++
				part.WriteByte(s[i])
				continue
			}

			if ch == '"' {
				inQuote = false
			}

			part.WriteByte(ch)
			continue
		}

		if ch == '"' {
			inQuote = true
			part.WriteByte(ch)
			continue
		}

		if ch == delim {
			if p := strings.TrimSpace(part.String()); p != "" {
				result = append(result, p)
			}

			part.Reset()
			continue
		}

		part.WriteByte(ch)
	}

	if p := strings.TrimSpace(part.String()); p != "" {
		result = append(result, p)
	}

	return result
}

// unquote removes surrounding double quotes and unescapes \\ and \".
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	if !strings.Contains(s, `\`) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}

		b.WriteByte(s[i])
	}

	return b.String()
}
