package httpsig

import "net/http"

// Transport is an http.RoundTripper that signs requests before sending
// them. Each round trip gets its own Date and, unless SignConfig.RequestID
// is fixed, its own X-ING-ReqID.
type Transport struct {
	base   http.RoundTripper
	config SignConfig
}

// NewTransport wraps base. A nil base is replaced by a clone of
// http.DefaultTransport.
func NewTransport(base http.RoundTripper, cfg SignConfig) *Transport {
	if base == nil {
		base = http.DefaultTransport.(*http.Transport).Clone()
	}

	return &Transport{base: base, config: cfg}
}

// RoundTrip signs a clone of req so the caller's headers and body stay
// untouched.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())

	if req.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		out.Body = body
	}

	if _, err := SignRequest(out, t.config); err != nil {
		return nil, err
	}

	return t.base.RoundTrip(out)
}
