package httpsig

import (
	"net/http"
	"strings"
)

// MiddlewareConfig configures Middleware.
type MiddlewareConfig struct {
	Verify VerifyConfig

	// OnError handles requests that fail verification. Defaults to a
	// bodyless 401 with a WWW-Authenticate challenge.
	OnError func(w http.ResponseWriter, r *http.Request, err error)
}

// Middleware verifies every request with VerifyRequest before passing it
// on. It fails with ErrNoResolver when no key resolver is configured.
func Middleware(cfg MiddlewareConfig) (func(http.Handler) http.Handler, error) {
	if cfg.Verify.Resolver == nil {
		return nil, ErrNoResolver
	}

	verify := cfg.Verify
	reject := cfg.OnError
	if reject == nil {
		reject = challenge(verify)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := VerifyRequest(r, verify); err != nil {
				reject(w, r, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}

// challenge answers 401 and names the headers a signature must cover.
func challenge(cfg VerifyConfig) func(http.ResponseWriter, *http.Request, error) {
	required := cfg.RequiredHeaders
	if required == nil {
		required = RequestHeaders
	}

	value := authorizationScheme + ` headers="` + strings.Join(required, " ") + `"`

	return func(w http.ResponseWriter, _ *http.Request, _ error) {
		w.Header().Set("WWW-Authenticate", value)
		w.WriteHeader(http.StatusUnauthorized)
	}
}
