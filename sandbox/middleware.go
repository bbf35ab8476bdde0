package sandbox

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vitalvas/ingsig/httpsig"
)

type responseIDKey struct{}

// ResponseIDFromContext returns the X-ING-Response-ID assigned to the
// request, or an empty string.
func ResponseIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(responseIDKey{}).(string); ok {
		return id
	}

	return ""
}

// responseID assigns a time-ordered X-ING-Response-ID to every response.
func responseID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.Must(uuid.NewV7()).String()

		w.Header().Set(httpsig.HeaderNameResponseID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), responseIDKey{}, id)))
	})
}

// recovery turns handler panics into 500 responses.
func recovery(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("handler panic",
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.Any("panic", err),
					)

					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

func bodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// signatureMiddleware verifies request signatures read from the header of
// the given placement.
func (s *Server) signatureMiddleware(route string, placement httpsig.Placement) (func(http.Handler) http.Handler, error) {
	return httpsig.Middleware(httpsig.MiddlewareConfig{
		Verify: httpsig.VerifyConfig{
			Resolver:     s.resolve,
			Placement:    placement,
			MaxClockSkew: s.cfg.MaxClockSkew,
			Now:          s.cfg.Now,
		},
		OnError: func(w http.ResponseWriter, r *http.Request, err error) {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				s.logger.Warn("request body too large",
					zap.String("route", route),
					zap.Int64("limit", tooLarge.Limit),
				)

				writeError(w, http.StatusRequestEntityTooLarge, "request_too_large")
				return
			}

			s.signatureFailures.WithLabelValues(route).Inc()
			s.logger.Warn("request signature rejected",
				zap.String("route", route),
				zap.String("request_id", r.Header.Get(httpsig.HeaderNameRequestID)),
				zap.Error(err),
			)

			writeError(w, http.StatusUnauthorized, "invalid_signature")
		},
	})
}

type clientIDKey struct{}

// bearer checks the access token and that it belongs to the client that
// signed the request.
func (s *Server) bearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		value, ok := strings.CutPrefix(r.Header.Get(httpsig.HeaderNameAuthorization), "Bearer ")
		if !ok || value == "" {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}

		t, ok := s.lookupToken(value)
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}

		sig, err := httpsig.ParseSignatureHeader(r.Header.Get(httpsig.HeaderNameSignature))
		if err != nil || !constantTimeEqual(sig.KeyID, t.clientID) {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), clientIDKey{}, t.clientID)))
	})
}

func clientIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(clientIDKey{}).(string)
	return id
}

// constantTimeEqual compares two strings in constant time by first hashing
// them with SHA-256.
func constantTimeEqual(a, b string) bool {
	aHash := sha256.Sum256([]byte(a))
	bHash := sha256.Sum256([]byte(b))

	return subtle.ConstantTimeCompare(aHash[:], bHash[:]) == 1
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}
