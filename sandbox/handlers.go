package sandbox

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/vitalvas/ingsig/httpsig"
)

type tokenResponse struct {
	AccessToken string            `json:"access_token"`
	TokenType   string            `json:"token_type"`
	ExpiresIn   int               `json:"expires_in"`
	Scope       string            `json:"scope"`
	ClientID    string            `json:"client_id"`
	Keys        []json.RawMessage `json:"keys"`
}

type greetingResponse struct {
	Message          string `json:"message"`
	ID               string `json:"id"`
	MessageTimestamp string `json:"messageTimestamp"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeSigned(w, r, http.StatusBadRequest, errorResponse{Error: "invalid_request"})
		return
	}

	if r.PostForm.Get("grant_type") != "client_credentials" {
		s.writeSigned(w, r, http.StatusBadRequest, errorResponse{Error: "unsupported_grant_type"})
		return
	}

	scope := r.PostForm.Get("scope")
	if scope == "" {
		scope = s.cfg.Scope
	}

	if !scopeAllowed(scope, s.cfg.Scope) {
		s.writeSigned(w, r, http.StatusBadRequest, errorResponse{Error: "invalid_scope"})
		return
	}

	sig, err := httpsig.ParseSignatureHeader(r.Header.Get(httpsig.HeaderNameAuthorization))
	if err != nil {
		s.writeSigned(w, r, http.StatusUnauthorized, errorResponse{Error: "invalid_client"})
		return
	}

	value, t, err := s.issueToken(sig.KeyID, scope)
	if err != nil {
		s.logger.Error("issue token", zap.Error(err))
		s.writeSigned(w, r, http.StatusInternalServerError, errorResponse{Error: "server_error"})
		return
	}

	s.logger.Info("token issued",
		zap.String("client_id", t.clientID),
		zap.String("scope", t.scope),
		zap.Time("expires", t.expires),
	)

	s.writeSigned(w, r, http.StatusOK, tokenResponse{
		AccessToken: value,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.cfg.TokenTTL.Seconds()),
		Scope:       t.scope,
		ClientID:    t.clientID,
		Keys:        []json.RawMessage{s.jwk},
	})
}

func (s *Server) handleGreeting(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("greeting served",
		zap.String("client_id", clientIDFromContext(r.Context())),
		zap.String("request_id", r.Header.Get(httpsig.HeaderNameRequestID)),
	)

	s.writeSigned(w, r, http.StatusOK, greetingResponse{
		Message:          s.cfg.Greeting,
		ID:               ResponseIDFromContext(r.Context()),
		MessageTimestamp: s.cfg.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

// scopeAllowed reports whether every space-separated requested scope is
// granted.
func scopeAllowed(requested, granted string) bool {
	allowed := strings.Fields(granted)

	for _, want := range strings.Fields(requested) {
		if !slices.Contains(allowed, want) {
			return false
		}
	}

	return true
}

// writeSigned encodes v as JSON and writes it with Digest, Date,
// X-ING-ReqID and a Signature header over ResponseHeaders.
func (s *Server) writeSigned(w http.ResponseWriter, r *http.Request, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set(httpsig.HeaderNameDigest, httpsig.ComputeDigest(buf.Bytes()).String())
	h.Set(httpsig.HeaderNameDate, httpsig.FormatDate(s.cfg.Now()))

	reqID := r.Header.Get(httpsig.HeaderNameRequestID)
	if reqID == "" {
		reqID = httpsig.NewRequestID()
	}
	h.Set(httpsig.HeaderNameRequestID, reqID)

	if err := httpsig.SignResponse(h, ResponseHeaders, s.signer); err != nil {
		s.logger.Error("sign response", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if s.cfg.CorruptSignatures {
		corruptSignature(h)
	}

	w.WriteHeader(code)
	w.Write(buf.Bytes())
}

// corruptSignature flips the first byte of the response signature.
func corruptSignature(h http.Header) {
	sig, err := httpsig.ParseSignatureHeader(h.Get(httpsig.HeaderNameSignature))
	if err != nil {
		return
	}

	raw, err := base64.StdEncoding.DecodeString(sig.Signature)
	if err != nil || len(raw) == 0 {
		return
	}

	raw[0] ^= 0xff
	sig.Signature = base64.StdEncoding.EncodeToString(raw)
	h.Set(httpsig.HeaderNameSignature, sig.String())
}

// writeError writes an unsigned JSON error. Used before the request is
// known to come from a registered client.
func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(errorResponse{Error: msg})
}
