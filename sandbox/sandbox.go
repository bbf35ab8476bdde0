// Package sandbox is a local stand-in for the API: it checks signed token
// and resource requests the way the real service does, issues bearer
// tokens together with its response signing key as a JWK, and signs every
// JSON response.
package sandbox

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/vitalvas/ingsig/httpsig"
)

const (
	TokenPath    = "/oauth2/token"
	GreetingPath = "/greetings/single"

	DefaultScope    = "greetings:view"
	DefaultGreeting = "Welcome to ING!"
	DefaultKeyID    = "sandbox"
	DefaultTokenTTL = 905 * time.Second
)

// ResponseHeaders are the headers covered by response signatures.
var ResponseHeaders = []string{httpsig.HeaderRequestID, httpsig.HeaderResponseID}

var ErrNoClients = errors.New("sandbox: at least one client is required")

// Config configures a Server. Zero values select the defaults.
type Config struct {
	// ServerKey signs responses and is published in token responses.
	// Generated when nil.
	ServerKey   *rsa.PrivateKey
	ServerKeyID string

	// Clients maps client ids to their signing public keys.
	Clients map[string]*rsa.PublicKey

	Scope    string
	Greeting string
	TokenTTL time.Duration

	// MaxClockSkew bounds the Date header of signed requests. Defaults to
	// five minutes.
	MaxClockSkew time.Duration

	// MaxBodyBytes limits token request bodies. Defaults to 64 KiB.
	MaxBodyBytes int64

	// CorruptSignatures makes every response carry a signature that does
	// not verify.
	CorruptSignatures bool

	Logger     *zap.Logger
	Registerer prometheus.Registerer
	Now        func() time.Time
}

type token struct {
	clientID string
	scope    string
	expires  time.Time
}

// Server implements http.Handler.
type Server struct {
	cfg    Config
	signer httpsig.Signer
	jwk    json.RawMessage
	router chi.Router
	logger *zap.Logger

	mu     sync.RWMutex
	tokens map[string]token

	tokensIssued      prometheus.Counter
	signatureFailures *prometheus.CounterVec
}

// New builds a Server.
func New(cfg Config) (*Server, error) {
	if len(cfg.Clients) == 0 {
		return nil, ErrNoClients
	}

	if cfg.ServerKey == nil {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return nil, fmt.Errorf("sandbox: generate server key: %w", err)
		}

		cfg.ServerKey = key
	}

	if cfg.ServerKeyID == "" {
		cfg.ServerKeyID = DefaultKeyID
	}

	if cfg.Scope == "" {
		cfg.Scope = DefaultScope
	}

	if cfg.Greeting == "" {
		cfg.Greeting = DefaultGreeting
	}

	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}

	if cfg.MaxClockSkew == 0 {
		cfg.MaxClockSkew = 5 * time.Minute
	}

	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = 64 << 10
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	signer, err := httpsig.NewRSASHA256Signer(cfg.ServerKeyID, cfg.ServerKey)
	if err != nil {
		return nil, fmt.Errorf("sandbox: server key: %w", err)
	}

	jwk, err := httpsig.MarshalJWK(cfg.ServerKeyID, &cfg.ServerKey.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("sandbox: server key: %w", err)
	}

	factory := promauto.With(cfg.Registerer)

	s := &Server{
		cfg:    cfg,
		signer: signer,
		jwk:    jwk,
		logger: logger,
		tokens: make(map[string]token),
		tokensIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "ingsig_sandbox_tokens_issued_total",
			Help: "Total number of access tokens issued by the sandbox",
		}),
		signatureFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ingsig_sandbox_signature_failures_total",
			Help: "Total number of rejected request signatures by route",
		}, []string{"route"}),
	}

	if err := s.routes(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// PublicKey returns the key response signatures verify with.
func (s *Server) PublicKey() *rsa.PublicKey {
	return &s.cfg.ServerKey.PublicKey
}

func (s *Server) routes() error {
	tokenSig, err := s.signatureMiddleware(TokenPath, httpsig.PlacementAuthorization)
	if err != nil {
		return err
	}

	resourceSig, err := s.signatureMiddleware(GreetingPath, httpsig.PlacementSignature)
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Use(recovery(s.logger))
	r.Use(responseID)

	r.With(bodyLimit(s.cfg.MaxBodyBytes), tokenSig).Post(TokenPath, s.handleToken)
	r.With(resourceSig, s.bearer).Get(GreetingPath, s.handleGreeting)

	s.router = r

	return nil
}

// resolve looks up registered client keys by keyId.
func (s *Server) resolve(_ *http.Request, keyID string, _ httpsig.Algorithm) (httpsig.Verifier, error) {
	pub, ok := s.cfg.Clients[keyID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown client %q", httpsig.ErrInvalidKey, keyID)
	}

	return httpsig.NewRSASHA256Verifier(keyID, pub)
}

func (s *Server) issueToken(clientID, scope string) (string, token, error) {
	value, err := randomToken()
	if err != nil {
		return "", token{}, err
	}

	t := token{
		clientID: clientID,
		scope:    scope,
		expires:  s.cfg.Now().Add(s.cfg.TokenTTL),
	}

	s.mu.Lock()
	s.tokens[value] = t
	s.mu.Unlock()

	s.tokensIssued.Inc()

	return value, t, nil
}

func (s *Server) lookupToken(value string) (token, bool) {
	s.mu.RLock()
	t, ok := s.tokens[value]
	s.mu.RUnlock()

	if !ok || !s.cfg.Now().Before(t.expires) {
		return token{}, false
	}

	return t, true
}

// Handle registers an extra route, such as a metrics endpoint.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.router.Handle(pattern, h)
}
