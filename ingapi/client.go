package ingapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vitalvas/ingsig/httpsig"
)

const (
	DefaultBaseURL      = "https://api.ing.com"
	DefaultScope        = "greetings:view"
	DefaultResourcePath = "/greetings/single"

	// TokenPath is the client credentials token endpoint.
	TokenPath = "/oauth2/token"
)

const tracerName = "github.com/vitalvas/ingsig/ingapi"

// ErrNoRegistration is returned by CallResource without a usable token.
var ErrNoRegistration = errors.New("ingapi: registration with access token required")

// Options configures a Client.
type Options struct {
	// BaseURL is the API root. Defaults to DefaultBaseURL.
	BaseURL string

	// Scope requested with the token. Defaults to DefaultScope.
	Scope string

	// Sender dispatches requests. Defaults to an HTTPSender over HTTPClient.
	Sender Sender

	// HTTPClient is used by the default Sender and as the base of
	// ResourceClient. Usually built with mtls.NewHTTPClient.
	HTTPClient *http.Client

	Logger  *zap.Logger
	Metrics *Metrics

	// StrictVerification makes CallResource return an error when the
	// response signature does not verify. The body is still returned.
	StrictVerification bool

	// Now returns the signing time. Defaults to time.Now.
	Now func() time.Time
}

// Client runs the authorization flow for one set of credentials.
type Client struct {
	creds      Credentials
	signer     httpsig.Signer
	baseURL    string
	scope      string
	sender     Sender
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *Metrics
	strict     bool
	now        func() time.Time
}

// NewClient validates the credentials and options.
func NewClient(creds Credentials, opts Options) (*Client, error) {
	signer, err := creds.Signer()
	if err != nil {
		return nil, err
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, baseURL)
	}

	c := &Client{
		creds:      creds,
		signer:     signer,
		baseURL:    strings.TrimRight(baseURL, "/"),
		scope:      opts.Scope,
		sender:     opts.Sender,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		strict:     opts.StrictVerification,
		now:        opts.Now,
	}

	if c.scope == "" {
		c.scope = DefaultScope
	}

	if c.sender == nil {
		c.sender = HTTPSender{Client: opts.HTTPClient}
	}

	if c.logger == nil {
		c.logger = zap.NewNop()
	}

	if c.now == nil {
		c.now = time.Now
	}

	return c, nil
}

// Run executes token, resource and verification steps on a fresh Flow.
// The flow is returned even on error and shows how far it got.
func (c *Client) Run(ctx context.Context, path string) (*Flow, error) {
	flow := NewFlow()
	defer func() { c.metrics.observeFlow(flow.outcome()) }()

	if err := flow.advance(StateTokenRequested); err != nil {
		return flow, err
	}

	reg, err := c.RequestToken(ctx)
	if err != nil {
		flow.Err = err
		return flow, err
	}

	flow.Registration = reg
	if err := flow.advance(StateRegistered); err != nil {
		return flow, err
	}

	if err := flow.advance(StateResourceRequested); err != nil {
		return flow, err
	}

	res, err := c.CallResource(ctx, reg, path)
	if res != nil {
		flow.Result = res

		next := StateVerified
		if !res.Verified() {
			next = StateVerificationFailed
		}

		if aerr := flow.advance(next); aerr != nil {
			return flow, aerr
		}
	}

	if err != nil {
		flow.Err = err
		return flow, err
	}

	c.logger.Info("flow completed",
		zap.Stringer("state", flow.State()),
		zap.Int("status", res.StatusCode),
	)

	return flow, nil
}

// RequestToken calls the token endpoint with a signed client credentials
// grant. A non-200 answer is returned as *StatusError and not retried.
func (c *Client) RequestToken(ctx context.Context) (*Registration, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ingapi.token")
	defer span.End()

	body := []byte(url.Values{
		"grant_type": {"client_credentials"},
		"scope":      {c.scope},
	}.Encode())

	req := &Request{
		Method: http.MethodPost,
		URL:    c.baseURL + TokenPath,
		Header: http.Header{},
		Body:   body,
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.signAndSend(ctx, span, StepToken, req, httpsig.PlacementAuthorization)
	if err != nil {
		return nil, err
	}

	reg, err := ParseRegistration(resp.Body)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	c.logger.Info("token received",
		zap.String("token", redactToken(reg.AccessToken)),
		zap.String("token_type", reg.TokenType),
		zap.String("scope", reg.Scope),
		zap.Int("expires_in", reg.ExpiresIn),
	)

	return reg, nil
}

// CallResource performs a signed GET of path with the bearer token from
// reg and verifies the response signature with reg.ServerPublicKey.
//
// Verification is advisory: a failure is logged and recorded in the
// Result, and the body is returned. With StrictVerification the Result is
// returned together with an error wrapping the verification failure.
func (c *Client) CallResource(ctx context.Context, reg *Registration, path string) (*Result, error) {
	if reg == nil || reg.AccessToken == "" {
		return nil, ErrNoRegistration
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "ingapi.resource")
	defer span.End()

	if path == "" {
		path = DefaultResourcePath
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	req := &Request{
		Method: http.MethodGet,
		URL:    c.baseURL + path,
		Header: http.Header{},
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(httpsig.HeaderNameAuthorization, "Bearer "+reg.AccessToken)

	resp, err := c.signAndSend(ctx, span, StepResource, req, httpsig.PlacementSignature)
	if err != nil {
		return nil, err
	}

	res := &Result{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
		RequestID:  req.Header.Get(httpsig.HeaderNameRequestID),
	}

	c.verify(ctx, reg, res)

	if !res.Verified() && c.strict {
		err := fmt.Errorf("ingapi: response verification: %w", res.VerifyErr)
		recordError(span, err)
		return res, err
	}

	return res, nil
}

// signAndSend signs req in place, sends it, and checks for a 200 answer.
func (c *Client) signAndSend(ctx context.Context, span trace.Span, step Step, req *Request, placement httpsig.Placement) (*Response, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidURL, err)
		recordError(span, err)
		return nil, err
	}

	sc, err := httpsig.SignHeader(req.Header, req.Method, u.EscapedPath(), req.Body, httpsig.SignConfig{
		Signer:    c.signer,
		Placement: placement,
		Date:      c.now(),
	})
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("ingapi: sign %s request: %w", step, err)
	}

	span.SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("url.path", u.EscapedPath()),
		attribute.String("ing.request_id", sc.RequestID),
	)

	c.logger.Debug("signed request",
		zap.String("step", string(step)),
		zap.String("request_id", sc.RequestID),
		zap.String("digest", sc.Digest.String()),
		zap.String("signing_string", sc.String()),
	)

	start := time.Now()
	resp, err := c.sender.Send(ctx, req)
	if err != nil {
		c.metrics.observeRequest(step, 0, time.Since(start))
		err = fmt.Errorf("%w: %s: %w", ErrTransport, step, err)
		recordError(span, err)
		return nil, err
	}

	c.metrics.observeRequest(step, resp.StatusCode, time.Since(start))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	c.logger.Info("received response",
		zap.String("step", string(step)),
		zap.String("method", req.Method),
		zap.String("path", u.EscapedPath()),
		zap.Int("status", resp.StatusCode),
	)

	if resp.StatusCode != http.StatusOK {
		err := &StatusError{Step: step, StatusCode: resp.StatusCode, Body: resp.Body}
		recordError(span, err)
		return nil, err
	}

	return resp, nil
}

func recordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// redactToken keeps the first characters of a token for log correlation.
func redactToken(token string) string {
	if len(token) <= 8 {
		return "***"
	}

	return token[:4] + "***"
}
