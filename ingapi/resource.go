package ingapi

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/vitalvas/ingsig/httpsig"
)

// Result is a 200 answer of the resource endpoint together with the outcome
// of its signature check.
type Result struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// RequestID is the X-ING-ReqID the request was signed with.
	RequestID string

	Verification httpsig.ResponseVerification

	// VerifyErr is nil when the response signature verified. Otherwise it
	// is httpsig.ErrSignatureInvalid or the reason the check could not run.
	VerifyErr error
}

// Verified reports whether the response signature verified.
func (r *Result) Verified() bool {
	return r.VerifyErr == nil
}

// verify checks the response signature against the server key of reg and
// records the outcome in res. It never fails the call.
func (c *Client) verify(ctx context.Context, reg *Registration, res *Result) {
	_, span := otel.Tracer(tracerName).Start(ctx, "ingapi.verify")
	defer span.End()

	res.VerifyErr = c.checkResponse(reg, res)

	result := VerificationValid
	switch {
	case res.VerifyErr == nil:
	case errors.Is(res.VerifyErr, httpsig.ErrSignatureInvalid):
		result = VerificationInvalid
	default:
		result = VerificationError
	}

	c.metrics.observeVerification(result)
	span.SetAttributes(attribute.String("ing.verification", result))

	if res.VerifyErr != nil {
		recordError(span, res.VerifyErr)
		c.logger.Warn("response signature not verified",
			zap.String("request_id", res.RequestID),
			zap.String("result", result),
			zap.Error(res.VerifyErr),
		)
		return
	}

	c.logger.Info("response signature verified",
		zap.String("request_id", res.RequestID),
		zap.String("key_id", res.Verification.Header.KeyID),
	)
}

func (c *Client) checkResponse(reg *Registration, res *Result) error {
	if reg.ServerPublicKey == nil {
		return ErrInvalidTokenResponse
	}

	verifier, err := httpsig.NewRSASHA256Verifier("server", reg.ServerPublicKey)
	if err != nil {
		return err
	}

	v, err := httpsig.VerifyResponse(res.Header, res.Body, verifier)
	res.Verification = v

	c.logger.Debug("response digest",
		zap.String("received", v.Digest),
		zap.String("computed", v.ComputedDigest.String()),
	)

	if v.Digest != "" && !v.DigestValid {
		c.logger.Warn("response digest mismatch",
			zap.String("received", v.Digest),
			zap.String("computed", v.ComputedDigest.String()),
		)
	}

	if err != nil {
		return err
	}

	c.logger.Debug("response signing string", zap.String("signing_string", v.SigningString))

	return v.Err()
}

// ResourceClient returns an *http.Client for further calls with the token
// from reg. Each request gets the bearer token and a Signature header, and
// 200 responses are verified advisorily like CallResource does.
func (c *Client) ResourceClient(reg *Registration) *http.Client {
	var base http.RoundTripper
	client := &http.Client{}

	if c.httpClient != nil {
		base = c.httpClient.Transport
		client.Timeout = c.httpClient.Timeout
	}

	client.Transport = &resourceTransport{
		client: c,
		reg:    reg,
		next: httpsig.NewTransport(base, httpsig.SignConfig{
			Signer:    c.signer,
			Placement: httpsig.PlacementSignature,
		}),
	}

	return client
}

type resourceTransport struct {
	client *Client
	reg    *Registration
	next   http.RoundTripper
}

func (t *resourceTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set(httpsig.HeaderNameAuthorization, "Bearer "+t.reg.AccessToken)

	if clone.Header.Get("Accept") == "" {
		clone.Header.Set("Accept", "application/json")
	}

	resp, err := t.next.RoundTrip(clone)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}

	resp.Body = io.NopCloser(bytes.NewReader(body))

	res := &Result{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}

	if resp.Request != nil {
		res.RequestID = resp.Request.Header.Get(httpsig.HeaderNameRequestID)
	}

	t.client.verify(req.Context(), t.reg, res)

	return resp, nil
}
