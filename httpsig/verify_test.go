package httpsig

import (
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyResponse(t *testing.T) {
	key := serverKey(t)

	signer, err := NewRSASHA256Signer("server", key)
	require.NoError(t, err)

	verifier, err := NewRSASHA256Verifier("server", &key.PublicKey)
	require.NoError(t, err)

	body := []byte(`{"message":"Welcome to ING!"}`)

	signedHeader := func(t *testing.T) http.Header {
		t.Helper()

		h := http.Header{}
		h.Set("X-ING-ReqID", "r1")
		h.Set("X-ING-Response-ID", "r2")
		h.Set("Digest", ComputeDigest(body).String())
		require.NoError(t, SignResponse(h, []string{HeaderRequestID, HeaderResponseID}, signer))

		return h
	}

	t.Run("valid signature", func(t *testing.T) {
		res, err := VerifyResponse(signedHeader(t), body, verifier)
		require.NoError(t, err)

		assert.True(t, res.SignatureValid)
		assert.NoError(t, res.Err())
		assert.True(t, res.DigestValid)
		assert.Equal(t, "x-ing-reqid: r1\nx-ing-response-id: r2", res.SigningString)
		assert.Equal(t, "server", res.Header.KeyID)
	})

	t.Run("tampered header value is reported not returned", func(t *testing.T) {
		h := signedHeader(t)
		h.Set("X-ING-Response-ID", "other")

		res, err := VerifyResponse(h, body, verifier)
		require.NoError(t, err)
		assert.False(t, res.SignatureValid)
		assert.ErrorIs(t, res.Err(), ErrSignatureInvalid)
	})

	t.Run("wrong server key", func(t *testing.T) {
		other, err := NewRSASHA256Verifier("client", &clientKey(t).PublicKey)
		require.NoError(t, err)

		res, err := VerifyResponse(signedHeader(t), body, other)
		require.NoError(t, err)
		assert.False(t, res.SignatureValid)
	})

	t.Run("digest mismatch does not fail", func(t *testing.T) {
		res, err := VerifyResponse(signedHeader(t), []byte("other body"), verifier)
		require.NoError(t, err)
		assert.True(t, res.SignatureValid)
		assert.False(t, res.DigestValid)
		assert.Equal(t, ComputeDigest([]byte("other body")), res.ComputedDigest)
	})

	t.Run("missing signature header", func(t *testing.T) {
		_, err := VerifyResponse(http.Header{}, body, verifier)
		assert.ErrorIs(t, err, ErrSignatureNotFound)
	})

	t.Run("malformed signature header", func(t *testing.T) {
		h := http.Header{}
		h.Set("Signature", `keyId="server"`)

		_, err := VerifyResponse(h, body, verifier)
		assert.ErrorIs(t, err, ErrMalformedHeader)
	})

	t.Run("covered header absent", func(t *testing.T) {
		h := signedHeader(t)
		h.Del("X-ING-Response-ID")

		_, err := VerifyResponse(h, body, verifier)
		assert.ErrorIs(t, err, ErrMissingHeader)
	})

	t.Run("signature not base64", func(t *testing.T) {
		h := http.Header{}
		h.Set("X-ING-ReqID", "r1")
		h.Set("Signature", `keyId="server",algorithm="rsa-sha256",headers="x-ing-reqid",signature="%%%"`)

		_, err := VerifyResponse(h, body, verifier)
		assert.ErrorIs(t, err, ErrMalformedSignature)
	})
}

func TestVerifyRequest(t *testing.T) {
	key := clientKey(t)

	signer, err := NewRSASHA256Signer("client-1", key)
	require.NoError(t, err)

	verifier, err := NewRSASHA256Verifier("client-1", &key.PublicKey)
	require.NoError(t, err)

	resolver := func(_ *http.Request, keyID string, _ Algorithm) (Verifier, error) {
		if keyID == "client-1" {
			return verifier, nil
		}
		return nil, ErrInvalidKey
	}

	newSigned := func(t *testing.T, placement Placement, date time.Time) *http.Request {
		t.Helper()

		req := httptest.NewRequest(http.MethodPost, "https://example.com/oauth2/token", strings.NewReader("grant_type=client_credentials"))
		_, err := SignRequest(req, SignConfig{Signer: signer, Placement: placement, Date: date})
		require.NoError(t, err)

		return req
	}

	t.Run("nil resolver", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		assert.ErrorIs(t, VerifyRequest(req, VerifyConfig{}), ErrNoResolver)
	})

	t.Run("valid authorization signature", func(t *testing.T) {
		req := newSigned(t, PlacementAuthorization, time.Now())
		assert.NoError(t, VerifyRequest(req, VerifyConfig{Resolver: resolver}))
	})

	t.Run("valid signature header", func(t *testing.T) {
		req := newSigned(t, PlacementSignature, time.Now())
		assert.NoError(t, VerifyRequest(req, VerifyConfig{Resolver: resolver, Placement: PlacementSignature}))
	})

	t.Run("wrong placement", func(t *testing.T) {
		req := newSigned(t, PlacementSignature, time.Now())
		assert.ErrorIs(t, VerifyRequest(req, VerifyConfig{Resolver: resolver}), ErrSignatureNotFound)
	})

	t.Run("tampered body", func(t *testing.T) {
		req := newSigned(t, PlacementAuthorization, time.Now())
		req.Body = io.NopCloser(strings.NewReader("grant_type=password"))

		assert.ErrorIs(t, VerifyRequest(req, VerifyConfig{Resolver: resolver}), ErrDigestMismatch)
	})

	t.Run("tampered path", func(t *testing.T) {
		req := newSigned(t, PlacementAuthorization, time.Now())
		req.URL.Path = "/oauth2/other"

		assert.ErrorIs(t, VerifyRequest(req, VerifyConfig{Resolver: resolver}), ErrSignatureInvalid)
	})

	t.Run("tampered request id", func(t *testing.T) {
		req := newSigned(t, PlacementAuthorization, time.Now())
		req.Header.Set("X-ING-ReqID", "replayed")

		assert.ErrorIs(t, VerifyRequest(req, VerifyConfig{Resolver: resolver}), ErrSignatureInvalid)
	})

	t.Run("unknown key", func(t *testing.T) {
		other, err := NewRSASHA256Signer("client-2", key)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "https://example.com/", nil)
		_, err = SignRequest(req, SignConfig{Signer: other})
		require.NoError(t, err)

		assert.ErrorIs(t, VerifyRequest(req, VerifyConfig{Resolver: resolver}), ErrInvalidKey)
	})

	t.Run("resolver without verifier", func(t *testing.T) {
		req := newSigned(t, PlacementAuthorization, time.Now())

		err := VerifyRequest(req, VerifyConfig{
			Resolver: func(*http.Request, string, Algorithm) (Verifier, error) { return nil, nil },
		})
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("required header not covered", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "https://example.com/", nil)
		req.Header.Set("Date", FormatDate(time.Now()))

		sig, err := SignString(signer, "date: "+req.Header.Get("Date"))
		require.NoError(t, err)

		req.Header.Set("Authorization", SignatureHeader{
			KeyID:     "client-1",
			Algorithm: AlgorithmRSASHA256,
			Headers:   []string{HeaderDate},
			Signature: sig,
		}.Authorization())

		assert.ErrorIs(t, VerifyRequest(req, VerifyConfig{Resolver: resolver}), ErrMissingHeader)
		assert.NoError(t, VerifyRequest(req, VerifyConfig{Resolver: resolver, RequiredHeaders: []string{HeaderDate}}))
	})

	t.Run("unsupported algorithm", func(t *testing.T) {
		req := newSigned(t, PlacementAuthorization, time.Now())
		req.Header.Set("Authorization", strings.Replace(req.Header.Get("Authorization"), "rsa-sha256", "hmac-sha256", 1))

		assert.ErrorIs(t, VerifyRequest(req, VerifyConfig{Resolver: resolver}), ErrUnsupportedAlgorithm)
	})

	t.Run("clock skew", func(t *testing.T) {
		now := time.Date(2019, time.January, 1, 12, 0, 0, 0, time.UTC)
		cfg := VerifyConfig{
			Resolver:     resolver,
			MaxClockSkew: 5 * time.Minute,
			Now:          func() time.Time { return now },
		}

		assert.NoError(t, VerifyRequest(newSigned(t, PlacementAuthorization, now.Add(-time.Minute)), cfg))
		assert.ErrorIs(t, VerifyRequest(newSigned(t, PlacementAuthorization, now.Add(-time.Hour)), cfg), ErrSignatureExpired)
		assert.ErrorIs(t, VerifyRequest(newSigned(t, PlacementAuthorization, now.Add(time.Hour)), cfg), ErrSignatureExpired)
	})

	t.Run("malformed date", func(t *testing.T) {
		req := newSigned(t, PlacementAuthorization, time.Now())
		req.Header.Set("Date", "yesterday")

		err := VerifyRequest(req, VerifyConfig{Resolver: resolver, MaxClockSkew: time.Minute})
		assert.ErrorIs(t, err, ErrMalformedHeader)
	})

	t.Run("signature not base64", func(t *testing.T) {
		req := newSigned(t, PlacementAuthorization, time.Now())
		parsed, err := ParseSignatureHeader(req.Header.Get("Authorization"))
		require.NoError(t, err)

		parsed.Signature = "***"
		req.Header.Set("Authorization", parsed.Authorization())

		assert.ErrorIs(t, VerifyRequest(req, VerifyConfig{Resolver: resolver}), ErrMalformedSignature)
	})

	t.Run("signature of other key", func(t *testing.T) {
		req := newSigned(t, PlacementAuthorization, time.Now())
		parsed, err := ParseSignatureHeader(req.Header.Get("Authorization"))
		require.NoError(t, err)

		parsed.Signature = base64.StdEncoding.EncodeToString(make([]byte, 256))
		req.Header.Set("Authorization", parsed.Authorization())

		assert.ErrorIs(t, VerifyRequest(req, VerifyConfig{Resolver: resolver}), ErrSignatureInvalid)
	})
}
