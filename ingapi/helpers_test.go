package ingapi

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vitalvas/ingsig/httpsig"
)

var (
	clientKeyOnce = sync.OnceValues(func() (*rsa.PrivateKey, error) { return rsa.GenerateKey(rand.Reader, 2048) })
	serverKeyOnce = sync.OnceValues(func() (*rsa.PrivateKey, error) { return rsa.GenerateKey(rand.Reader, 2048) })
)

const testClientID = "e77d776b-90af-4684-bebc-521e5b2614dd"

var testNow = time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC)

func clientKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()

	key, err := clientKeyOnce()
	require.NoError(t, err)

	return key
}

func serverKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()

	key, err := serverKeyOnce()
	require.NoError(t, err)

	return key
}

func testCredentials(t *testing.T) Credentials {
	return Credentials{ClientID: testClientID, SigningKey: clientKey(t)}
}

func tokenBody(t *testing.T, accessToken string) []byte {
	t.Helper()

	jwk, err := httpsig.MarshalJWK("server", &serverKey(t).PublicKey)
	require.NoError(t, err)

	body, err := json.Marshal(map[string]any{
		"access_token": accessToken,
		"token_type":   "Bearer",
		"expires_in":   905,
		"scope":        "greetings:view",
		"keys":         []json.RawMessage{jwk},
	})
	require.NoError(t, err)

	return body
}

// fakeAPI answers token and greeting requests after checking their
// signatures the way the real endpoints do.
type fakeAPI struct {
	t *testing.T

	tokenStatus    int
	resourceStatus int
	tokenResponse  []byte
	corrupt        bool
	unsigned       bool

	mu    sync.Mutex
	calls []*Request
}

func newFakeAPI(t *testing.T) *fakeAPI {
	return &fakeAPI{
		t:              t,
		tokenStatus:    http.StatusOK,
		resourceStatus: http.StatusOK,
		tokenResponse:  tokenBody(t, "access-token-0123456789"),
	}
}

func (f *fakeAPI) Calls() []*Request {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]*Request(nil), f.calls...)
}

func (f *fakeAPI) Send(_ context.Context, req *Request) (*Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	u, err := url.Parse(req.URL)
	require.NoError(f.t, err)

	placement := httpsig.PlacementAuthorization
	if u.Path != TokenPath {
		placement = httpsig.PlacementSignature
	}

	httpReq := httptest.NewRequest(req.Method, req.URL, bytes.NewReader(req.Body))
	httpReq.Header = req.Header.Clone()

	verifier, err := httpsig.NewRSASHA256Verifier(testClientID, &clientKey(f.t).PublicKey)
	require.NoError(f.t, err)

	err = httpsig.VerifyRequest(httpReq, httpsig.VerifyConfig{
		Resolver: func(_ *http.Request, _ string, _ httpsig.Algorithm) (httpsig.Verifier, error) {
			return verifier, nil
		},
		Placement: placement,
	})
	if err != nil {
		return &Response{StatusCode: http.StatusUnauthorized, Header: http.Header{}}, nil
	}

	if u.Path == TokenPath {
		if f.tokenStatus != http.StatusOK {
			return &Response{StatusCode: f.tokenStatus, Header: http.Header{}, Body: []byte(`{"error":"invalid_client"}`)}, nil
		}

		return &Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: f.tokenResponse}, nil
	}

	if f.resourceStatus != http.StatusOK {
		return &Response{StatusCode: f.resourceStatus, Header: http.Header{}}, nil
	}

	body := []byte(`{"message":"Welcome to ING!"}`)

	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set(httpsig.HeaderNameRequestID, req.Header.Get(httpsig.HeaderNameRequestID))
	h.Set(httpsig.HeaderNameResponseID, "response-1")
	h.Set(httpsig.HeaderNameDigest, httpsig.ComputeDigest(body).String())

	if !f.unsigned {
		signer, err := httpsig.NewRSASHA256Signer("server", serverKey(f.t))
		require.NoError(f.t, err)
		require.NoError(f.t, httpsig.SignResponse(h, []string{httpsig.HeaderRequestID, httpsig.HeaderResponseID}, signer))
	}

	if f.corrupt {
		h.Set(httpsig.HeaderNameResponseID, "response-2")
	}

	return &Response{StatusCode: http.StatusOK, Header: h, Body: body}, nil
}
