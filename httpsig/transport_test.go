package httpsig

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestTransport(t *testing.T) {
	key := clientKey(t)

	signer, err := NewRSASHA256Signer("e77d776b", key)
	require.NoError(t, err)

	verifier, err := NewRSASHA256Verifier("e77d776b", &key.PublicKey)
	require.NoError(t, err)

	resolver := func(_ *http.Request, keyID string, _ Algorithm) (Verifier, error) {
		if keyID != "e77d776b" {
			return nil, ErrInvalidKey
		}
		return verifier, nil
	}

	t.Run("default base", func(t *testing.T) {
		tr := NewTransport(nil, SignConfig{Signer: signer})
		require.NotNil(t, tr.base)
		assert.NotSame(t, http.DefaultTransport, tr.base)
	})

	tests := []struct {
		name      string
		method    string
		path      string
		body      string
		placement Placement
		bearer    string
	}{
		{name: "token request", method: http.MethodPost, path: "/oauth2/token", body: "grant_type=client_credentials&scope=greetings%3Aview"},
		{name: "resource request", method: http.MethodGet, path: "/greetings/single", placement: PlacementSignature, bearer: "Bearer eyJhbGciOi"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				err := VerifyRequest(r, VerifyConfig{Resolver: resolver, Placement: tc.placement})
				if err != nil {
					http.Error(w, err.Error(), http.StatusUnauthorized)
					return
				}

				if tc.bearer != "" && r.Header.Get(HeaderNameAuthorization) != tc.bearer {
					http.Error(w, "bearer lost", http.StatusUnauthorized)
					return
				}

				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			client := &http.Client{Transport: NewTransport(nil, SignConfig{Signer: signer, Placement: tc.placement})}

			var body io.Reader
			if tc.body != "" {
				body = strings.NewReader(tc.body)
			}

			req, err := http.NewRequest(tc.method, server.URL+tc.path, body)
			require.NoError(t, err)

			if tc.bearer != "" {
				req.Header.Set(HeaderNameAuthorization, tc.bearer)
			}

			resp, err := client.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			msg, _ := io.ReadAll(resp.Body)
			assert.Equal(t, http.StatusOK, resp.StatusCode, string(msg))

			assert.Empty(t, req.Header.Get(HeaderNameDigest))
			assert.Empty(t, req.Header.Get(HeaderNameRequestID))

			if tc.body != "" {
				require.NotNil(t, req.GetBody)
				rc, err := req.GetBody()
				require.NoError(t, err)

				data, err := io.ReadAll(rc)
				require.NoError(t, err)
				assert.Equal(t, tc.body, string(data))
			}
		})
	}

	t.Run("new request id per round trip", func(t *testing.T) {
		ids := make(chan string, 2)

		tr := NewTransport(roundTripFunc(func(r *http.Request) (*http.Response, error) {
			ids <- r.Header.Get(HeaderNameRequestID)
			return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: r}, nil
		}), SignConfig{Signer: signer})

		for range 2 {
			req, err := http.NewRequest(http.MethodGet, "https://api.example.com/greetings/single", nil)
			require.NoError(t, err)

			_, err = tr.RoundTrip(req)
			require.NoError(t, err)
		}

		first, second := <-ids, <-ids
		assert.NotEmpty(t, first)
		assert.NotEqual(t, first, second)
	})

	t.Run("fixed request id", func(t *testing.T) {
		tr := NewTransport(roundTripFunc(func(r *http.Request) (*http.Response, error) {
			assert.Equal(t, "req-1", r.Header.Get(HeaderNameRequestID))
			return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: r}, nil
		}), SignConfig{Signer: signer, RequestID: "req-1"})

		req, err := http.NewRequest(http.MethodGet, "https://api.example.com/", nil)
		require.NoError(t, err)

		_, err = tr.RoundTrip(req)
		require.NoError(t, err)
	})

	t.Run("no signer", func(t *testing.T) {
		called := false
		tr := NewTransport(roundTripFunc(func(*http.Request) (*http.Response, error) {
			called = true
			return nil, nil
		}), SignConfig{})

		req, err := http.NewRequest(http.MethodGet, "https://api.example.com/", nil)
		require.NoError(t, err)

		_, err = tr.RoundTrip(req)
		assert.ErrorIs(t, err, ErrNoSigner)
		assert.False(t, called)
	})
}
