package ingapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSender(t *testing.T) {
	t.Run("sends headers and body as given", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)

			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/oauth2/token", r.URL.Path)
			assert.Equal(t, "a=b", string(body))
			assert.Equal(t, "Tue, 01 Jan 2019 00:00:00 GMT", r.Header.Get("Date"))
			assert.Equal(t, "r1", r.Header.Get("X-ING-ReqID"))

			w.Header().Set("X-ING-Response-ID", "r2")
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte("created"))
		}))
		defer server.Close()

		h := http.Header{}
		h.Set("Date", "Tue, 01 Jan 2019 00:00:00 GMT")
		h.Set("X-ING-ReqID", "r1")

		resp, err := HTTPSender{Client: server.Client()}.Send(context.Background(), &Request{
			Method: http.MethodPost,
			URL:    server.URL + "/oauth2/token",
			Header: h,
			Body:   []byte("a=b"),
		})
		require.NoError(t, err)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, "r2", resp.Header.Get("X-ING-Response-ID"))
		assert.Equal(t, "created", string(resp.Body))
	})

	t.Run("empty body and nil header", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, int64(0), r.ContentLength)
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		resp, err := HTTPSender{}.Send(context.Background(), &Request{
			Method: http.MethodGet,
			URL:    server.URL,
		})
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		assert.Empty(t, resp.Body)
	})

	t.Run("invalid url", func(t *testing.T) {
		_, err := HTTPSender{}.Send(context.Background(), &Request{Method: http.MethodGet, URL: "://bad"})
		assert.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := HTTPSender{Client: server.Client()}.Send(ctx, &Request{Method: http.MethodGet, URL: server.URL})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
