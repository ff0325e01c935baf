package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_RecordsRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/v1/threads/{thread}/messages", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/v1/threads/{thread}/messages", "418"))

	req := httptest.NewRequest(http.MethodGet, "/v1/threads/42/messages", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusTeapot, rr.Code)
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/v1/threads/{thread}/messages", "418"))
	assert.Equal(t, before+1, after)
}

func TestMiddleware_KeepsFlusher(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/stream", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data: x\n\n"))
		require.NoError(t, http.NewResponseController(w).Flush())
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/stream", nil))

	assert.True(t, rr.Flushed)
}

func TestMiddleware_KeepsHijacker(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/upgrade", func(w http.ResponseWriter, r *http.Request) {
		_, ok := w.(http.Hijacker)
		assert.True(t, ok, "wrapped writer must implement http.Hijacker")
		conn, _, err := w.(http.Hijacker).Hijack()
		require.NoError(t, err)
		conn.Write([]byte("HTTP/1.1 204 No Content\r\n\r\n"))
		conn.Close()
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/upgrade")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
