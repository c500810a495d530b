package collyfetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"home-v1"`)
		w.Header().Set("Content-Type", "text/html")
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write([]byte("<html><body>home</body></html>"))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGetReturnsBodyAndHeaders(t *testing.T) {
	t.Parallel()

	srv := newTestSite(t)
	fetcher := New(Config{UserAgent: "test-bot/1.0"})

	resp, err := fetcher.Get(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, `"home-v1"`, resp.Headers.Get("ETag"))
	require.Contains(t, string(resp.Body), "home")
}

func TestGetSurfacesNon200AsResponse(t *testing.T) {
	t.Parallel()

	srv := newTestSite(t)
	fetcher := New(Config{})

	resp, err := fetcher.Get(context.Background(), srv.URL+"/missing")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHeadReturnsHeadersOnly(t *testing.T) {
	t.Parallel()

	srv := newTestSite(t)
	fetcher := New(Config{})

	resp, err := fetcher.Head(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, `"home-v1"`, resp.Headers.Get("ETag"))
}

func TestHeadThenGetSameURL(t *testing.T) {
	t.Parallel()

	srv := newTestSite(t)
	fetcher := New(Config{})

	_, err := fetcher.Head(context.Background(), srv.URL+"/")
	require.NoError(t, err)

	// Clones share the visited-URL store; the revisit must still succeed.
	resp, err := fetcher.Get(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetUnreachableHostErrors(t *testing.T) {
	t.Parallel()

	fetcher := New(Config{})
	_, err := fetcher.Get(context.Background(), "http://127.0.0.1:1/")
	require.Error(t, err)
}

func TestGetCanceledContext(t *testing.T) {
	t.Parallel()

	srv := newTestSite(t)
	fetcher := New(Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := fetcher.Get(ctx, srv.URL+"/")
	require.Error(t, err)
}
