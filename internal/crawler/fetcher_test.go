package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/attuario-ai/attuario/internal/cache"
)

type immediatePause struct{}

func (immediatePause) Pause(context.Context, time.Duration) {}

func newTestFetcher(t *testing.T, opts ...FetcherOption) *HTTPFetcher {
	t.Helper()
	f := NewHTTPFetcher(nil, zap.NewNop(), opts...)
	f.pause = immediatePause{}
	return f
}

func TestFetchSuccess(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "attuario-bot/1.0", r.Header.Get("User-Agent"))
		w.Write([]byte("<html><body>riserve tecniche</body></html>"))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	got, err := f.Fetch(context.Background(), FetchRequest{URL: srv.URL, Depth: 1, UserAgent: "attuario-bot/1.0"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, got.StatusCode)
	require.Equal(t, 1, got.Depth)
	require.Contains(t, string(got.Body), "riserve tecniche")
	require.False(t, got.FromCache)
}

func TestFetchRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	got, err := f.Fetch(context.Background(), FetchRequest{URL: srv.URL})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, got.StatusCode)
	require.EqualValues(t, 3, calls.Load())
}

func TestFetchReturnsStatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	_, err := f.Fetch(context.Background(), FetchRequest{URL: srv.URL})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusNotFound, statusErr.Code)
}

func TestFetchServesFromCache(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte("contenuto"))
	}))
	defer srv.Close()

	store := cache.NewMemoryStore()
	f := newTestFetcher(t, WithCache(store, time.Hour))

	first, err := f.Fetch(context.Background(), FetchRequest{URL: srv.URL})
	require.NoError(t, err)
	require.False(t, first.FromCache)

	second, err := f.Fetch(context.Background(), FetchRequest{URL: srv.URL})
	require.NoError(t, err)
	require.True(t, second.FromCache)
	require.Equal(t, first.Body, second.Body)

	require.EqualValues(t, 1, calls.Load())
}

func TestFetchDoesNotCacheErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	store := cache.NewMemoryStore()
	f := newTestFetcher(t, WithCache(store, time.Hour))

	_, err := f.Fetch(context.Background(), FetchRequest{URL: srv.URL})
	require.Error(t, err)

	_, ok := store.Get(srv.URL)
	require.False(t, ok)
}

func TestFetchCapsBodySize(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 4096)))
	}))
	defer srv.Close()

	f := newTestFetcher(t, WithMaxBodyBytes(1024))
	got, err := f.Fetch(context.Background(), FetchRequest{URL: srv.URL})
	require.NoError(t, err)
	require.Len(t, got.Body, 1024)
}
