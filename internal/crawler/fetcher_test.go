package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sitescout/internal/cache"
	"github.com/sells-group/sitescout/internal/model"
	"github.com/sells-group/sitescout/internal/resilience"
)

// fastRetry keeps backoff out of test runtime.
func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func newTestFetcher(srv *httptest.Server, store cache.Store, ttl time.Duration) *Fetcher {
	p := NewPoliteness(srv.Client(), testAgent, 0)
	f := NewFetcher(srv.Client(), store, p, testAgent, ttl)
	f.retryCfg = fastRetry()
	return f
}

func TestFetcher_RecoversAfterTransientErrors(t *testing.T) {
	var pageHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		if pageHits.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("<html><body>recovered</body></html>"))
	}))
	defer srv.Close()

	f := newTestFetcher(srv, cache.NewMemory(), 0)
	out := f.Fetch(context.Background(), model.CrawlTask{URL: srv.URL + "/flaky"})

	assert.Equal(t, model.StatusOK, out.Status)
	assert.Equal(t, http.StatusOK, out.StatusCode)
	assert.Equal(t, 2, out.Retries)
	assert.Contains(t, string(out.Body), "recovered")
}

func TestFetcher_PermanentHTTPErrorNoRetry(t *testing.T) {
	var pageHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		pageHits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := newTestFetcher(srv, cache.NewMemory(), 0)
	out := f.Fetch(context.Background(), model.CrawlTask{URL: srv.URL + "/missing"})

	assert.Equal(t, model.StatusHTTPError, out.Status)
	assert.Equal(t, http.StatusNotFound, out.StatusCode)
	assert.Equal(t, 0, out.Retries)
	assert.Equal(t, int32(1), pageHits.Load())
	assert.False(t, out.Fetched())
}

func TestFetcher_ExhaustsRetries(t *testing.T) {
	var pageHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		pageHits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := newTestFetcher(srv, cache.NewMemory(), 0)
	out := f.Fetch(context.Background(), model.CrawlTask{URL: srv.URL + "/down"})

	assert.Equal(t, model.StatusHTTPError, out.Status)
	assert.Equal(t, http.StatusBadGateway, out.StatusCode)
	assert.Equal(t, 2, out.Retries)
	assert.Equal(t, int32(3), pageHits.Load())
}

func TestFetcher_CacheHitSkipsNetwork(t *testing.T) {
	var pageHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			pageHits.Add(1)
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	store := cache.NewMemory()
	pageURL := srv.URL + "/cached"
	now := time.Now()
	require.NoError(t, store.Put(context.Background(), cache.Entry{
		URL:        pageURL,
		Body:       []byte("<html>from cache</html>"),
		StatusCode: http.StatusOK,
		StoredAt:   now,
		ExpiresAt:  now.Add(time.Hour),
	}))

	f := newTestFetcher(srv, store, time.Hour)
	out := f.Fetch(context.Background(), model.CrawlTask{URL: pageURL})

	assert.Equal(t, model.StatusCacheHit, out.Status)
	assert.Equal(t, []byte("<html>from cache</html>"), out.Body)
	assert.Equal(t, int32(0), pageHits.Load())
	assert.True(t, out.Fetched())
}

func TestFetcher_ExpiredEntryRefetched(t *testing.T) {
	var pageHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		pageHits.Add(1)
		_, _ = w.Write([]byte("<html>fresh</html>"))
	}))
	defer srv.Close()

	store := cache.NewMemory()
	pageURL := srv.URL + "/stale"
	now := time.Now()
	require.NoError(t, store.Put(context.Background(), cache.Entry{
		URL:        pageURL,
		Body:       []byte("<html>stale</html>"),
		StatusCode: http.StatusOK,
		StoredAt:   now.Add(-2 * time.Hour),
		ExpiresAt:  now.Add(-time.Hour),
	}))

	f := newTestFetcher(srv, store, time.Hour)
	out := f.Fetch(context.Background(), model.CrawlTask{URL: pageURL})

	assert.Equal(t, model.StatusOK, out.Status)
	assert.Equal(t, []byte("<html>fresh</html>"), out.Body)
	assert.Equal(t, int32(1), pageHits.Load())

	// The refetched body replaces the expired entry.
	entry, ok, err := store.Get(context.Background(), pageURL)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("<html>fresh</html>"), entry.Body)
}

func TestFetcher_RobotsDenied(t *testing.T) {
	var pageHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
			return
		}
		pageHits.Add(1)
		_, _ = w.Write([]byte("secret"))
	}))
	defer srv.Close()

	f := newTestFetcher(srv, cache.NewMemory(), 0)
	out := f.Fetch(context.Background(), model.CrawlTask{URL: srv.URL + "/private/page"})

	assert.Equal(t, model.StatusRobotsDenied, out.Status)
	assert.Equal(t, int32(0), pageHits.Load())
}

func TestFetcher_SuccessfulFetchNotCachedWithoutTTL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	store := cache.NewMemory()
	f := newTestFetcher(srv, store, 0)
	pageURL := srv.URL + "/page"

	out := f.Fetch(context.Background(), model.CrawlTask{URL: pageURL})
	require.Equal(t, model.StatusOK, out.Status)

	_, ok, err := store.Get(context.Background(), pageURL)
	require.NoError(t, err)
	assert.False(t, ok)
}
