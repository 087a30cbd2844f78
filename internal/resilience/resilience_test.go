package resilience

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/griguv/pricewatch/internal/fetcher"
	"github.com/griguv/pricewatch/services/cache"
	"github.com/griguv/pricewatch/services/proxy"
)

func testConfig() Config {
	return Config{
		MaxAttempts:  3,
		BaseDelay:    5 * time.Millisecond,
		BackoffCap:   20 * time.Millisecond,
		Cooldown:     50 * time.Millisecond,
		DomainMinGap: 0,
	}
}

func newTestFetcher(cacheSvc cache.CacheService, cfg Config) *Fetcher {
	client := fetcher.NewClient(fetcher.Options{Timeout: 5 * time.Second})
	profiles := fetcher.NewProfileFactory([]string{"test-agent/1.0"})
	proxies := proxy.NewStaticSelector(nil, "")
	return New(client, profiles, proxies, cacheSvc, cfg, nil)
}

func TestFetchSuccessFirstAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>product</html>"))
	}))
	defer srv.Close()

	f := newTestFetcher(cache.NewMemoryService(16), testConfig())
	res := f.Fetch(context.Background(), Request{URL: srv.URL})

	assert.True(t, res.OK())
	assert.Equal(t, 1, res.Attempts)
	assert.False(t, res.Blocked)
}

func TestFetchRetriesTransientThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("<html>product</html>"))
	}))
	defer srv.Close()

	f := newTestFetcher(cache.NewMemoryService(16), testConfig())
	res := f.Fetch(context.Background(), Request{URL: srv.URL})

	assert.True(t, res.OK())
	assert.Equal(t, 2, res.Attempts)
}

func TestFetchExhaustsBudgetWhenBlocked(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cfg := testConfig()
	f := newTestFetcher(cache.NewMemoryService(16), cfg)
	res := f.Fetch(context.Background(), Request{URL: srv.URL})

	assert.False(t, res.OK())
	assert.True(t, res.Blocked)
	assert.Equal(t, 0, res.Status)
	assert.Empty(t, res.Body)
	assert.Equal(t, cfg.MaxAttempts, res.Attempts)
	assert.Equal(t, int32(cfg.MaxAttempts), calls.Load())
}

func TestFetchStopsOnDeterministicFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := newTestFetcher(cache.NewMemoryService(16), testConfig())
	res := f.Fetch(context.Background(), Request{URL: srv.URL})

	assert.False(t, res.OK())
	assert.Equal(t, http.StatusNotFound, res.Status)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchDetectsChallengeBodyOn200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>please complete the captcha</html>"))
	}))
	defer srv.Close()

	f := newTestFetcher(cache.NewMemoryService(16), testConfig())
	res := f.Fetch(context.Background(), Request{URL: srv.URL})

	assert.False(t, res.OK())
	assert.True(t, res.Blocked)
}

func TestFetchSetsSharedCooldown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	shared := cache.NewMemoryService(16)
	f := newTestFetcher(shared, testConfig())
	res := f.Fetch(context.Background(), Request{URL: srv.URL})
	require.True(t, res.Blocked)

	// The cooldown entry lands in the shared cache under the domain key.
	_, err := shared.Get("cooldown:127.0.0.1")
	assert.NoError(t, err)
}

func TestFetchRotatesCandidates(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.MaxAttempts = 2
	f := newTestFetcher(cache.NewMemoryService(16), cfg)
	f.Fetch(context.Background(), Request{
		URL:        srv.URL + "/us",
		Candidates: []string{srv.URL + "/it"},
	})

	require.Len(t, paths, 2)
	assert.Equal(t, "/us", paths[0])
	assert.Equal(t, "/it", paths[1])
}

func TestFetchBlockedPrimaryServedByCandidate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/us" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte("<html>product</html>"))
	}))
	defer srv.Close()

	f := newTestFetcher(cache.NewMemoryService(16), testConfig())
	res := f.Fetch(context.Background(), Request{
		URL:        srv.URL + "/us",
		Candidates: []string{srv.URL + "/it"},
	})

	require.True(t, res.OK())
	assert.Equal(t, 2, res.Attempts)
	// The result reports the candidate that actually served.
	assert.Equal(t, srv.URL+"/it", res.URL)
}

func TestFetchHonorsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.BaseDelay = 5 * time.Second
	cfg.BackoffCap = 5 * time.Second
	f := newTestFetcher(cache.NewMemoryService(16), cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	res := f.Fetch(ctx, Request{URL: srv.URL})
	assert.False(t, res.OK())
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestBackoffCapped(t *testing.T) {
	f := newTestFetcher(nil, Config{
		MaxAttempts: 5,
		BaseDelay:   10 * time.Millisecond,
		BackoffCap:  40 * time.Millisecond,
		Cooldown:    time.Minute,
	})

	for attempt := 0; attempt < 10; attempt++ {
		d := f.backoff(attempt)
		// Cap plus the 25% jitter headroom.
		assert.LessOrEqual(t, d, 50*time.Millisecond)
		assert.Greater(t, d, time.Duration(0))
	}
}
