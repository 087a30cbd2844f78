// Package resilience wraps the fetch client with bounded retries, jittered
// exponential backoff, shared per-domain cooldown after detected blocking,
// and candidate-URL rotation. Requests to the same domain are serialized;
// different domains proceed concurrently.
package resilience

import (
	"context"
	"fmt"
	mathrand "math/rand"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/griguv/pricewatch/internal/extract"
	"github.com/griguv/pricewatch/internal/fetcher"
	"github.com/griguv/pricewatch/internal/metrics"
	"github.com/griguv/pricewatch/logger"
	"github.com/griguv/pricewatch/pkg/errors"
	"github.com/griguv/pricewatch/services/cache"
	"github.com/griguv/pricewatch/services/proxy"
)

// Config holds the retry/backoff tunables
type Config struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	BackoffCap   time.Duration
	Cooldown     time.Duration
	DomainMinGap time.Duration
}

// Request is one logical fetch. Candidates are alternate region/store
// variants of the URL substituted into retries after a blocked attempt.
type Request struct {
	URL        string
	Country    string
	Candidates []string
}

// FetchResult is the terminal outcome of a logical fetch. A zero Status with
// an empty body is the well-defined signal of complete failure; Blocked
// distinguishes anti-bot blocking from transient trouble. URL is the
// candidate the final attempt went to, which may differ from the requested
// URL after rotation.
type FetchResult struct {
	Status   int
	Body     string
	URL      string
	Attempts int
	Blocked  bool
	LastErr  error
}

// OK reports whether the fetch produced a usable body
func (r FetchResult) OK() bool {
	return r.Status >= 200 && r.Status <= 299 && r.Body != ""
}

// domainState serializes requests to one domain and paces them
type domainState struct {
	mu      sync.Mutex
	limiter *rate.Limiter
}

// Fetcher drives the fetch client under the retry budget
type Fetcher struct {
	client   *fetcher.Client
	profiles *fetcher.ProfileFactory
	proxies  proxy.Selector
	cache    cache.CacheService
	cfg      Config
	metrics  *metrics.Metrics
	log      *logger.Logger

	mu      sync.Mutex
	domains map[string]*domainState
	rnd     *mathrand.Rand
}

// New creates a resilient fetcher. metrics may be nil.
func New(client *fetcher.Client, profiles *fetcher.ProfileFactory, proxies proxy.Selector, cacheSvc cache.CacheService, cfg Config, m *metrics.Metrics) *Fetcher {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 1500 * time.Millisecond
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = 60 * time.Second
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	return &Fetcher{
		client:   client,
		profiles: profiles,
		proxies:  proxies,
		cache:    cacheSvc,
		cfg:      cfg,
		metrics:  m,
		log:      logger.ForFetcher(),
		domains:  make(map[string]*domainState),
		rnd:      mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
	}
}

// Fetch runs the retry state machine for one logical fetch. The whole call
// holds the domain's slot, so concurrent pipelines hitting the same domain
// line up instead of amplifying anti-bot detection.
func (f *Fetcher) Fetch(ctx context.Context, req Request) FetchResult {
	domain := domainOf(req.URL)
	st := f.domainState(domain)
	st.mu.Lock()
	defer st.mu.Unlock()

	candidates := candidateList(req)
	result := FetchResult{}

	for attempt := 0; attempt < f.cfg.MaxAttempts; attempt++ {
		result.Attempts = attempt + 1
		target := candidates[attempt%len(candidates)]
		result.URL = target

		if err := f.awaitCooldown(ctx, domain); err != nil {
			result.LastErr = err
			return result
		}
		if err := st.limiter.Wait(ctx); err != nil {
			result.LastErr = err
			return result
		}

		profile := f.profiles.For(req.Country, f.proxies.ForCountry(req.Country))
		res, err := f.client.Do(ctx, target, profile)
		f.countAttempt(domain)

		if err == nil && res.Status >= 200 && res.Status <= 299 && res.Body != "" {
			if !extract.LooksBlocked(res.Body) {
				return FetchResult{Status: res.Status, Body: res.Body, URL: target, Attempts: attempt + 1}
			}
			// 200 with a challenge body is still a block.
			err = errors.NewBlocked(target, "challenge page served with 2xx status")
		}

		switch {
		case err == nil:
			// 2xx with an empty body: transient, retry.
			result.LastErr = errors.NewNetwork(target, "empty response body", nil)
		case errors.IsBlocked(err) || (res.Body != "" && extract.LooksBlocked(res.Body)):
			result.Blocked = true
			result.LastErr = err
			f.setCooldown(domain)
			f.countBlocked(domain)
			f.log.Warn().
				Str("domain", domain).
				Str("url", target).
				Int("attempt", attempt+1).
				Msg("Blocked; domain placed on cooldown")
		case errors.IsRetryable(err):
			result.LastErr = err
		default:
			// Deterministic failure (404 and friends): retrying is pointless.
			result.Status = res.Status
			result.LastErr = err
			return result
		}

		if attempt == f.cfg.MaxAttempts-1 {
			break
		}
		f.countRetry()
		if err := sleepCtx(ctx, f.backoff(attempt)); err != nil {
			result.LastErr = err
			return result
		}
	}

	// Exhausted: zero status, empty body.
	result.Status = 0
	result.Body = ""
	return result
}

// domainState returns (creating on first use) the shared state for a domain
func (f *Fetcher) domainState(domain string) *domainState {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.domains[domain]
	if !ok {
		limit := rate.Inf
		if f.cfg.DomainMinGap > 0 {
			limit = rate.Every(f.cfg.DomainMinGap)
		}
		st = &domainState{limiter: rate.NewLimiter(limit, 1)}
		f.domains[domain] = st
	}
	return st
}

// cooldownKey is the shared cache key carrying a domain's cooldown expiry
func cooldownKey(domain string) string {
	return "cooldown:" + domain
}

// awaitCooldown sleeps until the domain's cooldown expires, if one is live.
// The cooldown is shared state: it applies across logically separate calls
// and, with memcache, across processes.
func (f *Fetcher) awaitCooldown(ctx context.Context, domain string) error {
	if f.cache == nil {
		return nil
	}
	raw, err := f.cache.Get(cooldownKey(domain))
	if err != nil {
		return nil // no cooldown entry
	}
	expiry, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return nil
	}
	wait := time.Until(time.Unix(expiry, 0))
	if wait <= 0 {
		return nil
	}
	if wait > f.cfg.Cooldown {
		wait = f.cfg.Cooldown
	}
	f.log.Debug().Str("domain", domain).Dur("wait", wait).Msg("Waiting out domain cooldown")
	return sleepCtx(ctx, wait)
}

// setCooldown marks the domain blocked until now + the configured cooldown
func (f *Fetcher) setCooldown(domain string) {
	if f.cache == nil {
		return
	}
	expiry := time.Now().Add(f.cfg.Cooldown).Unix()
	if err := f.cache.Set(cooldownKey(domain), []byte(strconv.FormatInt(expiry, 10)), f.cfg.Cooldown); err != nil {
		f.log.Warn().Err(err).Str("domain", domain).Msg("Failed to store cooldown")
	}
}

// backoff computes the jittered exponential delay for an attempt index
func (f *Fetcher) backoff(attempt int) time.Duration {
	delay := f.cfg.BaseDelay << uint(attempt)
	if delay > f.cfg.BackoffCap || delay <= 0 {
		delay = f.cfg.BackoffCap
	}
	// ±25% jitter so parallel watchers don't fall into lockstep.
	f.mu.Lock()
	jitter := time.Duration(f.rnd.Int63n(int64(delay)/2+1)) - delay/4
	f.mu.Unlock()
	return delay + jitter
}

// candidateList builds the rotation order: the original URL first, then the
// alternate region variants, deduplicated.
func candidateList(req Request) []string {
	seen := map[string]struct{}{req.URL: {}}
	out := []string{req.URL}
	for _, c := range req.Candidates {
		if _, dup := seen[c]; dup || c == "" {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// domainOf reduces a URL to its registrable domain; cooldown at this
// granularity covers regional hosts of the same site.
func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return rawURL
	}
	host := u.Hostname()
	if etld, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return etld
	}
	return host
}

// sleepCtx sleeps for d unless the context is canceled first
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("canceled while waiting: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func (f *Fetcher) countAttempt(domain string) {
	if f.metrics != nil {
		f.metrics.FetchAttempts.WithLabelValues(domain).Inc()
	}
}

func (f *Fetcher) countRetry() {
	if f.metrics != nil {
		f.metrics.Retries.Inc()
	}
}

func (f *Fetcher) countBlocked(domain string) {
	if f.metrics != nil {
		f.metrics.Blocked.WithLabelValues(domain).Inc()
	}
}
