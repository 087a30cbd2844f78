// Package watch polls saved searches and reports listings that were not
// present on earlier passes.
package watch

import (
	"context"
	"net/url"
	"time"

	"github.com/griguv/pricewatch/internal/dedup"
	"github.com/griguv/pricewatch/internal/extract"
	"github.com/griguv/pricewatch/internal/metrics"
	"github.com/griguv/pricewatch/internal/resilience"
	"github.com/griguv/pricewatch/internal/urlnorm"
	"github.com/griguv/pricewatch/logger"
	"github.com/griguv/pricewatch/pkg/errors"
)

// rssThreshold is the card count below which the HTML result is considered
// suspiciously thin and the feed variant of the search is tried as well.
const rssThreshold = 3

// Search is one saved search polled on a schedule. The normalized URL doubles
// as the deduplication key, so two spellings of the same search share one
// seen set.
type Search struct {
	name    string
	url     string
	pages   []string
	site    *extract.Site
	fetcher *resilience.Fetcher
	seen    *dedup.Store
	metrics *metrics.Metrics
	log     *logger.Logger
}

// CrawlResult is the outcome of one polling pass
type CrawlResult struct {
	New           []extract.ListingRecord
	Total         int
	Seeded        bool
	LikelyBlocked bool
}

// NewSearch builds a search from a raw URL. The URL is normalized once here;
// every later crawl reuses the canonical form.
func NewSearch(name, rawURL string, pageCap int, f *resilience.Fetcher, seen *dedup.Store, extraStrip []string, m *metrics.Metrics) (*Search, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.NewConfiguration("invalid watch url", err)
	}
	opts := urlnorm.DefaultOptions(u.Hostname(), extraStrip)
	normalized, err := urlnorm.Normalize(rawURL, opts)
	if err != nil {
		return nil, errors.NewConfiguration("watch url rejected", err)
	}
	if pageCap < 1 {
		pageCap = 1
	}
	return &Search{
		name:    name,
		url:     normalized,
		pages:   urlnorm.Pages(normalized, opts.PageParam, pageCap),
		site:    extract.SiteFor(normalized),
		fetcher: f,
		seen:    seen,
		metrics: m,
		log:     logger.ForWatch(name),
	}, nil
}

// Name returns the search's display name
func (s *Search) Name() string {
	return s.name
}

// URL returns the canonical search URL, which is also the dedup key
func (s *Search) URL() string {
	return s.url
}

// Crawl runs one polling pass: fetch the capped page range, extract listing
// cards, fall back to the feed when the cards come back thin, then diff
// against the seen set. An error is returned only when no page produced
// anything usable.
func (s *Search) Crawl(ctx context.Context) (CrawlResult, error) {
	start := time.Now()
	defer s.observeDuration(start)

	var items []extract.ListingRecord
	var result CrawlResult
	var lastErr error
	fetched := 0

	for _, pageURL := range s.pages {
		res := s.fetcher.Fetch(ctx, resilience.Request{URL: pageURL})
		if !res.OK() {
			if res.Blocked {
				result.LikelyBlocked = true
			}
			lastErr = res.LastErr
			// Later pages often just don't exist; keep what we have.
			continue
		}
		fetched++

		page, err := extract.Listings(res.Body, pageURL)
		if err != nil {
			lastErr = err
			continue
		}
		if page.LikelyBlocked {
			result.LikelyBlocked = true
		}
		items = append(items, page.Items...)
	}

	if len(items) < rssThreshold {
		items = s.mergeRSS(ctx, items)
	}

	if fetched == 0 && len(items) == 0 {
		if result.LikelyBlocked {
			return result, errors.NewBlocked(s.url, "search blocked on every page")
		}
		if lastErr != nil {
			return result, lastErr
		}
		return result, errors.NewNetwork(s.url, "no page fetched", nil)
	}

	items = dedupeByID(items)
	result.Total = len(items)

	result.New, result.Seeded = s.seen.Diff(s.url, items)
	s.seen.MarkSeen(s.url, items)

	if s.metrics != nil && len(result.New) > 0 {
		s.metrics.NewListings.Add(float64(len(result.New)))
	}
	s.log.Debug().
		Int("total", result.Total).
		Int("new", len(result.New)).
		Bool("seeded", result.Seeded).
		Msg("Crawl pass finished")

	return result, nil
}

// mergeRSS pulls the feed variant of the search and merges its items with
// the HTML cards. Feed items carry no price text, so HTML entries win on
// identifier collision.
func (s *Search) mergeRSS(ctx context.Context, items []extract.ListingRecord) []extract.ListingRecord {
	if s.site.RSSURL == nil {
		return items
	}
	feedURL := s.site.RSSURL(s.url)
	if feedURL == "" {
		return items
	}

	res := s.fetcher.Fetch(ctx, resilience.Request{URL: feedURL})
	if !res.OK() {
		return items
	}
	feedItems, err := extract.ParseRSS(res.Body)
	if err != nil {
		s.log.Debug().Err(err).Msg("Feed fallback unreadable")
		return items
	}
	s.log.Debug().Int("feed_items", len(feedItems)).Msg("Merged feed fallback")
	return append(items, feedItems...)
}

// dedupeByID collapses identifier collisions across pages and the feed,
// keeping the first (HTML) occurrence.
func dedupeByID(items []extract.ListingRecord) []extract.ListingRecord {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, it := range items {
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		out = append(out, it)
	}
	return out
}

func (s *Search) observeDuration(start time.Time) {
	if s.metrics != nil {
		s.metrics.CrawlDuration.Observe(time.Since(start).Seconds())
	}
}
