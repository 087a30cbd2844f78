// Package compare fetches a product across country variants and builds a
// per-country price table.
package compare

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/griguv/pricewatch/internal/extract"
	"github.com/griguv/pricewatch/internal/metrics"
	"github.com/griguv/pricewatch/internal/resilience"
	"github.com/griguv/pricewatch/internal/urlnorm"
	"github.com/griguv/pricewatch/logger"
	"github.com/griguv/pricewatch/pkg/errors"
)

// maxParallelCountries bounds the fan-out of one comparison. The resilience
// layer serializes same-domain requests anyway; this only caps goroutines
// when variants land on distinct regional hosts.
const maxParallelCountries = 4

// Entry is the outcome for one country. Exactly one of Record or Err is set;
// Converted carries the base-currency amount when conversion succeeded,
// otherwise it is zero and the raw record stands alone.
type Entry struct {
	Country   string               `json:"country"`
	URL       string               `json:"url"`
	Record    *extract.PriceRecord `json:"record,omitempty"`
	Converted float64              `json:"converted,omitempty"`
	Err       error                `json:"-"`
}

// Table maps country tag to its entry. Every requested country has an entry,
// error outcomes included, so the report never silently drops a region.
type Table map[string]Entry

// RateSource converts amounts between currencies
type RateSource interface {
	Convert(ctx context.Context, amount float64, from, to string) (float64, error)
}

// Comparer runs one product URL through every configured country
type Comparer struct {
	fetcher      *resilience.Fetcher
	rates        RateSource
	countries    []string
	baseCurrency string
	metrics      *metrics.Metrics
	log          *logger.Logger
}

// New creates a comparer. rates and m may be nil.
func New(f *resilience.Fetcher, rates RateSource, countries []string, baseCurrency string, m *metrics.Metrics) *Comparer {
	return &Comparer{
		fetcher:      f,
		rates:        rates,
		countries:    countries,
		baseCurrency: strings.ToUpper(baseCurrency),
		metrics:      m,
		log:          logger.ForCompare(),
	}
}

// PricesAcross fetches and extracts the product price for every configured
// country. Failures are recorded per country; the call itself never fails.
func (c *Comparer) PricesAcross(ctx context.Context, rawURL string) Table {
	table := make(Table, len(c.countries))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelCountries)

	for _, cc := range c.countries {
		cc := cc
		g.Go(func() error {
			entry := c.priceFor(ctx, rawURL, cc)
			mu.Lock()
			table[cc] = entry
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return table
}

// priceFor resolves the price for a single country variant. The other
// countries' variants ride along as rotation candidates, so a store front
// that blocks the primary variant can still be answered by a sibling; the
// entry's URL reports the variant that actually served.
func (c *Comparer) priceFor(ctx context.Context, rawURL, cc string) Entry {
	variant := urlnorm.CountryVariant(rawURL, cc)
	entry := Entry{Country: cc, URL: variant}

	res := c.fetcher.Fetch(ctx, resilience.Request{
		URL:        variant,
		Country:    cc,
		Candidates: c.fallbackVariants(rawURL, variant),
	})
	if res.URL != "" {
		entry.URL = res.URL
	}
	if !res.OK() {
		entry.Err = fetchError(entry.URL, res)
		c.log.Warn().Str("country", cc).Err(entry.Err).Msg("Country fetch failed")
		return entry
	}

	record, err := extract.Price(res.Body, entry.URL)
	if err != nil {
		entry.Err = err
		c.countExtraction(string(errors.TypeOf(err)))
		return entry
	}
	entry.Record = record
	c.countExtraction(string(record.Strategy))

	if c.rates != nil && record.Currency != "" && record.Currency != c.baseCurrency {
		converted, err := c.rates.Convert(ctx, record.Amount, record.Currency, c.baseCurrency)
		if err != nil {
			// Conversion is best effort; the raw price still reports.
			c.log.Debug().Str("country", cc).Err(err).Msg("Currency conversion unavailable")
		} else {
			entry.Converted = converted
		}
	} else if record.Currency == c.baseCurrency {
		entry.Converted = record.Amount
	}
	return entry
}

// fallbackVariants lists the remaining countries' variants of the URL,
// primary excluded, in configuration order.
func (c *Comparer) fallbackVariants(rawURL, primary string) []string {
	var out []string
	for _, v := range urlnorm.Variants(rawURL, c.countries) {
		if v != primary {
			out = append(out, v)
		}
	}
	return out
}

func (c *Comparer) countExtraction(outcome string) {
	if c.metrics != nil && outcome != "" {
		c.metrics.Extractions.WithLabelValues(outcome).Inc()
	}
}

// fetchError converts a failed fetch result into the taxonomy error
func fetchError(source string, res resilience.FetchResult) error {
	switch {
	case res.Blocked:
		return errors.NewBlocked(source, "blocked after all attempts")
	case res.LastErr != nil:
		return res.LastErr
	case res.Status != 0:
		return errors.NewHTTP(source, res.Status)
	default:
		return errors.NewNetwork(source, "fetch exhausted all attempts", nil)
	}
}

// FormatTable renders the comparison as an aligned text table, countries in
// the given order (or sorted when nil). Error outcomes render as markers so
// the reader sees the region was checked.
func FormatTable(t Table, countries []string) string {
	if len(countries) == 0 {
		countries = make([]string, 0, len(t))
		for cc := range t {
			countries = append(countries, cc)
		}
		sort.Strings(countries)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%-8s %-16s %-16s %s\n", "COUNTRY", "PRICE", "CONVERTED", "NOTE"))
	for _, cc := range countries {
		entry, ok := t[cc]
		if !ok {
			continue
		}
		price, converted, note := "-", "-", ""
		switch {
		case entry.Err != nil:
			note = markerFor(entry.Err)
		case entry.Record != nil:
			price = fmt.Sprintf("%.2f %s", entry.Record.Amount, entry.Record.Currency)
			if entry.Converted > 0 {
				converted = fmt.Sprintf("%.2f", entry.Converted)
			}
			note = string(entry.Record.Strategy)
		}
		b.WriteString(fmt.Sprintf("%-8s %-16s %-16s %s\n", cc, price, converted, note))
	}
	return b.String()
}

// markerFor maps an error outcome to its table marker
func markerFor(err error) string {
	switch errors.TypeOf(err) {
	case errors.ErrorTypeBlocked:
		return "blocked"
	case errors.ErrorTypeNotFound:
		return "no price found"
	case errors.ErrorTypeHTTP:
		return "http error"
	default:
		return "fetch failed"
	}
}
