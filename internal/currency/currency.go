// Package currency converts extracted prices into a common base currency
// using an external exchange-rate service, with cached rate tables.
package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/griguv/pricewatch/logger"
	"github.com/griguv/pricewatch/pkg/errors"
	"github.com/griguv/pricewatch/services/cache"
)

const ratesTTL = time.Hour

// Converter looks up exchange rates and converts amounts. Lookups fail soft:
// callers are expected to fall back to the unconverted record.
type Converter struct {
	client   *http.Client
	cache    cache.CacheService
	ratesURL string
	log      *logger.Logger
}

// ratesResponse is the exchangerate-style JSON payload
type ratesResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

// NewConverter creates a converter. cacheSvc may be nil to disable caching.
func NewConverter(cacheSvc cache.CacheService, ratesURL string) *Converter {
	return &Converter{
		client:   &http.Client{Timeout: 15 * time.Second},
		cache:    cacheSvc,
		ratesURL: ratesURL,
		log:      logger.ForCompare(),
	}
}

// Rates returns the rate table for a base currency, cached for an hour
func (c *Converter) Rates(ctx context.Context, base string) (map[string]float64, error) {
	base = strings.ToUpper(base)
	cacheKey := "rates:" + base

	if c.cache != nil {
		if raw, err := c.cache.Get(cacheKey); err == nil {
			var rates map[string]float64
			if err := json.Unmarshal(raw, &rates); err == nil {
				return rates, nil
			}
		}
	}

	endpoint, err := ratesEndpoint(c.ratesURL, base)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.NewConfiguration("invalid rates url", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.NewNetwork("rates", "rate lookup failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewHTTP("rates", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewNetwork("rates", "failed to read rates body", err)
	}

	var parsed ratesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.NewParsing("rates", "rates decode failed", err)
	}
	if len(parsed.Rates) == 0 {
		return nil, errors.NewParsing("rates", "rates payload empty", nil)
	}

	if c.cache != nil {
		if encoded, err := json.Marshal(parsed.Rates); err == nil {
			if err := c.cache.Set(cacheKey, encoded, ratesTTL); err != nil {
				c.log.Warn().Err(err).Msg("Failed to cache rates")
			}
		}
	}
	return parsed.Rates, nil
}

// ratesEndpoint appends the base parameter to the configured rates URL,
// keeping any query it already carries (API keys and the like).
func ratesEndpoint(ratesURL, base string) (string, error) {
	u, err := url.Parse(ratesURL)
	if err != nil {
		return "", errors.NewConfiguration("invalid rates url", err)
	}
	q := u.Query()
	q.Set("base", base)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Convert converts amount from one ISO 4217 currency to another
func (c *Converter) Convert(ctx context.Context, amount float64, from, to string) (float64, error) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)
	if from == to {
		return amount, nil
	}
	rates, err := c.Rates(ctx, from)
	if err != nil {
		return 0, err
	}
	rate, ok := rates[to]
	if !ok || rate <= 0 {
		return 0, errors.NewNotFound("rates", fmt.Sprintf("no rate %s -> %s", from, to))
	}
	return amount * rate, nil
}
