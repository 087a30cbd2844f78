// Package fetcher issues single HTTP GET requests with rotating browser-like
// headers, optional per-request proxies and cookie continuity. It classifies
// failures but never retries; the resilience layer owns the retry budget.
package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/net/publicsuffix"

	"github.com/griguv/pricewatch/logger"
	"github.com/griguv/pricewatch/pkg/errors"
)

// Result is a single fetched page
type Result struct {
	Status int
	Body   string
}

// Options configures the fetch client
type Options struct {
	Timeout      time.Duration
	DebugHTML    bool
	DebugHTMLLen int
	DebugDumpDir string
}

// Client issues HTTP requests. A cookie jar is shared across requests so
// sites that hand out session cookies on the first hit keep recognizing us.
type Client struct {
	opts Options
	jar  http.CookieJar
	log  *logger.Logger

	mu         sync.Mutex
	transports map[string]*http.Transport
}

// NewClient creates a fetch client
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 25 * time.Second
	}
	if opts.DebugHTMLLen <= 0 {
		opts.DebugHTMLLen = 1800
	}
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return &Client{
		opts:       opts,
		jar:        jar,
		log:        logger.ForFetcher(),
		transports: make(map[string]*http.Transport),
	}
}

// transportFor returns a shared transport for the given proxy endpoint
func (c *Client) transportFor(proxy string) (*http.Transport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.transports[proxy]; ok {
		return t, nil
	}

	t := &http.Transport{}
	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		t.Proxy = http.ProxyURL(proxyURL)
	}
	c.transports[proxy] = t
	return t, nil
}

// Do issues one GET for targetURL under the given profile. Non-2xx statuses
// and network failures come back as typed errors; for blocking statuses the
// body is still returned so callers can inspect challenge pages.
func (c *Client) Do(ctx context.Context, targetURL string, profile Profile) (Result, error) {
	transport, err := c.transportFor(profile.Proxy)
	if err != nil {
		return Result{}, errors.NewConfiguration("invalid proxy endpoint", err)
	}

	client := &http.Client{
		Transport: transport,
		Jar:       c.jar,
		Timeout:   c.opts.Timeout,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return Result{}, errors.NewConfiguration("invalid request url", err)
	}

	req.Header.Set("User-Agent", profile.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", profile.AcceptLanguage)
	req.Header.Set("Referer", profile.Referer)
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	req.Header.Set("Sec-Fetch-User", "?1")

	resp, err := client.Do(req)
	if err != nil {
		return Result{}, errors.NewNetwork(targetURL, "request failed", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Status: resp.StatusCode}, errors.NewNetwork(targetURL, "failed to read response body", err)
	}

	body, err := toUTF8(bodyBytes, resp.Header.Get("Content-Type"))
	if err != nil {
		return Result{Status: resp.StatusCode}, errors.NewParsing(targetURL, "charset conversion failed", err)
	}

	c.debugLog(targetURL, resp.StatusCode, body)

	result := Result{Status: resp.StatusCode, Body: body}

	switch {
	case resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == 430:
		// Body kept on the result: challenge pages are still worth inspecting.
		return result, errors.NewBlockedStatus(targetURL, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return result, errors.NewHTTP(targetURL, resp.StatusCode)
	}

	return result, nil
}

// toUTF8 converts a response body to UTF-8 based on headers and content
func toUTF8(body []byte, contentType string) (string, error) {
	encoding, name, _ := charset.DetermineEncoding(body, contentType)
	if strings.EqualFold(name, "utf-8") {
		return string(body), nil
	}

	utf8Reader := encoding.NewDecoder().Reader(bytes.NewReader(body))
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, utf8Reader); err != nil {
		return "", fmt.Errorf("failed to read converted UTF-8 body: %w", err)
	}
	return buf.String(), nil
}

// debugLog logs a bounded sample of the body when diagnostics are enabled,
// and optionally dumps the full body to disk for selector debugging.
func (c *Client) debugLog(targetURL string, status int, body string) {
	if !c.opts.DebugHTML {
		return
	}

	sample := body
	if len(sample) > c.opts.DebugHTMLLen {
		sample = sample[:c.opts.DebugHTMLLen]
	}
	sample = strings.ReplaceAll(sample, "\n", "")

	c.log.Debug().
		Int("status", status).
		Str("url", targetURL).
		Str("sample", sample).
		Msg("Fetched body sample")

	if c.opts.DebugDumpDir != "" {
		name := fmt.Sprintf("dump_%d.html", time.Now().UnixNano())
		path := filepath.Join(c.opts.DebugDumpDir, name)
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			c.log.Warn().Err(err).Str("path", path).Msg("Failed to dump body")
		}
	}
}
