// Package urlnorm canonicalizes product and search URLs so that repeated
// fetches are comparable: tracking parameters are stripped, stabilizing
// parameters are forced, and region variants are rewritten deterministically.
package urlnorm

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Options controls normalization for one site family
type Options struct {
	// Strip lists query parameters removed from the URL. An entry ending in
	// '*' matches by prefix (e.g. "utm_*").
	Strip []string

	// Force sets query parameters to fixed values so output stays stable
	// across fetches (items per page, sort mode).
	Force map[string]string

	// PageParam is the query parameter used for pagination
	PageParam string
}

// defaultStrip covers the session/tracking parameters seen across the
// supported sites.
var defaultStrip = []string{
	"utm_*", "gclid", "fbclid", "mkcid", "mkrid", "campid", "toolid", "customid",
	"_trkparms", "_trksid", "_from", "_osacat", "_odkw", "hash", "ssPageName",
	"var", "epid", "amdata",
}

// DefaultOptions returns normalization options for a host, merging the
// caller-supplied extra denylist entries.
func DefaultOptions(host string, extraStrip []string) Options {
	opts := Options{
		Strip:     append(append([]string{}, defaultStrip...), extraStrip...),
		Force:     map[string]string{},
		PageParam: "page",
	}
	if strings.Contains(host, "ebay.") {
		// Fixed page size and newest-first sort keep listing crawls comparable.
		opts.Force["_ipg"] = "240"
		opts.Force["_sop"] = "10"
		opts.PageParam = "_pgn"
	}
	return opts
}

// Normalize canonicalizes rawURL under opts. Normalizing an already
// normalized URL yields the same URL.
func Normalize(rawURL string, opts Options) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q is not absolute", rawURL)
	}

	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for key := range q {
		if stripParam(key, opts.Strip) {
			q.Del(key)
		}
	}
	for key, val := range opts.Force {
		q.Set(key, val)
	}
	// Encode sorts keys, which is what makes the result canonical.
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// stripParam reports whether a query parameter matches the denylist
func stripParam(key string, strip []string) bool {
	for _, pattern := range strip {
		if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
			if strings.HasPrefix(key, prefix) {
				return true
			}
		} else if key == pattern {
			return true
		}
	}
	return false
}

// localePathRe matches a leading two-letter locale path segment
var localePathRe = regexp.MustCompile(`^/([a-z]{2})(/|$)`)

// localePathHosts are sites that carry the region as the first path segment
var localePathHosts = []string{"farfetch.com", "yoox.com"}

// ebayHosts maps a country tag to the regional eBay host
var ebayHosts = map[string]string{
	"US": "www.ebay.com",
	"GB": "www.ebay.co.uk",
	"DE": "www.ebay.de",
	"IT": "www.ebay.it",
	"FR": "www.ebay.fr",
	"ES": "www.ebay.es",
}

// CountryVariant rewrites rawURL to target the given country tag. Sites with
// a locale path segment get it replaced (or inserted right after the host);
// eBay gets its regional host swapped. URLs whose domain or structure does
// not support region injection are returned unchanged. Idempotent.
func CountryVariant(rawURL, cc string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	cc = strings.ToUpper(strings.TrimSpace(cc))
	if cc == "" {
		return rawURL
	}

	host := strings.ToLower(u.Hostname())

	for _, site := range localePathHosts {
		if host == site || strings.HasSuffix(host, "."+site) {
			locale := strings.ToLower(cc)
			if localePathRe.MatchString(u.Path) {
				u.Path = localePathRe.ReplaceAllString(u.Path, "/"+locale+"$2")
			} else {
				u.Path = "/" + locale + u.Path
			}
			return u.String()
		}
	}

	if strings.Contains(host, "ebay.") {
		if regional, ok := ebayHosts[cc]; ok {
			u.Host = regional
			return u.String()
		}
	}

	return rawURL
}

// Variants returns the URL rewritten for each of the given countries, first
// entry first. Countries the site cannot express collapse onto the original
// URL; duplicates are dropped so the candidate list stays minimal.
func Variants(rawURL string, countries []string) []string {
	seen := make(map[string]struct{}, len(countries))
	out := make([]string, 0, len(countries))
	for _, cc := range countries {
		v := CountryVariant(rawURL, cc)
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Pages produces the page URLs 1..n for a listing crawl
func Pages(rawURL, pageParam string, n int) []string {
	if pageParam == "" {
		pageParam = "page"
	}
	u, err := url.Parse(rawURL)
	if err != nil || n < 1 {
		return []string{rawURL}
	}
	pages := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		q := u.Query()
		q.Set(pageParam, fmt.Sprintf("%d", i))
		page := *u
		page.RawQuery = q.Encode()
		pages = append(pages, page.String())
	}
	return pages
}

var (
	numericIDRe  = regexp.MustCompile(`^[0-9]{6,}$`)
	embeddedIDRe = regexp.MustCompile(`[0-9]{6,}`)
)

// idParams are query parameters that carry an item identifier when the path
// itself does not.
var idParams = []string{"itm", "item", "id", "ItemID"}

// ItemID derives a stable identifier for a listing link: a numeric trailing
// path segment first, then a digit run embedded in a segment (item-123.aspx),
// then a link-embedded query parameter, then the full link as a last resort.
// The same link always yields the same identifier.
func ItemID(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return link
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if numericIDRe.MatchString(segments[i]) {
			return segments[i]
		}
	}
	for i := len(segments) - 1; i >= 0; i-- {
		if id := embeddedIDRe.FindString(segments[i]); id != "" {
			return id
		}
	}

	q := u.Query()
	for _, p := range idParams {
		if v := q.Get(p); v != "" {
			return v
		}
	}

	return link
}
