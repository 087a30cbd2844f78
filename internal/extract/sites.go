package extract

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Site describes the extraction capabilities of one supported site family.
// Lookup happens once per URL through the registry instead of scattering
// domain substring checks through the cascade.
type Site struct {
	Name    string
	domains []string

	// EmbeddedJSON extracts a price from a framework hydration payload.
	// Returns ok=false when the payload is absent or unreadable.
	EmbeddedJSON func(doc *goquery.Document, html string) (amount float64, currency, raw string, ok bool)

	// PriceSelectors are visible-DOM candidates holding the rendered price,
	// in priority order.
	PriceSelectors []string

	// Listing card selectors for search-result pages
	Card            string
	CardTitle       string
	CardPrice       string
	CardLink        string
	SponsoredMarker string

	// RSSURL rewrites a search URL into its feed variant, or returns ""
	// when the site has none.
	RSSURL func(searchURL string) string
}

var registry = []*Site{farfetchSite, yooxSite, ebaySite}

// genericSite handles any domain the registry does not know: the metadata
// and free-text rungs still apply, everything site-specific is off.
var genericSite = &Site{Name: "generic"}

// SiteFor returns the site capabilities for a URL's host
func SiteFor(sourceURL string) *Site {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return genericSite
	}
	host := strings.ToLower(u.Hostname())
	for _, s := range registry {
		for _, d := range s.domains {
			if host == d || strings.HasSuffix(host, "."+d) || strings.Contains(host, d+".") {
				return s
			}
		}
	}
	return genericSite
}

// ----- Farfetch -----

var farfetchSite = &Site{
	Name:         "farfetch",
	domains:      []string{"farfetch.com"},
	EmbeddedJSON: farfetchNextData,
	PriceSelectors: []string{
		`[data-component="PriceLarge"]`,
		`[data-tstid="priceInfo-original"]`,
		`span[itemprop="price"]`,
	},
}

// farfetchNextData walks the __NEXT_DATA__ hydration payload. Two structures
// occur in the wild:
//
//	props.pageProps.product.price.{value|amount, currency|currencyCode}
//	props.pageProps.product.prices.{finalPrice|price, currency|currencyCode}
func farfetchNextData(doc *goquery.Document, _ string) (float64, string, string, bool) {
	raw := doc.Find(`script#__NEXT_DATA__`).First().Text()
	if raw == "" {
		return 0, "", "", false
	}

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return 0, "", "", false
	}

	pageProps := dig(data, "props", "pageProps")
	product := firstMap(pageProps, "product", "productData")
	if product == nil {
		return 0, "", "", false
	}

	if price, ok := product["price"].(map[string]interface{}); ok {
		if amount, ok := firstNumber(price, "value", "amount"); ok {
			currency := firstString(price, "currency", "currencyCode")
			return amount, currency, "__NEXT_DATA__", true
		}
	}
	if prices, ok := product["prices"].(map[string]interface{}); ok {
		if amount, ok := firstNumber(prices, "finalPrice", "price"); ok {
			currency := firstString(prices, "currency", "currencyCode")
			return amount, currency, "__NEXT_DATA__", true
		}
	}
	return 0, "", "", false
}

// ----- YOOX -----

var yooxStateRe = regexp.MustCompile(`(?s)window\.__STATE__\s*=\s*(\{.*?\})\s*;`)
var yooxPriceRe = regexp.MustCompile(`"price"\s*:\s*"?([0-9][0-9\.\,\s]*)"?`)
var yooxCurrencyRe = regexp.MustCompile(`"currency"\s*:\s*"([A-Z]{3})"`)

var yooxSite = &Site{
	Name:         "yoox",
	domains:      []string{"yoox.com"},
	EmbeddedJSON: yooxState,
	PriceSelectors: []string{
		`[data-testid="price"]`,
		`.ItemInfo_price`,
		`span[itemprop="price"]`,
	},
}

// yooxState pulls price/currency fields out of the window.__STATE__ blob.
// The blob's structure shifts between releases, so the fields are matched by
// regex rather than decoded into a schema.
func yooxState(_ *goquery.Document, html string) (float64, string, string, bool) {
	m := yooxStateRe.FindStringSubmatch(html)
	if m == nil {
		return 0, "", "", false
	}
	blob := m[1]

	pm := yooxPriceRe.FindStringSubmatch(blob)
	if pm == nil {
		return 0, "", "", false
	}
	amount, err := NormalizeNumber(pm[1])
	if err != nil {
		return 0, "", "", false
	}

	currency := ""
	if cm := yooxCurrencyRe.FindStringSubmatch(blob); cm != nil {
		currency = cm[1]
	}
	return amount, currency, "__STATE__", true
}

// ----- eBay -----

var ebaySite = &Site{
	Name:    "ebay",
	domains: []string{"ebay.com", "ebay.co.uk", "ebay.de", "ebay.it", "ebay.fr", "ebay.es"},
	PriceSelectors: []string{
		`.x-price-primary .ux-textspans`,
		`#prcIsum`,
		`.s-item__price`,
	},
	Card:            ".s-item",
	CardTitle:       ".s-item__title",
	CardPrice:       ".s-item__price",
	CardLink:        ".s-item__link",
	SponsoredMarker: ".s-item__sep, .SECONDARY_INFO",
	RSSURL:          ebayRSSURL,
}

// ebayRSSURL turns a search URL into the legacy RSS variant of the same
// search, used when the HTML results come back suspiciously thin.
func ebayRSSURL(searchURL string) string {
	u, err := url.Parse(searchURL)
	if err != nil || !strings.Contains(u.Path, "/sch/") {
		return ""
	}
	q := u.Query()
	q.Set("_rss", "1")
	u.RawQuery = q.Encode()
	return u.String()
}

// ----- JSON helpers -----

// dig follows a path of object keys, returning nil when any hop is missing
func dig(data map[string]interface{}, path ...string) map[string]interface{} {
	current := data
	for _, key := range path {
		next, ok := current[key].(map[string]interface{})
		if !ok {
			return nil
		}
		current = next
	}
	return current
}

// firstMap returns the first present map-valued key
func firstMap(obj map[string]interface{}, keys ...string) map[string]interface{} {
	if obj == nil {
		return nil
	}
	for _, k := range keys {
		if m, ok := obj[k].(map[string]interface{}); ok && len(m) > 0 {
			return m
		}
	}
	return nil
}

// firstNumber returns the first present numeric (or numeric-string) key
func firstNumber(obj map[string]interface{}, keys ...string) (float64, bool) {
	for _, k := range keys {
		switch v := obj[k].(type) {
		case float64:
			if v > 0 {
				return v, true
			}
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
				return f, true
			}
		}
	}
	return 0, false
}

// firstString returns the first present non-empty string key
func firstString(obj map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
