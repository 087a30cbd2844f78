// Package extract turns raw HTML into structured price and listing records.
// Extraction runs an ordered strategy cascade, most-stable source first:
// machine-readable metadata, site-specific hydration JSON, visible DOM
// selectors, then a free-text heuristic. The first hit wins.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/griguv/pricewatch/pkg/errors"
)

// Price extracts a price record from a product page. Failure is typed: a
// page carrying anti-bot markers yields a blocked error, a clean page with
// no recognizable price yields not_found.
func Price(html, sourceURL string) (*PriceRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errors.NewParsing(sourceURL, "html parse failed", err)
	}

	site := SiteFor(sourceURL)

	if rec := metadataPrice(doc); rec != nil {
		return rec, nil
	}

	if site.EmbeddedJSON != nil {
		if amount, currency, raw, ok := site.EmbeddedJSON(doc, html); ok {
			return &PriceRecord{
				Amount:   amount,
				Currency: strings.ToUpper(currency),
				RawText:  raw,
				Strategy: StrategyEmbeddedJSON,
			}, nil
		}
	}

	for _, sel := range site.PriceSelectors {
		text := strings.TrimSpace(doc.Find(sel).First().Text())
		if text == "" {
			continue
		}
		if amount, currency, raw, ok := parsePriceText(text); ok {
			return &PriceRecord{Amount: amount, Currency: currency, RawText: raw, Strategy: StrategyDOM}, nil
		}
	}

	if rec := textPrice(doc, html); rec != nil {
		return rec, nil
	}

	if LooksBlocked(html) {
		return nil, errors.NewBlocked(sourceURL, "anti-bot markers present, no price data")
	}
	return nil, errors.NewNotFound(sourceURL, "no recognizable price on page")
}

// metadataPrice covers the machine-readable markup rung: itemprop meta tags,
// Open Graph product tags, JSON-LD offers, and bare itemprop elements. Least
// sensitive to visual redesigns, so it runs first.
func metadataPrice(doc *goquery.Document) *PriceRecord {
	// <meta itemprop="price" content="..."> + priceCurrency sibling
	if content, ok := doc.Find(`meta[itemprop="price"]`).First().Attr("content"); ok && content != "" {
		currency, _ := doc.Find(`meta[itemprop="priceCurrency"]`).First().Attr("content")
		if amount, err := NormalizeNumber(content); err == nil {
			return &PriceRecord{
				Amount:   amount,
				Currency: strings.ToUpper(strings.TrimSpace(currency)),
				RawText:  content,
				Strategy: StrategyMetadata,
			}
		}
	}

	// Open Graph: product:price:amount / og:price:amount
	for _, prefix := range []string{"product:price", "og:price"} {
		amountSel := `meta[property="` + prefix + `:amount"]`
		currencySel := `meta[property="` + prefix + `:currency"]`
		if content, ok := doc.Find(amountSel).First().Attr("content"); ok && content != "" {
			currency, _ := doc.Find(currencySel).First().Attr("content")
			if amount, err := NormalizeNumber(content); err == nil {
				return &PriceRecord{
					Amount:   amount,
					Currency: strings.ToUpper(strings.TrimSpace(currency)),
					RawText:  content,
					Strategy: StrategyMetadata,
				}
			}
		}
	}

	// JSON-LD product/offer scripts
	var rec *PriceRecord
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data interface{}
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return true
		}
		if amount, currency, ok := offerFromJSONLD(data); ok {
			rec = &PriceRecord{Amount: amount, Currency: currency, RawText: "json-ld", Strategy: StrategyMetadata}
			return false
		}
		return true
	})
	if rec != nil {
		return rec
	}

	// Non-meta itemprop elements: content attribute first, then text
	priceSel := doc.Find(`[itemprop="price"]`).First()
	if priceSel.Length() > 0 {
		value, ok := priceSel.Attr("content")
		if !ok || value == "" {
			value = strings.TrimSpace(priceSel.Text())
		}
		if value != "" {
			currencySel := doc.Find(`[itemprop="priceCurrency"]`).First()
			currency, ok := currencySel.Attr("content")
			if !ok || currency == "" {
				currency = strings.TrimSpace(currencySel.Text())
			}
			if amount, err := NormalizeNumber(value); err == nil {
				return &PriceRecord{
					Amount:   amount,
					Currency: strings.ToUpper(strings.TrimSpace(currency)),
					RawText:  value,
					Strategy: StrategyMetadata,
				}
			}
		}
	}

	return nil
}

// offerFromJSONLD walks arbitrary JSON-LD for an offer carrying price and
// priceCurrency. Structures nest freely ("@graph", offer arrays), so the
// walk is generic.
func offerFromJSONLD(data interface{}) (float64, string, bool) {
	switch v := data.(type) {
	case []interface{}:
		for _, item := range v {
			if amount, currency, ok := offerFromJSONLD(item); ok {
				return amount, currency, ok
			}
		}
	case map[string]interface{}:
		if amount, ok := firstNumber(v, "price", "lowPrice"); ok {
			currency := firstString(v, "priceCurrency", "currency")
			return amount, strings.ToUpper(currency), true
		}
		for _, key := range []string{"offers", "@graph", "mainEntity"} {
			if nested, present := v[key]; present {
				if amount, currency, ok := offerFromJSONLD(nested); ok {
					return amount, currency, ok
				}
			}
		}
	}
	return 0, "", false
}

// Free-text heuristics: a currency symbol or ISO code adjacent to a numeric
// token. The number grammar allows spaced, dotted or comma thousands groups
// with an optional two-digit decimal tail.
var (
	numberPattern  = `[0-9]{1,3}(?:[ \.,][0-9]{3})*(?:[\.,][0-9]{1,2})?|[0-9]+(?:[\.,][0-9]{1,2})?`
	symbolBeforeRe = regexp.MustCompile(`(?i)(HK\$|AED|EUR|USD|GBP|RUB|KZT|TRY|CHF|PLN|CAD|AUD|€|\$|£|¥|₽|₸|₺|zł)\s*(` + numberPattern + `)`)
	codeAfterRe    = regexp.MustCompile(`(?i)(` + numberPattern + `)\s*(EUR|USD|GBP|RUB|KZT|TRY|CHF|PLN|CAD|AUD|AED|HKD|JPY)\b`)
)

// textPrice scans the page's visible text for a currency-adjacent number
func textPrice(doc *goquery.Document, html string) *PriceRecord {
	text := doc.Find("body").Text()
	if strings.TrimSpace(text) == "" {
		text = html
	}

	if m := symbolBeforeRe.FindStringSubmatch(text); m != nil {
		if amount, err := NormalizeNumber(m[2]); err == nil {
			return &PriceRecord{
				Amount:   amount,
				Currency: currencyFor(m[1]),
				RawText:  strings.TrimSpace(m[0]),
				Strategy: StrategyText,
			}
		}
	}
	if m := codeAfterRe.FindStringSubmatch(text); m != nil {
		if amount, err := NormalizeNumber(m[1]); err == nil {
			return &PriceRecord{
				Amount:   amount,
				Currency: currencyFor(m[2]),
				RawText:  strings.TrimSpace(m[0]),
				Strategy: StrategyText,
			}
		}
	}
	return nil
}

// parsePriceText extracts amount and currency from a short rendered price
// string such as "$1,234.56" or "1.234,56 EUR". Used for DOM-selected
// elements and listing card price text.
func parsePriceText(text string) (float64, string, string, bool) {
	if m := symbolBeforeRe.FindStringSubmatch(text); m != nil {
		if amount, err := NormalizeNumber(m[2]); err == nil {
			return amount, currencyFor(m[1]), strings.TrimSpace(m[0]), true
		}
	}
	if m := codeAfterRe.FindStringSubmatch(text); m != nil {
		if amount, err := NormalizeNumber(m[1]); err == nil {
			return amount, currencyFor(m[2]), strings.TrimSpace(m[0]), true
		}
	}
	// Bare number, no recognizable code or symbol: amount without currency.
	trimmed := strings.TrimSpace(text)
	if amount, err := NormalizeNumber(trimmed); err == nil {
		return amount, "", trimmed, true
	}
	return 0, "", "", false
}
