package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/griguv/pricewatch/internal/urlnorm"
	"github.com/griguv/pricewatch/pkg/errors"
)

// Listings extracts item cards from a search-results page. Sponsored cards
// are dropped so ads never trigger "new listing" alerts. Items keep the
// order they appear on the page.
func Listings(html, sourceURL string) (ListingPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ListingPage{}, errors.NewParsing(sourceURL, "html parse failed", err)
	}

	site := SiteFor(sourceURL)
	cardSel, titleSel, priceSel, linkSel := site.Card, site.CardTitle, site.CardPrice, site.CardLink
	if cardSel == "" {
		// eBay-style result markup is the common case for unknown hosts too.
		cardSel, titleSel, priceSel, linkSel = ".s-item", ".s-item__title", ".s-item__price", ".s-item__link"
	}

	page := ListingPage{LikelyBlocked: LooksBlocked(html)}

	doc.Find(cardSel).Each(func(_ int, card *goquery.Selection) {
		if isSponsored(card, site.SponsoredMarker) {
			return
		}

		title := strings.TrimSpace(card.Find(titleSel).First().Text())
		link, _ := card.Find(linkSel).First().Attr("href")
		link = strings.TrimSpace(link)
		if title == "" || link == "" {
			return
		}
		// eBay pads result pages with a template card titled "Shop on eBay".
		if strings.EqualFold(title, "shop on ebay") {
			return
		}

		link = resolveLink(sourceURL, link)
		page.Items = append(page.Items, ListingRecord{
			ID:        urlnorm.ItemID(link),
			Title:     title,
			PriceText: strings.TrimSpace(card.Find(priceSel).First().Text()),
			Link:      link,
		})
	})

	return page, nil
}

// isSponsored reports whether a result card carries a sponsored/ad marker
func isSponsored(card *goquery.Selection, marker string) bool {
	if marker == "" {
		return false
	}
	sponsored := false
	card.Find(marker).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(strings.ToUpper(s.Text()), "SPONSOR") {
			sponsored = true
			return false
		}
		return true
	})
	return sponsored
}

// resolveLink resolves a possibly relative href against the page URL
func resolveLink(sourceURL, href string) string {
	base, err := url.Parse(sourceURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
