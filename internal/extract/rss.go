package extract

import (
	"encoding/xml"
	"strings"

	"github.com/griguv/pricewatch/internal/urlnorm"
	"github.com/griguv/pricewatch/pkg/errors"
)

// rssFeed mirrors the subset of the RSS 2.0 search feed we read
type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title string `xml:"title"`
	Link  string `xml:"link"`
	GUID  string `xml:"guid"`
}

// ParseRSS extracts listing records from the feed variant of a search. Used
// as the last-resort rung when the HTML page yields fewer cards than
// expected; feeds carry no price text.
func ParseRSS(body string) ([]ListingRecord, error) {
	var feed rssFeed
	decoder := xml.NewDecoder(strings.NewReader(body))
	decoder.Strict = false
	if err := decoder.Decode(&feed); err != nil {
		return nil, errors.NewParsing("rss", "feed decode failed", err)
	}

	items := make([]ListingRecord, 0, len(feed.Channel.Items))
	for _, it := range feed.Channel.Items {
		title := strings.TrimSpace(it.Title)
		link := strings.TrimSpace(it.Link)
		if title == "" || link == "" {
			continue
		}
		id := urlnorm.ItemID(link)
		if id == link && it.GUID != "" {
			id = strings.TrimSpace(it.GUID)
		}
		items = append(items, ListingRecord{ID: id, Title: title, Link: link})
	}
	return items, nil
}
