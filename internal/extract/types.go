package extract

// Strategy identifies which rung of the extraction cascade produced a record
type Strategy string

const (
	// StrategyMetadata is machine-readable product markup (itemprop, Open
	// Graph price tags, JSON-LD offers)
	StrategyMetadata Strategy = "metadata"
	// StrategyEmbeddedJSON is site-specific framework hydration payloads
	StrategyEmbeddedJSON Strategy = "embedded_json"
	// StrategyDOM is visible price elements matched by per-site selectors
	StrategyDOM Strategy = "dom"
	// StrategyText is the free-text currency/number heuristic
	StrategyText Strategy = "text"
)

// PriceRecord is an extracted product price. Currency may be empty when the
// visible-text fallback matched a number without a recognizable code or
// symbol; Amount is always non-negative.
type PriceRecord struct {
	Amount   float64  `json:"amount"`
	Currency string   `json:"currency,omitempty"`
	RawText  string   `json:"raw_text,omitempty"`
	Strategy Strategy `json:"strategy"`
}

// ListingRecord is one item extracted from a search-results page. ID is
// deterministic for a given link, which is what makes set-based
// deduplication possible.
type ListingRecord struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	PriceText string `json:"price_text,omitempty"`
	Link      string `json:"link"`
}

// ListingPage is the outcome of one listing crawl
type ListingPage struct {
	Items []ListingRecord `json:"items"`
	// LikelyBlocked is set when the page carried anti-bot markers; few or
	// zero items together with this flag means "retry later", not "search
	// is empty".
	LikelyBlocked bool `json:"likely_blocked"`
}
