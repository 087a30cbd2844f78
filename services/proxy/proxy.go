package proxy

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Selector picks a proxy endpoint for an outgoing request
type Selector interface {
	// ForCountry returns the proxy URL for a country tag, or "" for direct
	ForCountry(cc string) string
}

// StaticSelector serves proxies from configuration: one optional endpoint per
// country plus a catch-all fallback.
type StaticSelector struct {
	byCountry map[string]string
	fallback  string
}

// NewStaticSelector creates a selector over the configured proxy table.
// Credentials from PROXY_USER/PROXY_PASS are spliced into the fallback URL
// when both are present.
func NewStaticSelector(byCountry map[string]string, fallback string) *StaticSelector {
	return &StaticSelector{
		byCountry: byCountry,
		fallback:  WithCredentials(fallback, os.Getenv("PROXY_USER"), os.Getenv("PROXY_PASS")),
	}
}

// ForCountry returns the proxy for cc, the fallback, or "" for direct
func (s *StaticSelector) ForCountry(cc string) string {
	if p, ok := s.byCountry[strings.ToUpper(cc)]; ok && p != "" {
		return p
	}
	return s.fallback
}

// WithCredentials injects user:pass into a proxy URL of the form
// scheme://host:port. Returns the input unchanged when it cannot be parsed
// or when either credential is empty.
func WithCredentials(proxyURL, user, pass string) string {
	if proxyURL == "" || user == "" || pass == "" {
		return proxyURL
	}
	u, err := url.Parse(proxyURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return proxyURL
	}
	u.User = url.UserPassword(user, pass)
	return u.String()
}

// Describe returns a redacted summary for startup logging
func (s *StaticSelector) Describe() string {
	countries := make([]string, 0, len(s.byCountry))
	for cc := range s.byCountry {
		countries = append(countries, cc)
	}
	fallback := "none"
	if s.fallback != "" {
		fallback = "set"
	}
	return fmt.Sprintf("per-country=%d fallback=%s", len(countries), fallback)
}
