package fetcher

import (
	mathrand "math/rand"
	"sync"
	"time"
)

// Header rotation pools. Overridable via configuration; the defaults mirror
// current desktop browsers closely enough to pass casual filtering.
var (
	defaultUserAgents = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64; rv:126.0) Gecko/20100101 Firefox/126.0",
	}

	referers = []string{
		"https://www.google.com/",
		"https://www.bing.com/",
		"https://duckduckgo.com/",
	}

	// acceptLanguage maps a country tag to a matching Accept-Language value.
	// Unknown tags fall back to en-US.
	acceptLanguage = map[string]string{
		"US": "en-US,en;q=0.9",
		"GB": "en-GB,en;q=0.9",
		"IT": "it-IT,it;q=0.9,en;q=0.8",
		"FR": "fr-FR,fr;q=0.9,en;q=0.8",
		"DE": "de-DE,de;q=0.9,en;q=0.8",
		"ES": "es-ES,es;q=0.9,en;q=0.8",
		"RU": "ru-RU,ru;q=0.9,en;q=0.8",
		"TR": "tr-TR,tr;q=0.9,en;q=0.8",
		"KZ": "ru-KZ,ru;q=0.9,en;q=0.8",
		"AE": "en-AE,en;q=0.9",
		"HK": "en-HK,en;q=0.9,zh-CN;q=0.7",
	}
)

// Profile describes the header identity and proxy for one request
type Profile struct {
	UserAgent      string
	AcceptLanguage string
	Referer        string
	Proxy          string
}

// ProfileFactory builds randomized request profiles. Safe for concurrent
// use; parallel watches and country fan-outs share one factory.
type ProfileFactory struct {
	userAgents []string

	mu  sync.Mutex
	rnd *mathrand.Rand
}

// NewProfileFactory creates a factory; pass nil to use the default UA pool
func NewProfileFactory(userAgents []string) *ProfileFactory {
	if len(userAgents) == 0 {
		userAgents = defaultUserAgents
	}
	return &ProfileFactory{
		userAgents: userAgents,
		rnd:        mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
	}
}

// For returns a randomized profile with Accept-Language matched to cc
func (f *ProfileFactory) For(cc, proxy string) Profile {
	lang, ok := acceptLanguage[cc]
	if !ok {
		lang = "en-US,en;q=0.9"
	}
	f.mu.Lock()
	ua := f.userAgents[f.rnd.Intn(len(f.userAgents))]
	referer := referers[f.rnd.Intn(len(referers))]
	f.mu.Unlock()
	return Profile{
		UserAgent:      ua,
		AcceptLanguage: lang,
		Referer:        referer,
		Proxy:          proxy,
	}
}
