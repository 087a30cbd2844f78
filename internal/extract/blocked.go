package extract

import "strings"

// blockMarkers are substrings that identify anti-bot walls and challenge
// pages. Matched case-insensitively against the whole body.
var blockMarkers = []string{
	"captcha",
	"challenge",
	"verification",
	"access denied",
	"verify you are human",
	"are you a robot",
	"pardon our interruption",
}

// LooksBlocked reports whether the body reads like an anti-bot or challenge
// page rather than a product page.
func LooksBlocked(html string) bool {
	lower := strings.ToLower(html)
	for _, marker := range blockMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
