package extract

import (
	"fmt"
	"strconv"
	"strings"
)

// NormalizeNumber parses a price token whose thousands/decimal separators
// follow an unknown locale convention. When both ',' and '.' occur, whichever
// appears last is the decimal point. A token with only ',' treats it as the
// decimal separator. A token with only '.' treats it as decimal when one or
// two digits follow, and as thousands grouping otherwise. This is a lossy
// heuristic: a page mixing conventions cannot be resolved without locale
// context.
func NormalizeNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "'", "")
	if s == "" {
		return 0, fmt.Errorf("empty number token")
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			// 1.234,56 — dots group thousands, comma is decimal
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			// 1,234.56 — commas group thousands
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		// Only commas: the last one is the decimal point, the rest group.
		s = strings.ReplaceAll(s[:lastComma], ",", "") + "." + s[lastComma+1:]
	case lastDot >= 0:
		if fraction := len(s) - lastDot - 1; fraction > 2 {
			// 1.234 style grouping
			s = strings.ReplaceAll(s, ".", "")
		} else if strings.Count(s, ".") > 1 {
			s = strings.ReplaceAll(s[:lastDot], ".", "") + s[lastDot:]
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse number %q: %w", s, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative amount %v", v)
	}
	return v, nil
}

// symbolToCurrency maps price symbols and codes seen in visible text to ISO
// 4217 codes. Longer keys must be checked first (HK$ before $).
var symbolToCurrency = []struct {
	symbol   string
	currency string
}{
	{"HK$", "HKD"},
	{"AED", "AED"},
	{"EUR", "EUR"},
	{"USD", "USD"},
	{"GBP", "GBP"},
	{"RUB", "RUB"},
	{"KZT", "KZT"},
	{"TRY", "TRY"},
	{"CHF", "CHF"},
	{"PLN", "PLN"},
	{"CAD", "CAD"},
	{"AUD", "AUD"},
	{"€", "EUR"},
	{"$", "USD"},
	{"£", "GBP"},
	{"¥", "JPY"},
	{"₽", "RUB"},
	{"₸", "KZT"},
	{"₺", "TRY"},
	{"zł", "PLN"},
}

// currencyFor resolves a matched symbol or code to an ISO 4217 code; returns
// "" when the token is unknown.
func currencyFor(token string) string {
	token = strings.TrimSpace(token)
	for _, m := range symbolToCurrency {
		if strings.EqualFold(token, m.symbol) {
			return m.currency
		}
	}
	return ""
}
