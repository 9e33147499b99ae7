package ingest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// unknownMarkers are the strings extractors emit for a missing figure.
var unknownMarkers = map[string]bool{
	"":    true,
	"-":   true,
	"—":   true,
	"n/a": true,
	"na":  true,
	"nm":  true,
}

// ParseAmount reads a whole-dollar amount from a JSON number, a currency
// string ("$1,234,567", "(12,000)", "1.2M") or null. nil means unknown.
func ParseAmount(raw json.RawMessage) (*float64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return nil, nil
	}

	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return nil, fmt.Errorf("invalid amount %s", s)
		}
		return ParseCurrency(str)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %s", s)
	}
	return wholeDollars(d), nil
}

// ParseCurrency parses a human-formatted amount. Parentheses mean negative;
// K, M and B suffixes scale.
func ParseCurrency(s string) (*float64, error) {
	clean := strings.ToLower(strings.TrimSpace(s))
	if unknownMarkers[clean] {
		return nil, nil
	}

	negative := false
	if strings.HasPrefix(clean, "(") && strings.HasSuffix(clean, ")") {
		negative = true
		clean = strings.TrimSuffix(strings.TrimPrefix(clean, "("), ")")
	}
	clean = strings.NewReplacer("$", "", ",", "", " ", "", "usd", "").Replace(clean)
	if strings.HasPrefix(clean, "-") {
		negative = !negative
		clean = clean[1:]
	}

	scale := decimal.NewFromInt(1)
	switch {
	case strings.HasSuffix(clean, "k"):
		scale = decimal.NewFromInt(1_000)
		clean = strings.TrimSuffix(clean, "k")
	case strings.HasSuffix(clean, "mm"):
		scale = decimal.NewFromInt(1_000_000)
		clean = strings.TrimSuffix(clean, "mm")
	case strings.HasSuffix(clean, "m"):
		scale = decimal.NewFromInt(1_000_000)
		clean = strings.TrimSuffix(clean, "m")
	case strings.HasSuffix(clean, "b"):
		scale = decimal.NewFromInt(1_000_000_000)
		clean = strings.TrimSuffix(clean, "b")
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	d = d.Mul(scale)
	if negative {
		d = d.Neg()
	}
	return wholeDollars(d), nil
}

func wholeDollars(d decimal.Decimal) *float64 {
	f, _ := d.Round(0).Float64()
	return &f
}
