package util

import (
	"regexp"
	"strconv"
	"strings"
)

func SafeAtoi(s string) int {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return i
}

var nonNumericRegex = regexp.MustCompile(`[^\d]`)

func CleanNumericString(s string) string {
	return nonNumericRegex.ReplaceAllString(s, "")
}

var priceRegex = regexp.MustCompile(`\d[\d.,]*`)

// ParsePrice extracts a price from marketplace display text like "$1,299.99",
// "1.299,90" or "EUR 45". The last separator is treated as the decimal mark
// when it is followed by exactly two digits; every other separator is
// thousands grouping. Returns 0 when no number is present.
func ParsePrice(s string) float64 {
	raw := priceRegex.FindString(s)
	if raw == "" {
		return 0
	}

	lastSep := strings.LastIndexAny(raw, ".,")
	if lastSep >= 0 && len(raw)-lastSep-1 == 2 {
		intPart := nonNumericRegex.ReplaceAllString(raw[:lastSep], "")
		fracPart := raw[lastSep+1:]
		raw = intPart + "." + fracPart
	} else {
		raw = nonNumericRegex.ReplaceAllString(raw, "")
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}

var percentRegex = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)

// ParsePercent extracts a percentage from text like "35% OFF". Returns 0 when
// no percentage is present.
func ParsePercent(s string) float64 {
	m := percentRegex.FindStringSubmatch(s)
	if len(m) < 2 {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return v
}
