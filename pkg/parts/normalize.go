package parts

import (
	"strings"
	"unicode"
)

// NormalizePartNumber canonicalizes a part number for identity comparison:
// uppercase, with separators and whitespace stripped. "lm-358 N" and
// "LM358N" normalize to the same value.
func NormalizePartNumber(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// NormalizeText lowercases and collapses whitespace for description
// comparison.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// ParsePrice extracts the first decimal number from a price string like
// "Rs. 1,250.00" or "$0.12 / pc". Returns the normalized decimal string and
// a currency guess, or empty strings when nothing price-like is present.
func ParsePrice(s string) (value, currency string) {
	currency = guessCurrency(s)

	var b strings.Builder
	seenDigit := false
	seenDot := false
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
			seenDigit = true
		case r == '.' && seenDigit && !seenDot:
			b.WriteRune(r)
			seenDot = true
		case r == ',' && seenDigit:
			// thousands separator
		default:
			if seenDigit {
				return b.String(), currency
			}
		}
	}
	if !seenDigit {
		return "", ""
	}
	return b.String(), currency
}

func guessCurrency(s string) string {
	switch {
	case strings.Contains(s, "$") || strings.Contains(s, "USD"):
		return "USD"
	case strings.Contains(s, "€") || strings.Contains(s, "EUR"):
		return "EUR"
	case strings.Contains(s, "£") || strings.Contains(s, "GBP"):
		return "GBP"
	case strings.Contains(s, "Rs") || strings.Contains(s, "LKR"):
		return "LKR"
	case strings.Contains(s, "¥") || strings.Contains(s, "CNY"):
		return "CNY"
	}
	return ""
}

// ParseQty extracts an availability count from strings like "In Stock: 1500"
// or "1,500+ available". Returns QtyUnknown when no integer is present.
func ParseQty(s string) int {
	n := 0
	seen := false
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			n = n*10 + int(r-'0')
			seen = true
		case r == ',' && seen:
		default:
			if seen {
				return n
			}
		}
	}
	if !seen {
		return QtyUnknown
	}
	return n
}
