package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Source pages mix locale conventions ("1 234,56 zł", "1.234,56",
// "1,234.56$"). The cleanup below is locale-agnostic: once thousands
// spaces are gone and commas became periods, the last separator left is
// taken as the decimal point.
var currencyRe = regexp.MustCompile(`(?i)(zł|pln|eur|euro|usd|gbp|\$|€|£)`)

var nonNumericRe = regexp.MustCompile(`[^0-9.\-]`)

// ParsePrice cleans a raw price-like string and converts it to a
// float64. It fails with ErrParse when no digit sequence survives the
// cleanup.
func ParsePrice(raw string) (float64, error) {
	cleaned := strings.TrimSpace(raw)
	negative := strings.HasPrefix(cleaned, "-")

	cleaned = currencyRe.ReplaceAllString(cleaned, "")

	// Whitespace (including NBSP) acts as a thousands separator in some
	// locales; drop it all before deciding what the decimal point is.
	cleaned = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, cleaned)

	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	cleaned = nonNumericRe.ReplaceAllString(cleaned, "")
	// A minus that survived letter-stripping mid-string ("K-Beauty 2.0")
	// is not a sign.
	cleaned = strings.ReplaceAll(cleaned, "-", "")
	cleaned = strings.Trim(cleaned, ".")

	// More than one period left: only the last one is the decimal point.
	if strings.Count(cleaned, ".") > 1 {
		last := strings.LastIndex(cleaned, ".")
		cleaned = strings.ReplaceAll(cleaned[:last], ".", "") + cleaned[last:]
	}

	if cleaned == "" || cleaned == "." {
		return 0, fmt.Errorf("%w: %q", ErrParse, raw)
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrParse, raw)
	}
	if negative {
		v = -v
	}
	return v, nil
}
