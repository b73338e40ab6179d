package models

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Default values substituted when a scraped amount token has the wrong shape
const (
	DefaultTradeSize = "1K–15K"
	DefaultPrice     = "$150.00"
)

var (
	currencyRe  = regexp.MustCompile(`^\$\s?([\d,]+(?:\.\d+)?)$`)
	sizeRangeRe = regexp.MustCompile(`^(\d+(?:\.\d+)?)([KkMm])\s*[–-]\s*(\d+(?:\.\d+)?)([KkMm])$`)

	thousand = decimal.NewFromInt(1_000)
	million  = decimal.NewFromInt(1_000_000)
)

// sizeBuckets are the disclosure value bands used on periodic transaction reports.
var sizeBuckets = []struct {
	upper decimal.Decimal
	label string
}{
	{decimal.NewFromInt(15_000), "1K–15K"},
	{decimal.NewFromInt(50_000), "15K–50K"},
	{decimal.NewFromInt(100_000), "50K–100K"},
	{decimal.NewFromInt(250_000), "100K–250K"},
	{decimal.NewFromInt(500_000), "250K–500K"},
	{decimal.NewFromInt(1_000_000), "500K–1M"},
	{decimal.NewFromInt(5_000_000), "1M–5M"},
	{decimal.NewFromInt(25_000_000), "5M–25M"},
	{decimal.NewFromInt(50_000_000), "25M–50M"},
}

// ParseCurrency parses a "$1,234.56" token.
func ParseCurrency(s string) (decimal.Decimal, bool) {
	m := currencyRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// FormatPrice renders an amount as a two-decimal dollar string with thousands
// separators, the way listing pages show prices.
func FormatPrice(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	whole, frac, _ := strings.Cut(d.StringFixed(2), ".")

	var b strings.Builder
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return sign + "$" + b.String() + "." + frac
}

// ParseSizeRange parses a "15K–50K" token into its bounds in dollars.
// Both the en dash and a plain hyphen are accepted.
func ParseSizeRange(s string) (low, high decimal.Decimal, ok bool) {
	m := sizeRangeRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return decimal.Zero, decimal.Zero, false
	}
	low, err := scaleAmount(m[1], m[2])
	if err != nil {
		return decimal.Zero, decimal.Zero, false
	}
	high, err = scaleAmount(m[3], m[4])
	if err != nil {
		return decimal.Zero, decimal.Zero, false
	}
	if high.LessThan(low) {
		return decimal.Zero, decimal.Zero, false
	}
	return low, high, true
}

// NormalizeSizeRange rewrites a range token with an en dash and upper-case
// suffixes. ok is false when s is not a range token.
func NormalizeSizeRange(s string) (string, bool) {
	m := sizeRangeRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", false
	}
	if _, _, ok := ParseSizeRange(s); !ok {
		return "", false
	}
	return m[1] + strings.ToUpper(m[2]) + "–" + m[3] + strings.ToUpper(m[4]), true
}

// SizeBucket maps a dollar value onto its disclosure band label.
func SizeBucket(value decimal.Decimal) string {
	for _, b := range sizeBuckets {
		if value.LessThanOrEqual(b.upper) {
			return b.label
		}
	}
	return "50M+"
}

func scaleAmount(num, suffix string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(num)
	if err != nil {
		return decimal.Zero, err
	}
	if strings.EqualFold(suffix, "M") {
		return d.Mul(million), nil
	}
	return d.Mul(thousand), nil
}
