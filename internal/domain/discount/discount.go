// Package discount holds the discount rule shape shared by vouchers and
// promotions, and the arithmetic that turns a rule into a monetary amount.
package discount

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Type enumerates the supported discount strategies.
type Type string

const (
	// TypePercentage applies a percentage of the base amount.
	TypePercentage Type = "PERCENTAGE"
	// TypeFixed applies a fixed monetary amount regardless of the base.
	TypeFixed Type = "FIXED"
)

var hundred = decimal.NewFromInt(100)

// Valid reports whether t is a known discount type.
func (t Type) Valid() bool {
	return t == TypePercentage || t == TypeFixed
}

// Rule is the discount behaviour shared by vouchers and promotions:
// how much to discount, until when the code is valid, and how many
// times it may be redeemed.
type Rule struct {
	Type           Type
	Value          decimal.Decimal
	ExpirationDate time.Time
	UsageLimit     int
	UsageCount     int
}

// Expired reports whether the rule is past its expiration date.
// A rule expiring exactly at now counts as expired.
func (r Rule) Expired(now time.Time) bool {
	return !r.ExpirationDate.After(now)
}

// Exhausted reports whether the rule has reached its usage limit.
func (r Rule) Exhausted() bool {
	return r.UsageCount >= r.UsageLimit
}

// Amount computes the raw discount for the rule against the given base.
// Percentage rules yield base*value/100; fixed rules yield the value as-is.
// Callers cap fixed promotion discounts at the eligible base themselves.
func Amount(r Rule, base decimal.Decimal) decimal.Decimal {
	if r.Type == TypePercentage {
		return base.Mul(r.Value).Div(hundred)
	}
	return r.Value
}

// Cap clamps a running discount total to the aggregate ceiling:
// min(total, subtotal*maxPercent/100, subtotal).
func Cap(total, subtotal decimal.Decimal, maxPercent int) decimal.Decimal {
	ceiling := subtotal.Mul(decimal.NewFromInt(int64(maxPercent))).Div(hundred)
	return decimal.Min(total, ceiling, subtotal)
}

// Line is one order line as seen by the discount engine.
type Line struct {
	ProductID string
	Category  string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Total returns the line total, unit price times quantity.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Subtotal sums the line totals across all lines.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Total())
	}
	return sum
}

// NormalizeCode canonicalizes a code, category, or product identifier for
// comparison: trimmed of surrounding whitespace and uppercased.
func NormalizeCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
