// Package discount maps bundle sizes to the discount applied when a
// bundle of that size is purchased as a whole.
package discount

import "github.com/shopspring/decimal"

// DefaultRate applies to any bundle size without an explicit tier.
var DefaultRate = decimal.NewFromFloat(0.15)

type Policy struct {
	rates    map[int]decimal.Decimal
	fallback decimal.Decimal
}

// NewPolicy builds a policy from size->rate tiers. Rates outside [0,1)
// are ignored and fall back to the default; a nil map yields a flat
// default-rate policy.
func NewPolicy(tiers map[int]decimal.Decimal) *Policy {
	p := &Policy{
		rates:    make(map[int]decimal.Decimal, len(tiers)),
		fallback: DefaultRate,
	}

	for size, rate := range tiers {
		if size <= 0 || !validRate(rate) {
			continue
		}
		p.rates[size] = rate
	}

	return p
}

// Rate returns the discount fraction for a bundle of the given size,
// always in [0,1). Size 0 (no bundle in progress) still resolves to the
// fallback so callers need no special case; with no bundle the
// reconciler never applies it to a non-zero amount.
func (p *Policy) Rate(size int) decimal.Decimal {
	if rate, ok := p.rates[size]; ok {
		return rate
	}

	return p.fallback
}

// Percentage returns the rate as a rounded whole percentage for display.
func (p *Policy) Percentage(size int) int {
	return int(p.Rate(size).Mul(decimal.NewFromInt(100)).Round(0).IntPart())
}

func validRate(rate decimal.Decimal) bool {
	return !rate.IsNegative() && rate.LessThan(decimal.NewFromInt(1))
}
