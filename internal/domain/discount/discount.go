// Package discount maps a partner's cumulative sales volume to the discount
// rate applied to new orders.
package discount

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/masterpol/internal/domain/partner"
)

// Tier pairs a sales-volume threshold with the rate granted above it.
type Tier struct {
	Threshold decimal.Decimal
	Rate      decimal.Decimal
}

// Tiers is ordered by threshold descending. A tier applies when the total
// strictly exceeds its threshold.
var Tiers = []Tier{
	{Threshold: decimal.NewFromInt(10_000_000), Rate: decimal.RequireFromString("0.15")},
	{Threshold: decimal.NewFromInt(5_000_000), Rate: decimal.RequireFromString("0.10")},
	{Threshold: decimal.NewFromInt(1_000_000), Rate: decimal.RequireFromString("0.05")},
}

// FloorRate applies when no tier threshold is exceeded.
var FloorRate = decimal.RequireFromString("0.02")

// Rate returns the discount rate for the given cumulative sales amount.
func Rate(total decimal.Decimal) decimal.Decimal {
	for _, t := range Tiers {
		if total.GreaterThan(t.Threshold) {
			return t.Rate
		}
	}
	return FloorRate
}

// ForSummary returns the discount rate for a partner's sales summary.
func ForSummary(s partner.SalesSummary) decimal.Decimal {
	return Rate(s.TotalAmount)
}
