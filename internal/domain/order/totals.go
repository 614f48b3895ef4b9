package order

import "github.com/shopspring/decimal"

// Totals holds the monetary breakdown of an order. Values are kept at full
// precision; use Rounded for presentation.
type Totals struct {
	Subtotal       decimal.Decimal
	DiscountRate   decimal.Decimal
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal
}

// ComputeTotals fills in line totals and returns the order totals for the
// given discount rate. Items are summed in insertion order.
func ComputeTotals(items []LineItem, rate decimal.Decimal) (Totals, error) {
	if len(items) == 0 {
		return Totals{}, ErrEmptyItems
	}

	subtotal := decimal.Zero
	for i := range items {
		if items[i].Quantity <= 0 {
			return Totals{}, &InvalidQuantityError{ProductID: items[i].ProductID, Quantity: items[i].Quantity}
		}
		items[i].LineTotal = items[i].UnitPrice.Mul(decimal.NewFromInt(int64(items[i].Quantity)))
		subtotal = subtotal.Add(items[i].LineTotal)
	}

	discountAmount := subtotal.Mul(rate)
	return Totals{
		Subtotal:       subtotal,
		DiscountRate:   rate,
		DiscountAmount: discountAmount,
		Total:          subtotal.Sub(discountAmount),
	}, nil
}

// Rounded returns the totals rounded to two decimal places.
func (t Totals) Rounded() Totals {
	return Totals{
		Subtotal:       t.Subtotal.Round(2),
		DiscountRate:   t.DiscountRate,
		DiscountAmount: t.DiscountAmount.Round(2),
		Total:          t.Total.Round(2),
	}
}

// Totals returns the monetary breakdown stored on the order.
func (o *Order) Totals() Totals {
	return Totals{
		Subtotal:       o.Subtotal,
		DiscountRate:   o.DiscountRate,
		DiscountAmount: o.DiscountAmount,
		Total:          o.Total,
	}
}
