// Package pricing computes checkout totals. Every function here is pure.
package pricing

import "github.com/shopspring/decimal"

// Promotion takes PercentOff percent off a subtotal of at least MinSubtotal.
type Promotion struct {
	Name        string
	MinSubtotal decimal.Decimal
	PercentOff  decimal.Decimal
}

// Rules is the externally configured rate and promotion set.
type Rules struct {
	TaxRate    decimal.Decimal // fraction, 0.18 == 18%
	Promotions []Promotion
}

type Totals struct {
	Subtotal      decimal.Decimal
	TaxTotal      decimal.Decimal
	DiscountTotal decimal.Decimal
	GrandTotal    decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

func money(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

func (r Rules) Tax(subtotal decimal.Decimal) decimal.Decimal {
	if r.TaxRate.IsNegative() || subtotal.IsNegative() {
		return decimal.Zero
	}
	return money(subtotal.Mul(r.TaxRate))
}

// Discount applies the single best promotion; promotions do not stack.
func (r Rules) Discount(subtotal decimal.Decimal) decimal.Decimal {
	best := decimal.Zero
	for _, p := range r.Promotions {
		if p.PercentOff.Sign() <= 0 || subtotal.LessThan(p.MinSubtotal) {
			continue
		}
		d := money(subtotal.Mul(p.PercentOff).Div(hundred))
		if d.GreaterThan(best) {
			best = d
		}
	}
	return best
}

// Compute returns grand = subtotal + tax - discount, clamped at zero.
func (r Rules) Compute(subtotal decimal.Decimal) Totals {
	subtotal = money(subtotal)
	tax := r.Tax(subtotal)
	discount := r.Discount(subtotal)
	grand := subtotal.Add(tax).Sub(discount)
	if grand.IsNegative() {
		grand = decimal.Zero
	}
	return Totals{Subtotal: subtotal, TaxTotal: tax, DiscountTotal: discount, GrandTotal: grand}
}
