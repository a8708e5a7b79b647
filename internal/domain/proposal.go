package domain

import "github.com/shopspring/decimal"

// Proposal is a priced, not-yet-persisted order. It carries no identity.
type Proposal struct {
	Lines         []OrderLine     `json:"lines"`
	Address       Address         `json:"address"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TaxTotal      decimal.Decimal `json:"taxTotal"`
	DiscountTotal decimal.Decimal `json:"discountTotal"`
	GrandTotal    decimal.Decimal `json:"grandTotal"`
	Currency      string          `json:"currency"`
}

// MinorUnits converts the grand total into the gateway's integer amount (paise, cents).
func (p Proposal) MinorUnits() int64 {
	return p.GrandTotal.Shift(2).Round(0).IntPart()
}
