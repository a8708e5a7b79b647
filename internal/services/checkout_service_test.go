package services_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"basecamp/internal/domain"
	"basecamp/internal/pricing"
	"basecamp/internal/services"
)

var homeAddr = domain.Address{
	ID: "a1", RecipientName: "Asha Rao", Phone: "9800000001", Line1: "12 Lake View Road",
	City: "Pune", State: "MH", PostalCode: "411001", IsDefault: true,
}

func cartOf(lines ...domain.CartLine) []domain.CartLine { return lines }

func TestBuildProposal_OrderOfChecks(t *testing.T) {
	_, err := services.BuildProposal(nil, nil, "BITCOIN", pricing.Rules{}, "INR")
	assert.ErrorIs(t, err, domain.ErrEmptyCart, "empty cart wins over every later check")

	lines := cartOf(domain.CartLine{ProductID: "P1", Size: "M", Color: "Red", Quantity: 2, UnitPrice: decimal.NewFromInt(500)})
	_, err = services.BuildProposal(lines, nil, "BITCOIN", pricing.Rules{}, "INR")
	assert.ErrorIs(t, err, domain.ErrNoShippingAddress)

	partial := homeAddr
	partial.PostalCode = "  "
	_, err = services.BuildProposal(lines, &partial, domain.PaymentCOD, pricing.Rules{}, "INR")
	assert.ErrorIs(t, err, domain.ErrNoShippingAddress)

	_, err = services.BuildProposal(lines, &homeAddr, "BITCOIN", pricing.Rules{}, "INR")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestBuildProposal_Totals(t *testing.T) {
	lines := cartOf(
		domain.CartLine{ProductID: "P1", Size: "M", Color: "Red", Quantity: 2, UnitPrice: decimal.NewFromInt(500)},
		domain.CartLine{ProductID: "P2", Size: "L", Color: "Blue", Quantity: 1, UnitPrice: decimal.RequireFromString("249.99")},
	)

	p, err := services.BuildProposal(lines, &homeAddr, domain.PaymentCOD, pricing.Rules{}, "INR")
	require.NoError(t, err)
	assert.Equal(t, "1249.99", p.Subtotal.StringFixed(2))
	assert.True(t, p.TaxTotal.IsZero())
	assert.True(t, p.GrandTotal.Equal(p.Subtotal))
	assert.Equal(t, int64(124999), p.MinorUnits())
	require.Len(t, p.Lines, 2)
	assert.True(t, p.Lines[1].UnitPriceAtPurchase.Equal(decimal.RequireFromString("249.99")))

	rules := pricing.Rules{
		TaxRate:    decimal.RequireFromString("0.18"),
		Promotions: []pricing.Promotion{{Name: "big", MinSubtotal: decimal.NewFromInt(1000), PercentOff: decimal.NewFromInt(10)}},
	}
	p, err = services.BuildProposal(lines, &homeAddr, domain.PaymentGateway, rules, "INR")
	require.NoError(t, err)
	assert.Equal(t, "225.00", p.TaxTotal.StringFixed(2))
	assert.Equal(t, "125.00", p.DiscountTotal.StringFixed(2))
	assert.Equal(t, "1349.99", p.GrandTotal.StringFixed(2))
}

func TestBuildProposal_CopiesAddress(t *testing.T) {
	lines := cartOf(domain.CartLine{ProductID: "P1", Size: "M", Color: "Red", Quantity: 1, UnitPrice: decimal.NewFromInt(500)})
	addr := homeAddr
	p, err := services.BuildProposal(lines, &addr, domain.PaymentCOD, pricing.Rules{}, "INR")
	require.NoError(t, err)

	addr.City = "Elsewhere"
	lines[0].Quantity = 9
	assert.Equal(t, "Pune", p.Address.City)
	assert.Equal(t, 1, p.Lines[0].Quantity)
}

func TestPrepare_UsesAuthoritativeCartAndOwnAddress(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.checkout.Prepare(ctx, asha, ashaAddr, domain.PaymentCOD)
	assert.ErrorIs(t, err, domain.ErrEmptyCart)

	f.add(t, asha, p1Red, 2)
	_, err = f.checkout.Prepare(ctx, asha, raviAddr, domain.PaymentCOD)
	assert.ErrorIs(t, err, domain.ErrNoShippingAddress, "another buyer's address")

	_, err = f.checkout.Prepare(ctx, asha, "", domain.PaymentCOD)
	assert.ErrorIs(t, err, domain.ErrNoShippingAddress)

	p, err := f.checkout.Prepare(ctx, asha, ashaAddr, domain.PaymentCOD)
	require.NoError(t, err)
	assert.True(t, p.GrandTotal.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, "INR", p.Currency)
	assert.Equal(t, 10, f.stock(t, p1Red), "a proposal commits nothing")
}
