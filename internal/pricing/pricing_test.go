package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCompute_NoRules(t *testing.T) {
	tot := Rules{}.Compute(d("1000"))
	assert.True(t, tot.Subtotal.Equal(d("1000")))
	assert.True(t, tot.TaxTotal.IsZero())
	assert.True(t, tot.DiscountTotal.IsZero())
	assert.True(t, tot.GrandTotal.Equal(d("1000")))
}

func TestCompute_TaxAndPromotion(t *testing.T) {
	r := Rules{
		TaxRate: d("0.18"),
		Promotions: []Promotion{
			{Name: "small", MinSubtotal: d("500"), PercentOff: d("5")},
			{Name: "big", MinSubtotal: d("1000"), PercentOff: d("10")},
		},
	}
	tot := r.Compute(d("1000"))
	assert.Equal(t, "180", tot.TaxTotal.String())
	assert.Equal(t, "100", tot.DiscountTotal.String(), "best promotion wins, no stacking")
	assert.Equal(t, "1080", tot.GrandTotal.String())
}

func TestCompute_PromotionBelowThreshold(t *testing.T) {
	r := Rules{Promotions: []Promotion{{MinSubtotal: d("2000"), PercentOff: d("10")}}}
	assert.True(t, r.Compute(d("1999.99")).DiscountTotal.IsZero())
}

func TestCompute_Rounding(t *testing.T) {
	r := Rules{TaxRate: d("0.075")}
	tot := r.Compute(d("19.99"))
	assert.Equal(t, "1.5", tot.TaxTotal.String())
	assert.Equal(t, "21.49", tot.GrandTotal.String())
}

func TestCompute_GrandClampedAtZero(t *testing.T) {
	r := Rules{Promotions: []Promotion{{PercentOff: d("150")}}}
	tot := r.Compute(d("100"))
	assert.True(t, tot.GrandTotal.IsZero())
	assert.Equal(t, "150", tot.DiscountTotal.String())
}

func TestCompute_Deterministic(t *testing.T) {
	r := Rules{TaxRate: d("0.12"), Promotions: []Promotion{{MinSubtotal: d("0"), PercentOff: d("3")}}}
	a, b := r.Compute(d("777.77")), r.Compute(d("777.77"))
	assert.Equal(t, a, b)
}
