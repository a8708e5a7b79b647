package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// VariantKey identifies one size+color combination of a product, the unit of stock tracking.
type VariantKey struct {
	ProductID string `db:"product_id" json:"productId"`
	Size      string `db:"size" json:"size"`
	Color     string `db:"color" json:"color"`
}

func (k VariantKey) String() string {
	return k.ProductID + "/" + k.Size + "/" + k.Color
}

type Product struct {
	ID        string          `db:"id"`
	Title     string          `db:"title"`
	Category  string          `db:"category"` // shop | competition | trek | fitness
	Price     decimal.Decimal `db:"price"`
	Active    bool            `db:"active"`
	CreatedAt time.Time       `db:"created_at"`
}

type VariantStock struct {
	VariantKey
	Stock     int       `db:"stock" json:"stock"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

type Availability struct {
	Status string `json:"status"` // IN_STOCK | LOW_STOCK | OUT_OF_STOCK
	Qty    int    `json:"qty"`
}

// CartLine is one buyer's line item. UnitPrice is the price snapshot taken when the line was created.
type CartLine struct {
	ID        string          `db:"id" json:"id"`
	BuyerID   string          `db:"buyer_id" json:"-"`
	ProductID string          `db:"product_id" json:"productId"`
	Size      string          `db:"size" json:"size"`
	Color     string          `db:"color" json:"color"`
	Quantity  int             `db:"qty" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unitPrice"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time       `db:"updated_at" json:"updatedAt"`
}

func (l CartLine) Key() VariantKey {
	return VariantKey{ProductID: l.ProductID, Size: l.Size, Color: l.Color}
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Address struct {
	ID            string `db:"id" json:"id"`
	BuyerID       string `db:"buyer_id" json:"-"`
	RecipientName string `db:"recipient_name" json:"recipientName"`
	Phone         string `db:"phone" json:"phone"`
	Line1         string `db:"line1" json:"line1"`
	Line2         string `db:"line2" json:"line2,omitempty"`
	City          string `db:"city" json:"city"`
	State         string `db:"state" json:"state"`
	PostalCode    string `db:"postal_code" json:"postalCode"`
	IsDefault     bool   `db:"is_default" json:"isDefault"`
}

// MissingField returns the first required field that is blank, or "" when the address is shippable.
func (a Address) MissingField() string {
	required := []struct{ name, value string }{
		{"recipientName", a.RecipientName},
		{"phone", a.Phone},
		{"line1", a.Line1},
		{"city", a.City},
		{"state", a.State},
		{"postalCode", a.PostalCode},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return f.name
		}
	}
	return ""
}
