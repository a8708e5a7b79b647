package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCOD     PaymentMethod = "COD"
	PaymentGateway PaymentMethod = "GATEWAY"
)

func (m PaymentMethod) Valid() bool { return m == PaymentCOD || m == PaymentGateway }

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentFailed  PaymentStatus = "FAILED"
)

// PaymentRecord is embedded in an order.
type PaymentRecord struct {
	Gateway           string        `json:"gateway"`
	ExternalOrderID   string        `json:"externalOrderId,omitempty"`
	ExternalPaymentID string        `json:"externalPaymentId,omitempty"`
	Signature         string        `json:"signature,omitempty"`
	Status            PaymentStatus `json:"status"`
}

type OrderLine struct {
	ProductID           string          `json:"productId"`
	Size                string          `json:"size"`
	Color               string          `json:"color"`
	Quantity            int             `json:"quantity"`
	UnitPriceAtPurchase decimal.Decimal `json:"unitPriceAtPurchase"`
}

func (l OrderLine) Key() VariantKey {
	return VariantKey{ProductID: l.ProductID, Size: l.Size, Color: l.Color}
}

// Order is created once at payment resolution and afterwards changes only through status transitions.
// LineItems and Address are copies; nothing outside the order record may alter them.
type Order struct {
	ID            string          `json:"id"`
	BuyerID       string          `json:"buyerId"`
	LineItems     []OrderLine     `json:"lineItems"`
	Address       Address         `json:"addressSnapshot"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TaxTotal      decimal.Decimal `json:"taxTotal"`
	DiscountTotal decimal.Decimal `json:"discountTotal"`
	GrandTotal    decimal.Decimal `json:"grandTotal"`
	Currency      string          `json:"currency"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	Payment       PaymentRecord   `json:"payment"`
	Status        OrderStatus     `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// PaymentStatus mirrors the embedded record for callers that only need the flag.
func (o *Order) PaymentStatus() PaymentStatus { return o.Payment.Status }

type OrderFilter struct {
	Status  OrderStatus
	BuyerID string
	Limit   int
}

// StatusChange is one row of an order's transition history.
type StatusChange struct {
	OrderID string      `db:"order_id" json:"orderId"`
	From    OrderStatus `db:"from_status" json:"from"`
	To      OrderStatus `db:"to_status" json:"to"`
	Actor   string      `db:"actor" json:"actor"`
	At      time.Time   `db:"at" json:"at"`
}
