package domain

import "time"

type IntentStatus string

const (
	IntentPending IntentStatus = "PENDING"
	IntentPaid    IntentStatus = "PAID"
	IntentFailed  IntentStatus = "FAILED"
	IntentExpired IntentStatus = "EXPIRED"
)

// PaymentIntent is the local context for a remote gateway order that has not
// produced a local order yet. The proposal is frozen at creation so the order
// matches what the buyer paid for.
type PaymentIntent struct {
	ExternalOrderID string       `json:"externalOrderId"`
	BuyerID         string       `json:"-"`
	Gateway         string       `json:"gateway"`
	Proposal        Proposal     `json:"proposal"`
	AmountMinor     int64        `json:"amount"`
	Currency        string       `json:"currency"`
	Status          IntentStatus `json:"status"`
	FailureReason   string       `json:"failureReason,omitempty"`
	OrderID         string       `json:"orderId,omitempty"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// GatewayCallback is the success payload reported by the client-side widget.
// It is advisory until the signature has been checked server-side.
type GatewayCallback struct {
	ExternalOrderID   string `json:"externalOrderId"`
	ExternalPaymentID string `json:"externalPaymentId"`
	Signature         string `json:"signature"`
}
