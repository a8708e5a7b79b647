// Package gateway talks to the hosted-payment provider: remote order
// creation and signature verification of the widget's success callback.
package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

type CreateOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type RemoteOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

// Client creates payment orders on the provider.
type Client interface {
	Name() string
	CreateOrder(ctx context.Context, req CreateOrderRequest) (RemoteOrder, error)
}

// Signer computes and checks callback signatures: hex(HMAC-SHA256(secret, orderID|paymentID)).
type Signer struct{ secret []byte }

func NewSigner(secret string) Signer { return Signer{secret: []byte(secret)} }

func (s Signer) Sign(externalOrderID, externalPaymentID string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(externalOrderID + "|" + externalPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares in constant time. An empty secret never verifies.
func (s Signer) Verify(externalOrderID, externalPaymentID, signature string) bool {
	if len(s.secret) == 0 || signature == "" {
		return false
	}
	want := s.Sign(externalOrderID, externalPaymentID)
	return hmac.Equal([]byte(want), []byte(signature))
}
