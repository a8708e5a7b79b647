package gateway

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Sandbox is an in-process provider for development and tests. It shares the
// signing secret so it can produce the callback the hosted widget would.
type Sandbox struct {
	signer Signer

	mu     sync.Mutex
	orders map[string]RemoteOrder
}

func NewSandbox(signer Signer) *Sandbox {
	return &Sandbox{signer: signer, orders: map[string]RemoteOrder{}}
}

func (s *Sandbox) Name() string { return "sandbox" }

func (s *Sandbox) CreateOrder(ctx context.Context, req CreateOrderRequest) (RemoteOrder, error) {
	if err := ctx.Err(); err != nil {
		return RemoteOrder{}, err
	}
	if req.Amount <= 0 {
		return RemoteOrder{}, errors.New("sandbox: amount must be positive")
	}
	o := RemoteOrder{
		ID:       "order_" + uuid.NewString()[:18],
		Amount:   req.Amount,
		Currency: req.Currency,
		Status:   "created",
	}
	s.mu.Lock()
	s.orders[o.ID] = o
	s.mu.Unlock()
	return o, nil
}

// Pay simulates a successful collection and returns the widget's success callback fields.
func (s *Sandbox) Pay(externalOrderID string) (paymentID, signature string, err error) {
	s.mu.Lock()
	o, ok := s.orders[externalOrderID]
	if ok {
		o.Status = "paid"
		s.orders[externalOrderID] = o
	}
	s.mu.Unlock()
	if !ok {
		return "", "", errors.New("sandbox: unknown order")
	}
	paymentID = "pay_" + uuid.NewString()[:14]
	return paymentID, s.signer.Sign(externalOrderID, paymentID), nil
}
