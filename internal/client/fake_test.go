package client_test

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"

	"basecamp/internal/client"
	"basecamp/internal/domain"
)

var errTransport = errors.New("dial tcp: connection reset by peer")

// fakeAPI is an in-memory server cart. fail, when set, is returned by the next call only.
type fakeAPI struct {
	mu     sync.Mutex
	lines  []domain.CartLine
	nextID int
	fail   error
	calls  int
	orders map[string]domain.Order

	intents  map[string]string // external order id -> PENDING, FAILED or PAID
	paid     map[string]domain.Order
	failures []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{orders: map[string]domain.Order{}, intents: map[string]string{}, paid: map[string]domain.Order{}}
}

func fakeSignature(externalOrderID, externalPaymentID string) string {
	return "sig:" + externalOrderID + ":" + externalPaymentID
}

func (f *fakeAPI) failNext(err error) {
	f.mu.Lock()
	f.fail = err
	f.mu.Unlock()
}

func (f *fakeAPI) take() error {
	f.calls++
	err := f.fail
	f.fail = nil
	return err
}

func rejected(code string) error {
	return &client.StatusError{Status: 409, Code: code, Message: code}
}

func (f *fakeAPI) Cart(ctx context.Context) ([]domain.CartLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.take(); err != nil {
		return nil, err
	}
	return append([]domain.CartLine(nil), f.lines...), nil
}

func (f *fakeAPI) AddLine(ctx context.Context, k domain.VariantKey, qty int) (domain.CartLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.take(); err != nil {
		return domain.CartLine{}, err
	}
	for i, l := range f.lines {
		if l.Key() == k {
			f.lines[i].Quantity += qty
			return f.lines[i], nil
		}
	}
	f.nextID++
	l := domain.CartLine{
		ID: "line-" + strconv.Itoa(f.nextID), ProductID: k.ProductID, Size: k.Size, Color: k.Color,
		Quantity: qty, UnitPrice: decimal.NewFromInt(100),
	}
	f.lines = append(f.lines, l)
	return l, nil
}

func (f *fakeAPI) UpdateQuantity(ctx context.Context, lineID string, qty int) (domain.CartLine, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.take(); err != nil {
		return domain.CartLine{}, false, err
	}
	for i, l := range f.lines {
		if l.ID != lineID {
			continue
		}
		if qty == 0 {
			f.lines = append(f.lines[:i], f.lines[i+1:]...)
			return domain.CartLine{}, true, nil
		}
		f.lines[i].Quantity = qty
		return f.lines[i], false, nil
	}
	return domain.CartLine{}, false, &client.StatusError{Status: 404, Code: "NOT_FOUND"}
}

func (f *fakeAPI) RemoveLine(ctx context.Context, lineID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.take(); err != nil {
		return err
	}
	for i, l := range f.lines {
		if l.ID == lineID {
			f.lines = append(f.lines[:i], f.lines[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeAPI) Proposal(ctx context.Context, addressID string, method domain.PaymentMethod) (domain.Proposal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.take(); err != nil {
		return domain.Proposal{}, err
	}
	return domain.Proposal{PaymentMethod: method}, nil
}

func (f *fakeAPI) PlaceCOD(ctx context.Context, addressID, token string) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.take(); err != nil {
		return domain.Order{}, err
	}
	if o, ok := f.orders[token]; ok {
		return o, nil
	}
	o := domain.Order{ID: "ord-" + strconv.Itoa(len(f.orders)+1), Status: domain.StatusPending, PaymentMethod: domain.PaymentCOD}
	f.orders[token] = o
	f.lines = nil
	return o, nil
}

func (f *fakeAPI) StartGateway(ctx context.Context, addressID string) (client.GatewayOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.take(); err != nil {
		return client.GatewayOrder{}, err
	}
	id := "order_" + strconv.Itoa(len(f.intents)+1)
	f.intents[id] = "PENDING"
	return client.GatewayOrder{ExternalOrderID: id, Amount: 10000, Currency: "INR", KeyID: "key_test"}, nil
}

func (f *fakeAPI) VerifyGateway(ctx context.Context, cb domain.GatewayCallback) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.take(); err != nil {
		return domain.Order{}, err
	}
	if _, ok := f.intents[cb.ExternalOrderID]; !ok {
		return domain.Order{}, &client.StatusError{Status: 404, Code: "NOT_FOUND"}
	}
	if o, ok := f.paid[cb.ExternalOrderID]; ok {
		return o, nil
	}
	if cb.Signature != fakeSignature(cb.ExternalOrderID, cb.ExternalPaymentID) {
		f.intents[cb.ExternalOrderID] = "FAILED"
		return domain.Order{}, &client.StatusError{Status: 402, Code: "PAYMENT_VERIFICATION_FAILED"}
	}
	o := domain.Order{
		ID: "ord-gw-" + strconv.Itoa(len(f.paid)+1), Status: domain.StatusPending, PaymentMethod: domain.PaymentGateway,
		Payment: domain.PaymentRecord{ExternalOrderID: cb.ExternalOrderID, ExternalPaymentID: cb.ExternalPaymentID, Status: domain.PaymentPaid},
	}
	f.intents[cb.ExternalOrderID] = "PAID"
	f.paid[cb.ExternalOrderID] = o
	f.lines = nil
	return o, nil
}

func (f *fakeAPI) ReportGatewayFailure(ctx context.Context, externalOrderID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.take(); err != nil {
		return err
	}
	if f.intents[externalOrderID] == "PENDING" {
		f.intents[externalOrderID] = "FAILED"
	}
	f.failures = append(f.failures, externalOrderID+":"+reason)
	return nil
}

func (f *fakeAPI) intentStatus(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.intents[id]
}

func (f *fakeAPI) setServerQty(qty int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.lines {
		f.lines[i].Quantity = qty
	}
}

func (f *fakeAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
