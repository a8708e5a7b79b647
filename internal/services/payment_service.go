package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"basecamp/internal/domain"
	"basecamp/internal/gateway"
	applog "basecamp/internal/log"
	"basecamp/internal/metrics"
	"basecamp/internal/repos"
)

const (
	useCaseStartGateway  = "payment.gateway.start"
	useCaseVerifyPayment = "payment.verify"

	// GatewayCOD is the PaymentRecord gateway name for cash on delivery.
	GatewayCOD = "COD"
)

// GatewayOrder is what the client widget needs to collect a payment.
type GatewayOrder struct {
	ExternalOrderID string `json:"externalOrderId"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	KeyID           string `json:"keyId"`
}

// PaymentService resolves a payment outcome and hands it to the order lifecycle.
type PaymentService struct {
	Checkout *CheckoutService
	Orders   *OrderService
	Intents  *repos.PaymentRepo
	Gateway  gateway.Client
	Signer   gateway.Signer
	KeyID    string
	Metrics  *metrics.Metrics
	Now      func() time.Time
}

func NewPaymentService(checkout *CheckoutService, orders *OrderService, intents *repos.PaymentRepo, gw gateway.Client, signer gateway.Signer, keyID string, m *metrics.Metrics) *PaymentService {
	return &PaymentService{
		Checkout: checkout,
		Orders:   orders,
		Intents:  intents,
		Gateway:  gw,
		Signer:   signer,
		KeyID:    keyID,
		Metrics:  m,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// PlaceCOD creates a Pending order with a PENDING payment. A token that has
// already produced an order returns that order, even though the cart is now empty.
func (s *PaymentService) PlaceCOD(ctx context.Context, id domain.Identity, addressID, token string) (domain.Order, bool, error) {
	if token != "" {
		if o, err := s.Orders.Orders.FindByToken(ctx, id.BuyerID, token); err == nil {
			return o, true, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			return domain.Order{}, false, err
		}
	}
	p, err := s.Checkout.Prepare(ctx, id, addressID, domain.PaymentCOD)
	if err != nil {
		return domain.Order{}, false, err
	}
	return s.Orders.Place(ctx, id, p, domain.PaymentRecord{Gateway: GatewayCOD, Status: domain.PaymentPending}, token)
}

// StartGateway prices the cart, opens a remote payment order and records the
// intent with the proposal frozen. Nothing is reserved yet.
func (s *PaymentService) StartGateway(ctx context.Context, id domain.Identity, addressID string) (_ GatewayOrder, err error) {
	ctx, uc := begin(ctx, s.Metrics, useCaseStartGateway, "StartGatewayPayment", attribute.String("buyer.id", id.BuyerID))
	uc.with(zap.String("buyer_id", id.BuyerID))
	defer func() { uc.end(err) }()

	p, err := s.Checkout.Prepare(ctx, id, addressID, domain.PaymentGateway)
	if err != nil {
		return GatewayOrder{}, err
	}
	amount := p.MinorUnits()
	if amount <= 0 {
		return GatewayOrder{}, domain.Invalid("grandTotal", "must be positive for online payment")
	}

	remote, err := s.Gateway.CreateOrder(ctx, gateway.CreateOrderRequest{
		Amount:   amount,
		Currency: p.Currency,
		Receipt:  "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:20],
	})
	if err != nil {
		if errors.Is(err, domain.ErrGatewayUnavailable) || errors.Is(err, context.Canceled) {
			return GatewayOrder{}, err
		}
		return GatewayOrder{}, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}

	now := s.Now()
	if err := s.Intents.Save(ctx, domain.PaymentIntent{
		ExternalOrderID: remote.ID,
		BuyerID:         id.BuyerID,
		Gateway:         s.Gateway.Name(),
		Proposal:        p,
		AmountMinor:     amount,
		Currency:        p.Currency,
		Status:          domain.IntentPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}); err != nil {
		return GatewayOrder{}, err
	}
	uc.with(zap.String("external_order_id", remote.ID), zap.Int64("amount", amount))
	return GatewayOrder{ExternalOrderID: remote.ID, Amount: amount, Currency: p.Currency, KeyID: s.KeyID}, nil
}

func (s *PaymentService) ownIntent(ctx context.Context, id domain.Identity, externalOrderID string) (domain.PaymentIntent, error) {
	if strings.TrimSpace(externalOrderID) == "" {
		return domain.PaymentIntent{}, domain.Invalid("externalOrderId", "is required")
	}
	in, err := s.Intents.Get(ctx, externalOrderID)
	if err != nil {
		return domain.PaymentIntent{}, err
	}
	if in.BuyerID != id.BuyerID {
		return domain.PaymentIntent{}, domain.ErrNotFound
	}
	return in, nil
}

// FailGateway records the widget's explicit failure callback. Only a PENDING
// intent moves to FAILED; repeats and late failures are no-ops.
func (s *PaymentService) FailGateway(ctx context.Context, id domain.Identity, externalOrderID, reason string) (domain.PaymentIntent, error) {
	in, err := s.ownIntent(ctx, id, externalOrderID)
	if err != nil {
		return in, err
	}
	if reason = strings.TrimSpace(reason); reason == "" {
		reason = "payment_failed"
	}
	if len(reason) > 200 {
		reason = reason[:200]
	}
	if _, err := s.Intents.MarkFailed(ctx, externalOrderID, reason, domain.IntentPending); err != nil {
		return in, err
	}
	return s.Intents.Get(ctx, externalOrderID)
}

// VerifyGateway checks the success callback's signature and, only on an exact
// match, creates the order from the intent's frozen proposal. The client's
// report of success carries no weight on its own.
func (s *PaymentService) VerifyGateway(ctx context.Context, id domain.Identity, cb domain.GatewayCallback) (_ domain.Order, err error) {
	ctx, uc := begin(ctx, s.Metrics, useCaseVerifyPayment, "VerifyPayment",
		attribute.String("buyer.id", id.BuyerID),
		attribute.String("payment.external_order_id", cb.ExternalOrderID),
	)
	uc.with(zap.String("buyer_id", id.BuyerID), zap.String("external_order_id", cb.ExternalOrderID))
	defer func() { uc.end(err) }()

	in, err := s.ownIntent(ctx, id, cb.ExternalOrderID)
	if err != nil {
		return domain.Order{}, err
	}

	if !s.Signer.Verify(cb.ExternalOrderID, cb.ExternalPaymentID, cb.Signature) || strings.TrimSpace(cb.ExternalPaymentID) == "" {
		s.Metrics.Verification("rejected")
		if _, mErr := s.Intents.MarkFailed(ctx, in.ExternalOrderID, "signature_mismatch", domain.IntentPending, domain.IntentExpired); mErr != nil {
			applog.Ctx(ctx).Error("payment.intent.mark_failed", zap.String("component", "payments"), zap.Error(mErr))
		}
		return domain.Order{}, domain.ErrPaymentVerificationFailed
	}
	s.Metrics.Verification("verified")

	if in.Status == domain.IntentPaid && in.OrderID != "" {
		uc.replay()
		return s.Orders.Get(ctx, id, in.OrderID)
	}

	o, _, err := s.Orders.Place(ctx, id, in.Proposal, domain.PaymentRecord{
		Gateway:           in.Gateway,
		ExternalOrderID:   in.ExternalOrderID,
		ExternalPaymentID: cb.ExternalPaymentID,
		Signature:         cb.Signature,
		Status:            domain.PaymentPaid,
	}, "")
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// placement continues without this caller; a repeat verify returns the order
		return domain.Order{}, err
	}
	if err != nil {
		// funds are captured but no order exists; needs a refund or manual fulfilment
		applog.Ctx(ctx).Error("payment.captured.without_order",
			zap.String("component", "payments"),
			zap.String("buyer_id", id.BuyerID),
			zap.String("external_order_id", in.ExternalOrderID),
			zap.String("external_payment_id", cb.ExternalPaymentID),
			zap.Int64("amount", in.AmountMinor),
			zap.Error(err),
		)
		if mErr := s.Intents.MarkPaid(ctx, in.ExternalOrderID, ""); mErr != nil {
			applog.Ctx(ctx).Error("payment.intent.mark_paid", zap.String("component", "payments"), zap.Error(mErr))
		}
		return domain.Order{}, err
	}
	if err := s.Intents.MarkPaid(ctx, in.ExternalOrderID, o.ID); err != nil {
		return domain.Order{}, err
	}
	uc.with(zap.String("order_id", o.ID))
	return o, nil
}

// Intent returns the buyer's view of one payment intent.
func (s *PaymentService) Intent(ctx context.Context, id domain.Identity, externalOrderID string) (domain.PaymentIntent, error) {
	return s.ownIntent(ctx, id, externalOrderID)
}
