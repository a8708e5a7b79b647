package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"basecamp/internal/cache"
	"basecamp/internal/domain"
	"basecamp/internal/metrics"
	"basecamp/internal/repos"
)

const (
	useCasePlaceOrder      = "order.place"
	useCaseTransitionOrder = "order.transition"
)

// OrderService is the order lifecycle manager. It is the only writer of orders,
// and it couples order creation and cancellation to the inventory ledger.
type OrderService struct {
	DB        *sqlx.DB
	Orders    *repos.OrderRepo
	Carts     *repos.CartRepo
	Inventory *InventoryService
	Cache     cache.CartCache
	Metrics   *metrics.Metrics
	Now       func() time.Time

	inflight singleflight.Group
}

func NewOrderService(db *sqlx.DB, orders *repos.OrderRepo, carts *repos.CartRepo, inv *InventoryService, c cache.CartCache, m *metrics.Metrics) *OrderService {
	if c == nil {
		c = cache.Nop{}
	}
	return &OrderService{
		DB:        db,
		Orders:    orders,
		Carts:     carts,
		Inventory: inv,
		Cache:     c,
		Metrics:   m,
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

type placed struct {
	order    domain.Order
	replayed bool
}

// Place turns a resolved payment into an order. Every line is reserved, the
// order is written and the cart cleared in one transaction; any failure leaves
// nothing behind. A repeated requestToken (or gateway order id) returns the
// order created the first time with replayed=true.
func (s *OrderService) Place(ctx context.Context, id domain.Identity, p domain.Proposal, pay domain.PaymentRecord, requestToken string) (_ domain.Order, replayed bool, err error) {
	ctx, uc := begin(ctx, s.Metrics, useCasePlaceOrder, "PlaceOrder",
		attribute.String("buyer.id", id.BuyerID),
		attribute.String("payment.method", string(p.PaymentMethod)),
		attribute.Int("order.lines", len(p.Lines)),
	)
	uc.with(zap.String("buyer_id", id.BuyerID), zap.String("payment_method", string(p.PaymentMethod)))
	defer func() { uc.end(err) }()

	if id.BuyerID == "" {
		return domain.Order{}, false, domain.ErrForbidden
	}
	if len(p.Lines) == 0 {
		return domain.Order{}, false, domain.ErrEmptyCart
	}
	if p.Address.MissingField() != "" {
		return domain.Order{}, false, domain.ErrNoShippingAddress
	}
	if !p.PaymentMethod.Valid() {
		return domain.Order{}, false, domain.Invalid("paymentMethod", "must be COD or GATEWAY")
	}

	key := ""
	switch {
	case pay.ExternalOrderID != "":
		key = "ext|" + pay.ExternalOrderID
	case requestToken != "":
		key = "tok|" + id.BuyerID + "|" + requestToken
	}

	var v any
	if key == "" {
		v, err = s.place(ctx, id, p, pay, requestToken)
	} else {
		// The shared placement outlives whichever caller started it; each
		// caller still stops waiting when its own ctx ends.
		shared := context.WithoutCancel(ctx)
		ch := s.inflight.DoChan(key, func() (any, error) { return s.place(shared, id, p, pay, requestToken) })
		select {
		case r := <-ch:
			v, err = r.Val, r.Err
		case <-ctx.Done():
			err = ctx.Err()
		}
	}
	if err != nil {
		return domain.Order{}, false, err
	}
	res := v.(placed)
	if res.replayed {
		uc.replay()
	}
	uc.with(zap.String("order_id", res.order.ID), zap.Bool("replayed", res.replayed))
	return res.order, res.replayed, nil
}

func (s *OrderService) existing(ctx context.Context, orders *repos.OrderRepo, id domain.Identity, pay domain.PaymentRecord, token string) (domain.Order, error) {
	var (
		o   domain.Order
		err error
	)
	switch {
	case pay.ExternalOrderID != "":
		o, err = orders.FindByExternalOrderID(ctx, pay.ExternalOrderID)
	case token != "":
		o, err = orders.FindByToken(ctx, id.BuyerID, token)
	default:
		return o, domain.ErrNotFound
	}
	if err == nil && o.BuyerID != id.BuyerID {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, err
}

func (s *OrderService) place(ctx context.Context, id domain.Identity, p domain.Proposal, pay domain.PaymentRecord, token string) (placed, error) {
	now := s.Now()
	o := domain.Order{
		ID:            uuid.NewString(),
		BuyerID:       id.BuyerID,
		LineItems:     append([]domain.OrderLine(nil), p.Lines...),
		Address:       p.Address,
		Subtotal:      p.Subtotal,
		TaxTotal:      p.TaxTotal,
		DiscountTotal: p.DiscountTotal,
		GrandTotal:    p.GrandTotal,
		Currency:      p.Currency,
		PaymentMethod: p.PaymentMethod,
		Payment:       pay,
		Status:        domain.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	o.Address.BuyerID = id.BuyerID

	var res placed
	err := repos.InTx(ctx, s.DB, func(tx *sqlx.Tx) error {
		orders := s.Orders.WithTx(tx)
		prior, err := s.existing(ctx, orders, id, pay, token)
		if err == nil {
			res = placed{order: prior, replayed: true}
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		for _, l := range o.LineItems {
			if err := s.Inventory.ReserveTx(ctx, tx, l.Key(), l.Quantity); err != nil {
				return err
			}
		}
		if err := orders.Insert(ctx, o, token); err != nil {
			return err
		}
		if err := orders.AppendStatusLog(ctx, domain.StatusChange{
			OrderID: o.ID, From: "", To: domain.StatusPending, Actor: id.BuyerID, At: now,
		}); err != nil {
			return err
		}
		if err := s.Carts.WithTx(tx).Clear(ctx, id.BuyerID); err != nil {
			return err
		}
		res = placed{order: o}
		return nil
	})
	if repos.IsUniqueViolation(err) {
		// another process won the race for this token
		prior, lookupErr := s.existing(ctx, s.Orders, id, pay, token)
		if lookupErr != nil {
			return placed{}, err
		}
		return placed{order: prior, replayed: true}, nil
	}
	if err != nil {
		return placed{}, err
	}
	if !res.replayed {
		if err := s.Cache.Delete(ctx, id.BuyerID); err != nil {
			zap.L().Warn("cart.cache.delete", zap.String("component", "orders"), zap.Error(err))
		}
	}
	return res, nil
}

// Transition is the admin move along the fulfillment path, or into Cancelled.
func (s *OrderService) Transition(ctx context.Context, actor domain.Identity, orderID string, to domain.OrderStatus) (domain.Order, error) {
	if !actor.IsAdmin() {
		return domain.Order{}, domain.ErrForbidden
	}
	return s.transition(ctx, actor, orderID, to, false)
}

// Cancel is the buyer's own cancellation; admins may cancel any order.
func (s *OrderService) Cancel(ctx context.Context, id domain.Identity, orderID string) (domain.Order, error) {
	return s.transition(ctx, id, orderID, domain.StatusCancelled, !id.IsAdmin())
}

func (s *OrderService) transition(ctx context.Context, actor domain.Identity, orderID string, to domain.OrderStatus, ownOnly bool) (_ domain.Order, err error) {
	ctx, uc := begin(ctx, s.Metrics, useCaseTransitionOrder, "TransitionOrder",
		attribute.String("order.id", orderID),
		attribute.String("order.to", string(to)),
	)
	uc.with(zap.String("order_id", orderID), zap.String("to", string(to)), zap.String("actor", actor.BuyerID))
	defer func() { uc.end(err) }()

	if _, ok := domain.ParseOrderStatus(string(to)); !ok {
		return domain.Order{}, domain.Invalid("status", "is not a known order status")
	}

	var out domain.Order
	err = repos.InTx(ctx, s.DB, func(tx *sqlx.Tx) error {
		orders := s.Orders.WithTx(tx)
		o, err := orders.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if ownOnly && o.BuyerID != actor.BuyerID {
			return domain.ErrNotFound
		}
		uc.with(zap.String("from", string(o.Status)))
		if !domain.CanTransition(o.Status, to) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrIllegalTransition, o.Status, to)
		}

		now := s.Now()
		ok, err := orders.UpdateStatus(ctx, o.ID, o.Status, to, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: order changed concurrently", domain.ErrIllegalTransition)
		}
		if to == domain.StatusCancelled {
			for _, l := range o.LineItems {
				if err := s.Inventory.ReleaseTx(ctx, tx, l.Key(), l.Quantity); err != nil {
					return err
				}
			}
		}
		if err := orders.AppendStatusLog(ctx, domain.StatusChange{
			OrderID: o.ID, From: o.Status, To: to, Actor: actor.BuyerID, At: now,
		}); err != nil {
			return err
		}
		o.Status, o.UpdatedAt = to, now
		out = o
		return nil
	})
	return out, err
}

// Get returns one order; buyers only see their own.
func (s *OrderService) Get(ctx context.Context, id domain.Identity, orderID string) (domain.Order, error) {
	o, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !id.IsAdmin() && o.BuyerID != id.BuyerID {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

func (s *OrderService) ListForBuyer(ctx context.Context, id domain.Identity, limit int) ([]domain.Order, error) {
	return s.Orders.List(ctx, domain.OrderFilter{BuyerID: id.BuyerID, Limit: limit})
}

// List is the admin console query.
func (s *OrderService) List(ctx context.Context, actor domain.Identity, f domain.OrderFilter) ([]domain.Order, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if f.Status != "" {
		if _, ok := domain.ParseOrderStatus(string(f.Status)); !ok {
			return nil, domain.Invalid("status", "is not a known order status")
		}
	}
	return s.Orders.List(ctx, f)
}

func (s *OrderService) History(ctx context.Context, id domain.Identity, orderID string) ([]domain.StatusChange, error) {
	if _, err := s.Get(ctx, id, orderID); err != nil {
		return nil, err
	}
	return s.Orders.History(ctx, orderID)
}
