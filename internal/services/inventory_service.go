package services

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"basecamp/internal/domain"
	"basecamp/internal/metrics"
	"basecamp/internal/repos"
	"basecamp/internal/validate"
)

const lowStockThreshold = 5

// InventoryService is the inventory ledger: the only place stock counters change.
type InventoryService struct {
	Inv     *repos.InventoryRepo
	Metrics *metrics.Metrics
}

func NewInventoryService(inv *repos.InventoryRepo, m *metrics.Metrics) *InventoryService {
	return &InventoryService{Inv: inv, Metrics: m}
}

func (s *InventoryService) repo(tx *sqlx.Tx) *repos.InventoryRepo {
	if tx == nil {
		return s.Inv
	}
	return s.Inv.WithTx(tx)
}

// Reserve atomically takes qty units of a variant or fails with *domain.InsufficientStockError.
func (s *InventoryService) Reserve(ctx context.Context, k domain.VariantKey, qty int) error {
	return s.ReserveTx(ctx, nil, k, qty)
}

// ReserveTx is Reserve on the caller's transaction.
func (s *InventoryService) ReserveTx(ctx context.Context, tx *sqlx.Tx, k domain.VariantKey, qty int) error {
	if qty < 1 {
		return domain.Invalid("quantity", "must be at least 1")
	}
	err := s.repo(tx).Reserve(ctx, k, qty)
	if errors.Is(err, domain.ErrInsufficientStock) {
		s.Metrics.ReservationFailed(k.ProductID)
	}
	return err
}

// ReleaseTx puts qty units back; used only when an order is cancelled.
func (s *InventoryService) ReleaseTx(ctx context.Context, tx *sqlx.Tx, k domain.VariantKey, qty int) error {
	if qty < 1 {
		return domain.Invalid("quantity", "must be at least 1")
	}
	return s.repo(tx).Release(ctx, k, qty)
}

// Availability is advisory; Reserve is the authoritative check.
func (s *InventoryService) Availability(ctx context.Context, k domain.VariantKey) (domain.Availability, error) {
	qty, err := s.Inv.Stock(ctx, k)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Availability{Status: "OUT_OF_STOCK", Qty: 0}, nil
	}
	if err != nil {
		return domain.Availability{}, err
	}

	status := "OUT_OF_STOCK"
	switch {
	case qty >= lowStockThreshold:
		status = "IN_STOCK"
	case qty > 0:
		status = "LOW_STOCK"
	}
	return domain.Availability{Status: status, Qty: qty}, nil
}

// Restock sets a variant's counter. The product must already exist.
func (s *InventoryService) Restock(ctx context.Context, k domain.VariantKey, stock int) error {
	if _, ok := validate.ID(k.ProductID); !ok {
		return domain.Invalid("productId", "is invalid")
	}
	if _, ok := validate.Attr(k.Size); !ok {
		return domain.Invalid("size", "is invalid")
	}
	if _, ok := validate.Attr(k.Color); !ok {
		return domain.Invalid("color", "is invalid")
	}
	if stock < 0 {
		return domain.Invalid("stock", "must not be negative")
	}
	return s.Inv.Restock(ctx, k, stock)
}

func (s *InventoryService) List(ctx context.Context) ([]repos.InventoryRow, error) {
	return s.Inv.ListAll(ctx)
}
