package services

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"basecamp/internal/cache"
	"basecamp/internal/domain"
	"basecamp/internal/repos"
	"basecamp/internal/validate"
)

// CartService is the server-authoritative cart store.
type CartService struct {
	DB    *sqlx.DB
	Carts *repos.CartRepo
	Prods *repos.ProductRepo
	Cache cache.CartCache

	group singleflight.Group
}

func NewCartService(db *sqlx.DB, carts *repos.CartRepo, prods *repos.ProductRepo, c cache.CartCache) *CartService {
	if c == nil {
		c = cache.Nop{}
	}
	return &CartService{DB: db, Carts: carts, Prods: prods, Cache: c}
}

type CartView struct {
	Lines    []domain.CartLine `json:"lines"`
	Subtotal decimal.Decimal   `json:"subtotal"`
}

func newCartView(lines []domain.CartLine) CartView {
	sub := decimal.Zero
	for _, l := range lines {
		sub = sub.Add(l.Subtotal())
	}
	return CartView{Lines: lines, Subtotal: sub}
}

func validKey(k domain.VariantKey) (domain.VariantKey, error) {
	var ok bool
	if k.ProductID, ok = validate.ID(k.ProductID); !ok {
		return k, domain.Invalid("productId", "is invalid")
	}
	if k.Size, ok = validate.Attr(k.Size); !ok {
		return k, domain.Invalid("size", "is invalid")
	}
	if k.Color, ok = validate.Attr(k.Color); !ok {
		return k, domain.Invalid("color", "is invalid")
	}
	return k, nil
}

// AddLine adds qty of a variant. An existing line for the same variant grows;
// otherwise a new line is created at the product's current price.
func (s *CartService) AddLine(ctx context.Context, id domain.Identity, k domain.VariantKey, qty int) (domain.CartLine, error) {
	k, err := validKey(k)
	if err != nil {
		return domain.CartLine{}, err
	}
	if !validate.Qty(qty) {
		return domain.CartLine{}, domain.Invalid("quantity", "must be between 1 and 99")
	}
	exists, err := s.Prods.VariantExists(ctx, k)
	if err != nil {
		return domain.CartLine{}, err
	}
	if !exists {
		return domain.CartLine{}, domain.Invalid("variant", "does not exist")
	}
	price, err := s.Prods.PriceOf(ctx, k.ProductID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.CartLine{}, domain.Invalid("productId", "is not for sale")
	}
	if err != nil {
		return domain.CartLine{}, err
	}

	var line domain.CartLine
	err = repos.InTx(ctx, s.DB, func(tx *sqlx.Tx) error {
		var err error
		line, err = s.Carts.WithTx(tx).Upsert(ctx, id.BuyerID, k, qty, price)
		if err != nil {
			return err
		}
		if line.Quantity > validate.MaxLineQty {
			return domain.Invalid("quantity", "line would exceed 99")
		}
		return nil
	})
	if err != nil {
		return domain.CartLine{}, err
	}
	s.invalidate(ctx, id.BuyerID)
	return line, nil
}

// UpdateQuantity sets a line's quantity. Zero removes the line and returns removed=true.
func (s *CartService) UpdateQuantity(ctx context.Context, id domain.Identity, lineID string, qty int) (line domain.CartLine, removed bool, err error) {
	if _, ok := validate.ID(lineID); !ok {
		return line, false, domain.Invalid("lineId", "is invalid")
	}
	if qty == 0 {
		return line, true, s.RemoveLine(ctx, id, lineID)
	}
	if !validate.Qty(qty) {
		return line, false, domain.Invalid("quantity", "must be between 0 and 99")
	}
	line, err = s.Carts.SetQty(ctx, id.BuyerID, lineID, qty)
	if err != nil {
		return line, false, err
	}
	s.invalidate(ctx, id.BuyerID)
	return line, false, nil
}

// RemoveLine is idempotent.
func (s *CartService) RemoveLine(ctx context.Context, id domain.Identity, lineID string) error {
	if err := s.Carts.Remove(ctx, id.BuyerID, lineID); err != nil {
		return err
	}
	s.invalidate(ctx, id.BuyerID)
	return nil
}

// Snapshot reads the authoritative lines, bypassing the cache.
func (s *CartService) Snapshot(ctx context.Context, id domain.Identity) ([]domain.CartLine, error) {
	return s.Carts.Lines(ctx, id.BuyerID)
}

// View is the display read: cache first, concurrent misses collapsed per buyer.
func (s *CartService) View(ctx context.Context, id domain.Identity) (CartView, error) {
	if lines, err := s.Cache.Get(ctx, id.BuyerID); err == nil {
		return newCartView(lines), nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		zap.L().Warn("cart.cache.get", zap.String("component", "cart"), zap.String("buyer_id", id.BuyerID), zap.Error(err))
	}

	v, err, _ := s.group.Do(id.BuyerID, func() (any, error) {
		lines, err := s.Carts.Lines(ctx, id.BuyerID)
		if err != nil {
			return nil, err
		}
		if err := s.Cache.Set(ctx, id.BuyerID, lines); err != nil {
			zap.L().Warn("cart.cache.set", zap.String("component", "cart"), zap.String("buyer_id", id.BuyerID), zap.Error(err))
		}
		return lines, nil
	})
	if err != nil {
		return CartView{}, err
	}
	return newCartView(v.([]domain.CartLine)), nil
}

// Clear empties a buyer's cart outside any order transaction.
func (s *CartService) Clear(ctx context.Context, id domain.Identity) error {
	if err := s.Carts.Clear(ctx, id.BuyerID); err != nil {
		return err
	}
	s.invalidate(ctx, id.BuyerID)
	return nil
}

func (s *CartService) invalidate(ctx context.Context, buyerID string) {
	if err := s.Cache.Delete(ctx, buyerID); err != nil {
		zap.L().Warn("cart.cache.delete", zap.String("component", "cart"), zap.String("buyer_id", buyerID), zap.Error(err))
	}
}
