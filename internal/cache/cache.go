package cache

import (
	"context"
	"errors"

	"basecamp/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

// CartCache holds display copies of a buyer's cart lines. It is never read on the checkout path.
type CartCache interface {
	Get(ctx context.Context, buyerID string) ([]domain.CartLine, error)
	Set(ctx context.Context, buyerID string, lines []domain.CartLine) error
	Delete(ctx context.Context, buyerID string) error
}

// Nop is used when no Redis address is configured; every read misses.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]domain.CartLine, error) { return nil, ErrCacheMiss }
func (Nop) Set(context.Context, string, []domain.CartLine) error   { return nil }
func (Nop) Delete(context.Context, string) error                   { return nil }
