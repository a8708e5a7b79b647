package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"basecamp/internal/domain"
)

// Breaker fails fast with domain.ErrGatewayUnavailable after repeated remote failures.
// Calls are never retried.
type Breaker struct {
	next Client
	cb   *gobreaker.CircuitBreaker[RemoteOrder]
}

func WithBreaker(next Client) *Breaker {
	st := gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// a cancelled caller says nothing about the provider's health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			zap.L().Warn("gateway.breaker",
				zap.String("component", "gateway"),
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker[RemoteOrder](st)}
}

func (b *Breaker) Name() string { return b.next.Name() }

func (b *Breaker) State() gobreaker.State { return b.cb.State() }

func (b *Breaker) CreateOrder(ctx context.Context, req CreateOrderRequest) (RemoteOrder, error) {
	out, err := b.cb.Execute(func() (RemoteOrder, error) {
		return b.next.CreateOrder(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return RemoteOrder{}, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	return out, err
}
