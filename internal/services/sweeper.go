package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"basecamp/internal/repos"
)

// IntentSweeper expires gateway intents that never resolved. Intents hold no
// stock, so expiry only closes the bookkeeping; a later valid signature still
// produces the order.
type IntentSweeper struct {
	Intents  *repos.PaymentRepo
	TTL      time.Duration
	Interval time.Duration
	Now      func() time.Time
}

func NewIntentSweeper(intents *repos.PaymentRepo, ttl, interval time.Duration) *IntentSweeper {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &IntentSweeper{
		Intents:  intents,
		TTL:      ttl,
		Interval: interval,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *IntentSweeper) SweepOnce(ctx context.Context) (int64, error) {
	return s.Intents.ExpireBefore(ctx, s.Now().Add(-s.TTL))
}

// Run sweeps on every tick until ctx is done.
func (s *IntentSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := s.SweepOnce(ctx)
			if err != nil {
				zap.L().Error("payment.intent.sweep", zap.String("component", "sweeper"), zap.Error(err))
				continue
			}
			if n > 0 {
				zap.L().Info("payment.intent.expired", zap.String("component", "sweeper"), zap.Int64("count", n))
			}
		case <-ctx.Done():
			return
		}
	}
}
