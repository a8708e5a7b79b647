package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"basecamp/internal/domain"
	"basecamp/internal/metrics"
	"basecamp/internal/repos"
)

var ErrBadCreds = errors.New("invalid email or password")

// dummyHash keeps the unknown-email path as slow as a real comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("basecamp-dummy-password"), bcrypt.MinCost)

// AuthService binds opaque session ids to users. Sessions idle for longer
// than Idle stop resolving.
type AuthService struct {
	users   *repos.UserRepo
	idle    time.Duration
	metrics *metrics.Metrics
}

func NewAuthService(users *repos.UserRepo, idle time.Duration, m *metrics.Metrics) *AuthService {
	if idle <= 0 {
		idle = 24 * time.Hour
	}
	return &AuthService{users: users, idle: idle, metrics: m}
}

func (s *AuthService) Login(ctx context.Context, sid, email, password string) (_ *domain.User, err error) {
	ctx, uc := begin(ctx, s.metrics, "auth.login", "Login")
	defer func() { uc.end(err) }()

	u, err := s.users.ByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrBadCreds
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Hash), []byte(password)) != nil {
		return nil, ErrBadCreds
	}
	if err := s.users.BindSession(ctx, sid, u.ID); err != nil {
		return nil, err
	}
	uc.with(zap.String("user_id", u.ID))
	return u, nil
}

func (s *AuthService) Logout(ctx context.Context, sid string) error {
	return s.users.UnbindSession(ctx, sid)
}

// CurrentUser returns domain.ErrNotFound for unknown, unbound or idle sessions.
func (s *AuthService) CurrentUser(ctx context.Context, sid string) (*domain.User, error) {
	return s.users.SessionUser(ctx, sid, s.idle)
}
