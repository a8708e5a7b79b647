package services_test

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"basecamp/internal/cache"
	"basecamp/internal/domain"
	"basecamp/internal/gateway"
	"basecamp/internal/metrics"
	"basecamp/internal/pricing"
	"basecamp/internal/repos"
	"basecamp/internal/services"
)

var (
	asha  = domain.Identity{BuyerID: "u-asha", Role: domain.RoleUser}
	ravi  = domain.Identity{BuyerID: "u-ravi", Role: domain.RoleUser}
	admin = domain.Identity{BuyerID: "u-admin", Role: domain.RoleAdmin}

	p1Red  = domain.VariantKey{ProductID: "P1", Size: "M", Color: "Red"}
	p2Blue = domain.VariantKey{ProductID: "P2", Size: "L", Color: "Blue"}
)

const (
	ashaAddr = "addr-asha-home"
	raviAddr = "addr-ravi-home"
)

type fixture struct {
	db       *sqlx.DB
	prods    *repos.ProductRepo
	intents  *repos.PaymentRepo
	inv      *services.InventoryService
	carts    *services.CartService
	checkout *services.CheckoutService
	orders   *services.OrderService
	payments *services.PaymentService
	sandbox  *gateway.Sandbox
	signer   gateway.Signer
	metrics  *metrics.Metrics
}

func newFixture(t *testing.T, c cache.CartCache) *fixture {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &fixture{db: db, prods: repos.NewProductRepo(db), intents: repos.NewPaymentRepo(db)}
	ctx := context.Background()
	require.NoError(t, f.prods.Upsert(ctx, domain.Product{ID: "P1", Title: "Trail Tee", Category: "shop", Price: decimal.NewFromInt(500), Active: true}))
	require.NoError(t, f.prods.Upsert(ctx, domain.Product{ID: "P2", Title: "Summit Cap", Category: "shop", Price: decimal.NewFromInt(250), Active: true}))

	f.metrics = metrics.New(prometheus.NewRegistry())
	f.inv = services.NewInventoryService(repos.NewInventoryRepo(db), f.metrics)
	require.NoError(t, f.inv.Restock(ctx, p1Red, 10))
	require.NoError(t, f.inv.Restock(ctx, p2Blue, 1))

	cartRepo := repos.NewCartRepo(db)
	f.carts = services.NewCartService(db, cartRepo, f.prods, c)
	f.checkout = services.NewCheckoutService(f.carts, repos.NewAddressRepo(db), pricing.Rules{}, "INR")
	f.orders = services.NewOrderService(db, repos.NewOrderRepo(db), cartRepo, f.inv, c, f.metrics)

	f.signer = gateway.NewSigner("test-secret")
	f.sandbox = gateway.NewSandbox(f.signer)
	f.payments = services.NewPaymentService(f.checkout, f.orders, f.intents, f.sandbox, f.signer, "key_test", f.metrics)
	return f
}

func (f *fixture) stock(t *testing.T, k domain.VariantKey) int {
	t.Helper()
	a, err := f.inv.Availability(context.Background(), k)
	require.NoError(t, err)
	return a.Qty
}

func (f *fixture) add(t *testing.T, id domain.Identity, k domain.VariantKey, qty int) domain.CartLine {
	t.Helper()
	l, err := f.carts.AddLine(context.Background(), id, k, qty)
	require.NoError(t, err)
	return l
}
