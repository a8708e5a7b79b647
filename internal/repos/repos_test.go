package repos_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"basecamp/internal/domain"
	"basecamp/internal/repos"
)

func openTest(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenDB_SeedsCatalogAndUsers(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()

	price, err := repos.NewProductRepo(db).PriceOf(ctx, "tee-summit")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("499")))

	u, err := repos.NewUserRepo(db).ByEmail(ctx, "ADMIN@basecamp.test")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, u.Role)

	addrs, err := repos.NewAddressRepo(db).List(ctx, "u-asha")
	require.NoError(t, err)
	require.Len(t, addrs, 1)
	assert.True(t, addrs[0].IsDefault)
	assert.Empty(t, addrs[0].MissingField())
}

func TestRunMigrations_IsIdempotent(t *testing.T) {
	db := openTest(t)
	require.NoError(t, repos.RunMigrations(db.DB))
}

func TestInventory_ReserveNeverGoesNegative(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	inv := repos.NewInventoryRepo(db)
	k := domain.VariantKey{ProductID: "tee-summit", Size: "L", Color: "Blue"}

	require.NoError(t, inv.Reserve(ctx, k, 2))
	err := inv.Reserve(ctx, k, 2)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	qty, err := inv.Stock(ctx, k)
	require.NoError(t, err)
	assert.Equal(t, 1, qty, "failed reservation must leave stock unchanged")

	require.NoError(t, inv.Release(ctx, k, 2))
	qty, _ = inv.Stock(ctx, k)
	assert.Equal(t, 3, qty)
}

func TestInventory_UnknownVariant(t *testing.T) {
	db := openTest(t)
	inv := repos.NewInventoryRepo(db)
	k := domain.VariantKey{ProductID: "tee-summit", Size: "XXL", Color: "Gold"}

	assert.ErrorIs(t, inv.Reserve(context.Background(), k, 1), domain.ErrInsufficientStock)
	_, err := inv.Stock(context.Background(), k)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInventory_ConcurrentReserveNoOversell(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	inv := repos.NewInventoryRepo(db)
	k := domain.VariantKey{ProductID: "tee-summit", Size: "M", Color: "Red"}
	require.NoError(t, inv.Restock(ctx, k, 5))

	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if inv.Reserve(ctx, k, 1) == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), ok.Load())
	qty, _ := inv.Stock(ctx, k)
	assert.Equal(t, 0, qty)
}

func TestInventory_ReserveRollsBackWithTx(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	inv := repos.NewInventoryRepo(db)
	k := domain.VariantKey{ProductID: "jacket-ridge", Size: "M", Color: "Black"}

	err := repos.InTx(ctx, db, func(tx *sqlx.Tx) error {
		if err := inv.WithTx(tx).Reserve(ctx, k, 3); err != nil {
			return err
		}
		return inv.WithTx(tx).Reserve(ctx, domain.VariantKey{ProductID: "jacket-ridge", Size: "L", Color: "Black"}, 1)
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	qty, _ := inv.Stock(ctx, k)
	assert.Equal(t, 4, qty)
}

func TestCart_UpsertMergesByKeyAndKeepsPrice(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	carts := repos.NewCartRepo(db)
	k := domain.VariantKey{ProductID: "tee-summit", Size: "M", Color: "Red"}

	first, err := carts.Upsert(ctx, "u-asha", k, 1, decimal.NewFromInt(499))
	require.NoError(t, err)
	second, err := carts.Upsert(ctx, "u-asha", k, 1, decimal.NewFromInt(599))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.Quantity)
	assert.True(t, second.UnitPrice.Equal(decimal.NewFromInt(499)))

	lines, err := carts.Lines(ctx, "u-asha")
	require.NoError(t, err)
	assert.Len(t, lines, 1)

	other, err := carts.Lines(ctx, "u-ravi")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestCart_SetQtyRemoveClear(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	carts := repos.NewCartRepo(db)

	a, _ := carts.Upsert(ctx, "u-asha", domain.VariantKey{ProductID: "tee-summit", Size: "S", Color: "Red"}, 1, decimal.NewFromInt(499))
	b, _ := carts.Upsert(ctx, "u-asha", domain.VariantKey{ProductID: "plan-core", Size: "STD", Color: "NA"}, 1, decimal.NewFromInt(799))

	got, err := carts.SetQty(ctx, "u-asha", a.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Quantity)

	_, err = carts.SetQty(ctx, "u-ravi", a.ID, 4)
	assert.ErrorIs(t, err, domain.ErrNotFound, "lines are scoped to their buyer")

	require.NoError(t, carts.Remove(ctx, "u-asha", b.ID))
	require.NoError(t, carts.Remove(ctx, "u-asha", b.ID))

	lines, _ := carts.Lines(ctx, "u-asha")
	require.Len(t, lines, 1)
	assert.Equal(t, a.ID, lines[0].ID)

	require.NoError(t, carts.Clear(ctx, "u-asha"))
	lines, _ = carts.Lines(ctx, "u-asha")
	assert.Empty(t, lines)
}

func sampleOrder(id, buyer string) domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:      id,
		BuyerID: buyer,
		LineItems: []domain.OrderLine{
			{ProductID: "tee-summit", Size: "M", Color: "Red", Quantity: 2, UnitPriceAtPurchase: decimal.NewFromInt(499)},
		},
		Address:       domain.Address{ID: "addr-asha-home", RecipientName: "Asha Rao", Phone: "1", Line1: "x", City: "Pune", State: "MH", PostalCode: "411001"},
		Subtotal:      decimal.NewFromInt(998),
		TaxTotal:      decimal.Zero,
		DiscountTotal: decimal.Zero,
		GrandTotal:    decimal.NewFromInt(998),
		Currency:      "INR",
		PaymentMethod: domain.PaymentCOD,
		Payment:       domain.PaymentRecord{Gateway: "COD", Status: domain.PaymentPending},
		Status:        domain.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestOrders_InsertGetAndTokenUniqueness(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	orders := repos.NewOrderRepo(db)

	require.NoError(t, orders.Insert(ctx, sampleOrder("o-1", "u-asha"), "tok-1"))

	got, err := orders.Get(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", got.Address.RecipientName)
	require.Len(t, got.LineItems, 1)
	assert.True(t, got.GrandTotal.Equal(decimal.NewFromInt(998)))
	assert.Equal(t, domain.PaymentPending, got.PaymentStatus())

	byTok, err := orders.FindByToken(ctx, "u-asha", "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "o-1", byTok.ID)

	err = orders.Insert(ctx, sampleOrder("o-2", "u-asha"), "tok-1")
	assert.True(t, repos.IsUniqueViolation(err), "got %v", err)

	// tokens are scoped per buyer and COD orders have no external id
	require.NoError(t, orders.Insert(ctx, sampleOrder("o-3", "u-ravi"), "tok-1"))
	require.NoError(t, orders.Insert(ctx, sampleOrder("o-4", "u-ravi"), ""))

	_, err = orders.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOrders_GuardedStatusUpdateAndHistory(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	orders := repos.NewOrderRepo(db)
	require.NoError(t, orders.Insert(ctx, sampleOrder("o-1", "u-asha"), ""))

	now := time.Now().UTC()
	ok, err := orders.UpdateStatus(ctx, "o-1", domain.StatusPending, domain.StatusConfirmed, now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = orders.UpdateStatus(ctx, "o-1", domain.StatusPending, domain.StatusCancelled, now)
	require.NoError(t, err)
	assert.False(t, ok, "stale from-status must not apply")

	require.NoError(t, orders.AppendStatusLog(ctx, domain.StatusChange{OrderID: "o-1", From: domain.StatusPending, To: domain.StatusConfirmed, Actor: "u-admin", At: now}))
	hist, err := orders.History(ctx, "o-1")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, domain.StatusConfirmed, hist[0].To)
}

func TestOrders_ListFilters(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	orders := repos.NewOrderRepo(db)
	require.NoError(t, orders.Insert(ctx, sampleOrder("o-1", "u-asha"), ""))
	require.NoError(t, orders.Insert(ctx, sampleOrder("o-2", "u-ravi"), ""))
	_, err := orders.UpdateStatus(ctx, "o-2", domain.StatusPending, domain.StatusConfirmed, time.Now().UTC())
	require.NoError(t, err)

	all, err := orders.List(ctx, domain.OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	for _, o := range all {
		assert.Len(t, o.LineItems, 1)
	}

	confirmed, err := orders.List(ctx, domain.OrderFilter{Status: domain.StatusConfirmed})
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
	assert.Equal(t, "o-2", confirmed[0].ID)

	mine, err := orders.List(ctx, domain.OrderFilter{BuyerID: "u-asha"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "o-1", mine[0].ID)
}

func TestPayments_IntentLifecycle(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	pays := repos.NewPaymentRepo(db)
	old := time.Now().UTC().Add(-2 * time.Hour)

	in := domain.PaymentIntent{
		ExternalOrderID: "order_A",
		BuyerID:         "u-asha",
		Gateway:         "sandbox",
		Proposal:        domain.Proposal{GrandTotal: decimal.NewFromInt(998), Currency: "INR"},
		AmountMinor:     99800,
		Currency:        "INR",
		Status:          domain.IntentPending,
		CreatedAt:       old,
		UpdatedAt:       old,
	}
	require.NoError(t, pays.Save(ctx, in))
	in.ExternalOrderID, in.CreatedAt = "order_B", time.Now().UTC()
	require.NoError(t, pays.Save(ctx, in))

	n, err := pays.ExpireBefore(ctx, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	a, err := pays.Get(ctx, "order_A")
	require.NoError(t, err)
	assert.Equal(t, domain.IntentExpired, a.Status)
	assert.True(t, a.Proposal.GrandTotal.Equal(decimal.NewFromInt(998)))

	ok, err := pays.MarkFailed(ctx, "order_B", "card declined")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = pays.MarkFailed(ctx, "order_B", "again")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, pays.MarkPaid(ctx, "order_B", "o-9"))
	b, _ := pays.Get(ctx, "order_B")
	assert.Equal(t, domain.IntentPaid, b.Status)
	assert.Equal(t, "o-9", b.OrderID)

	_, err = pays.Get(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSessions_BindAndUnbind(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	users := repos.NewUserRepo(db)

	require.NoError(t, users.BindSession(ctx, "sid-1", "u-ravi"))
	u, err := users.SessionUser(ctx, "sid-1", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "u-ravi", u.ID)

	require.NoError(t, users.UnbindSession(ctx, "sid-1"))
	_, err = users.SessionUser(ctx, "sid-1", time.Hour)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSessions_IdleExpiry(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	users := repos.NewUserRepo(db)

	require.NoError(t, users.BindSession(ctx, "sid-old", "u-ravi"))
	_, err := db.ExecContext(ctx, `UPDATE sessions SET last_seen=datetime('now','-2 hours') WHERE id=?`, "sid-old")
	require.NoError(t, err)

	_, err = users.SessionUser(ctx, "sid-old", time.Hour)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	u, err := users.SessionUser(ctx, "sid-old", 3*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "u-ravi", u.ID)
}

func TestInventory_RestockUnknownProduct(t *testing.T) {
	db := openTest(t)
	err := repos.NewInventoryRepo(db).Restock(context.Background(), domain.VariantKey{ProductID: "ghost", Size: "M", Color: "Red"}, 3)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
