package repos

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"basecamp/internal/domain"
)

// InventoryRepo is the persistent half of the inventory ledger.
type InventoryRepo struct{ db sqlx.ExtContext }

func NewInventoryRepo(db *sqlx.DB) *InventoryRepo { return &InventoryRepo{db: db} }

// WithTx returns a copy bound to tx so reservations commit or roll back with the order.
func (r *InventoryRepo) WithTx(tx *sqlx.Tx) *InventoryRepo { return &InventoryRepo{db: tx} }

// Row used by admin inventory pages
type InventoryRow struct {
	domain.VariantStock
	Title string `db:"title" json:"title"`
}

// ListAll returns all variant rows with product titles.
func (r *InventoryRepo) ListAll(ctx context.Context) ([]InventoryRow, error) {
	rows := []InventoryRow{}
	err := sqlx.SelectContext(ctx, r.db, &rows, `
		SELECT v.product_id, v.size, v.color, v.stock, v.updated_at, p.title
		FROM variant_stock v
		JOIN products p ON p.id = v.product_id
		ORDER BY p.title, v.size, v.color
	`)
	return rows, err
}

// Stock returns the current counter for one variant, or domain.ErrNotFound.
func (r *InventoryRepo) Stock(ctx context.Context, k domain.VariantKey) (int, error) {
	var qty int
	err := sqlx.GetContext(ctx, r.db, &qty, `
		SELECT stock FROM variant_stock
		WHERE product_id = ? AND size = ? AND color = ?
	`, k.ProductID, k.Size, k.Color)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	return qty, err
}

// Reserve atomically subtracts qty if enough stock exists. The check and the
// decrement are one statement; there is no read-then-write window.
func (r *InventoryRepo) Reserve(ctx context.Context, k domain.VariantKey, qty int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE variant_stock
		SET stock = stock - ?, updated_at = ?
		WHERE product_id = ? AND size = ? AND color = ? AND stock >= ?
	`, qty, time.Now().UTC(), k.ProductID, k.Size, k.Color, qty)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &domain.InsufficientStockError{Key: k, Requested: qty}
	}
	return nil
}

// Release returns qty units to the variant, the inverse of Reserve.
func (r *InventoryRepo) Release(ctx context.Context, k domain.VariantKey, qty int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE variant_stock
		SET stock = stock + ?, updated_at = ?
		WHERE product_id = ? AND size = ? AND color = ?
	`, qty, time.Now().UTC(), k.ProductID, k.Size, k.Color)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Restock sets the stock for a variant, creating the row if needed.
// An unknown product yields domain.ErrNotFound.
func (r *InventoryRepo) Restock(ctx context.Context, k domain.VariantKey, stock int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO variant_stock(product_id, size, color, stock, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(product_id, size, color) DO UPDATE SET stock = excluded.stock, updated_at = excluded.updated_at
	`, k.ProductID, k.Size, k.Color, stock, time.Now().UTC())
	if isForeignKeyViolation(err) {
		return domain.ErrNotFound
	}
	return err
}
