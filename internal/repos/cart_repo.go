package repos

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"basecamp/internal/domain"
)

type CartRepo struct{ db sqlx.ExtContext }

func NewCartRepo(db *sqlx.DB) *CartRepo { return &CartRepo{db: db} }

func (r *CartRepo) WithTx(tx *sqlx.Tx) *CartRepo { return &CartRepo{db: tx} }

const cartLineCols = `id, buyer_id, product_id, size, color, qty, unit_price, created_at, updated_at`

// Upsert adds qty to the buyer's line for k, creating it at price when absent.
// An existing line keeps its original unit price snapshot.
func (r *CartRepo) Upsert(ctx context.Context, buyerID string, k domain.VariantKey, qty int, price decimal.Decimal) (domain.CartLine, error) {
	now := time.Now().UTC()
	var line domain.CartLine
	err := sqlx.GetContext(ctx, r.db, &line, `
		INSERT INTO cart_lines(id, buyer_id, product_id, size, color, qty, unit_price, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?)
		ON CONFLICT(buyer_id, product_id, size, color) DO UPDATE
		SET qty = cart_lines.qty + excluded.qty, updated_at = excluded.updated_at
		RETURNING `+cartLineCols,
		uuid.NewString(), buyerID, k.ProductID, k.Size, k.Color, qty, price, now, now)
	return line, err
}

// Line returns one of the buyer's lines, or domain.ErrNotFound.
func (r *CartRepo) Line(ctx context.Context, buyerID, lineID string) (domain.CartLine, error) {
	var line domain.CartLine
	err := sqlx.GetContext(ctx, r.db, &line, `
		SELECT `+cartLineCols+` FROM cart_lines WHERE buyer_id = ? AND id = ?
	`, buyerID, lineID)
	if errors.Is(err, sql.ErrNoRows) {
		return line, domain.ErrNotFound
	}
	return line, err
}

// SetQty overwrites a line's quantity and returns the updated row.
func (r *CartRepo) SetQty(ctx context.Context, buyerID, lineID string, qty int) (domain.CartLine, error) {
	var line domain.CartLine
	err := sqlx.GetContext(ctx, r.db, &line, `
		UPDATE cart_lines SET qty = ?, updated_at = ?
		WHERE buyer_id = ? AND id = ?
		RETURNING `+cartLineCols,
		qty, time.Now().UTC(), buyerID, lineID)
	if errors.Is(err, sql.ErrNoRows) {
		return line, domain.ErrNotFound
	}
	return line, err
}

// Remove deletes a line. Removing a missing line is not an error.
func (r *CartRepo) Remove(ctx context.Context, buyerID, lineID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cart_lines WHERE buyer_id = ? AND id = ?`, buyerID, lineID)
	return err
}

// Lines returns the buyer's cart in insertion order.
func (r *CartRepo) Lines(ctx context.Context, buyerID string) ([]domain.CartLine, error) {
	out := []domain.CartLine{}
	err := sqlx.SelectContext(ctx, r.db, &out, `
		SELECT `+cartLineCols+` FROM cart_lines WHERE buyer_id = ? ORDER BY seq
	`, buyerID)
	return out, err
}

func (r *CartRepo) Clear(ctx context.Context, buyerID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cart_lines WHERE buyer_id = ?`, buyerID)
	return err
}
