package repos

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"basecamp/internal/domain"
)

// ProductRepo backs the catalog collaborator: prices and variant existence.
type ProductRepo struct{ db *sqlx.DB }

func NewProductRepo(db *sqlx.DB) *ProductRepo { return &ProductRepo{db: db} }

func (r *ProductRepo) Get(ctx context.Context, id string) (domain.Product, error) {
	var p domain.Product
	err := r.db.GetContext(ctx, &p, `
		SELECT id, title, category, price, active, created_at
		FROM products
		WHERE id = ?
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return p, domain.ErrNotFound
	}
	return p, err
}

// PriceOf returns the current price of an active product.
func (r *ProductRepo) PriceOf(ctx context.Context, id string) (decimal.Decimal, error) {
	p, err := r.Get(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	if !p.Active {
		return decimal.Zero, domain.ErrNotFound
	}
	return p.Price, nil
}

func (r *ProductRepo) VariantExists(ctx context.Context, k domain.VariantKey) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM variant_stock
		WHERE product_id = ? AND size = ? AND color = ?
	`, k.ProductID, k.Size, k.Color)
	return n > 0, err
}

// Upsert creates or replaces a product row. Used by seeding tools and tests.
func (r *ProductRepo) Upsert(ctx context.Context, p domain.Product) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products(id, title, category, price, active, created_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
		  title = excluded.title, category = excluded.category,
		  price = excluded.price, active = excluded.active
	`, p.ID, p.Title, p.Category, p.Price, p.Active)
	return err
}
