package repos

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"basecamp/internal/domain"
)

// AddressRepo is the read side of the address book collaborator.
type AddressRepo struct{ db *sqlx.DB }

func NewAddressRepo(db *sqlx.DB) *AddressRepo { return &AddressRepo{db: db} }

const addressCols = `id, buyer_id, recipient_name, phone, line1, line2, city, state, postal_code, is_default`

// List returns the buyer's addresses, default first.
func (r *AddressRepo) List(ctx context.Context, buyerID string) ([]domain.Address, error) {
	out := []domain.Address{}
	err := r.db.SelectContext(ctx, &out, `
		SELECT `+addressCols+` FROM addresses
		WHERE buyer_id = ?
		ORDER BY is_default DESC, created_at
	`, buyerID)
	return out, err
}

func (r *AddressRepo) Get(ctx context.Context, buyerID, id string) (domain.Address, error) {
	var a domain.Address
	err := r.db.GetContext(ctx, &a, `
		SELECT `+addressCols+` FROM addresses WHERE buyer_id = ? AND id = ?
	`, buyerID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return a, domain.ErrNotFound
	}
	return a, err
}

// Insert adds an address. A new default clears the buyer's previous default.
func (r *AddressRepo) Insert(ctx context.Context, a domain.Address) error {
	return InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if a.IsDefault {
			if _, err := tx.ExecContext(ctx, `UPDATE addresses SET is_default = 0 WHERE buyer_id = ?`, a.BuyerID); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO addresses(`+addressCols+`)
			VALUES (?,?,?,?,?,?,?,?,?,?)
		`, a.ID, a.BuyerID, a.RecipientName, a.Phone, a.Line1, a.Line2, a.City, a.State, a.PostalCode, a.IsDefault)
		return err
	})
}
