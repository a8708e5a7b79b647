package repos

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"basecamp/internal/domain"
)

// PaymentRepo stores gateway payment intents until they resolve into an order.
type PaymentRepo struct{ db sqlx.ExtContext }

func NewPaymentRepo(db *sqlx.DB) *PaymentRepo { return &PaymentRepo{db: db} }

func (r *PaymentRepo) WithTx(tx *sqlx.Tx) *PaymentRepo { return &PaymentRepo{db: tx} }

type intentRow struct {
	ExternalOrderID string    `db:"external_order_id"`
	BuyerID         string    `db:"buyer_id"`
	Gateway         string    `db:"gateway"`
	ProposalJSON    string    `db:"proposal_json"`
	AmountMinor     int64     `db:"amount_minor"`
	Currency        string    `db:"currency"`
	Status          string    `db:"status"`
	FailureReason   string    `db:"failure_reason"`
	OrderID         string    `db:"order_id"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (r *PaymentRepo) Save(ctx context.Context, in domain.PaymentIntent) error {
	proposal, err := json.Marshal(in.Proposal)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO payment_intents(external_order_id, buyer_id, gateway, proposal_json, amount_minor,
		  currency, status, failure_reason, order_id, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
	`, in.ExternalOrderID, in.BuyerID, in.Gateway, string(proposal), in.AmountMinor,
		in.Currency, string(in.Status), in.FailureReason, in.OrderID, in.CreatedAt, in.UpdatedAt)
	return err
}

func (r *PaymentRepo) Get(ctx context.Context, externalOrderID string) (domain.PaymentIntent, error) {
	var row intentRow
	err := sqlx.GetContext(ctx, r.db, &row, `
		SELECT external_order_id, buyer_id, gateway, proposal_json, amount_minor, currency,
		       status, failure_reason, order_id, created_at, updated_at
		FROM payment_intents WHERE external_order_id = ?
	`, externalOrderID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PaymentIntent{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.PaymentIntent{}, err
	}
	in := domain.PaymentIntent{
		ExternalOrderID: row.ExternalOrderID,
		BuyerID:         row.BuyerID,
		Gateway:         row.Gateway,
		AmountMinor:     row.AmountMinor,
		Currency:        row.Currency,
		Status:          domain.IntentStatus(row.Status),
		FailureReason:   row.FailureReason,
		OrderID:         row.OrderID,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(row.ProposalJSON), &in.Proposal); err != nil {
		return domain.PaymentIntent{}, err
	}
	return in, nil
}

// MarkFailed moves an intent to FAILED if it is still in one of the from states.
func (r *PaymentRepo) MarkFailed(ctx context.Context, externalOrderID, reason string, from ...domain.IntentStatus) (bool, error) {
	if len(from) == 0 {
		from = []domain.IntentStatus{domain.IntentPending}
	}
	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}
	query, args, err := sqlx.In(`
		UPDATE payment_intents SET status = 'FAILED', failure_reason = ?, updated_at = ?
		WHERE external_order_id = ? AND status IN (?)
	`, reason, time.Now().UTC(), externalOrderID, states)
	if err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// MarkPaid records that the intent produced orderID. orderID may be empty when
// the capture could not be turned into an order.
func (r *PaymentRepo) MarkPaid(ctx context.Context, externalOrderID, orderID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE payment_intents SET status = 'PAID', order_id = ?, failure_reason = '', updated_at = ?
		WHERE external_order_id = ?
	`, orderID, time.Now().UTC(), externalOrderID)
	return err
}

// ExpireBefore marks every PENDING intent created before cutoff as EXPIRED.
func (r *PaymentRepo) ExpireBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE payment_intents SET status = 'EXPIRED', updated_at = ?
		WHERE status = 'PENDING' AND created_at < ?
	`, time.Now().UTC(), cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
