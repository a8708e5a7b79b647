package repos

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"basecamp/internal/domain"
)

type OrderRepo struct{ db sqlx.ExtContext }

func NewOrderRepo(db *sqlx.DB) *OrderRepo { return &OrderRepo{db: db} }

func (r *OrderRepo) WithTx(tx *sqlx.Tx) *OrderRepo { return &OrderRepo{db: tx} }

// orderRow is the flat header layout; the address snapshot is stored as JSON.
type orderRow struct {
	ID                string          `db:"id"`
	BuyerID           string          `db:"buyer_id"`
	AddressJSON       string          `db:"address_json"`
	Subtotal          decimal.Decimal `db:"subtotal"`
	TaxTotal          decimal.Decimal `db:"tax_total"`
	DiscountTotal     decimal.Decimal `db:"discount_total"`
	GrandTotal        decimal.Decimal `db:"grand_total"`
	Currency          string          `db:"currency"`
	PaymentMethod     string          `db:"payment_method"`
	PaymentGateway    string          `db:"payment_gateway"`
	ExternalOrderID   sql.NullString  `db:"external_order_id"`
	ExternalPaymentID string          `db:"external_payment_id"`
	Signature         string          `db:"signature"`
	PaymentStatus     string          `db:"payment_status"`
	Status            string          `db:"status"`
	RequestToken      sql.NullString  `db:"request_token"`
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

type orderItemRow struct {
	OrderID   string          `db:"order_id"`
	LineNo    int             `db:"line_no"`
	ProductID string          `db:"product_id"`
	Size      string          `db:"size"`
	Color     string          `db:"color"`
	Qty       int             `db:"qty"`
	UnitPrice decimal.Decimal `db:"unit_price"`
}

const orderCols = `id, buyer_id, address_json, subtotal, tax_total, discount_total, grand_total, currency,
	payment_method, payment_gateway, external_order_id, external_payment_id, signature, payment_status,
	status, request_token, created_at, updated_at`

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (row orderRow) toDomain(items []orderItemRow) (domain.Order, error) {
	o := domain.Order{
		ID:            row.ID,
		BuyerID:       row.BuyerID,
		Subtotal:      row.Subtotal,
		TaxTotal:      row.TaxTotal,
		DiscountTotal: row.DiscountTotal,
		GrandTotal:    row.GrandTotal,
		Currency:      row.Currency,
		PaymentMethod: domain.PaymentMethod(row.PaymentMethod),
		Payment: domain.PaymentRecord{
			Gateway:           row.PaymentGateway,
			ExternalOrderID:   row.ExternalOrderID.String,
			ExternalPaymentID: row.ExternalPaymentID,
			Signature:         row.Signature,
			Status:            domain.PaymentStatus(row.PaymentStatus),
		},
		Status:    domain.OrderStatus(row.Status),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
		LineItems: make([]domain.OrderLine, 0, len(items)),
	}
	if err := json.Unmarshal([]byte(row.AddressJSON), &o.Address); err != nil {
		return o, err
	}
	for _, it := range items {
		o.LineItems = append(o.LineItems, domain.OrderLine{
			ProductID:           it.ProductID,
			Size:                it.Size,
			Color:               it.Color,
			Quantity:            it.Qty,
			UnitPriceAtPurchase: it.UnitPrice,
		})
	}
	return o, nil
}

// Insert persists the header and every line item of a new order.
func (r *OrderRepo) Insert(ctx context.Context, o domain.Order, requestToken string) error {
	addr, err := json.Marshal(o.Address)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO orders(`+orderCols+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`, o.ID, o.BuyerID, string(addr), o.Subtotal, o.TaxTotal, o.DiscountTotal, o.GrandTotal, o.Currency,
		string(o.PaymentMethod), o.Payment.Gateway, nullable(o.Payment.ExternalOrderID), o.Payment.ExternalPaymentID,
		o.Payment.Signature, string(o.Payment.Status), string(o.Status), nullable(requestToken), o.CreatedAt, o.UpdatedAt); err != nil {
		return err
	}
	for i, l := range o.LineItems {
		if _, err := r.db.ExecContext(ctx, `
			INSERT INTO order_items(order_id, line_no, product_id, size, color, qty, unit_price)
			VALUES (?,?,?,?,?,?,?)
		`, o.ID, i+1, l.ProductID, l.Size, l.Color, l.Quantity, l.UnitPriceAtPurchase); err != nil {
			return err
		}
	}
	return nil
}

func (r *OrderRepo) load(ctx context.Context, where string, args ...any) (domain.Order, error) {
	var row orderRow
	err := sqlx.GetContext(ctx, r.db, &row, `SELECT `+orderCols+` FROM orders WHERE `+where, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	var items []orderItemRow
	if err := sqlx.SelectContext(ctx, r.db, &items, `
		SELECT order_id, line_no, product_id, size, color, qty, unit_price
		FROM order_items WHERE order_id = ? ORDER BY line_no
	`, row.ID); err != nil {
		return domain.Order{}, err
	}
	return row.toDomain(items)
}

func (r *OrderRepo) Get(ctx context.Context, id string) (domain.Order, error) {
	return r.load(ctx, `id = ?`, id)
}

// FindByToken returns the order a buyer already placed with this request token.
func (r *OrderRepo) FindByToken(ctx context.Context, buyerID, token string) (domain.Order, error) {
	return r.load(ctx, `buyer_id = ? AND request_token = ?`, buyerID, token)
}

func (r *OrderRepo) FindByExternalOrderID(ctx context.Context, externalOrderID string) (domain.Order, error) {
	return r.load(ctx, `external_order_id = ?`, externalOrderID)
}

// List returns headers with their items, newest first.
func (r *OrderRepo) List(ctx context.Context, f domain.OrderFilter) ([]domain.Order, error) {
	where := `1 = 1`
	args := []any{}
	if f.Status != "" {
		where += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if f.BuyerID != "" {
		where += ` AND buyer_id = ?`
		args = append(args, f.BuyerID)
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)

	var rows []orderRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, `
		SELECT `+orderCols+` FROM orders
		WHERE `+where+`
		ORDER BY created_at DESC, id
		LIMIT ?`, args...); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []domain.Order{}, nil
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	query, inArgs, err := sqlx.In(`
		SELECT order_id, line_no, product_id, size, color, qty, unit_price
		FROM order_items WHERE order_id IN (?) ORDER BY order_id, line_no`, ids)
	if err != nil {
		return nil, err
	}
	var items []orderItemRow
	if err := sqlx.SelectContext(ctx, r.db, &items, r.db.Rebind(query), inArgs...); err != nil {
		return nil, err
	}
	byOrder := map[string][]orderItemRow{}
	for _, it := range items {
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}

	out := make([]domain.Order, 0, len(rows))
	for _, row := range rows {
		o, err := row.toDomain(byOrder[row.ID])
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// UpdateStatus moves an order from one status to another only if it is still
// in from. It reports false when another writer got there first.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(to), at, id, string(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *OrderRepo) AppendStatusLog(ctx context.Context, c domain.StatusChange) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO order_status_log(order_id, from_status, to_status, actor, at)
		VALUES (?,?,?,?,?)
	`, c.OrderID, string(c.From), string(c.To), c.Actor, c.At)
	return err
}

func (r *OrderRepo) History(ctx context.Context, orderID string) ([]domain.StatusChange, error) {
	out := []domain.StatusChange{}
	err := sqlx.SelectContext(ctx, r.db, &out, `
		SELECT order_id, from_status, to_status, actor, at
		FROM order_status_log WHERE order_id = ? ORDER BY id
	`, orderID)
	return out, err
}
