package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/storefront/internal/model"
)

// OrderRepo persists orders and their product links.
type OrderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

// Create inserts an unpaid order for userID referencing productIDs.  The
// order row and its links are written in one transaction.
func (r *OrderRepo) Create(ctx context.Context, userID uint64, productIDs []string) (model.Order, error) {
	o := model.Order{
		ID:         uuid.NewString(),
		UserID:     userID,
		IsPaid:     false,
		ProductIDs: append([]string{}, productIDs...),
		CreatedAt:  time.Now().UTC(),
	}
	o.UpdatedAt = o.CreatedAt

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Order{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO orders (id, user_id, is_paid, created_at, updated_at) VALUES (?,?,?,?,?)",
		o.ID, o.UserID, o.IsPaid, o.CreatedAt, o.UpdatedAt); err != nil {
		return model.Order{}, err
	}
	for _, pid := range o.ProductIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO order_products (order_id, product_id) VALUES (?,?)", o.ID, pid); err != nil {
			return model.Order{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return model.Order{}, err
	}
	committed = true
	return o, nil
}

// GetByID loads an order and its product ids.  It returns
// ErrOrderNotFound if no row matches.
func (r *OrderRepo) GetByID(ctx context.Context, id string) (model.Order, error) {
	var o model.Order
	err := r.db.QueryRowContext(ctx,
		"SELECT id, user_id, is_paid, created_at, updated_at FROM orders WHERE id = ?", id).
		Scan(&o.ID, &o.UserID, &o.IsPaid, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Order{}, ErrOrderNotFound
		}
		return model.Order{}, err
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT product_id FROM order_products WHERE order_id = ? ORDER BY product_id", id)
	if err != nil {
		return model.Order{}, err
	}
	defer rows.Close()
	o.ProductIDs = []string{}
	for rows.Next() {
		var pid string
		if err := rows.Scan(&pid); err != nil {
			return model.Order{}, err
		}
		o.ProductIDs = append(o.ProductIDs, pid)
	}
	if err := rows.Err(); err != nil {
		return model.Order{}, err
	}
	return o, nil
}

// MarkPaid sets is_paid on the order.  Marking an already paid order is a
// no-op; an unknown id yields ErrOrderNotFound.
func (r *OrderRepo) MarkPaid(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE orders SET is_paid = 1, updated_at = ? WHERE id = ? AND is_paid = 0", time.Now().UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var exists int
	err = r.db.QueryRowContext(ctx, "SELECT 1 FROM orders WHERE id = ?", id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrOrderNotFound
	}
	return err
}
