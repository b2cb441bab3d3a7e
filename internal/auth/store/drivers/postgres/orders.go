package postgres

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/storefront/internal/auth/domain"
)

type ordersRepo struct {
	db DBTX
}

func (r *ordersRepo) CreateOrder(ctx context.Context, o domain.Order) error {
	var fulfilled sql.NullTime
	if o.DateFulfilled != nil {
		fulfilled = sql.NullTime{Time: *o.DateFulfilled, Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, status, total_cents, date_fulfilled, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		o.ID, o.UserID, string(o.Status), o.TotalCents, fulfilled, o.CreatedAt)
	return mapError(err)
}

func (r *ordersRepo) ListUserOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, status, total_cents, date_fulfilled, created_at FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC`,
		userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Order
	for rows.Next() {
		var (
			o         domain.Order
			status    string
			fulfilled sql.NullTime
		)
		if err := rows.Scan(&o.ID, &o.UserID, &status, &o.TotalCents, &fulfilled, &o.CreatedAt); err != nil {
			return nil, err
		}
		o.Status = domain.OrderStatus(status)
		if fulfilled.Valid {
			t := fulfilled.Time
			o.DateFulfilled = &t
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
