package sqlite

import (
	"context"

	"github.com/aussiebroadwan/storefront/internal/auth/domain"
	"github.com/aussiebroadwan/storefront/internal/auth/store/drivers/sqlite/gen"
)

type ordersRepo struct {
	q *gen.Queries
}

func (r *ordersRepo) CreateOrder(ctx context.Context, o domain.Order) error {
	return r.q.CreateOrder(ctx, gen.CreateOrderParams{
		ID:            o.ID,
		UserID:        o.UserID,
		Status:        string(o.Status),
		TotalCents:    o.TotalCents,
		DateFulfilled: mapOptionalTime(o.DateFulfilled),
		CreatedAt:     o.CreatedAt.UTC(),
	})
}

func (r *ordersRepo) ListUserOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := r.q.ListUserOrders(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapOrder(row))
	}
	return out, nil
}
