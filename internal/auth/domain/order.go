package domain

import "time"

type OrderStatus string

const (
	OrderOpen      OrderStatus = "open"
	OrderPlaced    OrderStatus = "placed"
	OrderFulfilled OrderStatus = "fulfilled"
	OrderCancelled OrderStatus = "cancelled"
)

// Order is the minimum of the storefront order needed here: every new
// account starts with one open, empty order.
type Order struct {
	ID            string
	UserID        string
	Status        OrderStatus
	TotalCents    int64
	DateFulfilled *time.Time
	CreatedAt     time.Time
}
