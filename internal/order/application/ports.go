package application

import (
	"context"

	"github.com/dmehra2102/medsupply-orders/internal/order/domain"
)

type ListFilter struct {
	Status domain.OrderStatus
	Limit  int
}

// OrderRepository is the authoritative order store. Create must be atomic: on
// error no customer, order or item row survives.
type OrderRepository interface {
	Create(ctx context.Context, n domain.NewOrder) (o domain.Order, replayed bool, err error)
	Get(ctx context.Context, id int64) (domain.Order, error)
	List(ctx context.Context, f ListFilter) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus) (domain.Order, error)
	Delete(ctx context.Context, id int64) error
}

// IdempotencyCache is a fast path in front of the repository's unique key.
type IdempotencyCache interface {
	Lookup(ctx context.Context, key string) (string, bool, error)
	Remember(ctx context.Context, key, value string) error
}
