package application

import (
	"context"

	"github.com/dmehra2102/medsupply-orders/internal/catalog/domain"
)

type ProductRepository interface {
	CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error)
	GetProduct(ctx context.Context, id int64) (domain.Product, error)
	UpdateProduct(ctx context.Context, p domain.Product) (domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

type StockRepository interface {
	ApplyStockMovements(ctx context.Context, movements []domain.StockMovement) error
}
