package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmehra2102/medsupply-orders/internal/catalog/domain"
	"github.com/dmehra2102/medsupply-orders/pkg/apperr"
)

type Service struct {
	log  *slog.Logger
	repo ProductRepository
}

func NewService(log *slog.Logger, repo ProductRepository) *Service {
	return &Service{log: log, repo: repo}
}

func (s *Service) Create(ctx context.Context, p domain.Product) (domain.Product, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return domain.Product{}, err
	}
	created, err := s.repo.CreateProduct(ctx, p)
	if err != nil {
		return domain.Product{}, fmt.Errorf("create product %q: %w", p.Name, err)
	}
	s.log.Info("product created", "product_id", created.ID, "name", created.Name, "price", created.Price.StringFixed(2))
	return created, nil
}

func (s *Service) Get(ctx context.Context, id int64) (domain.Product, error) {
	if id <= 0 {
		return domain.Product{}, apperr.NewValidation("id", "must be positive")
	}
	return s.repo.GetProduct(ctx, id)
}

func (s *Service) Update(ctx context.Context, p domain.Product) (domain.Product, error) {
	if p.ID <= 0 {
		return domain.Product{}, apperr.NewValidation("id", "must be positive")
	}
	p.Normalize()
	if err := p.Validate(); err != nil {
		return domain.Product{}, err
	}
	updated, err := s.repo.UpdateProduct(ctx, p)
	if err != nil {
		return domain.Product{}, fmt.Errorf("update product %d: %w", p.ID, err)
	}
	s.log.Info("product updated", "product_id", updated.ID, "price", updated.Price.StringFixed(2))
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return apperr.NewValidation("id", "must be positive")
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	s.log.Info("product deleted", "product_id", id)
	return nil
}

func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

// StockProjector keeps the informational stock_quantity in step with placed
// orders. It never gates order creation.
type StockProjector struct {
	log  *slog.Logger
	repo StockRepository
}

func NewStockProjector(log *slog.Logger, repo StockRepository) *StockProjector {
	return &StockProjector{log: log, repo: repo}
}

func (p *StockProjector) Apply(ctx context.Context, orderID int64, movements []domain.StockMovement) error {
	filtered := movements[:0:0]
	for _, m := range movements {
		if m.ProductID <= 0 || m.Quantity <= 0 {
			continue
		}
		filtered = append(filtered, m)
	}
	if len(filtered) == 0 {
		return nil
	}
	if err := p.repo.ApplyStockMovements(ctx, filtered); err != nil {
		return fmt.Errorf("apply stock for order %d: %w", orderID, err)
	}
	p.log.Info("stock projected", "order_id", orderID, "lines", len(filtered))
	return nil
}
