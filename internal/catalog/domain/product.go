package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/medsupply-orders/pkg/apperr"
)

var ErrProductNotFound = fmt.Errorf("product %w", apperr.ErrNotFound)

type Product struct {
	ID            int64
	Name          string
	Description   string
	Price         decimal.Decimal
	Unit          string
	StockQuantity int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Normalize trims the free-text fields.
func (p *Product) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Unit = strings.ToUpper(strings.TrimSpace(p.Unit))
	p.Description = strings.TrimSpace(p.Description)
}

func (p Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return apperr.NewValidation("name", "is required")
	}
	if p.Price.IsNegative() {
		return apperr.NewValidation("price", "must not be negative")
	}
	if !p.Price.Equal(p.Price.Round(2)) {
		return apperr.NewValidation("price", "must have at most two decimal places")
	}
	if p.StockQuantity < 0 {
		return apperr.NewValidation("stock_quantity", "must not be negative")
	}
	return nil
}

// StockMovement is one informational stock adjustment derived from a placed order.
type StockMovement struct {
	ProductID int64
	Quantity  int
}
