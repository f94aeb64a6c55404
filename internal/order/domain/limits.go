package domain

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/medsupply-orders/pkg/apperr"
)

// MaxQuantity caps a single cart line.
const MaxQuantity = 1_000_000

// MaxAmount is the largest money value the order tables hold (NUMERIC(14,2)).
var MaxAmount = decimal.RequireFromString("999999999999.99")

// Validate rejects cart lines whose quantity is outside 1..MaxQuantity.
func (n NewOrder) Validate() error {
	for i, it := range n.Items {
		if it.Quantity <= 0 || it.Quantity > MaxQuantity {
			return apperr.NewValidation(
				fmt.Sprintf("items[%d].quantity", i),
				fmt.Sprintf("must be between 1 and %d", MaxQuantity),
			)
		}
	}
	return nil
}

// CheckLimits reports the first line subtotal or order amount too large to
// store. Call it after Finalize.
func (o Order) CheckLimits() error {
	for i, it := range o.Items {
		if it.Subtotal.GreaterThan(MaxAmount) {
			return apperr.NewValidation(fmt.Sprintf("items[%d].quantity", i), "line subtotal "+overLimit(it.Subtotal))
		}
	}
	if o.TotalAmount.GreaterThan(MaxAmount) {
		return apperr.NewValidation("items", "order total "+overLimit(o.TotalAmount))
	}
	return nil
}

func overLimit(d decimal.Decimal) string {
	return fmt.Sprintf("%s exceeds %s", FormatNaira(d), FormatNaira(MaxAmount))
}
