package domain

import (
	"fmt"

	"github.com/dmehra2102/medsupply-orders/pkg/apperr"
)

var ErrOrderNotFound = fmt.Errorf("order %w", apperr.ErrNotFound)

// ProductNotFoundError aborts an order whose cart names a product the catalog no
// longer has.
type ProductNotFoundError struct {
	ID   int64
	Name string
}

func (e *ProductNotFoundError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("product %q is no longer available", e.Name)
	}
	return fmt.Sprintf("product #%d is no longer available", e.ID)
}

func (e *ProductNotFoundError) Unwrap() error { return apperr.ErrNotFound }

type LineItemReason string

const (
	ReasonUnknownProduct  LineItemReason = "unknown_product"
	ReasonInvalidQuantity LineItemReason = "invalid_quantity"
	ReasonAmountTooLarge  LineItemReason = "amount_too_large"
)

// LineItemError describes one cart line the pricing engine left out of the totals.
type LineItemError struct {
	Index       int
	ProductID   int64
	ProductName string
	Quantity    int
	Reason      LineItemReason
}

func (e *LineItemError) Error() string {
	switch e.Reason {
	case ReasonInvalidQuantity:
		return fmt.Sprintf("line %d (%s): quantity %d must be between 1 and %d", e.Index+1, e.label(), e.Quantity, MaxQuantity)
	case ReasonAmountTooLarge:
		return fmt.Sprintf("line %d (%s): subtotal for quantity %d exceeds %s", e.Index+1, e.label(), e.Quantity, FormatNaira(MaxAmount))
	default:
		return fmt.Sprintf("line %d (%s): product is not in the price list", e.Index+1, e.label())
	}
}

func (e *LineItemError) label() string {
	if e.ProductName != "" {
		return e.ProductName
	}
	return fmt.Sprintf("#%d", e.ProductID)
}
