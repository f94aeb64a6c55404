package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaxonomyMatchesSentinels(t *testing.T) {
	v := NewValidation("items", "at least one item is required")
	c := &ConstraintError{Constraint: "products_name_key", Message: `product "Gauze" already exists`}
	tr := Transient("orders.create", context.DeadlineExceeded)

	assert.True(t, IsValidation(fmt.Errorf("create: %w", v)))
	assert.True(t, IsConstraint(c))
	assert.True(t, IsTransient(tr))
	assert.True(t, errors.Is(tr, context.DeadlineExceeded))

	assert.False(t, IsTransient(v))
	assert.False(t, IsValidation(c))
	assert.False(t, IsNotFound(tr))
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "items: at least one item is required", NewValidation("items", "at least one item is required").Error())
	assert.Equal(t, "no field", NewValidation("", "no field").Error())
	assert.Equal(t, "constraint x violated", (&ConstraintError{Constraint: "x"}).Error())
	assert.Equal(t, "op: transient infrastructure failure", Transient("op", nil).Error())
}

func TestAsRecoversDetails(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewValidation("quantity", "must be positive"))
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "quantity", ve.Field)
}
