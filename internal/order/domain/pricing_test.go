package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalog "github.com/dmehra2102/medsupply-orders/internal/catalog/domain"
	"github.com/dmehra2102/medsupply-orders/pkg/apperr"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func samplePrices() PriceList {
	return NewPriceList([]catalog.Product{
		{ID: 1, Name: "Opsite (Piece)", Price: dec("6000"), Unit: "PCS"},
		{ID: 2, Name: "Crepe Bandage 15cm", Price: dec("2000"), Unit: "CTN"},
		{ID: 3, Name: "Cotton Wool 500g", Price: dec("1333.33"), Unit: "PCS"},
		{ID: 4, Name: "Surgical Gloves", Price: dec("0.10"), Unit: "PCS"},
	})
}

func TestComputeTotals_OpsiteScenario(t *testing.T) {
	totals := ComputeTotals([]CartLine{{ProductName: "Opsite (Piece)", Quantity: 2}}, samplePrices())

	require.NoError(t, totals.Err())
	assert.True(t, totals.Subtotal.Equal(dec("12000")), "subtotal %s", totals.Subtotal)
	assert.True(t, totals.VAT.Equal(dec("300")), "vat %s", totals.VAT)
	assert.True(t, totals.Total.Equal(dec("12300")), "total %s", totals.Total)
	require.Len(t, totals.Lines, 1)
	assert.Equal(t, "12000.00", totals.Lines[0].LineTotal.StringFixed(2))
}

func TestComputeTotals_UnknownProductIsReportedNotPriced(t *testing.T) {
	cart := []CartLine{
		{ProductName: "Crepe Bandage 15cm", Quantity: 3},
		{ProductName: "Discontinued Drip Set", Quantity: 5},
	}
	totals := ComputeTotals(cart, samplePrices())

	assert.True(t, totals.Subtotal.Equal(dec("6000")))
	assert.True(t, totals.VAT.Equal(dec("150")))
	assert.True(t, totals.Total.Equal(dec("6150")))

	// Exclusion is never silent: the caller gets a typed error per skipped line.
	require.Len(t, totals.Errors, 1)
	assert.Equal(t, 1, totals.Errors[0].Index)
	assert.Equal(t, ReasonUnknownProduct, totals.Errors[0].Reason)
	var lineErr *LineItemError
	require.True(t, errors.As(totals.Err(), &lineErr))
	assert.Equal(t, "Discontinued Drip Set", lineErr.ProductName)
}

func TestComputeTotals_NonPositiveQuantityNeverGoesNegative(t *testing.T) {
	cart := []CartLine{
		{ProductName: "Opsite (Piece)", Quantity: -4},
		{ProductName: "Crepe Bandage 15cm", Quantity: 0},
	}
	totals := ComputeTotals(cart, samplePrices())

	assert.True(t, totals.Subtotal.IsZero())
	assert.True(t, totals.Total.IsZero())
	require.Len(t, totals.Errors, 2)
	for _, e := range totals.Errors {
		assert.Equal(t, ReasonInvalidQuantity, e.Reason)
	}
}

func TestComputeTotals_ProductIDTakesPrecedenceOverName(t *testing.T) {
	cart := []CartLine{{ProductID: 2, ProductName: "Opsite (Piece)", Quantity: 1}}
	totals := ComputeTotals(cart, samplePrices())

	require.Len(t, totals.Lines, 1)
	assert.Equal(t, "Crepe Bandage 15cm", totals.Lines[0].ProductName)
	assert.True(t, totals.Subtotal.Equal(dec("2000")))
}

func TestComputeTotals_IsRepeatable(t *testing.T) {
	cart := []CartLine{
		{ProductName: "Cotton Wool 500g", Quantity: 7},
		{ProductName: "Surgical Gloves", Quantity: 333},
		{ProductName: "Opsite (Piece)", Quantity: 1},
	}
	prices := samplePrices()

	first := ComputeTotals(cart, prices)
	for i := 0; i < 50; i++ {
		again := ComputeTotals(cart, prices)
		assert.Equal(t, first.Subtotal.String(), again.Subtotal.String())
		assert.Equal(t, first.VAT.String(), again.VAT.String())
		assert.Equal(t, first.Total.String(), again.Total.String())
	}
}

func TestComputeTotals_VATInvariantHolds(t *testing.T) {
	prices := samplePrices()
	for qty := 1; qty <= 400; qty += 7 {
		cart := []CartLine{
			{ProductName: "Cotton Wool 500g", Quantity: qty},
			{ProductName: "Surgical Gloves", Quantity: qty * 3},
		}
		totals := ComputeTotals(cart, prices)

		wantVAT := totals.Subtotal.Mul(dec("0.025")).Round(2)
		assert.True(t, totals.VAT.Equal(wantVAT), "qty %d: vat %s want %s", qty, totals.VAT, wantVAT)
		assert.True(t, totals.Total.Equal(totals.Subtotal.Add(totals.VAT)), "qty %d", qty)
	}
}

func TestVATFor_RoundsHalfAwayFromZero(t *testing.T) {
	// 0.025 * 0.20 = 0.005 -> 0.01
	assert.Equal(t, "0.01", VATFor(dec("0.20")).StringFixed(2))
	// 0.025 * 0.19 = 0.00475 -> 0.00
	assert.Equal(t, "0.00", VATFor(dec("0.19")).StringFixed(2))
	assert.Equal(t, "33.33", VATFor(dec("1333.33")).StringFixed(2))
}

func TestFormatNaira(t *testing.T) {
	cases := map[string]string{
		"12300":      "₦12,300.00",
		"0":          "₦0.00",
		"999.5":      "₦999.50",
		"1234567.89": "₦1,234,567.89",
		"-4500":      "-₦4,500.00",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatNaira(dec(in)), in)
	}
}

func TestComputeTotals_QuantityAboveMaximumIsRejected(t *testing.T) {
	cart := []CartLine{
		{ProductName: "Surgical Gloves", Quantity: MaxQuantity},
		{ProductName: "Opsite (Piece)", Quantity: 3_000_000_000},
	}
	totals := ComputeTotals(cart, samplePrices())

	require.Len(t, totals.Lines, 1)
	assert.True(t, totals.Subtotal.Equal(dec("100000")))
	require.Len(t, totals.Errors, 1)
	assert.Equal(t, 1, totals.Errors[0].Index)
	assert.Equal(t, ReasonInvalidQuantity, totals.Errors[0].Reason)
	assert.Contains(t, totals.Errors[0].Error(), "between 1 and 1000000")
}

func TestComputeTotals_AmountsBeyondStorageRange(t *testing.T) {
	prices := NewPriceList([]catalog.Product{
		{ID: 1, Name: "Dialysis Machine", Price: dec("9999999999.99"), Unit: "PCS"},
	})

	t.Run("line subtotal", func(t *testing.T) {
		totals := ComputeTotals([]CartLine{{ProductID: 1, Quantity: 101}}, prices)

		assert.Empty(t, totals.Lines)
		require.Len(t, totals.Errors, 1)
		assert.Equal(t, ReasonAmountTooLarge, totals.Errors[0].Reason)
	})

	t.Run("order total", func(t *testing.T) {
		cart := []CartLine{{ProductID: 1, Quantity: 60}, {ProductID: 1, Quantity: 60}}
		totals := ComputeTotals(cart, prices)

		assert.Empty(t, totals.Errors)
		assert.True(t, totals.Total.GreaterThan(MaxAmount))
		err := totals.Err()
		require.Error(t, err)
		assert.True(t, apperr.IsValidation(err))
	})

	t.Run("largest storable line", func(t *testing.T) {
		totals := ComputeTotals([]CartLine{{ProductID: 1, Quantity: 100}}, prices)

		require.Len(t, totals.Lines, 1)
		assert.True(t, totals.Lines[0].LineTotal.Equal(dec("999999999999")))
	})
}

func TestComputeTotals_MatchesStoredOrderForSubKoboPrices(t *testing.T) {
	p := catalog.Product{ID: 9, Name: "Cannula G22", Price: dec("1333.335"), Unit: "PCS"}
	totals := ComputeTotals([]CartLine{{ProductID: 9, Quantity: 3}}, NewPriceList([]catalog.Product{p}))

	var o Order
	o.AddItem(p, 3)
	o.Finalize()

	require.Len(t, totals.Lines, 1)
	assert.True(t, totals.Lines[0].UnitPrice.Equal(dec("1333.34")))
	assert.True(t, totals.Lines[0].LineTotal.Equal(o.Items[0].Subtotal), "preview %s, stored %s", totals.Lines[0].LineTotal, o.Items[0].Subtotal)
	assert.True(t, totals.Total.Equal(o.TotalAmount))
	assert.True(t, totals.Lines[0].LineTotal.Equal(dec("4000.02")))
}
