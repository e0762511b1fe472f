package services

import (
	"testing"

	"invoicer-backend/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func amt(s string) models.Amount {
	return models.NewAmount(dec(s))
}

func TestLineTotal(t *testing.T) {
	lt, err := LineTotal(2, dec("10.00"))
	require.NoError(t, err)
	assert.True(t, lt.Equal(dec("20")), "got %s", lt)

	lt, err = LineTotal(3, dec("0.10"))
	require.NoError(t, err)
	assert.Equal(t, "0.30", lt.StringFixed(2))
	assert.True(t, lt.Equal(dec("0.3")), "no float drift expected, got %s", lt)
}

func TestLineTotalRejectsBadInput(t *testing.T) {
	_, err := LineTotal(0, dec("1"))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = LineTotal(1, dec("-0.01"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSubtotalOfEmptyItemsIsZero(t *testing.T) {
	sub, err := Subtotal(nil)
	require.NoError(t, err)
	assert.True(t, sub.IsZero())
}

func TestComputeTotals(t *testing.T) {
	items := []models.InvoiceItem{
		{ItemName: "Haircut", Quantity: 2, UnitPrice: amt("10.00")},
		{ItemName: "Shave", Quantity: 1, UnitPrice: amt("25.00")},
	}

	totals, err := ComputeTotals(items, dec("18"))
	require.NoError(t, err)

	assert.Equal(t, "45.00", totals.Subtotal.StringFixed(2))
	assert.Equal(t, "8.10", totals.TaxAmount.StringFixed(2))
	assert.Equal(t, "53.10", totals.GrandTotal.StringFixed(2))
	assert.True(t, items[0].LineTotal.Equal(dec("20")))
	assert.True(t, items[1].LineTotal.Equal(dec("25")))
}

func TestComputeTotalsZeroTax(t *testing.T) {
	items := []models.InvoiceItem{{ItemName: "x", Quantity: 4, UnitPrice: amt("2.50")}}
	totals, err := ComputeTotals(items, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, totals.TaxAmount.IsZero())
	assert.True(t, totals.GrandTotal.Equal(totals.Subtotal))
}

func TestComputeTotalsKeepsFullPrecision(t *testing.T) {
	items := []models.InvoiceItem{{ItemName: "x", Quantity: 1, UnitPrice: amt("0.05")}}
	totals, err := ComputeTotals(items, dec("7.5"))
	require.NoError(t, err)
	assert.True(t, totals.TaxAmount.Equal(dec("0.00375")), "got %s", totals.TaxAmount)
	assert.Equal(t, "0.05", totals.GrandTotal.StringFixed(2))
}

func TestComputeTotalsRejectsNegativeTax(t *testing.T) {
	_, err := ComputeTotals(nil, dec("-1"))
	assert.ErrorIs(t, err, ErrValidation)
}
