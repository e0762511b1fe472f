package services

import (
	"invoicer-backend/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Totals holds the derived amounts of an invoice.
type Totals struct {
	Subtotal   decimal.Decimal
	TaxAmount  decimal.Decimal
	GrandTotal decimal.Decimal
}

// LineTotal returns quantity x unitPrice.
func LineTotal(quantity int, unitPrice decimal.Decimal) (decimal.Decimal, error) {
	if quantity < 1 {
		return decimal.Zero, validationError("quantity must be at least 1, got %d", quantity)
	}
	if unitPrice.IsNegative() {
		return decimal.Zero, validationError("unit price must not be negative, got %s", unitPrice)
	}
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))), nil
}

// Subtotal sums the line totals of items. An empty slice yields zero.
func Subtotal(items []models.InvoiceItem) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, item := range items {
		lt, err := LineTotal(item.Quantity, item.UnitPrice.Decimal)
		if err != nil {
			return decimal.Zero, err
		}
		sum = sum.Add(lt)
	}
	return sum, nil
}

// TaxAmount returns subtotal x taxRatePercent / 100.
func TaxAmount(subtotal, taxRatePercent decimal.Decimal) (decimal.Decimal, error) {
	if taxRatePercent.IsNegative() {
		return decimal.Zero, validationError("tax rate must not be negative, got %s", taxRatePercent)
	}
	return subtotal.Mul(taxRatePercent).Div(hundred), nil
}

func GrandTotal(subtotal, taxAmount decimal.Decimal) decimal.Decimal {
	return subtotal.Add(taxAmount)
}

// ComputeTotals fills LineTotal on every item and returns the invoice totals.
// No rounding is applied; amounts are rounded only when displayed.
func ComputeTotals(items []models.InvoiceItem, taxRatePercent decimal.Decimal) (Totals, error) {
	for i := range items {
		lt, err := LineTotal(items[i].Quantity, items[i].UnitPrice.Decimal)
		if err != nil {
			return Totals{}, err
		}
		items[i].LineTotal = models.NewAmount(lt)
	}
	sub, err := Subtotal(items)
	if err != nil {
		return Totals{}, err
	}
	tax, err := TaxAmount(sub, taxRatePercent)
	if err != nil {
		return Totals{}, err
	}
	return Totals{Subtotal: sub, TaxAmount: tax, GrandTotal: GrandTotal(sub, tax)}, nil
}
