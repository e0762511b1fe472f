package services

import (
	"fmt"
	"html"
	"strings"

	"invoicer-backend/models"
	"invoicer-backend/utils"

	"github.com/shopspring/decimal"
)

const (
	DefaultCurrencySymbol = "₹"
	missingAddress        = "N/A"
)

// Slot names recognised in invoice templates, written as {{name}}.
var templateSlots = []string{
	"clientName", "address", "email", "id", "date",
	"subtotal", "taxRate", "taxAmount", "grandTotal", "items",
}

// TemplateRenderer fills a slot-based HTML template with invoice data.
type TemplateRenderer struct {
	source   string
	currency string
}

func NewTemplateRenderer(source, currency string) *TemplateRenderer {
	if currency == "" {
		currency = DefaultCurrencySymbol
	}
	return &TemplateRenderer{source: source, currency: currency}
}

func (r *TemplateRenderer) Render(inv *models.Invoice) string {
	return FillTemplate(r.source, inv, r.currency)
}

// FillTemplate replaces every occurrence of each recognised slot in source.
// Slots missing from source are skipped. Substitution happens in a single
// pass, so values that happen to contain slot tokens are never re-expanded.
func FillTemplate(source string, inv *models.Invoice, currency string) string {
	values := SlotValues(inv, currency)
	pairs := make([]string, 0, len(templateSlots)*2)
	for _, name := range templateSlots {
		pairs = append(pairs, "{{"+name+"}}", values[name])
	}
	return strings.NewReplacer(pairs...).Replace(source)
}

// SlotValues returns the formatted value of each slot for inv.
func SlotValues(inv *models.Invoice, currency string) map[string]string {
	return map[string]string{
		"clientName": html.EscapeString(inv.ClientName),
		"address":    html.EscapeString(inv.AddressOrDefault(missingAddress)),
		"email":      html.EscapeString(inv.Email),
		"id":         fmt.Sprintf("%d", inv.ID),
		"date":       utils.FormatInvoiceDate(inv.CreatedAt),
		"subtotal":   FormatMoney(currency, inv.Subtotal.Decimal),
		"taxRate":    inv.TaxRate.String(),
		"taxAmount":  FormatMoney(currency, inv.TaxAmount.Decimal),
		"grandTotal": FormatMoney(currency, inv.GrandTotal.Decimal),
		"items":      itemRows(inv.Items, currency),
	}
}

// FormatMoney prefixes the currency symbol and rounds to two decimals.
func FormatMoney(currency string, amount decimal.Decimal) string {
	return currency + amount.StringFixed(2)
}

func itemRows(items []models.InvoiceItem, currency string) string {
	var b strings.Builder
	for _, item := range items {
		fmt.Fprintf(&b, `
      <tr>
        <td>%d</td>
        <td>%s</td>
        <td class="text-right">%s</td>
        <td class="text-right">%s</td>
      </tr>`,
			item.Quantity,
			html.EscapeString(item.ItemName),
			FormatMoney(currency, item.UnitPrice.Decimal),
			FormatMoney(currency, item.LineTotal.Decimal),
		)
	}
	return b.String()
}
