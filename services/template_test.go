package services

import (
	"strings"
	"testing"
	"time"

	"invoicer-backend/models"
	"invoicer-backend/templates"

	"github.com/stretchr/testify/assert"
)

func sampleInvoice() *models.Invoice {
	return &models.Invoice{
		ID:         42,
		ClientName: "Asha Rao",
		Email:      "asha@example.com",
		TaxRate:    amt("18"),
		Subtotal:   amt("45"),
		TaxAmount:  amt("8.1"),
		GrandTotal: amt("53.1"),
		CreatedAt:  time.Date(2024, time.March, 5, 12, 0, 0, 0, time.Local),
		Items: []models.InvoiceItem{
			{ItemName: "Haircut", Quantity: 2, UnitPrice: amt("10"), LineTotal: amt("20")},
			{ItemName: "Shave", Quantity: 1, UnitPrice: amt("25"), LineTotal: amt("25")},
		},
	}
}

func TestFillTemplateSubstitutesSlots(t *testing.T) {
	src := "{{clientName}}|{{email}}|{{date}}|{{subtotal}}|{{taxRate}}|{{taxAmount}}|{{grandTotal}}"
	out := FillTemplate(src, sampleInvoice(), "₹")
	assert.Equal(t, "Asha Rao|asha@example.com|05 Mar 2024|₹45.00|18|₹8.10|₹53.10", out)
}

func TestFillTemplateMissingAddressIsNA(t *testing.T) {
	inv := sampleInvoice()
	assert.Equal(t, "N/A", FillTemplate("{{address}}", inv, "₹"))

	blank := ""
	inv.Address = &blank
	assert.Equal(t, "N/A", FillTemplate("{{address}}", inv, "₹"))

	addr := "12 MG Road"
	inv.Address = &addr
	assert.Equal(t, "12 MG Road", FillTemplate("{{address}}", inv, "₹"))
}

func TestFillTemplateReplacesEveryOccurrence(t *testing.T) {
	out := FillTemplate("#{{id}} and again #{{id}}", sampleInvoice(), "₹")
	assert.Equal(t, "#42 and again #42", out)
}

func TestFillTemplateLeavesUnknownSlotsAndSkipsMissingOnes(t *testing.T) {
	out := FillTemplate("{{clientName}} {{unknown}}", sampleInvoice(), "₹")
	assert.Equal(t, "Asha Rao {{unknown}}", out)
}

func TestFillTemplateEscapesUserInput(t *testing.T) {
	inv := sampleInvoice()
	inv.ClientName = `<script>alert("x")</script>`
	inv.Items[0].ItemName = "Wash & Dry"

	out := FillTemplate("{{clientName}}{{items}}", inv, "₹")
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.Contains(t, out, "Wash &amp; Dry")
}

func TestFillTemplateDoesNotReexpandValues(t *testing.T) {
	inv := sampleInvoice()
	inv.ClientName = "{{email}}"
	assert.Equal(t, "{{email}}", FillTemplate("{{clientName}}", inv, "₹"))
}

func TestItemRowsKeepOrder(t *testing.T) {
	out := FillTemplate("{{items}}", sampleInvoice(), "₹")
	assert.Equal(t, 2, strings.Count(out, "<tr>"))
	assert.Less(t, strings.Index(out, "Haircut"), strings.Index(out, "Shave"))
	assert.Contains(t, out, `<td class="text-right">₹10.00</td>`)
	assert.Contains(t, out, `<td class="text-right">₹20.00</td>`)
}

func TestEmbeddedTemplateHasNoUnfilledSlots(t *testing.T) {
	out := NewTemplateRenderer(templates.InvoiceHTML, "").Render(sampleInvoice())
	assert.NotContains(t, out, "{{")
	assert.Contains(t, out, "Invoice #42")
	assert.Contains(t, out, "₹53.10")
}
