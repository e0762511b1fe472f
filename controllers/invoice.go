// controllers/invoice.go
package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"invoicer-backend/models"
	"invoicer-backend/services"
	"invoicer-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// InvoiceItemInput defines the structure for an invoice item
type InvoiceItemInput struct {
	ItemName string          `json:"itemName" binding:"required"`
	Quantity int             `json:"quantity" binding:"required,min=1"`
	Price    decimal.Decimal `json:"price"`
}

// CreateInvoiceInput defines the expected JSON structure for creating an invoice
type CreateInvoiceInput struct {
	ClientName    string             `json:"clientName" binding:"required"`
	Email         string             `json:"email" binding:"required,email"`
	Phone         string             `json:"phone"`
	Address       *string            `json:"address"`
	PaymentStatus string             `json:"payment_status" binding:"omitempty,oneof=Pending Paid Overdue Cancelled"`
	Items         []InvoiceItemInput `json:"items" binding:"dive"`
	TaxRate       *decimal.Decimal   `json:"tax_rate"`
}

// UpdateInvoiceInput has the same shape; an absent tax_rate keeps the stored one.
type UpdateInvoiceInput = CreateInvoiceInput

// SendInvoiceInput defines the expected JSON structure for mailing an invoice
type SendInvoiceInput struct {
	To      string `json:"to" binding:"required,email"`
	PDFPath string `json:"pdfPath" binding:"required"`
}

type CreateInvoiceResponse struct {
	Message      string `json:"message"`
	NewInvoiceID uint   `json:"newInvoiceId"`
	PDFPath      string `json:"pdfPath"`
}

type UpdateInvoiceResponse struct {
	Message        string                `json:"message"`
	InvoiceID      uint                  `json:"invoiceId"`
	DocumentStatus models.DocumentStatus `json:"documentStatus"`
}

type RegenerateResponse struct {
	Message   string `json:"message"`
	InvoiceID uint   `json:"invoiceId"`
	PDFPath   string `json:"pdfPath"`
}

// InvoiceSummary is a list entry: the invoice header without its items.
type InvoiceSummary struct {
	ID             uint                  `json:"id"`
	ClientName     string                `json:"clientName"`
	Email          string                `json:"email"`
	Phone          string                `json:"phone"`
	Address        *string               `json:"address"`
	PaymentStatus  models.PaymentStatus  `json:"payment_status"`
	TaxRate        models.Amount         `json:"tax_rate"`
	Subtotal       models.Amount         `json:"subtotal"`
	TaxAmount      models.Amount         `json:"tax_amount"`
	GrandTotal     models.Amount         `json:"total"`
	DocumentStatus models.DocumentStatus `json:"document_status"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

func newInvoiceSummary(inv models.Invoice) InvoiceSummary {
	return InvoiceSummary{
		ID:             inv.ID,
		ClientName:     inv.ClientName,
		Email:          inv.Email,
		Phone:          inv.Phone,
		Address:        inv.Address,
		PaymentStatus:  inv.PaymentStatus,
		TaxRate:        inv.TaxRate,
		Subtotal:       inv.Subtotal,
		TaxAmount:      inv.TaxAmount,
		GrandTotal:     inv.GrandTotal,
		DocumentStatus: inv.DocumentStatus,
		CreatedAt:      inv.CreatedAt,
		UpdatedAt:      inv.UpdatedAt,
	}
}

type MessageResponse struct {
	Message string `json:"message"`
}

type InvoiceController struct {
	svc *services.InvoiceService
}

func NewInvoiceController(svc *services.InvoiceService) *InvoiceController {
	return &InvoiceController{svc: svc}
}

func (in *CreateInvoiceInput) toServiceInput() services.InvoiceInput {
	items := make([]services.ItemInput, 0, len(in.Items))
	for _, it := range in.Items {
		items = append(items, services.ItemInput{
			ItemName:  it.ItemName,
			Quantity:  it.Quantity,
			UnitPrice: it.Price,
		})
	}
	return services.InvoiceInput{
		ClientName:    in.ClientName,
		Email:         in.Email,
		Phone:         in.Phone,
		Address:       in.Address,
		PaymentStatus: models.PaymentStatus(in.PaymentStatus),
		TaxRate:       in.TaxRate,
		Items:         items,
	}
}

// CreateInvoice saves a new invoice and generates its PDF
func (ctl *InvoiceController) CreateInvoice(c *gin.Context) {
	var input CreateInvoiceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	res, err := ctl.svc.CreateInvoice(c.Request.Context(), input.toServiceInput())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, CreateInvoiceResponse{
		Message:      "Invoice saved and PDF generated successfully!",
		NewInvoiceID: res.InvoiceID,
		PDFPath:      res.PDFPath,
	})
}

// GetInvoices lists invoice headers, newest first
func (ctl *InvoiceController) GetInvoices(c *gin.Context) {
	invoices, err := ctl.svc.ListInvoices(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	summaries := make([]InvoiceSummary, 0, len(invoices))
	for _, inv := range invoices {
		summaries = append(summaries, newInvoiceSummary(inv))
	}
	c.JSON(http.StatusOK, summaries)
}

// GetInvoice returns one invoice with its items
func (ctl *InvoiceController) GetInvoice(c *gin.Context) {
	id, ok := invoiceID(c)
	if !ok {
		return
	}
	invoice, err := ctl.svc.GetInvoice(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

// UpdateInvoice replaces an invoice's fields and items
func (ctl *InvoiceController) UpdateInvoice(c *gin.Context) {
	id, ok := invoiceID(c)
	if !ok {
		return
	}
	var input UpdateInvoiceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	status, err := ctl.svc.UpdateInvoice(c.Request.Context(), id, input.toServiceInput())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, UpdateInvoiceResponse{
		Message:        "Invoice updated successfully!",
		InvoiceID:      id,
		DocumentStatus: status,
	})
}

// DeleteInvoice removes an invoice and its items
func (ctl *InvoiceController) DeleteInvoice(c *gin.Context) {
	id, ok := invoiceID(c)
	if !ok {
		return
	}
	if err := ctl.svc.DeleteInvoice(c.Request.Context(), id); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Invoice deleted successfully!"})
}

// GetInvoicePDF renders the invoice from its current data and streams it
func (ctl *InvoiceController) GetInvoicePDF(c *gin.Context) {
	id, ok := invoiceID(c)
	if !ok {
		return
	}
	pdf, err := ctl.svc.GetInvoicePdf(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=invoice_%d.pdf", id))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// RegenerateInvoicePDF rewrites the stored artifact of an invoice
func (ctl *InvoiceController) RegenerateInvoicePDF(c *gin.Context) {
	id, ok := invoiceID(c)
	if !ok {
		return
	}
	ref, err := ctl.svc.RegenerateArtifact(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrRender) {
			utils.RespondWithErrorDetails(c, http.StatusInternalServerError, "PDF generation failed",
				gin.H{"invoiceId": id, "saved": true})
			return
		}
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, RegenerateResponse{
		Message:   "PDF regenerated successfully!",
		InvoiceID: id,
		PDFPath:   ref,
	})
}

// NotifyInvoice texts the client that the invoice is ready
func (ctl *InvoiceController) NotifyInvoice(c *gin.Context) {
	id, ok := invoiceID(c)
	if !ok {
		return
	}
	sid, err := ctl.svc.NotifyInvoice(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification sent", "sid": sid})
}

// SendInvoice mails an existing PDF artifact
func (ctl *InvoiceController) SendInvoice(c *gin.Context) {
	var input SendInvoiceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Email (to) and pdfPath are required.")
		return
	}
	if err := ctl.svc.SendInvoice(c.Request.Context(), input.To, input.PDFPath); err != nil {
		if errors.Is(err, services.ErrSend) {
			utils.RespondWithError(c, http.StatusInternalServerError, "Failed to send invoice.")
			return
		}
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Invoice sent successfully!"})
}

// Health reports whether the store is reachable
func Health(store *services.InvoiceStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "time": time.Now().UTC()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	}
}

func invoiceID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid invoice ID format")
		return 0, false
	}
	return uint(id), true
}

func respondServiceError(c *gin.Context, err error) {
	var partial *services.PartialFailureError
	switch {
	case errors.As(err, &partial):
		utils.RespondWithErrorDetails(c, http.StatusInternalServerError,
			"Invoice saved, but "+partial.Step+" failed",
			gin.H{"invoiceId": partial.InvoiceID, "saved": true})
	case errors.Is(err, services.ErrValidation):
		utils.RespondWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrNotFound):
		utils.RespondWithError(c, http.StatusNotFound, "Invoice not found")
	case errors.Is(err, services.ErrRender):
		utils.RespondWithError(c, http.StatusInternalServerError, "Error generating PDF")
	case errors.Is(err, services.ErrSend):
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to deliver invoice")
	default:
		utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
	}
}
