package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Amount is a decimal column. Postgres stores it as numeric; SQLite has no
// exact numeric storage, so it is kept as text there.
type Amount struct {
	decimal.Decimal
}

func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

func (Amount) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "sqlite" {
		return "text"
	}
	return "numeric"
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "Pending"
	PaymentPaid      PaymentStatus = "Paid"
	PaymentOverdue   PaymentStatus = "Overdue"
	PaymentCancelled PaymentStatus = "Cancelled"
)

// Valid reports whether s is one of the known payment statuses.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentOverdue, PaymentCancelled:
		return true
	}
	return false
}

// DocumentStatus tracks whether the PDF artifact for an invoice was produced.
type DocumentStatus string

const (
	DocumentPending   DocumentStatus = "pending"
	DocumentGenerated DocumentStatus = "generated"
	DocumentFailed    DocumentStatus = "failed"
)

type Invoice struct {
	ID         uint    `gorm:"primaryKey" json:"id"`
	ClientName string  `gorm:"not null" json:"clientName"`
	Email      string  `gorm:"not null" json:"email"`
	Phone      string  `json:"phone"`
	Address    *string `json:"address"`

	PaymentStatus PaymentStatus `gorm:"type:varchar(20);not null" json:"payment_status"`
	TaxRate       Amount        `gorm:"not null" json:"tax_rate"`

	// Totals are stored unrounded so older invoices re-render identically.
	Subtotal   Amount `gorm:"not null" json:"subtotal"`
	TaxAmount  Amount `gorm:"not null" json:"tax_amount"`
	GrandTotal Amount `gorm:"not null" json:"total"`

	DocumentStatus DocumentStatus `gorm:"type:varchar(20);not null;index" json:"document_status"`
	DocumentError  string         `gorm:"type:text" json:"document_error,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Items []InvoiceItem `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"items"`
}

type InvoiceItem struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	InvoiceID uint            `gorm:"index;not null" json:"invoice_id"`
	Position  int             `gorm:"not null;default:0" json:"position"`
	ItemName  string          `gorm:"not null" json:"itemName"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	UnitPrice Amount `gorm:"not null" json:"price"`
	LineTotal Amount `gorm:"not null" json:"total"`
}

// AddressOrDefault returns the address or fallback when it is missing or blank.
func (i *Invoice) AddressOrDefault(fallback string) string {
	if i.Address == nil || *i.Address == "" {
		return fallback
	}
	return *i.Address
}
