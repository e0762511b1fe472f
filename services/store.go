package services

import (
	"context"
	"errors"
	"fmt"

	"invoicer-backend/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// InvoiceStore persists invoice headers together with their line items.
// Every operation that touches both runs inside one transaction.
type InvoiceStore struct {
	db  *gorm.DB
	log logrus.FieldLogger
}

func NewInvoiceStore(db *gorm.DB, log logrus.FieldLogger) *InvoiceStore {
	return &InvoiceStore{db: db, log: log}
}

// Create inserts inv and its items and returns the new id. inv.ID, the item
// ids and positions are filled in on success.
func (s *InvoiceStore) Create(ctx context.Context, inv *models.Invoice) (id uint, err error) {
	items := inv.Items
	inv.ID = 0
	inv.Items = nil

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return 0, fmt.Errorf("%w: begin: %v", ErrTransaction, tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
		if err != nil {
			inv.ID = 0
			inv.Items = items
		}
	}()

	if err := tx.Create(inv).Error; err != nil {
		tx.Rollback()
		return 0, mapDBError(err, "insert invoice")
	}
	if err := insertItems(tx, inv.ID, items); err != nil {
		tx.Rollback()
		return 0, err
	}
	if err := tx.Commit().Error; err != nil {
		return 0, fmt.Errorf("%w: commit: %v", ErrTransaction, err)
	}

	inv.Items = items
	s.log.WithFields(logrus.Fields{"invoice_id": inv.ID, "items": len(items)}).Info("invoice created")
	return inv.ID, nil
}

// Get loads the header and its items in insertion order.
func (s *InvoiceStore) Get(ctx context.Context, id uint) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, id ASC")
		}).
		First(&inv, id).Error
	if err != nil {
		return nil, mapDBError(err, fmt.Sprintf("load invoice %d", id))
	}
	if inv.Items == nil {
		inv.Items = []models.InvoiceItem{}
	}
	return &inv, nil
}

// List returns all headers, newest first, without items.
func (s *InvoiceStore) List(ctx context.Context) ([]models.Invoice, error) {
	var invoices []models.Invoice
	if err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&invoices).Error; err != nil {
		return nil, mapDBError(err, "list invoices")
	}
	if invoices == nil {
		invoices = []models.Invoice{}
	}
	return invoices, nil
}

// Update overwrites the header fields of invoice id and replaces its items
// wholesale. CreatedAt and the id are never changed.
func (s *InvoiceStore) Update(ctx context.Context, id uint, inv *models.Invoice) (err error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("%w: begin: %v", ErrTransaction, tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	var existing models.Invoice
	if err := tx.Select("id").First(&existing, id).Error; err != nil {
		tx.Rollback()
		return mapDBError(err, fmt.Sprintf("load invoice %d", id))
	}

	fields := map[string]interface{}{
		"client_name":     inv.ClientName,
		"email":           inv.Email,
		"phone":           inv.Phone,
		"address":         inv.Address,
		"payment_status":  inv.PaymentStatus,
		"tax_rate":        inv.TaxRate,
		"subtotal":        inv.Subtotal,
		"tax_amount":      inv.TaxAmount,
		"grand_total":     inv.GrandTotal,
		"document_status": inv.DocumentStatus,
		"document_error":  inv.DocumentError,
	}
	if err := tx.Model(&models.Invoice{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		tx.Rollback()
		return mapDBError(err, fmt.Sprintf("update invoice %d", id))
	}

	if err := tx.Where("invoice_id = ?", id).Delete(&models.InvoiceItem{}).Error; err != nil {
		tx.Rollback()
		return mapDBError(err, fmt.Sprintf("clear items of invoice %d", id))
	}
	if err := insertItems(tx, id, inv.Items); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("%w: commit: %v", ErrTransaction, err)
	}
	inv.ID = id
	s.log.WithFields(logrus.Fields{"invoice_id": id, "items": len(inv.Items)}).Info("invoice updated")
	return nil
}

// Delete removes invoice id and all of its items.
func (s *InvoiceStore) Delete(ctx context.Context, id uint) (err error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("%w: begin: %v", ErrTransaction, tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	var existing models.Invoice
	if err := tx.Select("id").First(&existing, id).Error; err != nil {
		tx.Rollback()
		return mapDBError(err, fmt.Sprintf("load invoice %d", id))
	}

	// The FK cascades on postgres; the explicit delete covers stores that do
	// not enforce foreign keys.
	if err := tx.Where("invoice_id = ?", id).Delete(&models.InvoiceItem{}).Error; err != nil {
		tx.Rollback()
		return mapDBError(err, fmt.Sprintf("delete items of invoice %d", id))
	}
	if err := tx.Delete(&models.Invoice{}, id).Error; err != nil {
		tx.Rollback()
		return mapDBError(err, fmt.Sprintf("delete invoice %d", id))
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("%w: commit: %v", ErrTransaction, err)
	}
	s.log.WithField("invoice_id", id).Info("invoice deleted")
	return nil
}

// SetDocumentStatus records the outcome of the last artifact generation.
func (s *InvoiceStore) SetDocumentStatus(ctx context.Context, id uint, status models.DocumentStatus, errMsg string) error {
	res := s.db.WithContext(ctx).Model(&models.Invoice{}).Where("id = ?", id).
		Updates(map[string]interface{}{"document_status": status, "document_error": errMsg})
	if res.Error != nil {
		return mapDBError(res.Error, fmt.Sprintf("set document status of invoice %d", id))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}

// ListByDocumentStatus returns the ids of invoices in one of statuses, oldest first.
func (s *InvoiceStore) ListByDocumentStatus(ctx context.Context, statuses ...models.DocumentStatus) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("document_status IN ?", statuses).
		Order("id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, mapDBError(err, "list invoices by document status")
	}
	return ids, nil
}

// Ping checks that the underlying pool can reach the database.
func (s *InvoiceStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func insertItems(tx *gorm.DB, invoiceID uint, items []models.InvoiceItem) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].ID = 0
		items[i].InvoiceID = invoiceID
		items[i].Position = i
	}
	if err := tx.Create(&items).Error; err != nil {
		return mapDBError(err, fmt.Sprintf("insert items of invoice %d", invoiceID))
	}
	return nil
}

func mapDBError(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, op)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23502", "23503", "23514": // not null, foreign key, check
			return fmt.Errorf("%w: %s: %s", ErrValidation, op, pgErr.Message)
		}
	}
	return fmt.Errorf("%w: %s: %v", ErrTransaction, op, err)
}
