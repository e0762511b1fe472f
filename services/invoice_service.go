package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"invoicer-backend/metrics"
	"invoicer-backend/models"
	"invoicer-backend/utils"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	artifactDir     = "invoices"
	invoiceSubject  = "Your Invoice"
	invoiceBody     = "Please find your invoice attached."
	attachmentName  = "invoice.pdf"
	artifactMaxSize = 25 << 20
)

// ItemInput is one submitted line item.
type ItemInput struct {
	ItemName  string
	Quantity  int
	UnitPrice decimal.Decimal
}

// InvoiceInput carries the client-supplied fields of an invoice. TaxRate is
// optional on update, in which case the stored rate is kept.
type InvoiceInput struct {
	ClientName    string
	Email         string
	Phone         string
	Address       *string
	PaymentStatus models.PaymentStatus
	TaxRate       *decimal.Decimal
	Items         []ItemInput
}

type CreateResult struct {
	InvoiceID uint
	PDFPath   string
}

type InvoiceServiceConfig struct {
	// PublicDir is the directory artifacts are written under, in PublicDir/invoices.
	PublicDir     string
	PublicBaseURL string
	Currency      string
}

// InvoiceService composes totals calculation, persistence, template filling,
// PDF rendering and delivery.
type InvoiceService struct {
	store    *InvoiceStore
	renderer *TemplateRenderer
	docs     DocumentGenerator
	mailer   MailTransport
	sms      SMSSender
	cfg      InvoiceServiceConfig
	log      logrus.FieldLogger
}

func NewInvoiceService(
	store *InvoiceStore,
	renderer *TemplateRenderer,
	docs DocumentGenerator,
	mailer MailTransport,
	sms SMSSender,
	cfg InvoiceServiceConfig,
	log logrus.FieldLogger,
) *InvoiceService {
	if cfg.Currency == "" {
		cfg.Currency = DefaultCurrencySymbol
	}
	return &InvoiceService{
		store:    store,
		renderer: renderer,
		docs:     docs,
		mailer:   mailer,
		sms:      sms,
		cfg:      cfg,
		log:      log,
	}
}

// CreateInvoice persists a new invoice and writes its PDF artifact. A failure
// before the invoice is saved has no side effects. A failure afterwards is
// returned as *PartialFailureError carrying the new id, and the invoice is
// left with document status "failed" for a later retry.
func (s *InvoiceService) CreateInvoice(ctx context.Context, in InvoiceInput) (*CreateResult, error) {
	if in.TaxRate == nil {
		zero := decimal.Zero
		in.TaxRate = &zero
	}
	inv, err := buildInvoice(in, *in.TaxRate)
	if err != nil {
		return nil, err
	}
	inv.DocumentStatus = models.DocumentPending

	id, err := s.store.Create(ctx, inv)
	if err != nil {
		return nil, err
	}

	ref, err := s.writeArtifact(ctx, inv)
	if err != nil {
		s.markFailed(ctx, id, err)
		return nil, &PartialFailureError{InvoiceID: id, Step: "document generation", Err: err}
	}
	return &CreateResult{InvoiceID: id, PDFPath: ref}, nil
}

func (s *InvoiceService) GetInvoice(ctx context.Context, id uint) (*models.Invoice, error) {
	return s.store.Get(ctx, id)
}

func (s *InvoiceService) ListInvoices(ctx context.Context) ([]models.Invoice, error) {
	return s.store.List(ctx)
}

// UpdateInvoice replaces the header and items of invoice id and refreshes
// the stored artifact. A failed refresh leaves the document status "failed"
// but does not fail the update; the returned status reports the outcome.
func (s *InvoiceService) UpdateInvoice(ctx context.Context, id uint, in InvoiceInput) (models.DocumentStatus, error) {
	taxRate := in.TaxRate
	if taxRate == nil {
		current, err := s.store.Get(ctx, id)
		if err != nil {
			return "", err
		}
		taxRate = &current.TaxRate.Decimal
	}
	inv, err := buildInvoice(in, *taxRate)
	if err != nil {
		return "", err
	}
	inv.DocumentStatus = models.DocumentPending

	if err := s.store.Update(ctx, id, inv); err != nil {
		return "", err
	}

	if _, err := s.RegenerateArtifact(ctx, id); err != nil {
		s.log.WithError(err).WithField("invoice_id", id).Warn("artifact refresh after update failed")
		return models.DocumentFailed, nil
	}
	return models.DocumentGenerated, nil
}

// DeleteInvoice removes the invoice and its items, then drops the cached
// artifact if one exists.
func (s *InvoiceService) DeleteInvoice(ctx context.Context, id uint) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if err := os.Remove(s.artifactFile(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.WithError(err).WithField("invoice_id", id).Warn("could not remove artifact")
	}
	return nil
}

// GetInvoicePdf renders the invoice from its current stored state. The
// artifact on disk is not consulted.
func (s *InvoiceService) GetInvoicePdf(ctx context.Context, id uint) ([]byte, error) {
	inv, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.renderPDF(ctx, inv)
}

// RegenerateArtifact re-renders invoice id and rewrites its artifact.
func (s *InvoiceService) RegenerateArtifact(ctx context.Context, id uint) (string, error) {
	inv, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	ref, err := s.writeArtifact(ctx, inv)
	if err != nil {
		s.markFailed(ctx, id, err)
		return "", err
	}
	return ref, nil
}

// SendInvoice mails the artifact referenced by pdfPath to the recipient.
// Nothing is recorded about the delivery.
func (s *InvoiceService) SendInvoice(ctx context.Context, to, pdfPath string) error {
	if strings.TrimSpace(to) == "" || strings.TrimSpace(pdfPath) == "" {
		return validationError("recipient and pdfPath are required")
	}
	file, err := s.ResolveArtifact(pdfPath)
	if err != nil {
		return err
	}
	info, err := os.Stat(file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: artifact %s", ErrNotFound, pdfPath)
		}
		return fmt.Errorf("%w: reading artifact: %v", ErrSend, err)
	}
	if info.Size() > artifactMaxSize {
		return validationError("artifact %s is too large to mail", pdfPath)
	}
	pdf, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("%w: reading artifact: %v", ErrSend, err)
	}

	err = s.mailer.Send(ctx, Mail{
		To:             to,
		Subject:        invoiceSubject,
		Body:           invoiceBody,
		AttachmentName: attachmentName,
		Attachment:     pdf,
	})
	metrics.ObserveEmail(err)
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"to": to, "pdf_path": pdfPath}).Error("failed to send invoice email")
		if errors.Is(err, ErrValidation) || errors.Is(err, ErrSend) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrSend, err)
	}
	s.log.WithFields(logrus.Fields{"to": to, "pdf_path": pdfPath}).Info("invoice email sent")
	return nil
}

// NotifyInvoice texts the client a short notice with the grand total and a
// link to the PDF. It returns the provider message id.
func (s *InvoiceService) NotifyInvoice(ctx context.Context, id uint) (string, error) {
	if s.sms == nil {
		return "", fmt.Errorf("%w: sms notifications are not configured", ErrSend)
	}
	inv, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if !utils.ValidatePhone(inv.Phone) {
		return "", validationError("invoice %d has no valid phone number", id)
	}

	body := fmt.Sprintf("Hi %s, your invoice #%d for %s is ready.",
		inv.ClientName, inv.ID, FormatMoney(s.cfg.Currency, inv.GrandTotal.Decimal))
	if s.cfg.PublicBaseURL != "" {
		body += fmt.Sprintf(" Download: %s/invoices/%d/pdf", strings.TrimRight(s.cfg.PublicBaseURL, "/"), inv.ID)
	}

	sid, err := s.sms.SendSMS(ctx, utils.NormalizePhone(inv.Phone), body)
	if err != nil {
		s.log.WithError(err).WithField("invoice_id", id).Error("failed to send invoice sms")
		return "", err
	}
	s.log.WithFields(logrus.Fields{"invoice_id": id, "sid": sid}).Info("invoice sms sent")
	return sid, nil
}

// ArtifactRef returns the deterministic artifact reference for invoice id.
func ArtifactRef(id uint) string {
	return path.Join(artifactDir, fmt.Sprintf("invoice-%d.pdf", id))
}

// ResolveArtifact maps an artifact reference to a file under the public
// directory. References that point outside the artifact directory are rejected.
func (s *InvoiceService) ResolveArtifact(ref string) (string, error) {
	clean := path.Clean(strings.ReplaceAll(ref, `\`, "/"))
	if path.IsAbs(clean) || path.Dir(clean) != artifactDir || !strings.HasSuffix(clean, ".pdf") {
		return "", validationError("invalid pdfPath %q", ref)
	}
	return filepath.Join(s.cfg.PublicDir, filepath.FromSlash(clean)), nil
}

func (s *InvoiceService) artifactFile(id uint) string {
	return filepath.Join(s.cfg.PublicDir, filepath.FromSlash(ArtifactRef(id)))
}

func (s *InvoiceService) renderPDF(ctx context.Context, inv *models.Invoice) ([]byte, error) {
	html := s.renderer.Render(inv)
	start := time.Now()
	pdf, err := s.docs.Render(ctx, html)
	metrics.ObserveRender(err, time.Since(start))
	if err != nil {
		if !errors.Is(err, ErrRender) {
			err = fmt.Errorf("%w: %v", ErrRender, err)
		}
		return nil, err
	}
	if len(pdf) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrRender)
	}
	return pdf, nil
}

// writeArtifact renders inv and atomically replaces its artifact file.
func (s *InvoiceService) writeArtifact(ctx context.Context, inv *models.Invoice) (string, error) {
	pdf, err := s.renderPDF(ctx, inv)
	if err != nil {
		return "", err
	}

	target := s.artifactFile(inv.ID)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("%w: creating artifact dir: %v", ErrRender, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".invoice-*.pdf")
	if err != nil {
		return "", fmt.Errorf("%w: creating artifact: %v", ErrRender, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(pdf); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%w: writing artifact: %v", ErrRender, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: writing artifact: %v", ErrRender, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("%w: writing artifact: %v", ErrRender, err)
	}

	if err := s.store.SetDocumentStatus(ctx, inv.ID, models.DocumentGenerated, ""); err != nil {
		s.log.WithError(err).WithField("invoice_id", inv.ID).Warn("could not record document status")
	}
	ref := ArtifactRef(inv.ID)
	s.log.WithFields(logrus.Fields{"invoice_id": inv.ID, "pdf_path": ref, "bytes": len(pdf)}).Info("invoice pdf written")
	return ref, nil
}

func (s *InvoiceService) markFailed(ctx context.Context, id uint, cause error) {
	s.log.WithError(cause).WithField("invoice_id", id).Error("invoice document generation failed")
	// The request context may already be done; the status must still land.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.store.SetDocumentStatus(ctx, id, models.DocumentFailed, cause.Error()); err != nil {
		s.log.WithError(err).WithField("invoice_id", id).Warn("could not record document failure")
	}
}

func buildInvoice(in InvoiceInput, taxRate decimal.Decimal) (*models.Invoice, error) {
	if strings.TrimSpace(in.ClientName) == "" {
		return nil, validationError("clientName is required")
	}
	if strings.TrimSpace(in.Email) == "" {
		return nil, validationError("email is required")
	}
	status := in.PaymentStatus
	if status == "" {
		status = models.PaymentPending
	}
	if !status.Valid() {
		return nil, validationError("unknown payment_status %q", status)
	}

	items := make([]models.InvoiceItem, 0, len(in.Items))
	for i, it := range in.Items {
		if strings.TrimSpace(it.ItemName) == "" {
			return nil, validationError("item %d: itemName is required", i+1)
		}
		items = append(items, models.InvoiceItem{
			ItemName:  it.ItemName,
			Quantity:  it.Quantity,
			UnitPrice: models.NewAmount(it.UnitPrice),
		})
	}
	totals, err := ComputeTotals(items, taxRate)
	if err != nil {
		return nil, err
	}

	var address *string
	if in.Address != nil && strings.TrimSpace(*in.Address) != "" {
		a := *in.Address
		address = &a
	}
	return &models.Invoice{
		ClientName:    in.ClientName,
		Email:         in.Email,
		Phone:         in.Phone,
		Address:       address,
		PaymentStatus: status,
		TaxRate:       models.NewAmount(taxRate),
		Subtotal:      models.NewAmount(totals.Subtotal),
		TaxAmount:     models.NewAmount(totals.TaxAmount),
		GrandTotal:    models.NewAmount(totals.GrandTotal),
		Items:         items,
	}, nil
}
