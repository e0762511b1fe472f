package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"invoicer-backend/config"
	"invoicer-backend/models"
	"invoicer-backend/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type pdfStub struct{}

func (pdfStub) Render(context.Context, string) ([]byte, error) { return []byte("%PDF-1.4"), nil }

type mailStub struct{}

func (mailStub) Send(context.Context, services.Mail) error { return nil }

func setupTestRouter(t *testing.T, rate config.RateConfig) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file:routes_"+t.Name()+"?mode=memory&cache=shared"),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Invoice{}, &models.InvoiceItem{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	log := logrus.New()
	log.SetOutput(io.Discard)
	store := services.NewInvoiceStore(db, log)
	svc := services.NewInvoiceService(store, services.NewTemplateRenderer("<p>{{id}}</p>", ""),
		pdfStub{}, mailStub{}, nil, services.InvoiceServiceConfig{PublicDir: t.TempDir()}, log)

	return SetupRouter(Deps{
		Service: svc,
		Store:   store,
		CORS:    config.CORSConfig{AllowedOrigins: []string{"http://localhost:4200"}},
		PDFRate: rate,
		Log:     log,
	})
}

func serve(r *gin.Engine, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRoutesServedAtRootAndUnderAPI(t *testing.T) {
	r := setupTestRouter(t, config.RateConfig{})

	body := `{"clientName":"A","email":"a@example.com","items":[{"itemName":"x","quantity":1,"price":5}]}`
	assert.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/invoices", body, nil).Code)
	assert.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/api/invoices", body, nil).Code)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/invoices/1/pdf", "", nil).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/invoices/2", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodPost, "/api/send-invoice", `{}`, nil).Code)
}

func TestHealthAndMetrics(t *testing.T) {
	r := setupTestRouter(t, config.RateConfig{})

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/healthz", "", nil).Code)
	serve(r, http.MethodGet, "/invoices", "", nil)

	w := serve(r, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "invoicer_http_requests_total")
	assert.Contains(t, w.Body.String(), `path="/invoices"`)
}

func TestRequestIDIsEchoed(t *testing.T) {
	r := setupTestRouter(t, config.RateConfig{})

	w := serve(r, http.MethodGet, "/healthz", "", map[string]string{config.RequestIDHeader: "req-123"})
	assert.Equal(t, "req-123", w.Header().Get(config.RequestIDHeader))

	w = serve(r, http.MethodGet, "/healthz", "", nil)
	assert.NotEmpty(t, w.Header().Get(config.RequestIDHeader))
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	r := setupTestRouter(t, config.RateConfig{})

	w := serve(r, http.MethodGet, "/invoices", "", map[string]string{"Origin": "http://localhost:4200"})
	assert.Equal(t, "http://localhost:4200", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(r, http.MethodGet, "/invoices", "", map[string]string{"Origin": "http://evil.example"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestPDFRoutesAreRateLimited(t *testing.T) {
	r := setupTestRouter(t, config.RateConfig{PerSecond: 0.001, Burst: 1})

	body := `{"clientName":"A","email":"a@example.com","items":[]}`
	require.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/invoices", body, nil).Code)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/invoices/1/pdf", "", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodGet, "/invoices/1/pdf", "", nil).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/invoices/1", "", nil).Code)
}
