package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"invoicer-backend/config"
	"invoicer-backend/routes"
	"invoicer-backend/services"
	"invoicer-backend/templates"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}
	log := config.NewLogger(cfg.LogLevel)

	db, err := config.ConnectDB(cfg.Database, log)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	templateSource := templates.InvoiceHTML
	if cfg.Invoice.TemplatePath != "" {
		raw, err := os.ReadFile(cfg.Invoice.TemplatePath)
		if err != nil {
			log.Fatalf("reading invoice template: %v", err)
		}
		templateSource = string(raw)
	}

	store := services.NewInvoiceStore(db, log)
	renderer := services.NewTemplateRenderer(templateSource, cfg.Invoice.Currency)
	docs := services.NewChromeGenerator(services.ChromeOptions{
		ExecPath:      cfg.Render.ChromePath,
		Timeout:       cfg.Render.Timeout,
		MaxConcurrent: cfg.Render.MaxConcurrent,
	}, log)
	mailer := services.NewSMTPTransport(services.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		Timeout:  cfg.SMTP.Timeout,
	})

	var sms services.SMSSender
	if sender := services.NewTwilioSender(services.TwilioConfig{
		AccountSID:  cfg.Twilio.AccountSID,
		AuthToken:   cfg.Twilio.AuthToken,
		PhoneNumber: cfg.Twilio.PhoneNumber,
		Timeout:     cfg.Twilio.Timeout,
	}); sender != nil {
		sms = sender
	} else {
		log.Info("Twilio credentials missing, SMS notifications disabled")
	}

	svc := services.NewInvoiceService(store, renderer, docs, mailer, sms, services.InvoiceServiceConfig{
		PublicDir:     cfg.Invoice.PublicDir,
		PublicBaseURL: cfg.Invoice.PublicBaseURL,
		Currency:      cfg.Invoice.Currency,
	}, log)

	regen := services.NewRegenerator(svc, store, log)
	if err := regen.Start(cfg.Invoice.RegenerateSchedule); err != nil {
		log.Fatalf("invalid REGENERATE_SCHEDULE: %v", err)
	}

	if log.IsLevelEnabled(logrus.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	r := routes.SetupRouter(routes.Deps{
		Service: svc,
		Store:   store,
		CORS:    cfg.CORS,
		PDFRate: cfg.PDFRate,
		Log:     log,
	})
	printRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("error during shutdown")
	}
	regen.Stop(ctx)
	if err := config.CloseDB(db); err != nil {
		log.WithError(err).Warn("closing database")
	}
	log.Info("server stopped gracefully")
}

func printRoutes(r *gin.Engine) {
	for _, route := range r.Routes() {
		fmt.Printf("%-6s %s\n", route.Method, route.Path)
	}
}
