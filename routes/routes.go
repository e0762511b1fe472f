package routes

import (
	"invoicer-backend/config"
	"invoicer-backend/controllers"
	"invoicer-backend/metrics"
	"invoicer-backend/services"
	"invoicer-backend/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Deps is everything the router needs to build its handlers.
type Deps struct {
	Service *services.InvoiceService
	Store   *services.InvoiceStore
	CORS    config.CORSConfig
	PDFRate config.RateConfig
	Log     logrus.FieldLogger
}

func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	origins := d.CORS.AllowedOrigins
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", config.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", config.RequestIDHeader},
		AllowCredentials: true,
		AllowOriginFunc: func(origin string) bool {
			for _, o := range origins {
				if o == "*" || o == origin {
					return true
				}
			}
			return false
		},
	}))

	r.Use(config.PerformanceLogger(d.Log))
	r.Use(metrics.Middleware())

	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/healthz", controllers.Health(d.Store))

	invoiceController := controllers.NewInvoiceController(d.Service)
	pdfLimiter := utils.NewRateLimiter(d.PDFRate.PerSecond, d.PDFRate.Burst)

	// The frontend calls the bare paths; /api is kept for proxies that
	// forward under a prefix.
	registerInvoiceRoutes(r.Group(""), invoiceController, pdfLimiter)
	registerInvoiceRoutes(r.Group("/api"), invoiceController, pdfLimiter)

	return r
}

func registerInvoiceRoutes(g *gin.RouterGroup, ctl *controllers.InvoiceController, limiter *utils.RateLimiter) {
	invoices := g.Group("/invoices")
	{
		invoices.POST("", ctl.CreateInvoice)
		invoices.GET("", ctl.GetInvoices)
		invoices.GET("/:id", ctl.GetInvoice)
		invoices.PUT("/:id", ctl.UpdateInvoice)
		invoices.DELETE("/:id", ctl.DeleteInvoice)
		invoices.GET("/:id/pdf", limiter.Middleware(), ctl.GetInvoicePDF)
		invoices.POST("/:id/regenerate", limiter.Middleware(), ctl.RegenerateInvoicePDF)
		invoices.POST("/:id/notify", ctl.NotifyInvoice)
	}
	g.POST("/send-invoice", ctl.SendInvoice)
}
