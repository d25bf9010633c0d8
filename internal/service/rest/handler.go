// Package rest публикует операции продаж, целостности и отчётов через HTTP API на gin.
package rest

import (
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
	"github.com/vladislavdragonenkov/salescore/internal/metrics"
	"github.com/vladislavdragonenkov/salescore/internal/service/catalog"
	"github.com/vladislavdragonenkov/salescore/internal/service/integrity"
	"github.com/vladislavdragonenkov/salescore/internal/service/reporting"
	"github.com/vladislavdragonenkov/salescore/internal/service/sales"
)

const defaultIdempotencyTTL = 24 * time.Hour

// Services — прикладные сервисы, которые обслуживает HTTP API.
type Services struct {
	Sales       *sales.Engine
	Guard       *integrity.Guard
	Reports     *reporting.Engine
	Catalog     *catalog.Service
	Idempotency domain.IdempotencyRepository
}

// Option настраивает Handler.
type Option func(*Handler)

// WithLogger задаёт логгер обработчиков.
func WithLogger(logger *log.Entry) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithIdempotencyTTL задаёт срок хранения ответов по Idempotency-Key.
func WithIdempotencyTTL(ttl time.Duration) Option {
	return func(h *Handler) {
		if ttl > 0 {
			h.idempotencyTTL = ttl
		}
	}
}

// WithClock подменяет источник времени (для тестов).
func WithClock(clock func() time.Time) Option {
	return func(h *Handler) {
		if clock != nil {
			h.now = clock
		}
	}
}

// Handler — набор HTTP-обработчиков /api/v1.
type Handler struct {
	sales       *sales.Engine
	guard       *integrity.Guard
	reports     *reporting.Engine
	catalog     *catalog.Service
	idempotency domain.IdempotencyRepository

	idempotencyTTL time.Duration
	logger         *log.Entry
	now            func() time.Time
}

// NewHandler собирает обработчики поверх сервисов.
func NewHandler(services Services, options ...Option) *Handler {
	h := &Handler{
		sales:          services.Sales,
		guard:          services.Guard,
		reports:        services.Reports,
		catalog:        services.Catalog,
		idempotency:    services.Idempotency,
		idempotencyTTL: defaultIdempotencyTTL,
		logger:         log.WithField("component", "rest"),
		now:            func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range options {
		opt(h)
	}
	return h
}

// RegisterRoutes регистрирует маршруты API в группе.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	salesGroup := router.Group("/sales")
	{
		salesGroup.POST("", h.idempotent(), h.createSale)
		salesGroup.GET("/:id", h.getSale)
		salesGroup.PUT("/:id/lines", h.updateSale)
		salesGroup.POST("/:id/complete", h.completeSale)
		salesGroup.POST("/:id/cancel", h.cancelSale)
		salesGroup.DELETE("/:id", h.deleteEntity(domain.EntitySale))
	}

	customers := router.Group("/customers")
	{
		customers.POST("", h.createCustomer)
		customers.GET("/:id", h.getCustomer)
		customers.GET("/:id/sales", h.listCustomerSales)
		customers.DELETE("/:id", h.deleteEntity(domain.EntityCustomer))
	}

	products := router.Group("/products")
	{
		products.POST("", h.createProduct)
		products.GET("/:id", h.getProduct)
		products.POST("/:id/deactivate", h.deactivateProduct)
		products.DELETE("/:id", h.deleteEntity(domain.EntityProduct))
	}

	router.POST("/categories", h.createCategory)
	router.DELETE("/categories/:id", h.deleteEntity(domain.EntityCategory))
	router.POST("/suppliers", h.createSupplier)
	router.DELETE("/suppliers/:id", h.deleteEntity(domain.EntitySupplier))
	router.POST("/promotions", h.createPromotion)
	router.POST("/purchase-orders", h.createPurchaseOrder)

	returns := router.Group("/returns")
	{
		returns.POST("", h.createReturn)
		returns.GET("/:id", h.getReturn)
		returns.POST("/:id/cancel", h.cancelReturn)
	}

	router.GET("/reports/summary", h.salesSummary)
}

// NewRouter собирает gin.Engine с recovery, журналом запросов и HTTP-метриками.
func NewRouter(h *Handler, httpMetrics *metrics.HTTPMetrics) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(h.logger))
	if httpMetrics != nil {
		router.Use(httpMetrics.Middleware())
	}
	h.RegisterRoutes(router.Group("/api/v1"))
	return router
}

func requestLogger(logger *log.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(log.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if c.Writer.Status() >= 500 {
			entry.Warn("http request")
			return
		}
		entry.Debug("http request")
	}
}
