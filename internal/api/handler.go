package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"inventory-ledger/internal/models"
	"inventory-ledger/internal/service"
	"inventory-ledger/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// PrincipalHeader carries the authenticated user id set by the gateway
const PrincipalHeader = "X-Principal-ID"

const principalKey = "principal_id"

// NoticeReader drains an owner's low-stock notice box
type NoticeReader interface {
	DrainNotices(ctx context.Context, ownerID int64) ([]models.LowStockNotice, error)
}

type readinessCheck struct {
	name  string
	check func(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	cartService    *service.CartService
	ledgerService  *service.LedgerService
	catalogService *service.CatalogService
	auditService   *service.AuditService
	notices        NoticeReader
	checks         []readinessCheck
	logger         *zap.Logger
}

// NewHandler creates a new HTTP handler. notices may be nil when Redis is not
// configured; the notice endpoint then answers 503.
func NewHandler(
	cartService *service.CartService,
	ledgerService *service.LedgerService,
	catalogService *service.CatalogService,
	auditService *service.AuditService,
	notices NoticeReader,
) *Handler {
	return &Handler{
		cartService:    cartService,
		ledgerService:  ledgerService,
		catalogService: catalogService,
		auditService:   auditService,
		notices:        notices,
		logger:         util.GetLogger(),
	}
}

// AddReadinessCheck registers a dependency probed by /ready
func (h *Handler) AddReadinessCheck(name string, check func(ctx context.Context) error) {
	h.checks = append(h.checks, readinessCheck{name: name, check: check})
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(requirePrincipal())
	{
		v1.POST("/warehouses", h.createWarehouse)
		v1.POST("/products", h.createProduct)
		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)
		v1.POST("/products/:id/restock", h.restockProduct)
		v1.POST("/products/:id/archive", h.archiveProduct)

		v1.POST("/carts", h.createCart)
		v1.GET("/carts", h.listCarts)
		v1.GET("/carts/:id", h.getCart)
		v1.DELETE("/carts/:id", h.cancelCart)
		v1.POST("/carts/:id/items", h.addCartItem)
		v1.DELETE("/carts/:id/items/:itemID", h.removeCartItem)
		v1.POST("/carts/:id/comments", h.addCartComment)
		v1.POST("/carts/:id/commit", h.commitCart)

		v1.GET("/sales", h.listSales)
		v1.GET("/sales/:id", h.getSale)
		v1.POST("/sales/:id/items/:itemID/returns", h.returnItem)
		v1.GET("/sales/:id/returns", h.listReturns)
		v1.POST("/sales/:id/comments", h.addSaleComment)

		v1.GET("/notices", h.drainNotices)
		v1.GET("/logs", h.listLogs)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports not ready while any registered dependency fails
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for _, rc := range h.checks {
		if err := rc.check(ctx); err != nil {
			failed[rc.name] = err.Error()
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// requirePrincipal rejects requests without a numeric principal header
func requirePrincipal() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.GetHeader(PrincipalHeader), 10, 64)
		if err != nil || id <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing or invalid " + PrincipalHeader + " header",
			})
			return
		}
		c.Set(principalKey, id)
		c.Next()
	}
}

func principal(c *gin.Context) int64 {
	return c.GetInt64(principalKey)
}

// pathID parses a positive integer path parameter, writing a 400 on failure
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid " + name,
		})
		return 0, false
	}
	return id, true
}

// bindJSON decodes the request body, writing a 400 on failure
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return false
	}
	return true
}

// writeError translates service errors into HTTP responses
func (h *Handler) writeError(c *gin.Context, err error) {
	var validationErr *service.ValidationError
	var stockErr *service.InsufficientStockError
	var overReturnErr *service.OverReturnError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "Validation failed",
			"violations": validationErr.Violations,
		})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Not found",
			"details": err.Error(),
		})
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":        "Insufficient stock",
			"product_id":   stockErr.ProductID,
			"product_name": stockErr.ProductName,
			"requested":    stockErr.Requested,
			"available":    stockErr.Available,
		})
	case errors.As(err, &overReturnErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":        "Return exceeds remaining quantity",
			"sale_item_id": overReturnErr.SaleItemID,
			"requested":    overReturnErr.Requested,
			"remaining":    overReturnErr.Remaining,
		})
	case errors.Is(err, service.ErrEmptyCart):
		c.JSON(http.StatusConflict, gin.H{
			"error": "Cart is empty",
		})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "Conflict",
			"details": err.Error(),
		})
	default:
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
