package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tm-acme-shop/acme-shop-cart-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/service"
)

// ReadinessCheck reports whether a dependency can serve requests.
type ReadinessCheck func(ctx context.Context) error

// Handlers holds all HTTP handlers for the cart service.
type Handlers struct {
	cartService    *service.CartService
	catalogService *service.CatalogService
	orderService   *service.OrderService
	paymentService *service.PaymentService
	checks         map[string]ReadinessCheck
	config         *config.Config
	logger         *logging.LoggerV2
}

// NewHandlers creates a new handlers instance.
func NewHandlers(
	cartService *service.CartService,
	catalogService *service.CatalogService,
	orderService *service.OrderService,
	paymentService *service.PaymentService,
	cfg *config.Config,
) *Handlers {
	return &Handlers{
		cartService:    cartService,
		catalogService: catalogService,
		orderService:   orderService,
		paymentService: paymentService,
		checks:         make(map[string]ReadinessCheck),
		config:         cfg,
		logger:         logging.NewLoggerV2("handlers"),
	}
}

// AddReadinessCheck registers a dependency probed by GET /ready.
func (h *Handlers) AddReadinessCheck(name string, check ReadinessCheck) {
	h.checks[name] = check
}

// clientID returns the authenticated client, if the gateway sent one.
func clientID(c *gin.Context) string {
	if id := middleware.ClientID(c); id != "" {
		return id
	}
	return c.GetHeader(middleware.UserIDHeader)
}

// handleError maps service errors to status codes. The body is always
// {"error": "..."}.
func handleError(c *gin.Context, err error) {
	var validationErr *errors.ValidationError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   validationErr.Message,
			"details": validationErr.Details,
		})
	case errors.Is(err, errors.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
	case errors.Is(err, errors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, errors.ErrBadRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, errors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	case errors.Is(err, errors.ErrUnavailable), errors.Is(err, errors.ErrUnreachable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service temporarily unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
