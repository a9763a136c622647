package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tm-acme-shop/acme-shop-cart-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/handlers"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/middleware"
)

type Server struct {
	config     *config.Config
	router     *gin.Engine
	httpServer *http.Server
	handlers   *handlers.Handlers
	metrics    *metrics.Metrics
	limiter    *middleware.RateLimiter
	logger     *logging.LoggerV2
}

// New builds the router. limiter may be nil to disable mutation throttling.
func New(h *handlers.Handlers, m *metrics.Metrics, limiter *middleware.RateLimiter, cfg *config.Config) *Server {
	router := gin.New()

	s := &Server{
		config:   cfg,
		router:   router,
		handlers: h,
		metrics:  m,
		limiter:  limiter,
		logger:   logging.NewLoggerV2("http"),
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery())
	if s.metrics != nil {
		s.router.Use(s.metrics.Middleware())
	}
	s.router.Use(middleware.RequestLogger(s.logger))

	s.router.GET("/health", s.handlers.Health)
	s.router.GET("/ready", s.handlers.Ready)
	s.router.GET("/live", s.handlers.Live)
	s.router.GET("/version", s.handlers.Version)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	catalog := s.router.Group("/catalog")
	{
		catalog.GET("/products", s.handlers.ListProducts)
		catalog.GET("/products/:product_id", s.handlers.GetProduct)
	}

	web := s.router.Group("/")
	web.Use(middleware.Session(s.config.Session), middleware.CSRF(s.config.Session))

	throttle := func(c *gin.Context) { c.Next() }
	if s.limiter != nil {
		throttle = s.limiter.Handler()
	}

	cart := web.Group("/cart")
	{
		cart.GET("/", s.handlers.GetCart)
		cart.POST("/add-to-cart/:product_id", throttle, s.handlers.AddToCart)
		cart.PATCH("/update-product-cart/:product_id", throttle, s.handlers.UpdateProductCart)
		cart.POST("/delete-from-cart/:product_id", throttle, s.handlers.DeleteFromCart)
		cart.POST("/clear-cart/", throttle, s.handlers.ClearCart)
		cart.POST("/restore_cart/:order_pending_id", middleware.RequireUser(), s.handlers.RestoreCart)
	}

	order := web.Group("/order", middleware.RequireUser())
	{
		order.POST("/confirm-order/", s.handlers.ConfirmOrder)
		order.GET("/order-summary/:order_id", s.handlers.GetOrderSummary)
		order.GET("/pending/", s.handlers.ListPendingOrders)
		order.POST("/delete-pending-order/:order_id", s.handlers.DeletePendingOrder)
	}

	payment := web.Group("/payment", middleware.RequireUser())
	{
		payment.POST("/process/", s.handlers.ProcessPayment)
		payment.GET("/completed/", s.handlers.PaymentCompleted)
		payment.GET("/canceled/", s.handlers.PaymentCanceled)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", logging.Fields{"addr": s.httpServer.Addr})
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
