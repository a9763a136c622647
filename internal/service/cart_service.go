package service

import (
	"context"

	"github.com/tm-acme-shop/acme-shop-cart-service/internal/cart"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/events"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/repository"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/session"
)

// Cart operations, as reported to metrics.
const (
	opUpdateLine  = "update_line"
	opAddProduct  = "add_product"
	opRemove      = "remove_product"
	opClear       = "clear"
	opRestoreCart = "restore_pending"
)

// CartService handles cart business logic. Every call works on the cart of
// one session, bound to a cart.Store for the duration of the call.
type CartService struct {
	sessions  session.Store
	catalog   ProductLookup
	pricing   *PricingCalculator
	orders    repository.OrderRepository
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *logging.LoggerV2
}

// NewCartService creates a new cart service.
func NewCartService(
	sessions session.Store,
	catalog ProductLookup,
	pricing *PricingCalculator,
	orders repository.OrderRepository,
	publisher events.Publisher,
	m *metrics.Metrics,
) *CartService {
	return &CartService{
		sessions:  sessions,
		catalog:   catalog,
		pricing:   pricing,
		orders:    orders,
		publisher: publisher,
		metrics:   m,
		logger:    logging.NewLoggerV2("cart-service"),
	}
}

func (s *CartService) store(sessionID string) *cart.Store {
	return cart.NewStore(s.sessions, sessionID, s.logger)
}

// UpdateLine sets the quantity of one line and returns the resulting
// snapshot. Negative quantities are treated as 0, which removes the line;
// quantities above the line limit are rejected.
//
// A product that left the catalog while still in the cart is removed and
// reported as such. A product that is neither in the catalog nor in the cart
// is ErrProductNotFound.
func (s *CartService) UpdateLine(ctx context.Context, sessionID, productID string, quantity int) (snapshot *models.CartSnapshot, err error) {
	defer func() { s.metrics.CartMutation(opUpdateLine, err) }()

	if quantity < 0 {
		quantity = 0
	}
	if err := ValidateLineQuantity(quantity); err != nil {
		return nil, err
	}
	store := s.store(sessionID)

	product, err := s.catalog.GetProduct(ctx, productID)
	if errors.Is(err, errors.ErrProductNotFound) {
		current, qerr := store.Quantity(ctx, productID)
		if qerr != nil {
			return nil, qerr
		}
		if current == 0 {
			return nil, err
		}
		s.logger.Warn("Product left the catalog, removing cart line", logging.Fields{
			"session_id": sessionID,
			"product_id": productID,
		})
		product, quantity = nil, 0
	} else if err != nil {
		return nil, err
	}

	if err := store.SetQuantity(ctx, productID, quantity); err != nil {
		return nil, err
	}

	view, err := s.pricing.PriceCart(ctx, store)
	if err != nil {
		return nil, err
	}

	snapshot = &models.CartSnapshot{
		ProductID:  productID,
		Quantity:   quantity,
		TotalPrice: view.TotalPrice,
		Removed:    quantity == 0,
		ItemCount:  view.ItemCount,
	}
	if product != nil && quantity > 0 {
		subtotal := product.Price.MulInt(quantity)
		snapshot.Subtotal = &subtotal
	}

	s.logger.Info("Cart line updated", logging.Fields{
		"session_id": sessionID,
		"product_id": productID,
		"quantity":   quantity,
		"total":      view.TotalPrice.String(),
	})

	s.publishLineUpdated(ctx, sessionID, snapshot)
	return snapshot, nil
}

// AddProduct adds quantity units of productID to the cart, accumulating onto
// any existing line. The accumulated quantity is held to the line limit.
func (s *CartService) AddProduct(ctx context.Context, sessionID, productID string, quantity int) (snapshot *models.CartSnapshot, err error) {
	defer func() { s.metrics.CartMutation(opAddProduct, err) }()

	if err := ValidateQuantity(quantity); err != nil {
		return nil, err
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	store := s.store(sessionID)
	current, err := store.Quantity(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := ValidateLineQuantity(current + quantity); err != nil {
		return nil, err
	}

	next, err := store.Add(ctx, productID, quantity)
	if err != nil {
		return nil, err
	}

	view, err := s.pricing.PriceCart(ctx, store)
	if err != nil {
		return nil, err
	}

	subtotal := product.Price.MulInt(next)
	snapshot = &models.CartSnapshot{
		ProductID:  productID,
		Quantity:   next,
		Subtotal:   &subtotal,
		TotalPrice: view.TotalPrice,
		ItemCount:  view.ItemCount,
	}

	s.logger.Info("Product added to cart", logging.Fields{
		"session_id": sessionID,
		"product_id": productID,
		"added":      quantity,
		"quantity":   next,
	})

	s.publishLineUpdated(ctx, sessionID, snapshot)
	return snapshot, nil
}

// RemoveProduct deletes a line. Unknown products are tolerated.
func (s *CartService) RemoveProduct(ctx context.Context, sessionID, productID string) (snapshot *models.CartSnapshot, err error) {
	defer func() { s.metrics.CartMutation(opRemove, err) }()

	store := s.store(sessionID)
	if err := store.Remove(ctx, productID); err != nil {
		return nil, err
	}

	view, err := s.pricing.PriceCart(ctx, store)
	if err != nil {
		return nil, err
	}

	snapshot = &models.CartSnapshot{
		ProductID:  productID,
		TotalPrice: view.TotalPrice,
		Removed:    true,
		ItemCount:  view.ItemCount,
	}

	s.publishLineUpdated(ctx, sessionID, snapshot)
	return snapshot, nil
}

// Clear empties the cart.
func (s *CartService) Clear(ctx context.Context, sessionID string) (err error) {
	defer func() { s.metrics.CartMutation(opClear, err) }()

	if err := s.store(sessionID).Clear(ctx); err != nil {
		return err
	}

	s.logger.Info("Cart cleared", logging.Fields{"session_id": sessionID})

	if err := s.publisher.PublishCartCleared(ctx, sessionID); err != nil {
		// Log but don't fail
		s.logger.Error("Failed to publish cart cleared event", logging.Fields{
			"session_id": sessionID,
			"error":      err.Error(),
		})
	}
	return nil
}

// View prices the cart. When clientID is set the client's pending orders are
// attached so that they can be restored.
func (s *CartService) View(ctx context.Context, sessionID, clientID string) (*models.CartView, error) {
	view, err := s.pricing.PriceCart(ctx, s.store(sessionID))
	if err != nil {
		return nil, err
	}

	if clientID != "" {
		pending, err := s.orders.ListPendingByClient(ctx, clientID)
		if err != nil {
			return nil, err
		}
		view.PendingOrders = pending
	}

	return view, nil
}

// RestorePendingOrder replaces the current cart with the lines of one of the
// client's pending orders. Lines already in the cart are discarded, not
// merged. Orders of other clients and paid orders are not found.
func (s *CartService) RestorePendingOrder(ctx context.Context, sessionID, clientID string, orderID int64) (view *models.CartView, err error) {
	defer func() { s.metrics.CartMutation(opRestoreCart, err) }()

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.ClientID != clientID || !order.IsPending() {
		return nil, errors.ErrNotFound
	}

	lines := make([]cart.Line, 0, len(order.Details))
	for _, d := range order.Details {
		lines = append(lines, cart.Line{ProductID: d.ProductID, Quantity: d.Quantity})
	}

	store := s.store(sessionID)
	if err := store.ReplaceWith(ctx, lines); err != nil {
		return nil, err
	}

	s.logger.Info("Pending order restored to cart", logging.Fields{
		"session_id": sessionID,
		"order_id":   orderID,
		"lines":      len(lines),
	})

	return s.View(ctx, sessionID, clientID)
}

func (s *CartService) publishLineUpdated(ctx context.Context, sessionID string, snapshot *models.CartSnapshot) {
	if err := s.publisher.PublishCartLineUpdated(ctx, sessionID, snapshot); err != nil {
		// Log but don't fail
		s.logger.Error("Failed to publish cart line event", logging.Fields{
			"session_id": sessionID,
			"product_id": snapshot.ProductID,
			"error":      err.Error(),
		})
	}
}
