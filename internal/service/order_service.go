package service

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/tm-acme-shop/acme-shop-cart-service/internal/cart"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/events"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/repository"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/session"
)

var _ events.PaymentHandler = (*OrderService)(nil)

// OrderService turns carts into orders and tracks their payment status.
type OrderService struct {
	sessions  session.Store
	catalog   ProductLookup
	orderRepo repository.OrderRepository
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *logging.LoggerV2
}

// NewOrderService creates a new order service.
func NewOrderService(
	sessions session.Store,
	catalog ProductLookup,
	orderRepo repository.OrderRepository,
	publisher events.Publisher,
	m *metrics.Metrics,
) *OrderService {
	return &OrderService{
		sessions:  sessions,
		catalog:   catalog,
		orderRepo: orderRepo,
		publisher: publisher,
		metrics:   m,
		logger:    logging.NewLoggerV2("order-service"),
	}
}

// ConfirmOrder creates a pending order from the session cart. Products that
// left the catalog are skipped. On success the cart is cleared and the order
// id and contact details are kept in the session for checkout.
func (s *OrderService) ConfirmOrder(ctx context.Context, sessionID, clientID string, contact *models.ContactDetails) (*models.Order, error) {
	if err := ValidateContactDetails(contact); err != nil {
		return nil, err
	}

	store := cart.NewStore(s.sessions, sessionID, s.logger)
	lines, err := store.Lines(ctx)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, errors.BadRequest("cart is empty")
	}

	s.logger.Info("Confirming order", logging.Fields{
		"session_id": sessionID,
		"client_id":  clientID,
		"lines":      len(lines),
	})

	details := make([]models.OrderDetail, 0, len(lines))
	for _, l := range lines {
		product, err := s.catalog.GetProduct(ctx, l.ProductID)
		if errors.Is(err, errors.ErrProductNotFound) {
			s.logger.Warn("Skipping product missing from catalog", logging.Fields{
				"product_id": l.ProductID,
			})
			continue
		}
		if err != nil {
			return nil, err
		}
		details = append(details, models.NewOrderDetail(product, l.Quantity))
	}
	if len(details) == 0 {
		return nil, errors.BadRequest("no products in cart are available")
	}

	order, err := s.orderRepo.Create(ctx, &models.Order{
		ClientID: clientID,
		Details:  details,
	})
	if err != nil {
		s.logger.Error("Failed to create order", logging.Fields{
			"client_id": clientID,
			"error":     err.Error(),
		})
		return nil, err
	}
	s.metrics.OrderCreated()

	if err := store.Clear(ctx); err != nil {
		return nil, err
	}

	contactData, err := json.Marshal(contact)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.SetValue(ctx, sessionID, session.KeyClientData, string(contactData)); err != nil {
		return nil, err
	}
	if err := s.rememberOrder(ctx, sessionID, order.ID); err != nil {
		return nil, err
	}

	if err := s.publisher.PublishOrderCreated(ctx, order); err != nil {
		// Log but don't fail
		s.logger.Error("Failed to publish order created event", logging.Fields{
			"order_id": order.ID,
			"error":    err.Error(),
		})
	}

	s.logger.Info("Order created successfully", logging.Fields{
		"order_id":  order.ID,
		"order_num": order.OrderNum,
		"total":     order.TotalPrice.String(),
	})

	return order, nil
}

// GetOrderSummary returns one of the client's orders and makes it the order
// checked out by the session.
func (s *OrderService) GetOrderSummary(ctx context.Context, sessionID, clientID string, orderID int64) (*models.Order, error) {
	order, err := s.clientOrder(ctx, clientID, orderID)
	if err != nil {
		return nil, err
	}

	if err := s.rememberOrder(ctx, sessionID, order.ID); err != nil {
		return nil, err
	}
	return order, nil
}

// ListPendingOrders returns the client's unpaid orders.
func (s *OrderService) ListPendingOrders(ctx context.Context, clientID string) ([]*models.Order, error) {
	return s.orderRepo.ListPendingByClient(ctx, clientID)
}

// DeletePendingOrder removes an unpaid order of the client.
func (s *OrderService) DeletePendingOrder(ctx context.Context, clientID string, orderID int64) error {
	s.logger.Info("Deleting pending order", logging.Fields{
		"order_id":  orderID,
		"client_id": clientID,
	})
	return s.orderRepo.DeletePending(ctx, orderID, clientID)
}

// MarkPaid moves a pending order to paid. Paying an already paid order is a
// no-op.
func (s *OrderService) MarkPaid(ctx context.Context, orderID int64) error {
	_, err := s.markPaid(ctx, orderID)
	return err
}

func (s *OrderService) markPaid(ctx context.Context, orderID int64) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsPending() {
		s.logger.Debug("Order already paid", logging.Fields{"order_id": orderID})
		return order, nil
	}

	if err := s.orderRepo.UpdateStatus(ctx, orderID, models.OrderStatusPaid); err != nil {
		return nil, err
	}
	order.Status = models.OrderStatusPaid

	if err := s.publisher.PublishOrderPaid(ctx, order); err != nil {
		s.logger.Error("Failed to publish order paid event", logging.Fields{
			"order_id": orderID,
			"error":    err.Error(),
		})
	}

	s.logger.Info("Order paid", logging.Fields{
		"order_id":  orderID,
		"order_num": order.OrderNum,
	})
	return order, nil
}

// clientOrder loads an order owned by clientID. Orders of other clients are
// reported as not found.
func (s *OrderService) clientOrder(ctx context.Context, clientID string, orderID int64) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.ClientID != clientID {
		return nil, errors.ErrNotFound
	}
	return order, nil
}

func (s *OrderService) rememberOrder(ctx context.Context, sessionID string, orderID int64) error {
	return s.sessions.SetValue(ctx, sessionID, session.KeyOrderID, strconv.FormatInt(orderID, 10))
}
