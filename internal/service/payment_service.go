package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tm-acme-shop/acme-shop-cart-service/internal/clients"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/session"
)

const (
	checkoutModePayment = "payment"
	purchaseSubject     = "Thanks for your purchase"

	PaymentCompletedPath = "/payment/completed/"
	PaymentCanceledPath  = "/payment/canceled/"
)

// CheckoutGateway opens redirect-based checkout sessions.
type CheckoutGateway interface {
	CreateCheckoutSession(ctx context.Context, req *clients.CheckoutSessionRequest) (*clients.CheckoutSession, error)
}

// EmailSender delivers plain-text emails.
type EmailSender interface {
	SendEmail(ctx context.Context, req *clients.EmailRequest) error
}

// PaymentService hands the session's order over to the payment gateway and
// settles it when the shopper comes back.
type PaymentService struct {
	sessions session.Store
	orders   *OrderService
	gateway  CheckoutGateway
	mailer   EmailSender
	config   *config.Config
	metrics  *metrics.Metrics
	logger   *logging.LoggerV2
}

// NewPaymentService creates a new payment service.
func NewPaymentService(
	sessions session.Store,
	orders *OrderService,
	gateway CheckoutGateway,
	mailer EmailSender,
	cfg *config.Config,
	m *metrics.Metrics,
) *PaymentService {
	return &PaymentService{
		sessions: sessions,
		orders:   orders,
		gateway:  gateway,
		mailer:   mailer,
		config:   cfg,
		metrics:  m,
		logger:   logging.NewLoggerV2("payment-service"),
	}
}

// CreateCheckout opens a checkout session for the order remembered in the
// session and returns the URL the shopper must be sent to.
func (s *PaymentService) CreateCheckout(ctx context.Context, sessionID, clientID string) (paymentURL string, err error) {
	raw, ok, err := s.sessions.Value(ctx, sessionID, session.KeyOrderID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.BadRequest("no order found in session")
	}
	orderID, err := ParseOrderID(raw)
	if err != nil {
		return "", err
	}

	order, err := s.orders.clientOrder(ctx, clientID, orderID)
	if err != nil {
		return "", err
	}
	if !order.IsPending() {
		return "", errors.BadRequest("order is already paid")
	}
	if len(order.Details) == 0 {
		return "", errors.BadRequest("order has no items")
	}

	contact := s.contact(ctx, sessionID)
	req := s.checkoutRequest(order, contact.Email)

	s.logger.Info("Creating checkout session", logging.Fields{
		"order_id":  order.ID,
		"order_num": order.OrderNum,
		"items":     len(req.LineItems),
	})

	checkout, err := s.gateway.CreateCheckoutSession(ctx, req)
	s.metrics.CheckoutSession(err)
	if err != nil {
		s.logger.Error("Checkout session creation failed", logging.Fields{
			"order_id": order.ID,
			"error":    err.Error(),
		})
		return "", err
	}

	return checkout.URL, nil
}

func (s *PaymentService) checkoutRequest(order *models.Order, customerEmail string) *clients.CheckoutSessionRequest {
	baseURL := strings.TrimRight(s.config.Server.PublicURL, "/")

	req := &clients.CheckoutSessionRequest{
		Mode:              checkoutModePayment,
		ClientReferenceID: order.OrderNum,
		CustomerEmail:     customerEmail,
		SuccessURL:        baseURL + PaymentCompletedPath,
		CancelURL:         baseURL + PaymentCanceledPath,
		LineItems:         make([]clients.LineItem, 0, len(order.Details)),
	}
	for _, d := range order.Details {
		req.LineItems = append(req.LineItems, clients.LineItem{
			PriceData: clients.PriceData{
				UnitAmount:  d.UnitPrice.Cents(),
				Currency:    s.config.Cart.Currency,
				ProductData: clients.ProductData{Name: d.ProductTitle},
			},
			Quantity: d.Quantity,
		})
	}
	return req
}

// CompletePayment settles the order remembered in the session. The order id
// is consumed, so a second call reports ErrNotFound. A failed confirmation
// email does not fail the payment.
func (s *PaymentService) CompletePayment(ctx context.Context, sessionID, clientID string) (*models.Order, error) {
	raw, ok, err := session.PopValue(ctx, s.sessions, sessionID, session.KeyOrderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.ErrNotFound
	}
	orderID, err := ParseOrderID(raw)
	if err != nil {
		return nil, errors.ErrNotFound
	}

	if _, err := s.orders.clientOrder(ctx, clientID, orderID); err != nil {
		return nil, err
	}

	order, err := s.orders.markPaid(ctx, orderID)
	if err != nil {
		return nil, err
	}

	s.sendPurchaseEmail(ctx, order, s.contact(ctx, sessionID))
	return order, nil
}

// contact returns the details captured at order confirmation, or an empty
// value when the session has none.
func (s *PaymentService) contact(ctx context.Context, sessionID string) models.ContactDetails {
	var contact models.ContactDetails

	raw, ok, err := s.sessions.Value(ctx, sessionID, session.KeyClientData)
	if err != nil || !ok {
		return contact
	}
	if err := json.Unmarshal([]byte(raw), &contact); err != nil {
		s.logger.Warn("Ignoring malformed client data", logging.Fields{
			"session_id": sessionID,
			"error":      err.Error(),
		})
	}
	return contact
}

func (s *PaymentService) sendPurchaseEmail(ctx context.Context, order *models.Order, contact models.ContactDetails) {
	if contact.Email == "" {
		s.logger.Warn("No email address for purchase confirmation", logging.Fields{
			"order_id": order.ID,
		})
		return
	}

	err := s.mailer.SendEmail(ctx, &clients.EmailRequest{
		To:      []string{contact.Email},
		Subject: purchaseSubject,
		Body:    PurchaseEmailBody(order, contact.Name),
	})
	if err != nil {
		s.logger.Error("Failed to send confirmation email", logging.Fields{
			"order_id":  order.ID,
			"order_num": order.OrderNum,
			"error":     err.Error(),
		})
		return
	}

	s.logger.Info("Confirmation email sent", logging.Fields{"order_num": order.OrderNum})
}

// PurchaseEmailBody renders the confirmation email for a paid order.
func PurchaseEmailBody(order *models.Order, firstName string) string {
	titles := make([]string, 0, len(order.Details))
	for _, d := range order.Details {
		titles = append(titles, d.ProductTitle)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Thanks for your purchase %s\n", firstName)
	b.WriteString("Your order was completed successfully\n")
	fmt.Fprintf(&b, "Your order num is %s\n", order.OrderNum)
	fmt.Fprintf(&b, "Order products: %s\n", strings.Join(titles, ", "))
	fmt.Fprintf(&b, "Total Price %s\n", order.TotalPrice.String())
	return b.String()
}
