package cartsync

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/tm-acme-shop/acme-shop-cart-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/models"
)

const confirmOrderPath = "/order/confirm-order/"

// OrderSubmission is the answer to the order form.
type OrderSubmission struct {
	Success    bool   `json:"success"`
	PaymentURL string `json:"payment_url,omitempty"`
	Error      string `json:"error,omitempty"`
	OrderID    int64  `json:"order_id,omitempty"`
	OrderNum   string `json:"order_num,omitempty"`
}

type paymentHandOff struct {
	Success    bool   `json:"success"`
	PaymentURL string `json:"payment_url"`
}

// SubmitOrder posts the contact form. A rejected form is returned as an
// unsuccessful submission, not as an error.
func (t *HTTPTransport) SubmitOrder(ctx context.Context, contact models.ContactDetails) (*OrderSubmission, error) {
	form := url.Values{
		"name":      {contact.Name},
		"last_name": {contact.LastName},
		"email":     {contact.Email},
		"phone":     {contact.Phone},
		"address":   {contact.Address},
	}

	req, err := t.newRequest(ctx, http.MethodPost, confirmOrderPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var sub OrderSubmission
	if err := t.do(req, "confirm order", &sub); err != nil {
		if errors.Is(err, errors.ErrBadRequest) {
			return &OrderSubmission{Success: false, Error: err.Error()}, nil
		}
		return nil, err
	}
	return &sub, nil
}

// HandOff submits the hidden payment form to paymentURL, carrying the CSRF
// token, and returns the gateway URL the shopper must visit.
func (t *HTTPTransport) HandOff(ctx context.Context, paymentURL string) (string, error) {
	form := url.Values{"csrfmiddlewaretoken": {t.CSRFToken()}}

	req, err := t.newRequest(ctx, http.MethodPost, paymentURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out paymentHandOff
	if err := t.do(req, "hand off payment", &out); err != nil {
		return "", err
	}
	if !out.Success || out.PaymentURL == "" {
		return "", errors.BadRequest("payment hand-off returned no payment url")
	}
	return out.PaymentURL, nil
}

// Checkout submits the order and, when it is accepted, hands it to payment.
func (t *HTTPTransport) Checkout(ctx context.Context, contact models.ContactDetails) (string, error) {
	sub, err := t.SubmitOrder(ctx, contact)
	if err != nil {
		return "", err
	}
	if !sub.Success {
		t.logger.Warn("Order rejected", logging.Fields{"error": sub.Error})
		return "", errors.BadRequest(sub.Error)
	}
	return t.HandOff(ctx, sub.PaymentURL)
}
