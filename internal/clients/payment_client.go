package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tm-acme-shop/acme-shop-cart-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/logging"
)

// CheckoutSessionRequest describes a redirect-based checkout for one order.
type CheckoutSessionRequest struct {
	Mode              string     `json:"mode"`
	ClientReferenceID string     `json:"client_reference_id"`
	CustomerEmail     string     `json:"customer_email,omitempty"`
	SuccessURL        string     `json:"success_url"`
	CancelURL         string     `json:"cancel_url"`
	LineItems         []LineItem `json:"line_items"`
}

// LineItem is one priced product of a checkout session. Amounts are in the
// smallest currency unit.
type LineItem struct {
	PriceData PriceData `json:"price_data"`
	Quantity  int       `json:"quantity"`
}

type PriceData struct {
	UnitAmount  int64       `json:"unit_amount"`
	Currency    string      `json:"currency"`
	ProductData ProductData `json:"product_data"`
}

type ProductData struct {
	Name string `json:"name"`
}

// CheckoutSession is the gateway's answer; URL is where the shopper pays.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// HTTPPaymentGatewayClient talks to the payment gateway over HTTP.
type HTTPPaymentGatewayClient struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
	logger     *logging.LoggerV2
}

// NewHTTPPaymentGatewayClient creates a new HTTP-based payment gateway client.
func NewHTTPPaymentGatewayClient(cfg config.ServiceConfig, logger *logging.LoggerV2) *HTTPPaymentGatewayClient {
	return &HTTPPaymentGatewayClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		apiKey: cfg.APIKey,
		logger: logger,
	}
}

// CreateCheckoutSession opens a checkout session and returns its payment URL.
func (c *HTTPPaymentGatewayClient) CreateCheckoutSession(ctx context.Context, req *CheckoutSessionRequest) (*CheckoutSession, error) {
	c.logger.Debug("Creating checkout session", logging.Fields{
		"reference":  req.ClientReferenceID,
		"line_items": len(req.LineItems),
	})

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/v2/checkout/sessions", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	setHeaders(httpReq, c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("Checkout request failed", logging.Fields{
			"reference": req.ClientReferenceID,
			"error":     err.Error(),
		})
		return nil, errors.Unreachable("create checkout session", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.logger.Error("Checkout request returned error", logging.Fields{
			"reference":   req.ClientReferenceID,
			"status_code": resp.StatusCode,
		})
		return nil, errors.Unavailable("create checkout session", fmt.Errorf("payment gateway returned status %d", resp.StatusCode))
	}

	var session CheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, errors.Unavailable("decode checkout session", err)
	}
	if session.URL == "" {
		return nil, errors.Unavailable("create checkout session", fmt.Errorf("payment gateway returned no url"))
	}

	c.logger.Info("Checkout session created", logging.Fields{
		"reference":  req.ClientReferenceID,
		"session_id": session.ID,
	})

	return &session, nil
}

func setHeaders(req *http.Request, apiKey string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}
