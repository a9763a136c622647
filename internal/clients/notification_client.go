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

// EmailRequest is a plain-text email.
type EmailRequest struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// HTTPNotificationClient sends emails through the notification service.
type HTTPNotificationClient struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
	logger     *logging.LoggerV2
}

// NewHTTPNotificationClient creates a new HTTP-based notification client.
func NewHTTPNotificationClient(cfg config.ServiceConfig, logger *logging.LoggerV2) *HTTPNotificationClient {
	return &HTTPNotificationClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		apiKey: cfg.APIKey,
		logger: logger,
	}
}

// SendEmail sends an email notification.
func (c *HTTPNotificationClient) SendEmail(ctx context.Context, req *EmailRequest) error {
	c.logger.Debug("Sending email", logging.Fields{
		"to":      req.To,
		"subject": req.Subject,
	})

	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/api/v2/notifications/email", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	setHeaders(httpReq, c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return errors.Unreachable("send email", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return errors.Unavailable("send email", fmt.Errorf("email service returned status %d", resp.StatusCode))
	}

	c.logger.Info("Email sent", logging.Fields{"to": req.To})
	return nil
}
