package cartsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/tm-acme-shop/acme-shop-cart-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/logging"
)

const (
	defaultCSRFCookie = "csrftoken"
	defaultCSRFHeader = "X-CSRFToken"
	userIDHeader      = "X-User-ID"
)

// HTTPTransport talks to the cart service the way the cart page does: with
// the session and CSRF cookies in a jar and the token echoed in a header.
type HTTPTransport struct {
	baseURL    *url.URL
	httpClient *http.Client
	csrfCookie string
	csrfHeader string
	userID     string
	logger     *logging.LoggerV2
}

// NewHTTPTransport creates a transport for the service at baseURL.
func NewHTTPTransport(baseURL string, timeout time.Duration, logger *logging.LoggerV2) (*HTTPTransport, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, err
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &HTTPTransport{
		baseURL: u,
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: timeout,
			// The payment hand-off answers with a redirect to the gateway,
			// which is returned to the caller rather than followed.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		csrfCookie: defaultCSRFCookie,
		csrfHeader: defaultCSRFHeader,
		logger:     logger,
	}, nil
}

// SetUserID sets the client identity forwarded on every request, standing in
// for the auth gateway.
func (t *HTTPTransport) SetUserID(userID string) {
	t.userID = userID
}

// Bootstrap loads the cart page, which issues the session and CSRF cookies.
func (t *HTTPTransport) Bootstrap(ctx context.Context) error {
	req, err := t.newRequest(ctx, http.MethodGet, "/cart/", nil)
	if err != nil {
		return err
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return errors.Unreachable("load cart", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return statusError("load cart", resp.StatusCode, "")
	}
	if t.CSRFToken() == "" {
		return errors.BadRequest("no CSRF token issued")
	}
	return nil
}

// CSRFToken returns the token from the cookie jar.
func (t *HTTPTransport) CSRFToken() string {
	for _, c := range t.httpClient.Jar.Cookies(t.baseURL) {
		if c.Name == t.csrfCookie {
			return c.Value
		}
	}
	return ""
}

type updateLineBody struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// UpdateLine implements Transport.
func (t *HTTPTransport) UpdateLine(ctx context.Context, productID string, quantity int) (*Snapshot, error) {
	body, err := json.Marshal(updateLineBody{ProductID: productID, Quantity: quantity})
	if err != nil {
		return nil, err
	}

	req, err := t.newRequest(ctx, http.MethodPatch, "/cart/update-product-cart/"+url.PathEscape(productID), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var snap Snapshot
	if err := t.do(req, "update cart line", &snap); err != nil {
		return nil, err
	}
	if snap.ProductID == "" {
		snap.ProductID = productID
	}
	return &snap, nil
}

func (t *HTTPTransport) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL.ResolveReference(ref).String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if token := t.CSRFToken(); token != "" {
		req.Header.Set(t.csrfHeader, token)
	}
	if t.userID != "" {
		req.Header.Set(userIDHeader, t.userID)
	}
	return req, nil
}

// do sends req and decodes a 2xx JSON body into out.
func (t *HTTPTransport) do(req *http.Request, op string, out interface{}) error {
	resp, err := t.httpClient.Do(req)
	if err != nil {
		t.logger.Warn("Cart request failed", logging.Fields{
			"op":    op,
			"error": err.Error(),
		})
		return errors.Unreachable(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Unreachable(op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &errResp)
		return statusError(op, resp.StatusCode, errResp.Error)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return errors.Unreachable(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func statusError(op string, status int, message string) error {
	if message == "" {
		message = http.StatusText(status)
	}
	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("%s: %w: %s", op, errors.ErrNotFound, message)
	case status == http.StatusBadRequest:
		return fmt.Errorf("%s: %w: %s", op, errors.ErrBadRequest, message)
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%s: %w: %s", op, errors.ErrUnauthorized, message)
	case status >= 500:
		return fmt.Errorf("%s: %w: %s", op, errors.ErrUnavailable, message)
	default:
		return fmt.Errorf("%s: unexpected status %d: %s", op, status, message)
	}
}
