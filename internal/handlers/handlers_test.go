package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tm-acme-shop/acme-shop-cart-service/internal/clients"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/config"
	apperrors "github.com/tm-acme-shop/acme-shop-cart-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/events"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/money"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/service"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/session"
)

const (
	testSessionID = "6f1c1f52-3c1b-4a55-9a8e-2b0f0e0d9a11"
	testCSRFToken = "0b5d4c9e-8f6a-4e1d-b2c3-7a8b9c0d1e2f"
	testClientID  = "client-42"
)

type stubProductRepo struct {
	products map[string]*models.Product
}

func (r *stubProductRepo) GetByID(ctx context.Context, id string) (*models.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, apperrors.ErrProductNotFound
	}
	return p, nil
}

func (r *stubProductRepo) List(ctx context.Context, filter *models.ProductFilter) ([]*models.Product, error) {
	out := make([]*models.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	return out, nil
}

type stubOrderRepo struct {
	mu     sync.Mutex
	orders map[int64]*models.Order
}

func (r *stubOrderRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	created := *order
	created.ID = int64(len(r.orders) + 1)
	created.Status = models.OrderStatusPending
	created.RegistrationDate = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	created.CalculateTotal()
	created.OrderNum = models.FormatOrderNum(created.ID, created.RegistrationDate)
	r.orders[created.ID] = &created
	out := created
	return &out, nil
}

func (r *stubOrderRepo) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	out := *o
	return &out, nil
}

func (r *stubOrderRepo) ListPendingByClient(ctx context.Context, clientID string) ([]*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Order, 0)
	for _, o := range r.orders {
		if o.ClientID == clientID && o.IsPending() {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *stubOrderRepo) UpdateStatus(ctx context.Context, id int64, status models.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	o.Status = status
	return nil
}

func (r *stubOrderRepo) DeletePending(ctx context.Context, id int64, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.ClientID != clientID || !o.IsPending() {
		return apperrors.ErrNotFound
	}
	delete(r.orders, id)
	return nil
}

type stubGateway struct{}

func (stubGateway) CreateCheckoutSession(ctx context.Context, req *clients.CheckoutSessionRequest) (*clients.CheckoutSession, error) {
	return &clients.CheckoutSession{ID: "cs_1", URL: "https://pay.example.com/cs_1"}, nil
}

type stubMailer struct{ sent int }

func (m *stubMailer) SendEmail(ctx context.Context, req *clients.EmailRequest) error {
	m.sent++
	return nil
}

type testServer struct {
	router   *gin.Engine
	sessions *session.MemoryStore
	orders   *stubOrderRepo
	mailer   *stubMailer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Server: config.ServerConfig{PublicURL: "http://shop.test"},
		Session: config.SessionConfig{
			CookieName: "sessionid",
			CSRFCookie: "csrftoken",
			CSRFHeader: "X-CSRFToken",
			TTL:        time.Hour,
		},
		Cart: config.CartConfig{Currency: "usd"},
	}

	ts := &testServer{
		sessions: session.NewMemoryStore(),
		orders:   &stubOrderRepo{orders: make(map[int64]*models.Order)},
		mailer:   &stubMailer{},
	}
	products := &stubProductRepo{products: map[string]*models.Product{
		"1": {ID: "1", Title: "Mug", Price: money.MustParse("10.00")},
		"2": {ID: "2", Title: "Tea", Price: money.MustParse("2.50")},
		"3": {ID: "3", Title: "Sticker", Price: money.Zero},
	}}

	publisher := events.NewMockEventPublisher()
	catalog := service.NewCatalogService(products, nil, logging.NewNop())
	pricing := service.NewPricingCalculator(catalog, nil, logging.NewNop())
	cartService := service.NewCartService(ts.sessions, catalog, pricing, ts.orders, publisher, nil)
	orderService := service.NewOrderService(ts.sessions, catalog, ts.orders, publisher, nil)
	paymentService := service.NewPaymentService(ts.sessions, orderService, stubGateway{}, ts.mailer, cfg, nil)

	h := NewHandlers(cartService, catalog, orderService, paymentService, cfg)

	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.GET("/catalog/products/:product_id", h.GetProduct)

	web := r.Group("/", middleware.Session(cfg.Session), middleware.CSRF(cfg.Session))
	web.GET("/cart/", h.GetCart)
	web.POST("/cart/add-to-cart/:product_id", h.AddToCart)
	web.PATCH("/cart/update-product-cart/:product_id", h.UpdateProductCart)
	web.POST("/cart/delete-from-cart/:product_id", h.DeleteFromCart)
	web.POST("/cart/clear-cart/", h.ClearCart)
	web.POST("/cart/restore_cart/:order_pending_id", middleware.RequireUser(), h.RestoreCart)

	authed := web.Group("/", middleware.RequireUser())
	authed.POST("/order/confirm-order/", h.ConfirmOrder)
	authed.GET("/order/order-summary/:order_id", h.GetOrderSummary)
	authed.POST("/order/delete-pending-order/:order_id", h.DeletePendingOrder)
	authed.POST("/payment/process/", h.ProcessPayment)
	authed.GET("/payment/completed/", h.PaymentCompleted)
	authed.GET("/payment/canceled/", h.PaymentCanceled)

	ts.router = r
	return ts
}

type requestOption func(*http.Request)

func withoutCSRF() requestOption {
	return func(r *http.Request) { r.Header.Del("X-CSRFToken") }
}

func withoutUser() requestOption {
	return func(r *http.Request) { r.Header.Del(middleware.UserIDHeader) }
}

func (ts *testServer) do(method, path, contentType, body string, opts ...requestOption) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.AddCookie(&http.Cookie{Name: "sessionid", Value: testSessionID})
	req.AddCookie(&http.Cookie{Name: "csrftoken", Value: testCSRFToken})
	req.Header.Set("X-CSRFToken", testCSRFToken)
	req.Header.Set(middleware.UserIDHeader, testClientID)
	for _, opt := range opts {
		opt(req)
	}

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) patchLine(productID, body string, opts ...requestOption) *httptest.ResponseRecorder {
	return ts.do(http.MethodPatch, "/cart/update-product-cart/"+productID, "application/json", body, opts...)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response %q: %v", w.Body.String(), err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := &Handlers{}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	h.Health(c)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	resp := decode(t, w)
	if resp["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %v", resp["status"])
	}
	if resp["service"] != "cart-service" {
		t.Errorf("Expected service 'cart-service', got %v", resp["service"])
	}
}

func TestReady(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := &Handlers{checks: make(map[string]ReadinessCheck), logger: logging.NewNop()}
	h.AddReadinessCheck("sessions", func(ctx context.Context) error { return nil })

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)
	h.Ready(c)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	h.AddReadinessCheck("postgres", func(ctx context.Context) error { return errors.New("connection refused") })

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)
	h.Ready(c)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
	checks := decode(t, w)["checks"].(map[string]interface{})
	if checks["postgres"] != "connection refused" {
		t.Errorf("Expected postgres failure to be reported, got %v", checks["postgres"])
	}
}

func TestLive(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := &Handlers{}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	h.Live(c)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestHandleError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not found", apperrors.ErrNotFound, http.StatusNotFound},
		{"product not found", apperrors.ErrProductNotFound, http.StatusNotFound},
		{"validation", apperrors.NewValidationError("email", "email is invalid"), http.StatusBadRequest},
		{"bad request", apperrors.BadRequest("cart is empty"), http.StatusBadRequest},
		{"unauthorized", apperrors.ErrUnauthorized, http.StatusUnauthorized},
		{"unavailable", apperrors.Unavailable("load cart", errors.New("dial tcp")), http.StatusServiceUnavailable},
		{"unreachable", apperrors.Unreachable("checkout", errors.New("timeout")), http.StatusServiceUnavailable},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			handleError(c, tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if _, ok := decode(t, w)["error"]; !ok {
				t.Errorf("Expected an error field in %s", w.Body.String())
			}
		})
	}
}

func TestUpdateProductCart(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/cart/add-to-cart/1", "application/x-www-form-urlencoded", "quantity=2")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	w = ts.patchLine("1", `{"productId": 1, "quantity": 4}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := decode(t, w)
	if resp["subtotal"] != 40.0 {
		t.Errorf("Expected subtotal 40, got %v", resp["subtotal"])
	}
	if resp["total_price"] != 40.0 {
		t.Errorf("Expected total_price 40, got %v", resp["total_price"])
	}
	if resp["removed"] != false {
		t.Errorf("Expected removed false, got %v", resp["removed"])
	}
	if !strings.Contains(w.Body.String(), `"subtotal":40.00`) {
		t.Errorf("Expected two decimal subtotal, got %s", w.Body.String())
	}
}

func TestUpdateProductCart_Removal(t *testing.T) {
	ts := newTestServer(t)
	ts.do(http.MethodPost, "/cart/add-to-cart/1", "", "")
	ts.do(http.MethodPost, "/cart/add-to-cart/3", "", "")

	w := ts.patchLine("1", `{"productId": "1", "quantity": 0}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	if resp["removed"] != true {
		t.Errorf("Expected removed true, got %v", resp["removed"])
	}
	if resp["subtotal"] != 0.0 {
		t.Errorf("Expected subtotal 0, got %v", resp["subtotal"])
	}
	if resp["item_count"] != 1.0 {
		t.Errorf("Expected item_count 1, got %v", resp["item_count"])
	}

	// a $0.00 product is kept while its quantity is positive
	w = ts.patchLine("3", `{"productId": "3", "quantity": 2}`)
	resp = decode(t, w)
	if resp["removed"] != false {
		t.Errorf("Expected zero priced line to be kept, got %v", resp["removed"])
	}
}

func TestUpdateProductCart_Errors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name       string
		productID  string
		body       string
		opts       []requestOption
		wantStatus int
	}{
		{"unknown product", "99", `{"productId": 99, "quantity": 1}`, nil, http.StatusNotFound},
		{"malformed body", "1", `{"quantity": "many"}`, nil, http.StatusBadRequest},
		{"missing quantity", "1", `{"productId": 1}`, nil, http.StatusBadRequest},
		{"mismatched product", "1", `{"productId": 2, "quantity": 1}`, nil, http.StatusBadRequest},
		{"quantity over line limit", "1", `{"productId": 1, "quantity": 1000}`, nil, http.StatusBadRequest},
		{"missing csrf token", "1", `{"productId": 1, "quantity": 1}`, []requestOption{withoutCSRF()}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.patchLine(tt.productID, tt.body, tt.opts...)
			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if _, ok := decode(t, w)["error"]; !ok {
				t.Errorf("Expected an error field in %s", w.Body.String())
			}
		})
	}
}

func TestCartLifecycle(t *testing.T) {
	ts := newTestServer(t)

	ts.do(http.MethodPost, "/cart/add-to-cart/1", "application/json", `{"quantity": 1}`)
	ts.do(http.MethodPost, "/cart/add-to-cart/2", "application/json", `{"quantity": 3}`)

	w := ts.do(http.MethodGet, "/cart/", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	resp := decode(t, w)
	if resp["total_price"] != 17.5 {
		t.Errorf("Expected total 17.50, got %v", resp["total_price"])
	}

	w = ts.do(http.MethodPost, "/cart/delete-from-cart/2", "", "")
	if resp := decode(t, w); resp["total_price"] != 10.0 {
		t.Errorf("Expected total 10.00 after delete, got %v", resp["total_price"])
	}

	w = ts.do(http.MethodPost, "/cart/delete-from-cart/unknown", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected unknown product delete to succeed, got %d", w.Code)
	}

	w = ts.do(http.MethodPost, "/cart/clear-cart/", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	lines, _ := ts.sessions.CartLines(context.Background(), testSessionID)
	if len(lines) != 0 {
		t.Errorf("Expected empty cart, got %d lines", len(lines))
	}
}

func TestCheckoutFlow(t *testing.T) {
	ts := newTestServer(t)
	ts.do(http.MethodPost, "/cart/add-to-cart/1", "", "")

	form := url.Values{
		"name":      {"Ada"},
		"last_name": {"Lovelace"},
		"email":     {"ada@example.com"},
		"phone":     {"555 123 4567"},
		"address":   {"1 Engine St"},
	}
	w := ts.do(http.MethodPost, "/order/confirm-order/", "application/x-www-form-urlencoded", form.Encode())
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	if resp["success"] != true || resp["payment_url"] != PaymentProcessPath {
		t.Fatalf("Unexpected confirm response %v", resp)
	}

	w = ts.do(http.MethodPost, "/payment/process/", "", "")
	resp = decode(t, w)
	if resp["payment_url"] != "https://pay.example.com/cs_1" {
		t.Errorf("Expected gateway url, got %v", resp["payment_url"])
	}

	// the hidden payment form carries the token as a field, not a header
	handOff := url.Values{middleware.CSRFFormField: {testCSRFToken}}
	rw := ts.do(http.MethodPost, "/payment/process/", "application/x-www-form-urlencoded", handOff.Encode(),
		withoutCSRF(), func(r *http.Request) { r.Header.Set("Accept", "text/html") })
	if rw.Code != http.StatusSeeOther || rw.Header().Get("Location") != "https://pay.example.com/cs_1" {
		t.Errorf("Expected redirect to gateway, got %d %s", rw.Code, rw.Header().Get("Location"))
	}

	w = ts.do(http.MethodGet, "/payment/completed/", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if ts.mailer.sent != 1 {
		t.Errorf("Expected one confirmation email, got %d", ts.mailer.sent)
	}

	w = ts.do(http.MethodGet, "/payment/completed/", "", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected second completion to be 404, got %d", w.Code)
	}
}

func TestConfirmOrder_Rejects(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/order/confirm-order/", "application/x-www-form-urlencoded", "name=Ada")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
	if resp := decode(t, w); resp["success"] != false {
		t.Errorf("Expected success false, got %v", resp["success"])
	}

	w = ts.do(http.MethodPost, "/order/confirm-order/", "application/x-www-form-urlencoded", "name=Ada", withoutUser())
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
}

func TestPendingOrders(t *testing.T) {
	ts := newTestServer(t)
	order, _ := ts.orders.Create(context.Background(), &models.Order{
		ClientID: testClientID,
		Details: []models.OrderDetail{
			{ProductID: "2", ProductTitle: "Tea", UnitPrice: money.MustParse("2.50"), Quantity: 2, Subtotal: money.MustParse("5.00")},
		},
	})

	w := ts.do(http.MethodPost, "/cart/restore_cart/1", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if resp := decode(t, w); resp["total_price"] != 5.0 {
		t.Errorf("Expected restored total 5.00, got %v", resp["total_price"])
	}

	w = ts.do(http.MethodGet, "/order/order-summary/abc", "", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}

	w = ts.do(http.MethodPost, "/order/delete-pending-order/1", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if _, err := ts.orders.GetByID(context.Background(), order.ID); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Expected order to be deleted")
	}
}
