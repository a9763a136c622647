package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tm-acme-shop/acme-shop-cart-service/internal/clients"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/events"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/money"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/session"
)

type fakeCatalog struct {
	mu       sync.Mutex
	products map[string]*models.Product
	err      error
	lookups  int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{products: make(map[string]*models.Product)}
}

func (c *fakeCatalog) put(id, title, price string) *models.Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := &models.Product{ID: id, Title: title, Price: money.MustParse(price)}
	c.products[id] = p
	return p
}

func (c *fakeCatalog) delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.products, id)
}

func (c *fakeCatalog) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookups++
	if c.err != nil {
		return nil, c.err
	}
	p, ok := c.products[id]
	if !ok {
		return nil, errors.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

type fakeOrderRepo struct {
	mu     sync.Mutex
	nextID int64
	orders map[int64]*models.Order
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{nextID: 1, orders: make(map[int64]*models.Order)}
}

func (r *fakeOrderRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(order.Details) == 0 {
		return nil, errors.BadRequest("order has no details")
	}
	created := *order
	created.ID = r.nextID
	r.nextID++
	created.Status = models.OrderStatusPending
	created.RegistrationDate = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	created.CalculateTotal()
	created.OrderNum = models.FormatOrderNum(created.ID, created.RegistrationDate)
	r.orders[created.ID] = &created

	out := created
	return &out, nil
}

func (r *fakeOrderRepo) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	out := *o
	out.Details = append([]models.OrderDetail(nil), o.Details...)
	return &out, nil
}

func (r *fakeOrderRepo) ListPendingByClient(ctx context.Context, clientID string) ([]*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Order, 0)
	for _, o := range r.orders {
		if o.ClientID == clientID && o.IsPending() {
			cp := *o
			cp.Details = nil
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *fakeOrderRepo) UpdateStatus(ctx context.Context, id int64, status models.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return errors.ErrNotFound
	}
	o.Status = status
	return nil
}

func (r *fakeOrderRepo) DeletePending(ctx context.Context, id int64, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.ClientID != clientID || !o.IsPending() {
		return errors.ErrNotFound
	}
	delete(r.orders, id)
	return nil
}

type fakeGateway struct {
	requests []*clients.CheckoutSessionRequest
	url      string
	err      error
}

func (g *fakeGateway) CreateCheckoutSession(ctx context.Context, req *clients.CheckoutSessionRequest) (*clients.CheckoutSession, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return &clients.CheckoutSession{ID: "cs_test_1", URL: g.url}, nil
}

type fakeMailer struct {
	sent []*clients.EmailRequest
	err  error
}

func (m *fakeMailer) SendEmail(ctx context.Context, req *clients.EmailRequest) error {
	m.sent = append(m.sent, req)
	return m.err
}

// testEnv wires every service against in-memory collaborators.
type testEnv struct {
	sessions  *session.MemoryStore
	catalog   *fakeCatalog
	orderRepo *fakeOrderRepo
	publisher *events.MockEventPublisher
	gateway   *fakeGateway
	mailer    *fakeMailer

	cart     *CartService
	orders   *OrderService
	payments *PaymentService
}

func newTestEnv() *testEnv {
	env := &testEnv{
		sessions:  session.NewMemoryStore(),
		catalog:   newFakeCatalog(),
		orderRepo: newFakeOrderRepo(),
		publisher: events.NewMockEventPublisher(),
		gateway:   &fakeGateway{url: "https://pay.example.com/cs_test_1"},
		mailer:    &fakeMailer{},
	}

	cfg := &config.Config{
		Server: config.ServerConfig{PublicURL: "https://shop.example.com/"},
		Cart:   config.CartConfig{Currency: "usd"},
	}

	pricing := NewPricingCalculator(env.catalog, nil, logging.NewNop())
	env.cart = NewCartService(env.sessions, env.catalog, pricing, env.orderRepo, env.publisher, nil)
	env.orders = NewOrderService(env.sessions, env.catalog, env.orderRepo, env.publisher, nil)
	env.payments = NewPaymentService(env.sessions, env.orders, env.gateway, env.mailer, cfg, nil)
	return env
}

func validContact() *models.ContactDetails {
	return &models.ContactDetails{
		Name:     "Ada",
		LastName: "Lovelace",
		Email:    "ada@example.com",
		Phone:    "+44 20 7946 0000",
		Address:  "12 Analytical Row, London",
	}
}
