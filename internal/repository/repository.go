package repository

import (
	"context"

	"github.com/tm-acme-shop/acme-shop-cart-service/internal/models"
)

var (
	_ ProductRepository = (*PostgresProductRepository)(nil)
	_ OrderRepository   = (*PostgresOrderRepository)(nil)
	_ ProductCache      = (*RedisProductCache)(nil)
)

// ProductRepository reads the catalog.
type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*models.Product, error)
	List(ctx context.Context, filter *models.ProductFilter) ([]*models.Product, error)
}

// OrderRepository persists orders and their details.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	GetByID(ctx context.Context, id int64) (*models.Order, error)
	ListPendingByClient(ctx context.Context, clientID string) ([]*models.Order, error)
	UpdateStatus(ctx context.Context, id int64, status models.OrderStatus) error
	DeletePending(ctx context.Context, id int64, clientID string) error
}

// ProductCache defines caching operations for catalog entries.
// A miss is reported as (nil, nil).
type ProductCache interface {
	Get(ctx context.Context, id string) (*models.Product, error)
	Set(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id string) error
}
