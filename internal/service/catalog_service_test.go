package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tm-acme-shop/acme-shop-cart-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/money"
)

type fakeProductRepo struct {
	products map[string]*models.Product
	gets     int
}

func (r *fakeProductRepo) GetByID(ctx context.Context, id string) (*models.Product, error) {
	r.gets++
	p, ok := r.products[id]
	if !ok {
		return nil, errors.ErrProductNotFound
	}
	return p, nil
}

func (r *fakeProductRepo) List(ctx context.Context, filter *models.ProductFilter) ([]*models.Product, error) {
	out := make([]*models.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	return out, nil
}

type fakeProductCache struct {
	entries map[string]*models.Product
	setErr  error
}

func (c *fakeProductCache) Get(ctx context.Context, id string) (*models.Product, error) {
	return c.entries[id], nil
}

func (c *fakeProductCache) Set(ctx context.Context, p *models.Product) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[p.ID] = p
	return nil
}

func (c *fakeProductCache) Delete(ctx context.Context, id string) error {
	delete(c.entries, id)
	return nil
}

func TestCatalogService_GetProduct(t *testing.T) {
	ctx := context.Background()
	repo := &fakeProductRepo{products: map[string]*models.Product{
		"7": {ID: "7", Title: "Kettle", Price: money.MustParse("45.00")},
	}}
	cache := &fakeProductCache{entries: make(map[string]*models.Product)}
	svc := NewCatalogService(repo, cache, logging.NewNop())

	p, err := svc.GetProduct(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, "Kettle", p.Title)
	assert.Contains(t, cache.entries, "7")

	_, err = svc.GetProduct(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.gets)

	_, err = svc.GetProduct(ctx, "8")
	assert.True(t, errors.Is(err, errors.ErrProductNotFound))
	assert.NotContains(t, cache.entries, "8")
}

func TestCatalogService_WithoutCache(t *testing.T) {
	ctx := context.Background()
	repo := &fakeProductRepo{products: map[string]*models.Product{
		"7": {ID: "7", Title: "Kettle"},
	}}
	svc := NewCatalogService(repo, nil, logging.NewNop())

	for i := 0; i < 2; i++ {
		_, err := svc.GetProduct(ctx, "7")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, repo.gets)

	products, err := svc.ListProducts(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, products, 1)
}

func TestCatalogService_CacheFailureIsNotFatal(t *testing.T) {
	repo := &fakeProductRepo{products: map[string]*models.Product{"7": {ID: "7"}}}
	cache := &fakeProductCache{entries: make(map[string]*models.Product), setErr: assert.AnError}
	svc := NewCatalogService(repo, cache, logging.NewNop())

	_, err := svc.GetProduct(context.Background(), "7")
	assert.NoError(t, err)
}
