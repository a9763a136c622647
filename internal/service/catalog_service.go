package service

import (
	"context"

	"github.com/tm-acme-shop/acme-shop-cart-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/repository"
)

// CatalogService reads products, through the cache when one is configured.
type CatalogService struct {
	repo   repository.ProductRepository
	cache  repository.ProductCache
	logger *logging.LoggerV2
}

// NewCatalogService creates a catalog service. cache may be nil.
func NewCatalogService(repo repository.ProductRepository, cache repository.ProductCache, logger *logging.LoggerV2) *CatalogService {
	return &CatalogService{
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

// GetProduct retrieves a product by ID.
func (s *CatalogService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	if s.cache != nil {
		if product, err := s.cache.Get(ctx, id); err == nil && product != nil {
			return product, nil
		}
	}

	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, product); err != nil {
			// Log but don't fail
			s.logger.Warn("Failed to cache product", logging.Fields{
				"product_id": id,
				"error":      err.Error(),
			})
		}
	}

	return product, nil
}

// ListProducts lists catalog entries. Listings are not cached.
func (s *CatalogService) ListProducts(ctx context.Context, filter *models.ProductFilter) ([]*models.Product, error) {
	return s.repo.List(ctx, filter)
}
