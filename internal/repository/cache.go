package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tm-acme-shop/acme-shop-cart-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/models"
)

const (
	productKeyPrefix = "product:"
	defaultCacheTTL  = 5 * time.Minute
)

// RedisProductCache implements ProductCache using Redis.
type RedisProductCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.LoggerV2
}

// NewRedisProductCache creates a new Redis-based product cache. A zero ttl
// uses the default.
func NewRedisProductCache(client *redis.Client, ttl time.Duration, logger *logging.LoggerV2) *RedisProductCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisProductCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Get retrieves a product from cache.
func (c *RedisProductCache) Get(ctx context.Context, id string) (*models.Product, error) {
	data, err := c.client.Get(ctx, productKeyPrefix+id).Bytes()
	if err == redis.Nil {
		c.logger.Debug("Cache miss", logging.Fields{"product_id": id})
		return nil, nil
	}
	if err != nil {
		c.logger.Error("Cache get error", logging.Fields{
			"product_id": id,
			"error":      err.Error(),
		})
		return nil, err
	}

	var product models.Product
	if err := json.Unmarshal(data, &product); err != nil {
		// Unreadable entries are evicted and treated as a miss.
		c.logger.Warn("Dropping undecodable cache entry", logging.Fields{
			"product_id": id,
			"error":      err.Error(),
		})
		_ = c.client.Del(ctx, productKeyPrefix+id).Err()
		return nil, nil
	}

	c.logger.Debug("Cache hit", logging.Fields{"product_id": id})
	return &product, nil
}

// Set stores a product in cache.
func (c *RedisProductCache) Set(ctx context.Context, product *models.Product) error {
	data, err := json.Marshal(product)
	if err != nil {
		return err
	}

	if err := c.client.Set(ctx, productKeyPrefix+product.ID, data, c.ttl).Err(); err != nil {
		c.logger.Error("Cache set error", logging.Fields{
			"product_id": product.ID,
			"error":      err.Error(),
		})
		return err
	}

	c.logger.Debug("Product cached", logging.Fields{
		"product_id": product.ID,
		"ttl":        c.ttl.String(),
	})
	return nil
}

// Delete removes a product from cache.
func (c *RedisProductCache) Delete(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, productKeyPrefix+id).Err(); err != nil {
		c.logger.Error("Cache delete error", logging.Fields{
			"product_id": id,
			"error":      err.Error(),
		})
		return err
	}
	return nil
}
