package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"fairywren/backend/internal/domain"
)

const (
	productsKey = "catalog:products"
	productsTTL = 5 * time.Minute
)

// RedisCache stores the catalog as a single JSON blob with a short TTL,
// so a missed invalidation heals itself quickly.
type RedisCache struct {
	client *redis.Client
}

func NewRedis(ctx context.Context, addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 4*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &RedisCache{client: client}, nil
}

func (c *RedisCache) GetProducts(ctx context.Context) ([]domain.Product, error) {
	raw, err := c.client.Get(ctx, productsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}

	var products []domain.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		// A corrupt entry is treated as a miss and overwritten on the
		// next fill.
		_ = c.client.Del(ctx, productsKey).Err()
		return nil, ErrMiss
	}
	return products, nil
}

func (c *RedisCache) SetProducts(ctx context.Context, products []domain.Product) error {
	raw, err := json.Marshal(products)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, productsKey, raw, productsTTL).Err()
}

func (c *RedisCache) InvalidateProducts(ctx context.Context) error {
	return c.client.Del(ctx, productsKey).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
