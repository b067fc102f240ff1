package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Kariqs/amexan-storefront/models"
	"github.com/redis/go-redis/v9"
)

// ListCache holds catalog listings keyed by category filter. It is never
// consulted when pricing an order.
type ListCache interface {
	GetList(ctx context.Context, category string) ([]models.Product, bool, error)
	SetList(ctx context.Context, category string, products []models.Product) error
	Invalidate(ctx context.Context) error
}

const (
	catalogListKey   = "catalog:list"
	allCategoryField = "*"
)

// RedisListCache stores every cached listing as one field of a single hash so
// that one DEL drops them all.
type RedisListCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisListCache(client *redis.Client, ttl time.Duration) *RedisListCache {
	return &RedisListCache{client: client, ttl: ttl}
}

func cacheField(category string) string {
	if category == "" {
		return allCategoryField
	}
	return "c:" + category
}

func (c *RedisListCache) GetList(ctx context.Context, category string) ([]models.Product, bool, error) {
	data, err := c.client.HGet(ctx, catalogListKey, cacheField(category)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var products []models.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, false, err
	}
	return products, true, nil
}

func (c *RedisListCache) SetList(ctx context.Context, category string, products []models.Product) error {
	data, err := json.Marshal(products)
	if err != nil {
		return err
	}

	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, catalogListKey, cacheField(category), data)
	if c.ttl > 0 {
		pipe.Expire(ctx, catalogListKey, c.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (c *RedisListCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, catalogListKey).Err()
}
