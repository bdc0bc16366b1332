package redis

import (
	"context"
	"encoding/json"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/taskboard/repository"
)

// DocumentCache wraps a DocumentStore with Redis-backed caching of single-document reads.
// Writes go to the base store first and evict the cached copy.
type DocumentCache struct {
	base   repository.DocumentStore
	client *redislib.Client
	ttl    time.Duration
	prefix string
}

// NewDocumentCache creates a read-through cache in front of base. A nil client disables caching.
func NewDocumentCache(base repository.DocumentStore, client *redislib.Client, ttl time.Duration) *DocumentCache {
	if base == nil {
		panic("redis.NewDocumentCache: base store is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &DocumentCache{
		base:   base,
		client: client,
		ttl:    ttl,
		prefix: "doc:",
	}
}

func (c *DocumentCache) Load(ctx context.Context, collection, id string) (json.RawMessage, error) {
	if data, ok := c.loadFromCache(ctx, collection, id); ok {
		return data, nil
	}

	data, err := c.base.Load(ctx, collection, id)
	if err != nil {
		return nil, err
	}

	c.store(ctx, collection, id, data)
	return data, nil
}

func (c *DocumentCache) Save(ctx context.Context, collection, id string, patch json.RawMessage, merge bool) error {
	if err := c.base.Save(ctx, collection, id, patch, merge); err != nil {
		return err
	}
	c.evict(ctx, collection, id)
	return nil
}

// List always reads through; collection scans are rare and cheap to serve from the base store.
func (c *DocumentCache) List(ctx context.Context, collection string) ([]repository.Document, error) {
	return c.base.List(ctx, collection)
}

func (c *DocumentCache) loadFromCache(ctx context.Context, collection, id string) (json.RawMessage, bool) {
	if c.client == nil {
		return nil, false
	}
	key := c.key(collection, id)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redislib.Nil {
			_ = c.client.Del(ctx, key).Err()
		}
		return nil, false
	}
	if !json.Valid(data) {
		_ = c.client.Del(ctx, key).Err()
		return nil, false
	}
	return json.RawMessage(data), true
}

func (c *DocumentCache) store(ctx context.Context, collection, id string, data json.RawMessage) {
	if c.client == nil || c.ttl == 0 {
		return
	}
	_ = c.client.Set(ctx, c.key(collection, id), []byte(data), c.ttl).Err()
}

func (c *DocumentCache) evict(ctx context.Context, collection, id string) {
	if c.client == nil {
		return
	}
	_ = c.client.Del(ctx, c.key(collection, id)).Err()
}

func (c *DocumentCache) key(collection, id string) string {
	return c.prefix + collection + ":" + id
}

var _ repository.DocumentStore = (*DocumentCache)(nil)
