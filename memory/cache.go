package memory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/airuntime/core/chat"
	"github.com/airuntime/core/errs"
)

// Cache stores conversation history in an external KV store keyed by
// userId/conversationId, behaving like Windowed but backed by Redis
// instead of an in-process slice (spec §4.5 table). Grounded directly on
// the teacher's memory_backend_redis.go RedisBackend (prefix/TTL/pool
// defaults, JSON-per-key storage).
type Cache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	size   int
}

// NewCache creates a Redis-backed Cache memory against addr, mirroring
// the teacher's NewRedisBackend smart defaults (7-day TTL, 10-connection
// pool).
func NewCache(addr string, size int) *Cache {
	client := redis.NewClient(&redis.Options{Addr: addr, PoolSize: 10})
	if size <= 0 {
		size = 20
	}
	return &Cache{client: client, prefix: "airuntime:memory:", ttl: 7 * 24 * time.Hour, size: size}
}

// NewCacheWithClient wraps an existing redis.UniversalClient (cluster,
// sentinel, or miniredis in tests).
func NewCacheWithClient(client redis.UniversalClient, size int) *Cache {
	if size <= 0 {
		size = 20
	}
	return &Cache{client: client, prefix: "airuntime:memory:", ttl: 7 * 24 * time.Hour, size: size}
}

// WithTTL overrides the expiration applied to every key.
func (c *Cache) WithTTL(ttl time.Duration) *Cache {
	c.ttl = ttl
	return c
}

// WithPrefix overrides the key namespace prefix.
func (c *Cache) WithPrefix(prefix string) *Cache {
	c.prefix = prefix
	return c
}

func (c *Cache) key(tenant Tenant) string {
	return c.prefix + tenant.UserID + "/" + tenant.ConversationID
}

func (c *Cache) load(ctx context.Context, tenant Tenant) ([]Entry, error) {
	raw, err := c.client.Get(ctx, c.key(tenant)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.ProviderError, "memory-cache", err)
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, errs.Wrap(errs.ProtocolError, "memory-cache", err)
	}
	return entries, nil
}

func (c *Cache) save(ctx context.Context, tenant Tenant, entries []Entry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return errs.Wrap(errs.InvalidArgument, "memory-cache", err)
	}
	if err := c.client.Set(ctx, c.key(tenant), raw, c.ttl).Err(); err != nil {
		return errs.Wrap(errs.ProviderError, "memory-cache", err)
	}
	return nil
}

func (c *Cache) Add(ctx context.Context, tenant Tenant, msg chat.Message) error {
	entries, err := c.load(ctx, tenant)
	if err != nil {
		return err
	}
	entries = append(entries, Entry{Message: msg, UserID: tenant.UserID, ConversationID: tenant.ConversationID})
	var sys *Entry
	rest := make([]Entry, 0, len(entries))
	for i := range entries {
		if entries[i].Message.Role == chat.RoleSystem {
			sys = &entries[i]
			continue
		}
		rest = append(rest, entries[i])
	}
	if len(rest) > c.size {
		rest = rest[len(rest)-c.size:]
		if sys != nil {
			rest = append([]Entry{*sys}, rest...)
		}
		entries = rest
	}
	return c.save(ctx, tenant, entries)
}

func (c *Cache) GetAll(ctx context.Context, tenant Tenant) ([]Entry, error) {
	return c.load(ctx, tenant)
}

func (c *Cache) Clear(ctx context.Context, tenant Tenant) error {
	if err := c.client.Del(ctx, c.key(tenant)).Err(); err != nil {
		return errs.Wrap(errs.ProviderError, "memory-cache", err)
	}
	return nil
}

func (c *Cache) GetMetadata(ctx context.Context, tenant Tenant, key string) (any, bool) {
	raw, err := c.client.HGet(ctx, c.key(tenant)+":meta", key).Result()
	if err != nil {
		return nil, false
	}
	var v any
	if json.Unmarshal([]byte(raw), &v) != nil {
		return nil, false
	}
	return v, true
}

func (c *Cache) SetMetadata(ctx context.Context, tenant Tenant, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.client.HSet(ctx, c.key(tenant)+":meta", key, raw)
}

func (c *Cache) Export(ctx context.Context, tenant Tenant) ([]Entry, error) {
	return c.load(ctx, tenant)
}

func (c *Cache) Import(ctx context.Context, tenant Tenant, entries []Entry) error {
	return c.save(ctx, tenant, entries)
}

// Retrieve returns the N most-recent messages, matching Windowed's
// Prepare-state contribution (spec §4.4).
func (c *Cache) Retrieve(ctx context.Context, tenant Tenant, query string) ([]chat.Message, error) {
	entries, err := c.load(ctx, tenant)
	if err != nil {
		return nil, err
	}
	if len(entries) > c.size {
		entries = entries[len(entries)-c.size:]
	}
	out := make([]chat.Message, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out, nil
}
