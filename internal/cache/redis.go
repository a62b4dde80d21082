package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// SearchCache is an optional Redis-backed cache for serialized search
// responses. Every method degrades to a miss on error; the cache must never
// turn a working search into a failing one.
type SearchCache struct {
	client *redis.Client
	ttl    time.Duration
}

func Connect(ctx context.Context, addr string, password string, ttl time.Duration) (*SearchCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:            addr,
		Password:        password,
		DB:              0,
		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	log.Info().Str("addr", addr).Dur("ttl", ttl).Msg("Search cache connected")

	return &SearchCache{
		client: client,
		ttl:    ttl,
	}, nil
}

// Key derives a cache key from the collection and the full request shape.
// The collection is part of the hash so tenants can never share entries.
func Key(collection, query string, topK int, reranking, synthesis bool) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%d|%t|%t", collection, query, topK, reranking, synthesis))
	return "search:" + hex.EncodeToString(sum[:16])
}

func (c *SearchCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Msg("Search cache read failed")
		}
		return nil, false
	}
	return data, true
}

func (c *SearchCache) Set(ctx context.Context, key string, value []byte) {
	if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Msg("Search cache write failed")
	}
}

// Invalidate drops all cached search responses. Called after ingestion and
// deletion; entries are keyed by an opaque hash, so the whole search
// namespace is scanned rather than tracking per-collection membership.
func (c *SearchCache) Invalidate(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, "search:*", 256).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			log.Warn().Err(err).Msg("Search cache invalidation failed")
			return
		}
	}
	if err := iter.Err(); err != nil {
		log.Warn().Err(err).Msg("Search cache scan failed")
	}
}

func (c *SearchCache) Close() error {
	return c.client.Close()
}
