// Package cache holds the optional Redis-backed classification cache.
// Identical transcript segments classify identically, so the resolved
// classification can be reused instead of paying for another model call.
package cache

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voiceops/crmbot/internal/intent"
	"github.com/voiceops/crmbot/pkg/logging"
)

const keyPrefix = "crmbot:cls:"

// Options configures the cache connection.
type Options struct {
	Addr     string
	Password string
	TLS      bool
	TTL      time.Duration
}

// ClassificationCache stores resolved classifications keyed by segment
// text. A nil *ClassificationCache is valid and behaves as a miss-only
// cache, so callers never branch on whether caching is enabled.
type ClassificationCache struct {
	client *redis.Client
	ttl    time.Duration
}

// BuildClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildClient(ctx context.Context, opts Options, logger *logging.Logger, verify bool) *redis.Client {
	if strings.TrimSpace(opts.Addr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
	}
	if opts.TLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available, classification cache disabled", "error", err)
		return nil
	}
	return client
}

// New wraps a Redis client. Returns nil when client is nil.
func New(client *redis.Client, ttl time.Duration) *ClassificationCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ClassificationCache{client: client, ttl: ttl}
}

// Get returns the cached classification for a segment, if present.
func (c *ClassificationCache) Get(ctx context.Context, segment string) (intent.Classification, bool) {
	if c == nil {
		return intent.Classification{}, false
	}

	raw, err := c.client.Get(ctx, cacheKey(segment)).Bytes()
	if err != nil {
		return intent.Classification{}, false
	}

	var cls intent.Classification
	if err := json.Unmarshal(raw, &cls); err != nil {
		return intent.Classification{}, false
	}
	return cls, true
}

// Put stores a classification for a segment. Errors are swallowed; the
// cache is an optimization, never a dependency.
func (c *ClassificationCache) Put(ctx context.Context, segment string, cls intent.Classification) {
	if c == nil {
		return
	}

	raw, err := json.Marshal(cls)
	if err != nil {
		return
	}
	c.client.Set(ctx, cacheKey(segment), raw, c.ttl)
}

func cacheKey(segment string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(segment)))
	return keyPrefix + hex.EncodeToString(sum[:])
}
