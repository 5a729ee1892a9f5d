package similarity

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/hotcold/internal/domain"
	"github.com/victornm/hotcold/internal/errors"
	"github.com/victornm/hotcold/internal/keyspace"
	"github.com/victornm/hotcold/internal/telemetry"
)

const (
	// Comparisons are immutable facts, configs are bounded to limit storage.
	DefaultCompareTTL = 365 * 24 * time.Hour
	DefaultConfigTTL  = 30 * 24 * time.Hour
)

// Service is the live similarity service.
type Service interface {
	NearestWords(ctx context.Context, word string) (*domain.WordConfig, error)
	CompareWords(ctx context.Context, secret, guess string) (*domain.Comparison, error)
}

type CacheConfig struct {
	Service    Service
	Redis      redis.UniversalClient
	Prefix     string
	ConfigTTL  time.Duration
	CompareTTL time.Duration
	Validate   *validator.Validate
}

// Cache memoizes the similarity service in Redis. A cached value that fails validation is ignored and
// refetched. Failures of the live call are returned as external service errors, there is no other tier.
type Cache struct {
	svc        Service
	redis      redis.UniversalClient
	keys       keyspace.Keyspace
	configTTL  time.Duration
	compareTTL time.Duration
	validate   *validator.Validate
}

func NewCache(c CacheConfig) *Cache {
	cc := &Cache{
		svc:        c.Service,
		redis:      c.Redis,
		keys:       keyspace.New(c.Prefix),
		configTTL:  c.ConfigTTL,
		compareTTL: c.CompareTTL,
		validate:   c.Validate,
	}

	if cc.configTTL <= 0 {
		cc.configTTL = DefaultConfigTTL
	}
	if cc.compareTTL <= 0 {
		cc.compareTTL = DefaultCompareTTL
	}
	if cc.validate == nil {
		cc.validate = validator.New(validator.WithRequiredStructEnabled())
	}

	return cc
}

func (c *Cache) GetWordConfig(ctx context.Context, word string) (*domain.WordConfig, error) {
	return cached(ctx, c, "config", c.keys.WordConfig(word), c.configTTL, func(ctx context.Context) (*domain.WordConfig, error) {
		return c.svc.NearestWords(ctx, word)
	})
}

func (c *Cache) Compare(ctx context.Context, secret, guess string) (*domain.Comparison, error) {
	return cached(ctx, c, "compare", c.keys.Comparison(secret, guess), c.compareTTL, func(ctx context.Context) (*domain.Comparison, error) {
		return c.svc.CompareWords(ctx, secret, guess)
	})
}

func cached[T any](ctx context.Context, c *Cache, kind, key string, ttl time.Duration, fetch func(ctx context.Context) (*T, error)) (*T, error) {
	if v, ok := c.lookup(ctx, kind, key, new(T)); ok {
		return v.(*T), nil
	}

	v, err := fetch(ctx)
	if err != nil {
		return nil, errors.ExternalService(err)
	}

	if err := c.validate.Struct(v); err != nil {
		return nil, errors.ExternalService(fmt.Errorf("similarity: invalid %s payload: %w", kind, err))
	}

	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("similarity: marshal %s: %w", kind, err)
	}

	if err := c.redis.Set(ctx, key, b, ttl).Err(); err != nil {
		slog.WarnContext(ctx, "similarity: store cache entry failed", "key", key, "error", err)
	}

	return v, nil
}

// lookup reports a hit only for an entry that decodes and validates.
func (c *Cache) lookup(ctx context.Context, kind, key string, dst any) (any, bool) {
	b, err := c.redis.Get(ctx, key).Bytes()
	if stderrors.Is(err, redis.Nil) {
		telemetry.SimilarityCacheTotal.WithLabelValues(kind, "miss").Inc()
		return nil, false
	}
	if err != nil {
		slog.WarnContext(ctx, "similarity: read cache entry failed", "key", key, "error", err)
		telemetry.SimilarityCacheTotal.WithLabelValues(kind, "miss").Inc()
		return nil, false
	}

	if err := json.Unmarshal(b, dst); err != nil {
		slog.WarnContext(ctx, "similarity: corrupt cache entry", "key", key, "error", err)
		telemetry.SimilarityCacheTotal.WithLabelValues(kind, "corrupt").Inc()
		return nil, false
	}

	if err := c.validate.Struct(dst); err != nil {
		slog.WarnContext(ctx, "similarity: invalid cache entry", "key", key, "error", err)
		telemetry.SimilarityCacheTotal.WithLabelValues(kind, "corrupt").Inc()
		return nil, false
	}

	telemetry.SimilarityCacheTotal.WithLabelValues(kind, "hit").Inc()
	return dst, true
}
