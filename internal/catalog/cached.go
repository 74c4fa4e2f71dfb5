package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"google.golang.org/api/youtube/v3"
)

// Cache TTLs for public reads. Statistics drift, so videos expire sooner.
const (
	VideoCacheTTL   = 5 * time.Minute
	ChannelCacheTTL = 15 * time.Minute

	// sharedFetchTimeout bounds a coalesced upstream call, which no longer
	// follows any single caller's cancellation.
	sharedFetchTimeout = 15 * time.Second
)

// Cached decorates a server Client with a Redis cache-aside layer for the
// single-resource reads (Video, Channel). Concurrent misses for the same key
// share one upstream call.
//
// A nil Redis client disables caching; singleflight coalescing still applies.
// Redis failures are logged and fall through to the platform.
type Cached struct {
	*Client
	rdb      *redis.Client
	group    singleflight.Group
	observer CacheObserver
	logger   *slog.Logger
}

// CacheObserver counts lookups. telemetry.Metrics implements it.
type CacheObserver interface {
	CacheHit()
	CacheMiss()
}

type nopObserver struct{}

func (nopObserver) CacheHit()  {}
func (nopObserver) CacheMiss() {}

// NewCached wraps client. observer may be nil.
func NewCached(client *Client, rdb *redis.Client, observer CacheObserver, logger *slog.Logger) *Cached {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Cached{Client: client, rdb: rdb, observer: observer, logger: logger}
}

// NewRedisClient connects to redisURL. An empty URL returns (nil, nil) and
// leaves caching off.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("catalog: parsing redis url: %w", err)
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("catalog: connecting to redis: %w", err)
	}

	return rdb, nil
}

func (c *Cached) Video(ctx context.Context, videoID string) (*youtube.Video, error) {
	key := "video:" + videoID
	v, err := cacheAside(ctx, c, key, VideoCacheTTL, func(ctx context.Context) (*youtube.Video, error) {
		return c.Client.Video(ctx, videoID)
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (c *Cached) Channel(ctx context.Context, channelID string) (*youtube.Channel, error) {
	key := "channel:" + channelID
	ch, err := cacheAside(ctx, c, key, ChannelCacheTTL, func(ctx context.Context) (*youtube.Channel, error) {
		return c.Client.Channel(ctx, channelID)
	})
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// cacheAside reads key from Redis, and on a miss runs fetch once per key
// across concurrent callers and stores the result. The shared fetch ignores
// the first caller's cancellation; sharedFetchTimeout bounds it instead.
func cacheAside[T any](ctx context.Context, c *Cached, key string, ttl time.Duration, fetch func(context.Context) (*T, error)) (*T, error) {
	if cached, ok := c.get(ctx, key); ok {
		var out T
		if err := json.Unmarshal(cached, &out); err == nil {
			c.observer.CacheHit()
			return &out, nil
		}
		c.logger.Warn("discarding undecodable cache entry", slog.String("key", key))
	}

	c.observer.CacheMiss()
	v, err, _ := c.group.Do(key, func() (any, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()

		res, err := fetch(sctx)
		if err != nil {
			return nil, err
		}
		c.set(sctx, key, res, ttl)
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*T), nil
}

func (c *Cached) get(ctx context.Context, key string) ([]byte, bool) {
	if c.rdb == nil {
		return nil, false
	}
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache read failed", slog.String("key", key), slog.String("error", err.Error()))
		}
		return nil, false
	}
	return data, true
}

func (c *Cached) set(ctx context.Context, key string, value any, ttl time.Duration) {
	if c.rdb == nil {
		return
	}
	b, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, b, ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}
