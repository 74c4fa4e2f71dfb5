package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/tubeclone/internal/apperror"
)

func TestCached_WithoutRedisDelegates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/youtube/v3/videos", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") == "v1" {
			writeBody(w, map[string]any{"items": []map[string]any{{"id": "v1"}}})
			return
		}
		writeBody(w, map[string]any{"items": []any{}})
	})
	c := NewCached(newServerClient(t, newTestServer(t, mux)), nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	v, err := c.Video(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, "v1", v.Id)

	_, err = c.Video(context.Background(), "v2")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestNewRedisClient_EmptyURLDisablesCache(t *testing.T) {
	rdb, err := NewRedisClient(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, rdb)
}

func TestNewRedisClient_BadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not a url")
	assert.Error(t, err)
}

type countingObserver struct {
	hits, misses int
}

func (o *countingObserver) CacheHit()  { o.hits++ }
func (o *countingObserver) CacheMiss() { o.misses++ }

// newRedisCached wires a Cached to an in-process Redis and an upstream that
// serves v1 and c1, counting requests per resource.
func newRedisCached(t *testing.T) (*Cached, *miniredis.Miniredis, *countingObserver, *atomic.Int32) {
	t.Helper()

	var upstream atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/youtube/v3/videos", func(w http.ResponseWriter, r *http.Request) {
		upstream.Add(1)
		writeBody(w, map[string]any{"items": []map[string]any{
			{"id": "v1", "snippet": map[string]any{"title": "First"}},
		}})
	})
	mux.HandleFunc("/youtube/v3/channels", func(w http.ResponseWriter, r *http.Request) {
		upstream.Add(1)
		writeBody(w, map[string]any{"items": []map[string]any{{
			"id": "c1",
			"brandingSettings": map[string]any{
				"image": map[string]any{"bannerExternalUrl": "https://yt3.test/banner"},
			},
		}}})
	})

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	obs := &countingObserver{}
	c := NewCached(newServerClient(t, newTestServer(t, mux)), rdb, obs, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return c, mr, obs, &upstream
}

func TestCached_VideoMissThenHit(t *testing.T) {
	c, mr, obs, upstream := newRedisCached(t)
	ctx := context.Background()

	first, err := c.Video(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "First", first.Snippet.Title)
	assert.Equal(t, int32(1), upstream.Load())
	assert.Equal(t, 1, obs.misses)

	require.True(t, mr.Exists("video:v1"))
	assert.Equal(t, VideoCacheTTL, mr.TTL("video:v1"))

	second, err := c.Video(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "First", second.Snippet.Title)
	assert.Equal(t, int32(1), upstream.Load(), "hit must not reach the platform")
	assert.Equal(t, 1, obs.hits)
}

func TestCached_ExpiredEntryIsRefetched(t *testing.T) {
	c, mr, _, upstream := newRedisCached(t)
	ctx := context.Background()

	_, err := c.Video(ctx, "v1")
	require.NoError(t, err)

	mr.FastForward(VideoCacheTTL + time.Second)

	_, err = c.Video(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), upstream.Load())
}

func TestCached_ChannelHitKeepsSingleCropSuffix(t *testing.T) {
	c, mr, _, upstream := newRedisCached(t)
	ctx := context.Background()
	want := "https://yt3.test/banner" + BannerCropSuffix

	for range 3 {
		ch, err := c.Channel(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, want, ch.BrandingSettings.Image.BannerExternalUrl)
	}
	assert.Equal(t, int32(1), upstream.Load())
	assert.Equal(t, ChannelCacheTTL, mr.TTL("channel:c1"))
}

func TestCached_UndecodableEntryIsRefetched(t *testing.T) {
	c, mr, obs, upstream := newRedisCached(t)
	require.NoError(t, mr.Set("video:v1", "{not json"))

	v, err := c.Video(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, "v1", v.Id)
	assert.Equal(t, int32(1), upstream.Load())
	assert.Equal(t, 0, obs.hits)

	// The bad entry is replaced with the fresh value.
	raw, err := mr.Get("video:v1")
	require.NoError(t, err)
	assert.Contains(t, raw, `"id":"v1"`)
}

func TestCached_CancelledCallerStillFillsCache(t *testing.T) {
	c, mr, _, upstream := newRedisCached(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v, err := c.Video(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "v1", v.Id)
	assert.Equal(t, int32(1), upstream.Load())
	assert.True(t, mr.Exists("video:v1"))
}
