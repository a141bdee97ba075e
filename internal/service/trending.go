package service

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"twitsnap/internal/cache"
	"twitsnap/internal/middleware"
	"twitsnap/internal/models"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// TrendingCache holds the ranking service's trending topics. Redis is shared
// between replicas; the in-process LRU covers Redis being absent or failing.
type TrendingCache struct {
	ranker  Ranker
	rdb     redis.Cmdable
	local   *expirable.LRU[string, []models.TrendingTopic]
	ttl     time.Duration
	limit   int
	timeout time.Duration
	group   singleflight.Group
}

// NewTrendingCache creates a TrendingCache. rdb may be nil. timeout bounds a
// refresh, which outlives the cancellation of the request that started it.
func NewTrendingCache(ranker Ranker, rdb *redis.Client, ttl time.Duration, limit int, timeout time.Duration) *TrendingCache {
	c := &TrendingCache{
		ranker:  ranker,
		local:   expirable.NewLRU[string, []models.TrendingTopic](1, nil, ttl),
		ttl:     ttl,
		limit:   limit,
		timeout: timeout,
	}
	if rdb != nil {
		c.rdb = rdb
	}
	return c
}

// Get returns the cached topics, fetching them from the ranking service on a miss.
func (c *TrendingCache) Get(ctx context.Context) ([]models.TrendingTopic, error) {
	var topics []models.TrendingTopic
	found, err := cache.GetJSON(ctx, c.rdb, cache.TrendingKey, &topics)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "trending cache read failed", slog.String("error", err.Error()))
	}
	if found {
		return topics, nil
	}
	if topics, ok := c.local.Get(cache.TrendingKey); ok {
		return topics, nil
	}
	return c.Refresh(ctx)
}

// Refresh fetches the topics from the ranking service and stores them.
// Concurrent refreshes share one call.
func (c *TrendingCache) Refresh(ctx context.Context) ([]models.TrendingTopic, error) {
	v, err, _ := c.group.Do(cache.TrendingKey, func() (interface{}, error) {
		ctx := context.WithoutCancel(ctx)
		if c.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		topics, err := c.ranker.Trending(ctx, c.limit)
		if err != nil {
			return nil, err
		}
		c.local.Add(cache.TrendingKey, topics)
		if err := cache.SetJSON(ctx, c.rdb, cache.TrendingKey, topics, c.ttl); err != nil {
			middleware.Logger.WarnContext(ctx, "trending cache write failed", slog.String("error", err.Error()))
		}
		return topics, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.TrendingTopic), nil
}

// Invalidate drops the cached topics.
func (c *TrendingCache) Invalidate(ctx context.Context) error {
	c.local.Remove(cache.TrendingKey)
	return cache.Invalidate(ctx, c.rdb, cache.TrendingKey)
}

// TopicKeys merges the topics into one lowercase, sorted key set.
func TopicKeys(topics []models.TrendingTopic) []string {
	seen := make(map[string]struct{})
	for _, t := range topics {
		for k := range t {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				seen[k] = struct{}{}
			}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
