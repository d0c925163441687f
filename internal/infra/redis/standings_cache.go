package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"quiz-practice-service/internal/app"
	"quiz-practice-service/internal/config"
	"quiz-practice-service/internal/domain"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const standingsVersionKey = "leaderboard:standings:version"

// StandingsCache caches leaderboard aggregates in Redis and falls back to the source on a miss.
// Keys carry a version that every new attempt bumps, so stale snapshots are never read again:
//
//	GET leaderboard:standings:version -> v
//	GET leaderboard:standings:{v}:{limit} -> JSON standings
type StandingsCache struct {
	client *redis.Client
	source app.StandingsRepository
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewStandingsCache(client *redis.Client, source app.StandingsRepository, ttl time.Duration) *StandingsCache {
	return &StandingsCache{
		client: client,
		source: source,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *StandingsCache) TopStandings(ctx context.Context, limit int) ([]domain.Standing, error) {
	version, err := c.version(ctx)
	if err != nil {
		config.WithContext(ctx).WithError(err).Warn("standings cache unavailable, reading source")
		return c.source.TopStandings(ctx, limit)
	}
	key := c.key(version, limit)

	if standings, ok := c.get(ctx, key); ok {
		return standings, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if standings, ok := c.get(ctx, key); ok {
			return standings, nil
		}
		standings, err := c.source.TopStandings(ctx, limit)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(standings); err == nil {
			if err := c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err(); err != nil {
				config.WithContext(ctx).WithError(err).Warn("standings cache write failed")
			}
		}
		return standings, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Standing), nil
}

// AttemptGraded moves readers to a fresh key space.
func (c *StandingsCache) AttemptGraded(ctx context.Context, _ domain.Attempt) {
	if err := c.client.Incr(ctx, standingsVersionKey).Err(); err != nil {
		config.WithContext(ctx).WithError(err).Warn("standings cache invalidation failed")
	}
}

func (c *StandingsCache) version(ctx context.Context) (int64, error) {
	v, err := c.client.Get(ctx, standingsVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (c *StandingsCache) get(ctx context.Context, key string) ([]domain.Standing, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var standings []domain.Standing
	if err := json.Unmarshal(raw, &standings); err != nil {
		return nil, false
	}
	return standings, true
}

func (c *StandingsCache) key(version int64, limit int) string {
	return "leaderboard:standings:" + strconv.FormatInt(version, 10) + ":" + strconv.Itoa(limit)
}

func (c *StandingsCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
