package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"quiz-practice-service/internal/app"
	"quiz-practice-service/internal/domain"

	"golang.org/x/sync/singleflight"
)

// StandingsCache caches leaderboard aggregates in process with a TTL.
// It is used when no Redis is configured; a new attempt drops the cached value.
type StandingsCache struct {
	source app.StandingsRepository
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	gen   uint64
	cache map[int]cachedStandings

	rndMu sync.Mutex
	rnd   *rand.Rand
}

type cachedStandings struct {
	standings []domain.Standing
	expiresAt time.Time
}

func NewStandingsCache(source app.StandingsRepository, ttl time.Duration) *StandingsCache {
	return &StandingsCache{
		source: source,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[int]cachedStandings),
	}
}

func (c *StandingsCache) TopStandings(ctx context.Context, limit int) ([]domain.Standing, error) {
	if standings, ok := c.lookup(limit); ok {
		return standings, nil
	}

	result, err, _ := c.sf.Do(strconv.Itoa(limit), func() (interface{}, error) {
		if standings, ok := c.lookup(limit); ok {
			return standings, nil
		}
		c.mu.RLock()
		gen := c.gen
		c.mu.RUnlock()

		standings, err := c.source.TopStandings(ctx, limit)
		if err != nil {
			return nil, err
		}

		expiresAt := c.clock().Add(c.ttlWithJitter())
		c.mu.Lock()
		// an attempt graded during the load makes this result stale
		if c.gen == gen {
			c.cache[limit] = cachedStandings{standings: standings, expiresAt: expiresAt}
		}
		c.mu.Unlock()
		return standings, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Standing), nil
}

// AttemptGraded invalidates every cached limit.
func (c *StandingsCache) AttemptGraded(_ context.Context, _ domain.Attempt) {
	c.mu.Lock()
	c.gen++
	c.cache = make(map[int]cachedStandings)
	c.mu.Unlock()
}

func (c *StandingsCache) lookup(limit int) ([]domain.Standing, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[limit]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return nil, false
	}
	return entry.standings, true
}

func (c *StandingsCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
