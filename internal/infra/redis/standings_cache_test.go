package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-practice-service/internal/domain"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestStandingsCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	source := &countingStandings{rows: []domain.Standing{{UserID: "u1", Attempts: 1, TotalCorrect: 20, TotalQuestions: 25, LastSubmittedAt: at}}}
	cache := NewStandingsCache(newClient(mr), source, time.Minute)
	ctx := context.Background()

	got, err := cache.TopStandings(ctx, 50)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("expected source called once, got %d", source.calls)
	}
	if !mr.Exists("leaderboard:standings:0:50") {
		t.Fatalf("expected cached key")
	}

	// Second call should hit cache, source not incremented.
	again, _ := cache.TopStandings(ctx, 50)
	if source.calls != 1 {
		t.Fatalf("expected cache hit, source calls=%d", source.calls)
	}
	if len(again) != 1 || again[0].UserID != got[0].UserID || again[0].TotalCorrect != 20 || !again[0].LastSubmittedAt.Equal(at) {
		t.Fatalf("cached value differs: %+v vs %+v", again, got)
	}
}

func TestStandingsCacheInvalidatesOnAttempt(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	source := &countingStandings{}
	cache := NewStandingsCache(newClient(mr), source, time.Minute)
	ctx := context.Background()

	_, _ = cache.TopStandings(ctx, 50)
	cache.AttemptGraded(ctx, domain.Attempt{ID: "a1"})
	_, _ = cache.TopStandings(ctx, 50)
	if source.calls != 2 {
		t.Fatalf("expected reload after invalidation, source calls=%d", source.calls)
	}
	if !mr.Exists("leaderboard:standings:1:50") {
		t.Fatalf("expected versioned key after invalidation")
	}
}

func TestStandingsCacheFallsBackWhenRedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	client := newClient(mr)
	mr.Close()

	source := &countingStandings{rows: []domain.Standing{{UserID: "u1"}}}
	cache := NewStandingsCache(client, source, time.Minute)
	got, err := cache.TopStandings(context.Background(), 50)
	if err != nil {
		t.Fatalf("expected fallback, got %v", err)
	}
	if len(got) != 1 || source.calls != 1 {
		t.Fatalf("expected source result, got %+v", got)
	}
}

func TestStandingsCachePropagatesSourceError(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	source := &countingStandings{err: errors.New("db down")}
	cache := NewStandingsCache(newClient(mr), source, time.Minute)
	if _, err := cache.TopStandings(context.Background(), 50); err == nil {
		t.Fatalf("expected source error")
	}
	if mr.Exists("leaderboard:standings:0:50") {
		t.Fatalf("errors must not be cached")
	}
}

type countingStandings struct {
	rows  []domain.Standing
	err   error
	calls int
}

func (c *countingStandings) TopStandings(context.Context, int) ([]domain.Standing, error) {
	c.calls++
	return c.rows, c.err
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
