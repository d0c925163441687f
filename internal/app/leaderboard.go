package app

import (
	"context"
	"sync"

	"quiz-practice-service/internal/config"
	"quiz-practice-service/internal/domain"
)

// DefaultLeaderboardLimit caps the number of ranked users.
const DefaultLeaderboardLimit = 50

// LeaderboardService ranks users by their attempts and fans out fresh rankings to subscribers.
type LeaderboardService struct {
	standings StandingsRepository
	users     UserDirectory
	limit     int

	mu          sync.Mutex
	subscribers map[chan []domain.LeaderboardEntry]struct{}
}

func NewLeaderboardService(standings StandingsRepository, users UserDirectory, limit int) *LeaderboardService {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	return &LeaderboardService{
		standings:   standings,
		users:       users,
		limit:       limit,
		subscribers: make(map[chan []domain.LeaderboardEntry]struct{}),
	}
}

// Top returns the ranked leaderboard joined with display names.
func (s *LeaderboardService) Top(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	rows, err := s.standings.TopStandings(ctx, s.limit)
	if err != nil {
		return nil, wrapStorage(ctx, "Failed to load leaderboard.", err)
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.UserID
	}
	users := map[string]domain.User{}
	if s.users != nil && len(ids) > 0 {
		users, err = s.users.LookupUsers(ctx, ids)
		if err != nil {
			return nil, wrapStorage(ctx, "Failed to load users.", err)
		}
	}

	entries := make([]domain.LeaderboardEntry, 0, len(rows))
	for _, r := range rows {
		entry := domain.LeaderboardEntry{
			UserID:          r.UserID,
			Name:            "Unknown",
			Attempts:        r.Attempts,
			TotalCorrect:    r.TotalCorrect,
			TotalQuestions:  r.TotalQuestions,
			Accuracy:        accuracy(r.TotalCorrect, r.TotalQuestions),
			LastSubmittedAt: r.LastSubmittedAt,
		}
		if u, ok := users[r.UserID]; ok {
			if u.Name != "" {
				entry.Name = u.Name
			}
			entry.Email = u.Email
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func accuracy(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total)
}

// AttemptGraded recomputes the leaderboard and pushes it to subscribers.
func (s *LeaderboardService) AttemptGraded(ctx context.Context, _ domain.Attempt) {
	s.mu.Lock()
	idle := len(s.subscribers) == 0
	s.mu.Unlock()
	if idle {
		return
	}

	entries, err := s.Top(ctx)
	if err != nil {
		config.WithContext(ctx).WithError(err).Warn("leaderboard broadcast skipped")
		return
	}
	s.broadcast(entries)
}

// Subscribe returns a channel that receives leaderboard snapshots.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *LeaderboardService) Subscribe() (<-chan []domain.LeaderboardEntry, func()) {
	ch := make(chan []domain.LeaderboardEntry, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *LeaderboardService) broadcast(entries []domain.LeaderboardEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- entries:
		default:
			// slow subscriber: drop its oldest snapshot
			select {
			case <-ch:
			default:
			}
			ch <- entries
		}
	}
}
