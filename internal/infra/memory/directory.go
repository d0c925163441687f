package memory

import (
	"context"
	"sync"

	"quiz-practice-service/internal/domain"
)

// Directory is a static token -> user table. It authenticates requests and resolves
// display names when no identity database is configured.
type Directory struct {
	mu      sync.RWMutex
	byToken map[string]domain.User
	byID    map[string]domain.User
}

func NewDirectory() *Directory {
	return &Directory{
		byToken: make(map[string]domain.User),
		byID:    make(map[string]domain.User),
	}
}

// Add registers user under token.
func (d *Directory) Add(token string, user domain.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byToken[token] = user
	d.byID[user.ID] = user
}

func (d *Directory) Authenticate(_ context.Context, token string) (domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	user, ok := d.byToken[token]
	if !ok || token == "" {
		return domain.User{}, domain.ErrUnauthorized
	}
	return user, nil
}

func (d *Directory) LookupUsers(_ context.Context, ids []string) (map[string]domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]domain.User, len(ids))
	for _, id := range ids {
		if u, ok := d.byID[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}
