package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quiz-practice-service/internal/domain"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Identity reads the identity provider's "user" and "session" tables.
// It resolves opaque session tokens and serves the user directory.
type Identity struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewIdentity(pool *pgxpool.Pool) *Identity {
	return &Identity{pool: pool, now: time.Now}
}

func (i *Identity) Authenticate(ctx context.Context, token string) (domain.User, error) {
	if token == "" {
		return domain.User{}, domain.ErrUnauthorized
	}
	var user domain.User
	err := i.pool.QueryRow(ctx, `
		SELECT u.id, u.email, COALESCE(u.name, '')
		FROM "session" s
		JOIN "user" u ON u.id = s."userId"
		WHERE s.token = $1 AND s."expiresAt" > $2`,
		token, i.now(),
	).Scan(&user.ID, &user.Email, &user.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrUnauthorized
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("resolve session token: %w", err)
	}
	return user, nil
}

func (i *Identity) LookupUsers(ctx context.Context, ids []string) (map[string]domain.User, error) {
	out := make(map[string]domain.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := i.pool.Query(ctx, `SELECT id, email, COALESCE(name, '') FROM "user" WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("lookup users: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lookup users: %w", err)
	}
	return out, nil
}
