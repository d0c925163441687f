package auth

import (
	"context"

	"quiz-practice-service/internal/domain"
)

// Authenticator resolves an opaque request credential to a user.
// Implementations return domain.ErrUnauthorized for unknown, expired or malformed tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.User, error)
}

type ctxKey struct{}

// WithUser stores the authenticated user on the context.
func WithUser(ctx context.Context, user domain.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, user)
}

// UserFrom returns the user stored by WithUser.
func UserFrom(ctx context.Context) (domain.User, bool) {
	user, ok := ctx.Value(ctxKey{}).(domain.User)
	return user, ok && user.ID != ""
}

// UserID returns the authenticated user id or "".
func UserID(ctx context.Context) string {
	user, _ := UserFrom(ctx)
	return user.ID
}
