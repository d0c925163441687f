package auth

import (
	"context"
	"errors"
	"time"

	"quiz-practice-service/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carried by tokens accepted in jwt mode. The subject is the user id.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuthenticator validates HS256 tokens signed with a shared secret.
type JWTAuthenticator struct {
	secret []byte
	now    func() time.Time
}

func NewJWTAuthenticator(secret string) (*JWTAuthenticator, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &JWTAuthenticator{secret: []byte(secret), now: time.Now}, nil
}

func (a *JWTAuthenticator) Authenticate(_ context.Context, token string) (domain.User, error) {
	if token == "" {
		return domain.User{}, domain.ErrUnauthorized
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return domain.User{}, &domain.Error{Code: domain.CodeUnauthorized, Message: domain.ErrUnauthorized.Message, Err: err}
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return domain.User{}, domain.ErrUnauthorized
	}
	return domain.User{ID: claims.Subject, Email: claims.Email, Name: claims.Name}, nil
}

// Issue signs a token for user. It backs the CLI and tests; production tokens come from the identity provider.
func (a *JWTAuthenticator) Issue(user domain.User, ttl time.Duration) (string, error) {
	now := a.now()
	claims := &Claims{
		Email: user.Email,
		Name:  user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}
