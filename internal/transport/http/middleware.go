package http

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"quiz-practice-service/internal/app"
	"quiz-practice-service/internal/auth"
	"quiz-practice-service/internal/config"
	"quiz-practice-service/internal/domain"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// AuthOptions configures credential extraction.
type AuthOptions struct {
	CookieName string
	// SignedCookie strips a ".signature" suffix from the cookie value before lookup.
	SignedCookie bool
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		config.WithContext(r.Context()).WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("request")
	})
}

// authenticate resolves the caller and stores it on the request context.
func authenticate(authn auth.Authenticator, opts AuthOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := credential(r, opts)
			if token == "" {
				writeError(w, r, domain.ErrUnauthorized)
				return
			}
			user, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), user)))
		})
	}
}

func credential(r *http.Request, opts AuthOptions) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if opts.CookieName == "" {
		return ""
	}
	c, err := r.Cookie(opts.CookieName)
	if err != nil {
		return ""
	}
	value, err := url.QueryUnescape(c.Value)
	if err != nil {
		value = c.Value
	}
	if opts.SignedCookie {
		value, _, _ = strings.Cut(value, ".")
	}
	return value
}

// requireAdmin rejects callers whose stored profile is not admin.
func requireAdmin(profiles *app.ProfileService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := profiles.RequireAdmin(r.Context(), auth.UserID(r.Context())); err != nil {
				writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
