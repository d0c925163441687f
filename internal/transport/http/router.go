package http

import (
	"context"
	"net/http"

	"quiz-practice-service/internal/app"
	"quiz-practice-service/internal/auth"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Pinger reports backend health for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	Quiz          *app.QuizService
	Catalog       *app.CatalogService
	Leaderboard   *app.LeaderboardService
	Profiles      *app.ProfileService
	Authenticator auth.Authenticator
	Auth          AuthOptions
	Metrics       *Metrics
	Health        Pinger
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics()
	}
	quiz := &quizHandler{service: cfg.Quiz}
	catalog := &catalogHandler{service: cfg.Catalog}
	profile := &profileHandler{service: cfg.Profiles}
	leaderboard := newLeaderboardHandler(cfg.Leaderboard)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cfg.Metrics.instrument)

	r.Get("/healthz", health(cfg.Health))
	r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(authenticate(cfg.Authenticator, cfg.Auth))

		r.Post("/profile/ensure", profile.ensure)

		r.Get("/subjects", catalog.listSubjects)
		r.Get("/subjects/{subjectCode}/units", catalog.listUnits)
		r.Get("/subjects/{subjectCode}/units/{unitCode}/topics", catalog.listTopics)

		r.Route("/quiz", func(r chi.Router) {
			r.Post("/start", quiz.start)
			r.Get("/session/{sessionId}", quiz.session)
			r.Post("/submit", quiz.submit)
		})

		r.Get("/leaderboard", leaderboard.top)
		r.Get("/leaderboard/ws", leaderboard.serveWS)

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAdmin(cfg.Profiles))
			r.Post("/subjects", catalog.createSubject)
			r.Delete("/subjects/{subjectId}", catalog.deleteSubject)
			r.Post("/units", catalog.createUnit)
			r.Delete("/units/{unitId}", catalog.deleteUnit)
			r.Post("/questions", catalog.createQuestion)
			r.Post("/questions/bulk", catalog.createQuestions)
			r.Post("/import", catalog.importQuestions)
		})
	})
	return r
}

func health(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p != nil {
			if err := p.Ping(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, envelope{Error: &errorBody{Code: "UNAVAILABLE", Message: "Storage unreachable."}})
				return
			}
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	}
}
