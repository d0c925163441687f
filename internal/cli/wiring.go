package cli

import (
	"context"
	"fmt"
	"time"

	"quiz-practice-service/internal/app"
	"quiz-practice-service/internal/auth"
	"quiz-practice-service/internal/config"
	"quiz-practice-service/internal/domain"
	"quiz-practice-service/internal/infra/memory"
	"quiz-practice-service/internal/infra/postgres"
	"quiz-practice-service/internal/infra/rabbitmq"
	redisinfra "quiz-practice-service/internal/infra/redis"
	transport "quiz-practice-service/internal/transport/http"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
)

const submitLockLease = 10 * time.Second

// store is everything the services need from the relational backend.
type store interface {
	app.CatalogRepository
	app.SessionRepository
	app.AttemptRepository
	app.StandingsRepository
	app.ProfileRepository
	Ping(ctx context.Context) error
}

// components is the wired application. close releases every opened connection.
type components struct {
	store       store
	quiz        *app.QuizService
	catalog     *app.CatalogService
	leaderboard *app.LeaderboardService
	profiles    *app.ProfileService
	authn       auth.Authenticator
	authOpts    transport.AuthOptions
	metrics     *transport.Metrics
	closers     []func() error
}

func (c *components) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			config.Logger().WithError(err).Warn("close failed")
		}
	}
}

// openStore selects Postgres when configured and the in-memory store otherwise.
func openStore(cfg config.Config) (store, func() error) {
	if cfg.Postgres.URL == "" {
		config.Logger().Warn("postgres url not configured, using in-memory store")
		return memory.NewStore(), func() error { return nil }
	}
	db := postgres.Open(cfg.Postgres.URL)
	return postgres.NewStore(db), db.Close
}

func buildComponents(ctx context.Context, cfg config.Config) (*components, error) {
	c := &components{metrics: transport.NewMetrics()}
	log := config.Logger()

	st, closeStore := openStore(cfg)
	c.store = st
	c.closers = append(c.closers, closeStore)

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		c.closers = append(c.closers, redisClient.Close)
	}

	authn, users, err := buildIdentity(ctx, cfg, c)
	if err != nil {
		c.close()
		return nil, err
	}
	c.authn = authn
	c.authOpts = transport.AuthOptions{
		CookieName:   cfg.Auth.CookieName,
		SignedCookie: cfg.Auth.Mode == config.AuthModeSession,
	}

	standingsTTL := config.TTLDuration(cfg.Quiz.LeaderboardTTL, 30*time.Second)
	var (
		standings   app.StandingsRepository
		invalidator app.AttemptListener
		locker      app.SubmissionLocker
	)
	if redisClient != nil {
		cache := redisinfra.NewStandingsCache(redisClient, st, standingsTTL)
		standings, invalidator = cache, cache
		locker = redisinfra.NewSubmitLock(redisClient, submitLockLease)
	} else {
		cache := memory.NewStandingsCache(st, standingsTTL)
		standings, invalidator = cache, cache
		locker = memory.NewLocker()
	}

	c.leaderboard = app.NewLeaderboardService(standings, users, cfg.Quiz.LeaderboardLimit)
	listeners := []app.AttemptListener{invalidator, c.leaderboard}

	if cfg.RabbitMQ.URL != "" {
		publisher, err := rabbitmq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			c.close()
			return nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		c.closers = append(c.closers, publisher.Close)
		listeners = append(listeners, publisher)
	} else {
		log.Info("rabbitmq url not configured, attempt events are not published")
	}
	listeners = append(listeners, c.metrics)

	c.quiz = app.NewQuizService(st, st, st,
		app.WithSessionTTL(config.TTLDuration(cfg.Quiz.SessionTTL, app.DefaultSessionTTL)),
		app.WithPoolFloor(cfg.Quiz.PoolFloor),
		app.WithLocker(locker),
		app.WithListeners(listeners...),
	)
	c.catalog = app.NewCatalogService(st, nil)
	c.profiles = app.NewProfileService(st, cfg.Auth.BootstrapAdmins)
	return c, nil
}

// buildIdentity returns the request authenticator and the directory used for display names.
func buildIdentity(ctx context.Context, cfg config.Config, c *components) (auth.Authenticator, app.UserDirectory, error) {
	var identity *postgres.Identity
	if cfg.Identity.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Identity.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect identity database: %w", err)
		}
		c.closers = append(c.closers, func() error { pool.Close(); return nil })
		identity = postgres.NewIdentity(pool)
	}

	dev := memory.NewDirectory()
	for _, u := range cfg.Auth.DevUsers {
		dev.Add(u.Token, domain.User{ID: u.ID, Email: u.Email, Name: u.Name})
	}

	switch cfg.Auth.Mode {
	case config.AuthModeJWT:
		jwtAuth, err := auth.NewJWTAuthenticator(cfg.Auth.JWTSecret)
		if err != nil {
			return nil, nil, err
		}
		if identity != nil {
			return jwtAuth, identity, nil
		}
		return jwtAuth, dev, nil
	case config.AuthModeSession:
		if identity != nil {
			return identity, identity, nil
		}
		config.Logger().Warn("identity database not configured, using static dev users")
		return dev, dev, nil
	default:
		return nil, nil, fmt.Errorf("unknown auth mode %q", cfg.Auth.Mode)
	}
}
