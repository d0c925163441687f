package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port         string `yaml:"port"`
		ReadTimeout  string `yaml:"readTimeout"`
		WriteTimeout string `yaml:"writeTimeout"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	// Identity points at the identity provider's database (user and session tables).
	Identity struct {
		URL string `yaml:"url"`
	} `yaml:"identity"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	RabbitMQ struct {
		URL      string `yaml:"url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"rabbitmq"`
	Auth struct {
		Mode            string    `yaml:"mode"`
		JWTSecret       string    `yaml:"jwtSecret"`
		CookieName      string    `yaml:"cookieName"`
		BootstrapAdmins []string  `yaml:"bootstrapAdmins"`
		DevUsers        []DevUser `yaml:"devUsers"`
	} `yaml:"auth"`
	Quiz struct {
		SessionTTL       string `yaml:"sessionTTL"`
		PoolFloor        int    `yaml:"poolFloor"`
		LeaderboardLimit int    `yaml:"leaderboardLimit"`
		LeaderboardTTL   string `yaml:"leaderboardTTL"`
	} `yaml:"quiz"`
}

// DevUser is a static credential used when no identity database is configured.
type DevUser struct {
	Token string `yaml:"token"`
	ID    string `yaml:"id"`
	Email string `yaml:"email"`
	Name  string `yaml:"name"`
}

const (
	AuthModeSession = "session"
	AuthModeJWT     = "jwt"
)

// Load reads YAML config from path, then applies env overrides and defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"POSTGRES_URL": &c.Postgres.URL,
		"IDENTITY_URL": &c.Identity.URL,
		"REDIS_ADDR":   &c.Redis.Addr,
		"RABBITMQ_URL": &c.RabbitMQ.URL,
		"JWT_SECRET":   &c.Auth.JWTSecret,
	}
	for key, target := range overrides {
		if v := os.Getenv(key); v != "" {
			*target = v
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Identity.URL == "" {
		c.Identity.URL = c.Postgres.URL
	}
	if c.Auth.Mode == "" {
		c.Auth.Mode = AuthModeSession
	}
	if c.Auth.CookieName == "" {
		c.Auth.CookieName = "session_token"
	}
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "quiz.events"
	}
	if c.Quiz.PoolFloor <= 0 {
		c.Quiz.PoolFloor = 500
	}
	if c.Quiz.LeaderboardLimit <= 0 {
		c.Quiz.LeaderboardLimit = 50
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
