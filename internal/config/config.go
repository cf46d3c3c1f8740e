// Package config reads the relay and CLI settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Defaults used when the corresponding variable is unset.
const (
	DefaultAddr      = ":8080"
	DefaultBackend   = "sqlite"
	DefaultDBPath    = "./data/groups.db"
	DefaultTokenTTL  = 24 * time.Hour
	DefaultRelayURL  = "http://localhost:8080"
	DefaultRateBurst = 10
)

var validate = validator.New()

// Config holds the process settings.
type Config struct {
	// Addr is the relay listen address (CASHSPLITTER_ADDR).
	Addr string `validate:"required"`
	// Backend selects the store: sqlite, badger or memory (STORAGE_BACKEND).
	Backend string `validate:"oneof=sqlite badger memory"`
	// DBPath is the SQLite file or Badger directory (DB_PATH).
	DBPath string `validate:"required_unless=Backend memory"`
	// JWTSecret signs replica tokens (SYNC_JWT_SECRET). Empty disables auth.
	JWTSecret string
	// TokenTTL is the lifetime of issued tokens (SYNC_TOKEN_TTL).
	TokenTTL time.Duration `validate:"gt=0"`
	// RateLimit is the sustained calls per second allowed per replica
	// (SYNC_RATE_LIMIT). Zero disables limiting.
	RateLimit float64 `validate:"gte=0"`
	// RateBurst is the number of calls a replica may make at once (SYNC_RATE_BURST).
	RateBurst int `validate:"gte=1"`

	// RelayURL is the relay the CLI syncs with (CASHSPLITTER_RELAY).
	RelayURL string `validate:"required,url"`
	// Token is the bearer token the CLI presents to the relay (SYNC_TOKEN).
	Token string
}

// AuthEnabled reports whether the relay requires bearer tokens.
func (c Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	cfg := Config{
		Addr:      getEnv("CASHSPLITTER_ADDR", DefaultAddr),
		Backend:   getEnv("STORAGE_BACKEND", DefaultBackend),
		DBPath:    getEnv("DB_PATH", DefaultDBPath),
		JWTSecret: os.Getenv("SYNC_JWT_SECRET"),
		TokenTTL:  DefaultTokenTTL,
		RateBurst: DefaultRateBurst,
		RelayURL:  getEnv("CASHSPLITTER_RELAY", DefaultRelayURL),
		Token:     os.Getenv("SYNC_TOKEN"),
	}

	var err error
	if raw := os.Getenv("SYNC_TOKEN_TTL"); raw != "" {
		if cfg.TokenTTL, err = time.ParseDuration(raw); err != nil {
			return Config{}, fmt.Errorf("invalid SYNC_TOKEN_TTL %q: %w", raw, err)
		}
	}
	if raw := os.Getenv("SYNC_RATE_LIMIT"); raw != "" {
		if cfg.RateLimit, err = strconv.ParseFloat(raw, 64); err != nil {
			return Config{}, fmt.Errorf("invalid SYNC_RATE_LIMIT %q: %w", raw, err)
		}
	}
	if raw := os.Getenv("SYNC_RATE_BURST"); raw != "" {
		if cfg.RateBurst, err = strconv.Atoi(raw); err != nil {
			return Config{}, fmt.Errorf("invalid SYNC_RATE_BURST %q: %w", raw, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field against its constraints.
func (c Config) Validate() error {
	err := validate.Struct(c)
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		msgs := make([]error, len(fieldErrs))
		for i, fe := range fieldErrs {
			msgs[i] = fmt.Errorf("invalid %s: %q fails %q", fe.Field(), fmt.Sprint(fe.Value()), fe.Tag())
		}
		return errors.Join(msgs...)
	}
	return err
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
