// Package config loads daemon configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ProviderConfig is the credential set for one AI provider.
type ProviderConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Config is the full daemon configuration.
type Config struct {
	DBPath   string
	RedisURL string
	HTTPAddr string

	Anthropic ProviderConfig
	OpenAI    ProviderConfig
	Google    ProviderConfig
	XAI       ProviderConfig

	CallTimeout    time.Duration
	RetryDelay     time.Duration
	SweepInterval  time.Duration
	SweepHorizon   time.Duration
	SettleInterval time.Duration

	LeaderboardTTL time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first when present; real environment variables win.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		DBPath:   envStr("ARENA_DB_PATH", "arena.db"),
		RedisURL: envStr("ARENA_REDIS_URL", ""),
		HTTPAddr: envStr("ARENA_HTTP_ADDR", ":8080"),

		Anthropic: ProviderConfig{
			APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
			Model:   os.Getenv("ANTHROPIC_MODEL"),
			BaseURL: os.Getenv("ANTHROPIC_BASE_URL"),
		},
		OpenAI: ProviderConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Model:   os.Getenv("OPENAI_MODEL"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
		},
		Google: ProviderConfig{
			APIKey:  os.Getenv("GOOGLE_API_KEY"),
			Model:   os.Getenv("GOOGLE_MODEL"),
			BaseURL: os.Getenv("GOOGLE_BASE_URL"),
		},
		XAI: ProviderConfig{
			APIKey:  os.Getenv("XAI_API_KEY"),
			Model:   os.Getenv("XAI_MODEL"),
			BaseURL: os.Getenv("XAI_BASE_URL"),
		},

		CallTimeout:    envDuration("ARENA_CALL_TIMEOUT", 60*time.Second),
		RetryDelay:     envDuration("ARENA_RETRY_DELAY", 5*time.Second),
		SweepInterval:  envDuration("ARENA_SWEEP_INTERVAL", 10*time.Minute),
		SweepHorizon:   envDuration("ARENA_SWEEP_HORIZON", 48*time.Hour),
		SettleInterval: envDuration("ARENA_SETTLE_INTERVAL", 15*time.Minute),

		LeaderboardTTL: envDuration("ARENA_LEADERBOARD_TTL", time.Minute),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
