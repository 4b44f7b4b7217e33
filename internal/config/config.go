package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName          string
	AppEnv           string
	AppPort          string
	DatabaseURL      string
	RedisURL         string
	NATSURL          string
	EventSubjectBase string
	JWTSecret        string
	CatalogCacheTTL  time.Duration
	IngestRateLimit  int
	IngestRateWindow time.Duration
	OpenAIAPIKey     string
	AIModel          string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CLASSBOARD")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Classboard API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("events.subject_base", "classboard")
	v.SetDefault("catalog.cache_ttl", "2m")
	v.SetDefault("ingest.rate_limit", 60)
	v.SetDefault("ingest.rate_window", "1m")
	v.SetDefault("ai.model", "gpt-4o-mini")

	ttl, err := time.ParseDuration(v.GetString("catalog.cache_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid catalog cache ttl: %w", err)
	}

	rateWindow, err := time.ParseDuration(v.GetString("ingest.rate_window"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid ingest rate window: %w", err)
	}

	cfg := Config{
		AppName:          v.GetString("app.name"),
		AppEnv:           v.GetString("app.env"),
		AppPort:          v.GetString("app.port"),
		DatabaseURL:      v.GetString("database.url"),
		RedisURL:         v.GetString("redis.url"),
		NATSURL:          v.GetString("nats.url"),
		EventSubjectBase: v.GetString("events.subject_base"),
		JWTSecret:        v.GetString("jwt.secret"),
		CatalogCacheTTL:  ttl,
		IngestRateLimit:  v.GetInt("ingest.rate_limit"),
		IngestRateWindow: rateWindow,
		OpenAIAPIKey:     v.GetString("openai_api_key"),
		AIModel:          v.GetString("ai.model"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.IngestRateLimit <= 0 {
		cfg.IngestRateLimit = 60
	}

	return cfg, nil
}
