package config

import (
	"fmt"
	"os"
	"time"
)

// Missing product handling during reconciliation.
const (
	PolicyLenient = "lenient"
	PolicyStrict  = "strict"
)

// Config holds environment-driven configuration.
type Config struct {
	Addr        string
	Env         string
	LogLevel    string
	DatabaseURL string
	RedisAddr   string
	SessionTTL  time.Duration
	JWTSecret   string

	StripeSecretKey      string
	StripePublishableKey string
	Currency             string
	BaseURL              string
	PaymentTimeout       time.Duration

	MissingProductPolicy string
}

// Load reads configuration from environment variables.
func Load() (Config, error) {
	cfg := Config{
		Addr:                 getEnv("CHECKOUT_ADDR", ":8080"),
		Env:                  getEnv("APP_ENV", "production"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		StripeSecretKey:      os.Getenv("STRIPE_SECRET_KEY"),
		StripePublishableKey: os.Getenv("STRIPE_PUBLISHABLE_KEY"),
		Currency:             getEnv("CHECKOUT_CURRENCY", "gbp"),
		BaseURL:              getEnv("CHECKOUT_BASE_URL", "http://localhost:8080"),
		MissingProductPolicy: getEnv("CHECKOUT_MISSING_PRODUCT_POLICY", PolicyLenient),
	}

	var err error
	if cfg.SessionTTL, err = getDuration("SESSION_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.PaymentTimeout, err = getDuration("PAYMENT_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}

	switch cfg.MissingProductPolicy {
	case PolicyLenient, PolicyStrict:
	default:
		return Config{}, fmt.Errorf("config: CHECKOUT_MISSING_PRODUCT_POLICY must be %q or %q, got %q",
			PolicyLenient, PolicyStrict, cfg.MissingProductPolicy)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
