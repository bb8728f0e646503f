package feed

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds configuration for the mark-price feed
type Config struct {
	// Price source settings
	PriceSourceURL string // e.g., "https://api.binance.com"

	// HTTP client settings
	HTTPTimeout time.Duration
	MaxRetries  int
}

// LoadConfig loads feed configuration from environment variables
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetDefault("PRICE_SOURCE_URL", "https://api.binance.com")
	v.SetDefault("HTTP_TIMEOUT_SECONDS", 5)
	v.SetDefault("MAX_RETRIES", 3)

	v.AutomaticEnv()

	cfg := &Config{
		PriceSourceURL: v.GetString("PRICE_SOURCE_URL"),
		HTTPTimeout:    time.Duration(v.GetInt("HTTP_TIMEOUT_SECONDS")) * time.Second,
		MaxRetries:     v.GetInt("MAX_RETRIES"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid feed configuration: %w", err)
	}

	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.PriceSourceURL == "" {
		return fmt.Errorf("PRICE_SOURCE_URL must not be empty")
	}
	if cfg.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT_SECONDS must be positive")
	}
	if cfg.MaxRetries <= 0 {
		return fmt.Errorf("MAX_RETRIES must be positive")
	}
	return nil
}
