// Package config loads the storefront configuration from a YAML file,
// with environment variables overriding the secrets so credentials never
// have to live on disk.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds all storefront configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Discount DiscountConfig `yaml:"discount"`
	Checkout CheckoutConfig `yaml:"checkout"`
	Stripe   StripeConfig   `yaml:"stripe"`
	PayPal   PayPalConfig   `yaml:"paypal"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// URL is overridden by DATABASE_URL when set.
	URL string `yaml:"url"`
}

// DiscountConfig maps bundle sizes to discount fractions, e.g. 3: 0.15.
// Sizes without a tier fall back to the default policy rate.
type DiscountConfig struct {
	Tiers map[int]float64 `yaml:"tiers"`
}

type CheckoutConfig struct {
	ProviderTimeout string `yaml:"provider_timeout"`
}

type StripeConfig struct {
	SecretKey string `yaml:"secret_key"` // overridden by STRIPE_SECRET_KEY
	BaseURL   string `yaml:"base_url"`
}

type PayPalConfig struct {
	ClientID     string `yaml:"client_id"`     // overridden by PAYPAL_CLIENT_ID
	ClientSecret string `yaml:"client_secret"` // overridden by PAYPAL_CLIENT_SECRET
	BaseURL      string `yaml:"base_url"`
	Environment  string `yaml:"environment"` // sandbox or live
}

type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: "10s",
		},
		Checkout: CheckoutConfig{
			ProviderTimeout: "30s",
		},
		Stripe: StripeConfig{
			BaseURL: "https://api.stripe.com",
		},
		PayPal: PayPalConfig{
			BaseURL:     "https://api-m.sandbox.paypal.com",
			Environment: "sandbox",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path on top of the defaults and applies
// the environment overrides. A missing file is not an error; the
// defaults plus environment are a complete configuration.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("os.ReadFile: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("yaml.Unmarshal: %w", err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("STRIPE_SECRET_KEY"); v != "" {
		c.Stripe.SecretKey = v
	}
	if v := os.Getenv("PAYPAL_CLIENT_ID"); v != "" {
		c.PayPal.ClientID = v
	}
	if v := os.Getenv("PAYPAL_CLIENT_SECRET"); v != "" {
		c.PayPal.ClientSecret = v
	}
}

func (c *Config) validate() error {
	if _, err := c.Server.Shutdown(); err != nil {
		return fmt.Errorf("server.shutdown_timeout: %w", err)
	}
	if _, err := c.Checkout.Timeout(); err != nil {
		return fmt.Errorf("checkout.provider_timeout: %w", err)
	}
	for size, rate := range c.Discount.Tiers {
		if size <= 0 {
			return fmt.Errorf("discount.tiers: size %d must be positive", size)
		}
		if rate < 0 || rate >= 1 {
			return fmt.Errorf("discount.tiers: rate %v for size %d outside [0,1)", rate, size)
		}
	}

	return nil
}

func (s ServerConfig) Shutdown() (time.Duration, error) {
	return time.ParseDuration(s.ShutdownTimeout)
}

func (c CheckoutConfig) Timeout() (time.Duration, error) {
	return time.ParseDuration(c.ProviderTimeout)
}

// Rates converts the configured tiers into the decimal form the discount
// policy consumes.
func (d DiscountConfig) Rates() map[int]decimal.Decimal {
	if len(d.Tiers) == 0 {
		return nil
	}

	rates := make(map[int]decimal.Decimal, len(d.Tiers))
	for size, rate := range d.Tiers {
		rates[size] = decimal.NewFromFloat(rate)
	}

	return rates
}
