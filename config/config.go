// Package config handles loading and managing application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	// Server configuration
	Server ServerConfig

	// Merchant platform integration
	Merchant MerchantConfig

	// Persistence
	Database DatabaseConfig

	// Gateway credentials
	MercadoPago MercadoPagoConfig
	PayPal      PayPalConfig
	BinancePay  BinancePayConfig

	// Outbound callback delivery
	Notify NotifyConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port    string
	GinMode string // "debug", "release", or "test"

	// BaseURL is the public base this service is reachable at; gateway
	// return and webhook URLs are built from it.
	BaseURL string

	// FrontendURL hosts the gateway selection page customers land on.
	FrontendURL string
}

// MerchantConfig holds the shared secrets of the signed-parameter protocol.
// The two directions use distinct secrets.
type MerchantConfig struct {
	RequestSecret  string
	CallbackSecret string
}

// DatabaseConfig holds persistence configuration.
type DatabaseConfig struct {
	DSN string
}

// MercadoPagoConfig holds per-country access tokens. A country with an empty
// token is simply not registered at startup.
type MercadoPagoConfig struct {
	AccessTokenAR string
	AccessTokenMX string
	AccessTokenCL string
}

// PayPalConfig holds PayPal REST API credentials.
type PayPalConfig struct {
	ClientID string
	Secret   string
	Mode     string // "sandbox" or "live"
}

// BinancePayConfig holds Binance Pay merchant API credentials.
type BinancePayConfig struct {
	BaseURL   string
	APIKey    string
	SecretKey string
}

// NotifyConfig tunes the callback delivery loop.
type NotifyConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Timeout     time.Duration
	Workers     int
	Buffer      int
}

// Load reads configuration from environment variables.
// Returns a Config struct with all settings populated.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			GinMode:     getEnv("GIN_MODE", "debug"),
			BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
			FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),
		},
		Merchant: MerchantConfig{
			RequestSecret:  getEnv("MERCHANT_REQUEST_SECRET", ""),
			CallbackSecret: getEnv("MERCHANT_CALLBACK_SECRET", ""),
		},
		Database: DatabaseConfig{
			DSN: getEnv("DATABASE_DSN", "paybridge.db"),
		},
		MercadoPago: MercadoPagoConfig{
			AccessTokenAR: getEnv("MP_ACCESS_TOKEN_AR", ""),
			AccessTokenMX: getEnv("MP_ACCESS_TOKEN_MX", ""),
			AccessTokenCL: getEnv("MP_ACCESS_TOKEN_CL", ""),
		},
		PayPal: PayPalConfig{
			ClientID: getEnv("PAYPAL_CLIENT_ID", ""),
			Secret:   getEnv("PAYPAL_SECRET", ""),
			Mode:     getEnv("PAYPAL_MODE", "sandbox"),
		},
		BinancePay: BinancePayConfig{
			BaseURL:   getEnv("BINANCE_PAY_BASE_URL", "https://bpay.binanceapi.com"),
			APIKey:    getEnv("BINANCE_PAY_API_KEY", ""),
			SecretKey: getEnv("BINANCE_PAY_SECRET_KEY", ""),
		},
		Notify: NotifyConfig{
			MaxAttempts: getEnvInt("CALLBACK_MAX_ATTEMPTS", 3),
			BaseDelay:   getEnvDuration("CALLBACK_BASE_DELAY", 2*time.Second),
			Timeout:     getEnvDuration("CALLBACK_TIMEOUT", 10*time.Second),
			Workers:     getEnvInt("CALLBACK_WORKERS", 4),
			Buffer:      getEnvInt("CALLBACK_BUFFER", 64),
		},
	}
}

// Validate checks the settings the service cannot run without.
func (c *Config) Validate() error {
	if c.Merchant.RequestSecret == "" {
		return fmt.Errorf("MERCHANT_REQUEST_SECRET is required")
	}
	if c.Merchant.CallbackSecret == "" {
		return fmt.Errorf("MERCHANT_CALLBACK_SECRET is required")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("DATABASE_DSN is required")
	}
	return nil
}

// getEnv retrieves an environment variable with a fallback default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as an integer with a fallback.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration retrieves an environment variable as a duration with a fallback.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
