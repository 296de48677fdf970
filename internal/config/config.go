package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds client configuration
type Config struct {
	APIBaseURL        string
	RequestTimeout    time.Duration
	RequestsPerSecond float64

	// Social login
	ProviderName         string
	ProviderClientID     string
	ProviderAuthURL      string
	ProviderCallbackAddr string

	// Credential persistence
	CredentialPath string
	CredentialPass string // optional; enables sealing at rest

	Environment string // development, staging, production
}

// Load loads configuration from environment variables and validates it
func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		APIBaseURL:           getEnv("API_BASE_URL", "http://localhost:8080"),
		RequestTimeout:       getDuration("REQUEST_TIMEOUT", 15*time.Second),
		RequestsPerSecond:    getFloat("REQUESTS_PER_SECOND", 10),
		ProviderName:         getEnv("PROVIDER_NAME", "kakao"),
		ProviderClientID:     getEnv("PROVIDER_CLIENT_ID", ""),
		ProviderAuthURL:      getEnv("PROVIDER_AUTH_URL", ""),
		ProviderCallbackAddr: getEnv("PROVIDER_CALLBACK_ADDR", "127.0.0.1:8910"),
		CredentialPath:       getEnv("CREDENTIAL_PATH", defaultCredentialPath()),
		CredentialPass:       getEnv("CREDENTIAL_PASSPHRASE", ""),
		Environment:          getEnv("ENVIRONMENT", "development"),
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	return cfg
}

// Validate checks configuration for correctness
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL must be set")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive (got %s)", c.RequestTimeout)
	}

	if c.CredentialPath == "" {
		return fmt.Errorf("CREDENTIAL_PATH could not be determined")
	}

	// Production requires sealed credentials at rest
	if c.IsProduction() && c.CredentialPass == "" {
		log.Println("WARNING: credentials stored unsealed; set CREDENTIAL_PASSPHRASE in production")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev" || c.Environment == ""
}

func defaultCredentialPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "shelterlink", "session.json")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Invalid %s=%q, using %s", key, value, fallback)
		return fallback
	}
	return d
}

func getFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Printf("Invalid %s=%q, using %v", key, value, fallback)
		return fallback
	}
	return f
}
