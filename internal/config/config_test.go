package config

import (
	"os"
	"testing"
	"time"
)

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		expected    bool
	}{
		{"production", "production", true},
		{"prod", "prod", true},
		{"development", "development", false},
		{"dev", "dev", false},
		{"staging", "staging", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Environment: tt.environment}
			if got := cfg.IsProduction(); got != tt.expected {
				t.Errorf("IsProduction() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			APIBaseURL:     "https://api.example.com",
			RequestTimeout: 10 * time.Second,
			CredentialPath: "/tmp/session.json",
			Environment:    "development",
		}
	}

	t.Run("valid config passes", func(t *testing.T) {
		if err := valid().Validate(); err != nil {
			t.Errorf("Validate() = %v, want nil", err)
		}
	})

	t.Run("missing base URL fails", func(t *testing.T) {
		cfg := valid()
		cfg.APIBaseURL = ""
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() = nil, want error")
		}
	})

	t.Run("non-positive timeout fails", func(t *testing.T) {
		cfg := valid()
		cfg.RequestTimeout = 0
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() = nil, want error")
		}
	})

	t.Run("missing credential path fails", func(t *testing.T) {
		cfg := valid()
		cfg.CredentialPath = ""
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() = nil, want error")
		}
	})
}

func TestGetDuration(t *testing.T) {
	t.Run("unset returns fallback", func(t *testing.T) {
		os.Unsetenv("TEST_DURATION")
		if got := getDuration("TEST_DURATION", 5*time.Second); got != 5*time.Second {
			t.Errorf("getDuration() = %v, want 5s", got)
		}
	})

	t.Run("valid value parsed", func(t *testing.T) {
		os.Setenv("TEST_DURATION", "30s")
		defer os.Unsetenv("TEST_DURATION")
		if got := getDuration("TEST_DURATION", 5*time.Second); got != 30*time.Second {
			t.Errorf("getDuration() = %v, want 30s", got)
		}
	})

	t.Run("invalid value returns fallback", func(t *testing.T) {
		os.Setenv("TEST_DURATION", "not-a-duration")
		defer os.Unsetenv("TEST_DURATION")
		if got := getDuration("TEST_DURATION", 5*time.Second); got != 5*time.Second {
			t.Errorf("getDuration() = %v, want 5s", got)
		}
	})
}
