package config

import (
	"testing"
	"time"

	"filetrack/internal/models"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:                      "development",
		Port:                     "8390",
		DBDriver:                 "postgres",
		DBSSLMode:                "disable",
		DBPassword:               "secure-password",
		JWTSecret:                "secure-secret-at-least-32-chars-long",
		SLARoutineHours:          72,
		SLAUrgentHours:           24,
		SLAImmediateHours:        4,
		SLAProjectHours:          168,
		SweepIntervalSeconds:     60,
		SweepWorkers:             4,
		TransitionTimeoutSeconds: 10,
		RetryMaxAttempts:         3,
		DeskDefaultCapacity:      20,
	}
}

func TestConfig_ValidateSSLMode(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		sslMode     string
		expectError bool
	}{
		{"Production with empty SSL mode", "production", "", true},
		{"Production with disable SSL mode", "production", "disable", true},
		{"Production with require SSL mode", "production", "require", false},
		{"Prod with verify-full SSL mode", "prod", "verify-full", false},
		{"Development with disable SSL mode", "development", "disable", false},
		{"Test with empty SSL mode", "test", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			c.Env = tt.env
			c.DBSSLMode = tt.sslMode

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.DBDriver = "mongo" }},
		{"zero sweep interval", func(c *Config) { c.SweepIntervalSeconds = 0 }},
		{"zero workers", func(c *Config) { c.SweepWorkers = 0 }},
		{"zero urgent sla", func(c *Config) { c.SLAUrgentHours = 0 }},
		{"zero retries", func(c *Config) { c.RetryMaxAttempts = 0 }},
		{"zero desk capacity", func(c *Config) { c.DeskDefaultCapacity = 0 }},
		{"sqlite in production", func(c *Config) {
			c.Env = "production"
			c.DBSSLMode = "require"
			c.DBDriver = "sqlite"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestConfig_SLAOverrides(t *testing.T) {
	c := validConfig()
	c.SLAUrgentHours = 12

	overrides := c.SLAOverrides()
	assert.Equal(t, 12*time.Hour, overrides[models.CategoryUrgent])
	assert.Equal(t, 4*time.Hour, overrides[models.CategoryImmediate])
	assert.Equal(t, time.Minute, (&Config{SweepIntervalSeconds: 60}).SweepInterval())
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	defer viper.Reset()
	t.Setenv("APP_ENV", "test")
	t.Setenv("DB_SSLMODE", "  DISABLE  ")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("SLA_URGENT_HOURS", "6")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, "sqlite", c.DBDriver)
	assert.Equal(t, 6, c.SLAUrgentHours)
	assert.True(t, c.ExtensionRequireSuperAdmin)
	assert.Equal(t, 60, c.SweepIntervalSeconds)
}

func TestLoadConfig_MissingProfileFails(t *testing.T) {
	defer viper.Reset()
	t.Setenv("APP_ENV", "staging-that-does-not-exist")

	_, err := LoadConfig()
	assert.Error(t, err)
}
