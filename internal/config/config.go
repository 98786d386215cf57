// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"filetrack/internal/models"

	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	JWTSecret  string `mapstructure:"JWT_SECRET"`
	Port       string `mapstructure:"PORT"`
	DBDriver   string `mapstructure:"DB_DRIVER"`
	SQLitePath string `mapstructure:"SQLITE_PATH"`
	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	DBSSLMode  string `mapstructure:"DB_SSLMODE"`

	DBMaxOpenConns           int `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns           int `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes int `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`

	DBSchemaMode                  string `mapstructure:"DB_SCHEMA_MODE"`
	DBAutoMigrateAllowDestructive bool   `mapstructure:"DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE"`

	RedisURL     string `mapstructure:"REDIS_URL"`
	FeatureFlags string `mapstructure:"FEATURE_FLAGS"`
	Env          string `mapstructure:"APP_ENV"`

	SLARoutineHours   int `mapstructure:"SLA_ROUTINE_HOURS"`
	SLAUrgentHours    int `mapstructure:"SLA_URGENT_HOURS"`
	SLAImmediateHours int `mapstructure:"SLA_IMMEDIATE_HOURS"`
	SLAProjectHours   int `mapstructure:"SLA_PROJECT_HOURS"`

	SweepIntervalSeconds     int `mapstructure:"SWEEP_INTERVAL_SECONDS"`
	SweepWorkers             int `mapstructure:"SWEEP_WORKERS"`
	TransitionTimeoutSeconds int `mapstructure:"TRANSITION_TIMEOUT_SECONDS"`
	LockTTLSeconds           int `mapstructure:"LOCK_TTL_SECONDS"`
	NotifyQueueSize          int `mapstructure:"NOTIFY_QUEUE_SIZE"`
	NotifyTimeoutSeconds     int `mapstructure:"NOTIFY_TIMEOUT_SECONDS"`
	RetryMaxAttempts         int `mapstructure:"RETRY_MAX_ATTEMPTS"`
	DeskDefaultCapacity      int `mapstructure:"DESK_DEFAULT_CAPACITY"`

	ExtensionRequireSuperAdmin bool `mapstructure:"EXTENSION_REQUIRE_SUPER_ADMIN"`
	ExtensionResetClock        bool `mapstructure:"EXTENSION_RESET_CLOCK"`

	TracingEnabled  bool   `mapstructure:"TRACING_ENABLED"`
	TracingExporter string `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint    string `mapstructure:"OTLP_ENDPOINT"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base file is optional; environment variables and defaults are enough to run.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("PORT", "8390")
	viper.SetDefault("DB_DRIVER", "postgres")
	viper.SetDefault("SQLITE_PATH", "filetrack.db")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "filetrack")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 5)
	viper.SetDefault("DB_SCHEMA_MODE", "hybrid")
	viper.SetDefault("DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE", false)
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("JWT_SECRET", "your-secret-key-change-in-production")
	viper.SetDefault("FEATURE_FLAGS", "allow_recall_terminal=on,auto_desk_provisioning=on")
	viper.SetDefault("APP_ENV", "development")

	viper.SetDefault("SLA_ROUTINE_HOURS", 72)
	viper.SetDefault("SLA_URGENT_HOURS", 24)
	viper.SetDefault("SLA_IMMEDIATE_HOURS", 4)
	viper.SetDefault("SLA_PROJECT_HOURS", 168)

	viper.SetDefault("SWEEP_INTERVAL_SECONDS", 60)
	viper.SetDefault("SWEEP_WORKERS", 4)
	viper.SetDefault("TRANSITION_TIMEOUT_SECONDS", 10)
	viper.SetDefault("LOCK_TTL_SECONDS", 30)
	viper.SetDefault("NOTIFY_QUEUE_SIZE", 256)
	viper.SetDefault("NOTIFY_TIMEOUT_SECONDS", 3)
	viper.SetDefault("RETRY_MAX_ATTEMPTS", 3)
	viper.SetDefault("DESK_DEFAULT_CAPACITY", 20)

	viper.SetDefault("EXTENSION_REQUIRE_SUPER_ADMIN", true)
	viper.SetDefault("EXTENSION_RESET_CLOCK", false)

	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
}

func (c *Config) normalize() {
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
}

// IsProduction reports whether the production profile is active.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.DBDriver != "postgres" && c.DBDriver != "sqlite" {
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}
	if c.SweepIntervalSeconds <= 0 {
		return errors.New("SWEEP_INTERVAL_SECONDS must be positive")
	}
	if c.SweepWorkers <= 0 {
		return errors.New("SWEEP_WORKERS must be positive")
	}
	if c.TransitionTimeoutSeconds <= 0 {
		return errors.New("TRANSITION_TIMEOUT_SECONDS must be positive")
	}
	if c.RetryMaxAttempts <= 0 {
		return errors.New("RETRY_MAX_ATTEMPTS must be positive")
	}
	if c.DeskDefaultCapacity <= 0 {
		return errors.New("DESK_DEFAULT_CAPACITY must be positive")
	}
	for name, hours := range map[string]int{
		"SLA_ROUTINE_HOURS":   c.SLARoutineHours,
		"SLA_URGENT_HOURS":    c.SLAUrgentHours,
		"SLA_IMMEDIATE_HOURS": c.SLAImmediateHours,
		"SLA_PROJECT_HOURS":   c.SLAProjectHours,
	} {
		if hours <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if c.IsProduction() {
		if c.JWTSecret == "your-secret-key-change-in-production" {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBDriver == "sqlite" {
			return errors.New("DB_DRIVER=sqlite is not supported in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			return errors.New("DB_SSLMODE must not be disabled in production")
		}
	} else if len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}

// SLAOverrides returns the configured allotment per priority category.
func (c *Config) SLAOverrides() map[models.PriorityCategory]time.Duration {
	return map[models.PriorityCategory]time.Duration{
		models.CategoryRoutine:   time.Duration(c.SLARoutineHours) * time.Hour,
		models.CategoryUrgent:    time.Duration(c.SLAUrgentHours) * time.Hour,
		models.CategoryImmediate: time.Duration(c.SLAImmediateHours) * time.Hour,
		models.CategoryProject:   time.Duration(c.SLAProjectHours) * time.Hour,
	}
}

// SweepInterval is the red-list monitor period.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// TransitionTimeout bounds every command against the store.
func (c *Config) TransitionTimeout() time.Duration {
	return time.Duration(c.TransitionTimeoutSeconds) * time.Second
}

// LockTTL bounds how long a per-file lock may be held.
func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// NotifyTimeout bounds a single notification delivery.
func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.NotifyTimeoutSeconds) * time.Second
}
