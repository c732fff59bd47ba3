package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds the service configuration, read from environment variables
// with sensible defaults for development
type Config struct {
	Port         string
	DatabasePath string
	JWTSecret    string
	SyncInterval time.Duration
	Env          string
	Debug        bool
}

// Load reads configuration from the environment
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_PATH", "sync.db")
	v.SetDefault("JWT_SECRET", "integration-secret-key")
	v.SetDefault("SYNC_INTERVAL", "15m")
	v.SetDefault("ENV", "development")
	v.SetDefault("DEBUG", false)

	v.AutomaticEnv()

	cfg := &Config{
		Port:         v.GetString("PORT"),
		DatabasePath: v.GetString("DATABASE_PATH"),
		JWTSecret:    v.GetString("JWT_SECRET"),
		SyncInterval: v.GetDuration("SYNC_INTERVAL"),
		Env:          v.GetString("ENV"),
		Debug:        v.GetBool("DEBUG"),
	}

	return cfg, nil
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
