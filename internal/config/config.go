// Package config provides relay configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// GracePeriod is how long a disconnected session has to reconnect and
// re-claim its active registro before the relay pauses it.
const GracePeriod = 5 * time.Second

// HeartbeatInterval is how often the liveness monitor pings every open
// connection. A connection that misses one interval is terminated.
const HeartbeatInterval = 5 * time.Second

// Config holds all relay configuration.
type Config struct {
	Port   string
	DBPath string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:   getEnv("SOCKET_PORT", "4000"),
		DBPath: getEnv("DB_PATH", "./data/bitacora.db"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Port) == "" {
		return fmt.Errorf("SOCKET_PORT cannot be empty")
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
