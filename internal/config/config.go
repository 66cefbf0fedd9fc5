// Package config loads server and client tunables from the environment
// (via godotenv autoload, matching the teacher's internal/cache and
// cmd/migrate packages) with an optional YAML file for operators who would
// rather hand the process a config file than a pile of env vars. Env vars
// always win when both are set; command-line flags, where the caller
// supplies them, win over both.
package config

import (
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds every tunable the TCP round engine needs.
type ServerConfig struct {
	Network       string        `yaml:"network"` // "v4" or "v6"
	Port          int           `yaml:"port"`
	Capacity      int           `yaml:"capacity"`
	BettingWindow time.Duration `yaml:"betting_window"`
	TickInterval  time.Duration `yaml:"tick_interval"`
	AdminAddr     string        `yaml:"admin_addr"`
	RedisURL      string        `yaml:"redis_url"`
	DatabaseURL   string        `yaml:"database_url"`
}

// DefaultCapacity is CAP from the spec's data model.
const DefaultCapacity = 10

// DefaultServerConfig returns the built-in defaults before any file or
// environment overrides are applied.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Network:       "v4",
		Port:          7777,
		Capacity:      DefaultCapacity,
		BettingWindow: 10 * time.Second,
		TickInterval:  100 * time.Millisecond,
		AdminAddr:     ":8089",
		RedisURL:      "localhost:6379",
		DatabaseURL:   "",
	}
}

// LoadServerConfig builds a ServerConfig starting from DefaultServerConfig,
// overlaying configPath (if non-empty and present) and then environment
// variables, which take final precedence.
func LoadServerConfig(configPath string) (ServerConfig, error) {
	cfg := DefaultServerConfig()

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, err
			}
		} else if !os.IsNotExist(err) {
			return cfg, err
		}
	}

	cfg.Network = getEnv("CRASHLINE_NETWORK", cfg.Network)
	cfg.Port = getEnvAsInt("CRASHLINE_PORT", cfg.Port)
	cfg.Capacity = getEnvAsInt("CRASHLINE_CAPACITY", cfg.Capacity)
	cfg.BettingWindow = getEnvAsDuration("CRASHLINE_BETTING_WINDOW", cfg.BettingWindow)
	cfg.TickInterval = getEnvAsDuration("CRASHLINE_TICK_INTERVAL", cfg.TickInterval)
	cfg.AdminAddr = getEnv("CRASHLINE_ADMIN_ADDR", cfg.AdminAddr)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
