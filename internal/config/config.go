package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"numcmc/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Engine   EngineConfig
	Chain    ChainConfig
	Database DatabaseConfig
	Server   ServerConfig
}

// EngineConfig holds streaming and interval settings
type EngineConfig struct {
	BatchSize        int
	MaxSteps         int // 0 reads the whole chain
	Workers          int
	ProgressEvery    int
	Levels           []float64
	OrderingVariable string
}

// ChainConfig locates the chain to read
type ChainConfig struct {
	File  string
	Table string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{}

	engineConfig, err := loadEngineConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load engine configuration")
	}
	config.Engine = *engineConfig

	config.Chain = ChainConfig{
		File:  getEnvOrDefault("NUMCMC_CHAIN_FILE", ""),
		Table: getEnvOrDefault("NUMCMC_CHAIN_TABLE", "mcmc"),
	}
	config.Database = DatabaseConfig{URL: getEnvOrDefault("DATABASE_URL", "")}
	config.Server = ServerConfig{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func loadEngineConfig() (*EngineConfig, error) {
	batchSize, err := getEnvIntOrDefault("NUMCMC_BATCH_SIZE", 100000)
	if err != nil {
		return nil, err
	}
	maxSteps, err := getEnvIntOrDefault("NUMCMC_MAX_STEPS", 0)
	if err != nil {
		return nil, err
	}
	workers, err := getEnvIntOrDefault("NUMCMC_WORKERS", 4)
	if err != nil {
		return nil, err
	}
	progress, err := getEnvIntOrDefault("NUMCMC_PROGRESS_EVERY", 10)
	if err != nil {
		return nil, err
	}
	levels, err := ParseLevels(getEnvOrDefault("NUMCMC_LEVELS", "0.68,0.95"))
	if err != nil {
		return nil, err
	}

	return &EngineConfig{
		BatchSize:        batchSize,
		MaxSteps:         maxSteps,
		Workers:          workers,
		ProgressEvery:    progress,
		Levels:           levels,
		OrderingVariable: getEnvOrDefault("NUMCMC_ORDERING_VARIABLE", "Deltam2_32"),
	}, nil
}

func validateConfig(config *Config) error {
	if config.Engine.BatchSize < 1 {
		return errors.ConfigInvalid("NUMCMC_BATCH_SIZE must be positive")
	}
	if config.Engine.MaxSteps < 0 {
		return errors.ConfigInvalid("NUMCMC_MAX_STEPS cannot be negative")
	}
	if config.Engine.Workers < 1 {
		return errors.ConfigInvalid("NUMCMC_WORKERS must be positive")
	}
	if config.Engine.ProgressEvery < 0 {
		return errors.ConfigInvalid("NUMCMC_PROGRESS_EVERY cannot be negative")
	}
	if config.Engine.OrderingVariable == "" {
		return errors.ConfigInvalid("NUMCMC_ORDERING_VARIABLE cannot be empty")
	}
	switch config.Server.GinMode {
	case "debug", "release", "test":
	default:
		return errors.ConfigInvalid(fmt.Sprintf("GIN_MODE %q is not one of debug, release, test", config.Server.GinMode))
	}
	return nil
}

// ParseLevels parses a comma-separated list of credible levels, each in
// (0,1), and returns them sorted in ascending order
func ParseLevels(s string) ([]float64, error) {
	var levels []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, errors.ConfigInvalid(fmt.Sprintf("credible level %q is not a number", part))
		}
		if !(v > 0 && v < 1) {
			return nil, errors.ConfigInvalid(fmt.Sprintf("credible level %v must be in (0,1)", v))
		}
		levels = append(levels, v)
	}
	if len(levels) == 0 {
		return nil, errors.ConfigInvalid("at least one credible level is required")
	}
	sort.Float64s(levels)
	return levels, nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.ConfigInvalid(fmt.Sprintf("%s=%q is not an integer", key, value))
	}
	return intValue, nil
}
