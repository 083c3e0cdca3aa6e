package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a YAML file and applies environment variable overrides.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	// Load from YAML file if exists
	if configPath != "" {
		if err := loadFromYAML(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromYAML loads configuration from a YAML file.
func loadFromYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, use defaults
			return nil
		}
		return err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Environment
	if v := os.Getenv("ENV"); v != "" {
		cfg.Env = v
	}

	// HTTP port
	if v := os.Getenv("HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Scanner.HTTPPort = port
		}
	}

	// Database
	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.Scanner.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Scanner.Database.Port = port
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.Scanner.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Scanner.Database.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Scanner.Database.Name = v
	}
	if v := os.Getenv("DB_SSLMODE"); v != "" {
		cfg.Scanner.Database.SSLMode = v
	}
	if v := os.Getenv("DB_MAX_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scanner.Database.MaxConnections = n
		}
	}

	// RabbitMQ
	if v := os.Getenv("RABBITMQ_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Scanner.RabbitMQ.Enabled = b
		}
	}
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		cfg.Scanner.RabbitMQ.URL = v
	}
	if v := os.Getenv("RABBITMQ_EXCHANGE"); v != "" {
		cfg.Scanner.RabbitMQ.Exchange = v
	}

	// Provider
	if v := os.Getenv("PROVIDER_SOURCE"); v != "" {
		cfg.Scanner.Provider.Source = strings.ToLower(v)
	}
	if v := os.Getenv("PROVIDER_BASE_URL"); v != "" {
		cfg.Scanner.Provider.BaseURL = v
	}
	if v := os.Getenv("PROVIDER_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scanner.Provider.TimeoutSeconds = n
		}
	}

	// Simulation
	if v := os.Getenv("SIMULATION_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Scanner.Simulation.Enabled = b
		}
	}
	if v := os.Getenv("SIMULATION_BASE_DATE"); v != "" {
		cfg.Scanner.Simulation.BaseDate = v
	}
	if v := os.Getenv("SIMULATION_MAX_CYCLE_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scanner.Simulation.MaxCycleDays = n
		}
	}

	// Scheduler
	if v := os.Getenv("SCHEDULER_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Scanner.Scheduler.Enabled = b
		}
	}
	if v := os.Getenv("SCHEDULER_DAILY_CRON"); v != "" {
		cfg.Scanner.Scheduler.DailyCron = v
	}

	// Logging
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
}

// MustLoad loads configuration and panics on error.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}
