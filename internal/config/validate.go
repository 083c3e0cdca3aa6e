package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return "validation errors: " + strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func Validate(cfg *Config) error {
	var errs ValidationErrors

	// Validate environment
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
		"test":        true,
	}
	if !validEnvs[cfg.Env] {
		errs = append(errs, ValidationError{
			Field:   "env",
			Message: "must be one of: development, staging, production, test",
		})
	}

	if cfg.Scanner.HTTPPort <= 0 || cfg.Scanner.HTTPPort > 65535 {
		errs = append(errs, ValidationError{
			Field:   "scanner.http_port",
			Message: "must be a valid port number (1-65535)",
		})
	}

	errs = append(errs, validateDatabase(&cfg.Scanner.Database)...)
	errs = append(errs, validateRabbitMQ(&cfg.Scanner.RabbitMQ)...)
	errs = append(errs, validateExchange(&cfg.Scanner.Exchange)...)
	errs = append(errs, validateProvider(&cfg.Scanner.Provider)...)
	errs = append(errs, validateSimulation(&cfg.Scanner.Simulation)...)
	errs = append(errs, validateScan(&cfg.Scanner.Scan)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	if cfg.Scanner.Scheduler.Enabled && cfg.Scanner.Scheduler.DailyCron == "" {
		errs = append(errs, ValidationError{
			Field:   "scanner.scheduler.daily_cron",
			Message: "is required when the scheduler is enabled",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateDatabase(db *DatabaseConfig) ValidationErrors {
	var errs ValidationErrors

	if db.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "scanner.database.host",
			Message: "is required",
		})
	}
	if db.Port <= 0 || db.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "scanner.database.port",
			Message: "must be a valid port number (1-65535)",
		})
	}
	if db.User == "" {
		errs = append(errs, ValidationError{
			Field:   "scanner.database.user",
			Message: "is required",
		})
	}
	if db.Password == "" {
		errs = append(errs, ValidationError{
			Field:   "scanner.database.password",
			Message: "is required",
		})
	}
	if db.Name == "" {
		errs = append(errs, ValidationError{
			Field:   "scanner.database.name",
			Message: "is required",
		})
	}

	validSSLModes := map[string]bool{
		"disable":     true,
		"require":     true,
		"verify-ca":   true,
		"verify-full": true,
	}
	if !validSSLModes[db.SSLMode] {
		errs = append(errs, ValidationError{
			Field:   "scanner.database.sslmode",
			Message: "must be one of: disable, require, verify-ca, verify-full",
		})
	}

	if db.MaxConnections <= 0 {
		errs = append(errs, ValidationError{
			Field:   "scanner.database.max_connections",
			Message: "must be greater than 0",
		})
	}
	if db.MaxIdleConnections < 0 {
		errs = append(errs, ValidationError{
			Field:   "scanner.database.max_idle_connections",
			Message: "must be non-negative",
		})
	}
	if db.MaxIdleConnections > db.MaxConnections {
		errs = append(errs, ValidationError{
			Field:   "scanner.database.max_idle_connections",
			Message: "must not exceed max_connections",
		})
	}

	return errs
}

func validateRabbitMQ(mq *RabbitMQConfig) ValidationErrors {
	var errs ValidationErrors

	if !mq.Enabled {
		return errs
	}

	if mq.URL == "" {
		errs = append(errs, ValidationError{
			Field:   "scanner.rabbitmq.url",
			Message: "is required",
		})
	} else if !strings.HasPrefix(mq.URL, "amqp://") && !strings.HasPrefix(mq.URL, "amqps://") {
		errs = append(errs, ValidationError{
			Field:   "scanner.rabbitmq.url",
			Message: "must start with amqp:// or amqps://",
		})
	}

	if mq.Exchange == "" {
		errs = append(errs, ValidationError{
			Field:   "scanner.rabbitmq.exchange",
			Message: "is required",
		})
	}

	return errs
}

func validateExchange(ex *ExchangeConfig) ValidationErrors {
	var errs ValidationErrors

	if ex.Timezone == "" {
		errs = append(errs, ValidationError{
			Field:   "scanner.exchange.timezone",
			Message: "is required",
		})
	} else if _, err := time.LoadLocation(ex.Timezone); err != nil {
		errs = append(errs, ValidationError{
			Field:   "scanner.exchange.timezone",
			Message: "must be a valid IANA timezone",
		})
	}

	for _, field := range []struct{ name, value string }{
		{"scanner.exchange.market_open", ex.MarketOpen},
		{"scanner.exchange.market_close", ex.MarketClose},
	} {
		if _, err := time.Parse("15:04", field.value); err != nil {
			errs = append(errs, ValidationError{
				Field:   field.name,
				Message: "must be a time of day in HH:MM format",
			})
		}
	}

	return errs
}

func validateProvider(p *ProviderConfig) ValidationErrors {
	var errs ValidationErrors

	validSources := map[string]bool{
		"yahoo":     true,
		"synthetic": true,
	}
	if !validSources[p.Source] {
		errs = append(errs, ValidationError{
			Field:   "scanner.provider.source",
			Message: "must be one of: yahoo, synthetic",
		})
	}

	if p.Source == "yahoo" && p.BaseURL == "" {
		errs = append(errs, ValidationError{
			Field:   "scanner.provider.base_url",
			Message: "is required for the yahoo provider",
		})
	}

	if p.TimeoutSeconds <= 0 {
		errs = append(errs, ValidationError{
			Field:   "scanner.provider.timeout_seconds",
			Message: "must be greater than 0",
		})
	}

	if p.Retry.MaxAttempts <= 0 {
		errs = append(errs, ValidationError{
			Field:   "scanner.provider.retry.max_attempts",
			Message: "must be greater than 0",
		})
	}
	if p.Retry.BaseBackoffMs <= 0 {
		errs = append(errs, ValidationError{
			Field:   "scanner.provider.retry.base_backoff_ms",
			Message: "must be greater than 0",
		})
	}
	if p.Retry.JitterMaxMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "scanner.provider.retry.jitter_max_ms",
			Message: "must be non-negative",
		})
	}

	if p.Breaker.FailureThreshold <= 0 {
		errs = append(errs, ValidationError{
			Field:   "scanner.provider.breaker.failure_threshold",
			Message: "must be greater than 0",
		})
	}
	if p.Breaker.CooldownMinutes <= 0 {
		errs = append(errs, ValidationError{
			Field:   "scanner.provider.breaker.cooldown_minutes",
			Message: "must be greater than 0",
		})
	}

	return errs
}

func validateSimulation(s *SimulationConfig) ValidationErrors {
	var errs ValidationErrors

	if _, err := time.Parse("2006-01-02", s.BaseDate); err != nil {
		errs = append(errs, ValidationError{
			Field:   "scanner.simulation.base_date",
			Message: "must be a date in yyyy-mm-dd format",
		})
	}

	if s.MaxCycleDays <= 0 {
		errs = append(errs, ValidationError{
			Field:   "scanner.simulation.max_cycle_days",
			Message: "must be greater than 0",
		})
	}

	if s.StaleLockCeiling != "" {
		if d, err := time.ParseDuration(s.StaleLockCeiling); err != nil || d <= 0 {
			errs = append(errs, ValidationError{
				Field:   "scanner.simulation.stale_lock_ceiling",
				Message: "must be a positive duration (e.g. 30m)",
			})
		}
	}

	if s.ConflictRetries <= 0 {
		errs = append(errs, ValidationError{
			Field:   "scanner.simulation.conflict_retries",
			Message: "must be greater than 0",
		})
	}

	return errs
}

func validateScan(s *ScanConfig) ValidationErrors {
	var errs ValidationErrors

	if s.BatchSize <= 0 {
		errs = append(errs, ValidationError{
			Field:   "scanner.scan.batch_size",
			Message: "must be greater than 0",
		})
	}

	b := &s.Breakout
	if b.LookbackWindow <= 1 {
		errs = append(errs, ValidationError{
			Field:   "scanner.scan.breakout.lookback_window",
			Message: "must be greater than 1",
		})
	}
	if b.RSIPeriod <= 0 {
		errs = append(errs, ValidationError{
			Field:   "scanner.scan.breakout.rsi_period",
			Message: "must be greater than 0",
		})
	}
	if b.SMAShortPeriod <= 0 || b.SMAMediumPeriod <= b.SMAShortPeriod || b.SMALongPeriod <= b.SMAMediumPeriod {
		errs = append(errs, ValidationError{
			Field:   "scanner.scan.breakout.sma_periods",
			Message: "must be positive and strictly increasing",
		})
	}
	if b.MaxGap <= 0 || b.MaxGap >= 1 {
		errs = append(errs, ValidationError{
			Field:   "scanner.scan.breakout.max_gap",
			Message: "must be a fraction between 0 and 1",
		})
	}
	if b.BaseConfidence <= 0 || b.BaseConfidence > 1 {
		errs = append(errs, ValidationError{
			Field:   "scanner.scan.breakout.base_confidence",
			Message: "must be between 0 and 1",
		})
	}
	if b.MaxConfidenceCap < b.BaseConfidence || b.MaxConfidenceCap > 1 {
		errs = append(errs, ValidationError{
			Field:   "scanner.scan.breakout.max_confidence_cap",
			Message: "must be between base_confidence and 1",
		})
	}

	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[l.Level] {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: "must be one of: debug, info, warn, error",
		})
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}
	if !validFormats[l.Format] {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: "must be one of: json, console",
		})
	}

	return errs
}

// IsValidationError checks if an error is a validation error.
func IsValidationError(err error) bool {
	var ve ValidationError
	var ves ValidationErrors
	return errors.As(err, &ve) || errors.As(err, &ves)
}
