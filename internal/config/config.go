package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server ServerConfig `mapstructure:"server" validate:"required"`
	LLM    LLMConfig    `mapstructure:"llm" validate:"required"`
	Jobs   JobsConfig   `mapstructure:"jobs" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	GeminiAPIKey       string `mapstructure:"gemini_api_key" validate:"required"`
	ModelName          string `mapstructure:"model_name" validate:"required"`
	PromptTemplatePath string `mapstructure:"prompt_template_path" validate:"required"`
	MaxRetries         int    `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	RetryDelaySeconds  int    `mapstructure:"retry_delay_seconds" validate:"gte=1,lte=60"`
	RequestsPerMinute  int    `mapstructure:"requests_per_minute" validate:"gte=1,lte=1000"`
}

// JobsConfig contains settings for the background job processor.
type JobsConfig struct {
	// RetentionHours is how long finished jobs stay queryable
	RetentionHours int `mapstructure:"retention_hours" validate:"gt=0"`

	// CleanupIntervalMinutes is how often finished jobs are swept
	CleanupIntervalMinutes int `mapstructure:"cleanup_interval_minutes" validate:"gt=0"`

	// TimeoutMinutes bounds a single job; zero disables the limit
	TimeoutMinutes int `mapstructure:"timeout_minutes" validate:"gte=0"`
}

// Retention returns RetentionHours as a duration.
func (c JobsConfig) Retention() time.Duration {
	return time.Duration(c.RetentionHours) * time.Hour
}

// CleanupInterval returns CleanupIntervalMinutes as a duration.
func (c JobsConfig) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalMinutes) * time.Minute
}

// Timeout returns TimeoutMinutes as a duration.
func (c JobsConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMinutes) * time.Minute
}
