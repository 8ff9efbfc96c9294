// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // BOOKING_TIMEZONE must resolve on hosts without zoneinfo

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// WebhookConfig provides the credentials accepted by the booking webhook.
type WebhookConfig interface {
	GetWebhookTokens() []IntegrationToken
	GetWebhookRateLimitPerMinute() int
}

// BookingConfig provides settings for booking ingestion.
type BookingConfig interface {
	GetBookingLocation() *time.Location
}

// SchedulerConfig provides settings for the asynq broker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// CRMSyncConfig provides settings for the sending side of the booking sync.
type CRMSyncConfig interface {
	GetCRMWebhookURL() string
	GetCRMWebhookSecret() string
	GetCRMSyncMaxRetry() int
	GetCRMSyncTimeout() time.Duration
}

// EmailConfig provides settings for operator alert emails.
type EmailConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	GetAlertEmail() string
	IsEmailEnabled() bool
}

// MinIOConfig provides settings for the raw payload archive.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketBookingPayloads() string
	IsMinIOEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                        string
	HTTPAddr                   string
	DatabaseURL                string
	MigrationsDir              string
	CORSAllowAll               bool
	CORSOrigins                []string
	CORSAllowCreds             bool
	CRMWebhookSecret           string
	WebhookTokensFile          string
	WebhookTokens              []IntegrationToken
	WebhookRateLimitPerMinute  int
	BookingTimezone            string
	BookingLocation            *time.Location
	RedisURL                   string
	RedisTLSInsecure           bool
	AsynqQueueName             string
	AsynqConcurrency           int
	CRMWebhookURL              string
	CRMSyncMaxRetry            int
	CRMSyncTimeout             time.Duration
	SMTPHost                   string
	SMTPPort                   int
	SMTPUsername               string
	SMTPPassword               string
	EmailFromName              string
	EmailFromAddress           string
	AlertEmail                 string
	MinIOEndpoint              string
	MinIOAccessKey             string
	MinIOSecretKey             string
	MinIOUseSSL                bool
	MinioBucketBookingPayloads string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// WebhookConfig implementation
func (c *Config) GetWebhookTokens() []IntegrationToken { return c.WebhookTokens }
func (c *Config) GetWebhookRateLimitPerMinute() int    { return c.WebhookRateLimitPerMinute }

// BookingConfig implementation
func (c *Config) GetBookingLocation() *time.Location {
	if c.BookingLocation == nil {
		return time.UTC
	}
	return c.BookingLocation
}

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// CRMSyncConfig implementation
func (c *Config) GetCRMWebhookURL() string         { return c.CRMWebhookURL }
func (c *Config) GetCRMWebhookSecret() string      { return c.CRMWebhookSecret }
func (c *Config) GetCRMSyncMaxRetry() int          { return c.CRMSyncMaxRetry }
func (c *Config) GetCRMSyncTimeout() time.Duration { return c.CRMSyncTimeout }

// EmailConfig implementation
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) GetAlertEmail() string       { return c.AlertEmail }
func (c *Config) IsEmailEnabled() bool {
	return c.SMTPHost != "" && c.EmailFromAddress != "" && c.AlertEmail != ""
}

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string              { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string             { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string             { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool                  { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketBookingPayloads() string { return c.MinioBucketBookingPayloads }
func (c *Config) IsMinIOEnabled() bool {
	return c.MinIOEndpoint != "" && c.MinIOAccessKey != "" && c.MinIOSecretKey != ""
}

// Load reads configuration from environment variables.
// Process-specific requirements are checked by ValidateAPI and ValidateSender.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                        getEnv("APP_ENV", "development"),
		HTTPAddr:                   getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:                getEnv("DATABASE_URL", ""),
		MigrationsDir:              getEnv("MIGRATIONS_DIR", "migrations"),
		CORSAllowAll:               corsAllowAll,
		CORSOrigins:                corsOrigins,
		CORSAllowCreds:             strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		CRMWebhookSecret:           getEnv("CRM_WEBHOOK_SECRET", ""),
		WebhookTokensFile:          getEnv("WEBHOOK_TOKENS_FILE", ""),
		WebhookRateLimitPerMinute:  mustPositiveInt(getEnv("WEBHOOK_RATE_LIMIT_PER_MIN", "120"), 120),
		BookingTimezone:            getEnv("BOOKING_TIMEZONE", "Europe/Stockholm"),
		RedisURL:                   getEnv("REDIS_URL", ""),
		RedisTLSInsecure:           strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:             getEnv("ASYNQ_QUEUE", "crmsync"),
		AsynqConcurrency:           mustPositiveInt(getEnv("ASYNQ_CONCURRENCY", "5"), 5),
		CRMWebhookURL:              strings.TrimRight(getEnv("CRM_WEBHOOK_URL", ""), "/"),
		CRMSyncMaxRetry:            mustPositiveInt(getEnv("CRM_SYNC_MAX_RETRY", "8"), 8),
		CRMSyncTimeout:             mustDuration(getEnv("CRM_SYNC_TIMEOUT", "10s"), 10*time.Second),
		SMTPHost:                   getEnv("SMTP_HOST", ""),
		SMTPPort:                   mustPositiveInt(getEnv("SMTP_PORT", "587"), 587),
		SMTPUsername:               getEnv("SMTP_USERNAME", ""),
		SMTPPassword:               getEnv("SMTP_PASSWORD", ""),
		EmailFromName:              getEnv("EMAIL_FROM_NAME", "Freelance CRM"),
		EmailFromAddress:           getEnv("EMAIL_FROM_ADDRESS", ""),
		AlertEmail:                 getEnv("ALERT_EMAIL", ""),
		MinIOEndpoint:              getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:             getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:             getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:                strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketBookingPayloads: getEnv("MINIO_BUCKET_BOOKING_PAYLOADS", "booking-payloads"),
	}

	loc, err := time.LoadLocation(cfg.BookingTimezone)
	if err != nil {
		return nil, fmt.Errorf("BOOKING_TIMEZONE %q: %w", cfg.BookingTimezone, err)
	}
	cfg.BookingLocation = loc

	tokens, err := webhookTokens(cfg.CRMWebhookSecret, cfg.WebhookTokensFile)
	if err != nil {
		return nil, err
	}
	cfg.WebhookTokens = tokens

	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

// ValidateAPI checks the settings the webhook receiver cannot start without.
func (c *Config) ValidateAPI() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if len(c.WebhookTokens) == 0 {
		return fmt.Errorf("CRM_WEBHOOK_SECRET or WEBHOOK_TOKENS_FILE is required")
	}
	return nil
}

// ValidateSender checks the settings the outbound sync cannot run without.
func (c *Config) ValidateSender() error {
	if c.CRMWebhookURL == "" {
		return fmt.Errorf("CRM_WEBHOOK_URL is required")
	}
	if c.CRMWebhookSecret == "" {
		return fmt.Errorf("CRM_WEBHOOK_SECRET is required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func mustPositiveInt(value string, fallback int) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || result <= 0 {
		return fallback
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
