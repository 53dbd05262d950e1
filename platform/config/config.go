// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// SchedulerConfig provides settings for the asynq scheduler and worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetProgressWarningCron() string
	GetProtectionExpiryCron() string
	GetPseudonymizationCron() string
	GetImportArchivalCron() string
	GetActivityTrackCron() string
	GetRescoreCron() string
}

// EmailConfig provides settings for email sending.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	GetManagerEmailAddress() string
	GetOwnerEmailDomain() string
}

// MaintenanceConfig provides tunables for the lead maintenance jobs.
type MaintenanceConfig interface {
	GetMaintenanceBatchSize() int
	GetProtectionWarningDays() int
	GetGracePeriodDays() int
	GetPseudonymizationDelayDays() int
	GetImportJobRetentionDays() int
	GetActivityReminderDays() int
}

// Config holds all application configuration values.
type Config struct {
	Env string

	DatabaseURL string

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int

	ProgressWarningCron  string
	ProtectionExpiryCron string
	PseudonymizationCron string
	ImportArchivalCron   string
	ActivityTrackCron    string
	RescoreCron          string

	EmailEnabled        bool
	SMTPHost            string
	SMTPPort            int
	SMTPUsername        string
	SMTPPassword        string
	EmailFromName       string
	EmailFromAddress    string
	ManagerEmailAddress string
	OwnerEmailDomain    string

	MaintenanceBatchSize      int
	ProtectionWarningDays     int
	GracePeriodDays           int
	PseudonymizationDelayDays int
	ImportJobRetentionDays    int
	ActivityReminderDays      int
}

// Load reads configuration from the environment, falling back to a local .env
// file when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env: getEnv("APP_ENV", "development"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "maintenance"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),

		// Nightly cadence, staggered so the jobs do not all hit the store at once.
		ProgressWarningCron:  getEnv("JOB_PROGRESS_WARNING_CRON", "0 1 * * *"),
		ProtectionExpiryCron: getEnv("JOB_PROTECTION_EXPIRY_CRON", "15 1 * * *"),
		PseudonymizationCron: getEnv("JOB_PSEUDONYMIZATION_CRON", "30 1 * * *"),
		ImportArchivalCron:   getEnv("JOB_IMPORT_ARCHIVAL_CRON", "45 1 * * *"),
		ActivityTrackCron:    getEnv("JOB_ACTIVITY_TRACK_CRON", "0 2 * * *"),
		RescoreCron:          getEnv("JOB_RESCORE_CRON", "30 2 * * *"),

		EmailEnabled:        strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true"),
		SMTPHost:            getEnv("SMTP_HOST", ""),
		SMTPPort:            mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:        getEnv("SMTP_USERNAME", ""),
		SMTPPassword:        getEnv("SMTP_PASSWORD", ""),
		EmailFromName:       getEnv("EMAIL_FROM_NAME", "Lead Protection"),
		EmailFromAddress:    getEnv("EMAIL_FROM_ADDRESS", ""),
		ManagerEmailAddress: getEnv("MANAGER_EMAIL_ADDRESS", ""),
		OwnerEmailDomain:    getEnv("OWNER_EMAIL_DOMAIN", ""),

		MaintenanceBatchSize:      mustInt(getEnv("MAINTENANCE_BATCH_SIZE", "100")),
		ProtectionWarningDays:     mustInt(getEnv("PROTECTION_WARNING_DAYS", "7")),
		GracePeriodDays:           mustInt(getEnv("GRACE_PERIOD_DAYS", "10")),
		PseudonymizationDelayDays: mustInt(getEnv("PSEUDONYMIZATION_DELAY_DAYS", "60")),
		ImportJobRetentionDays:    mustInt(getEnv("IMPORT_JOB_RETENTION_DAYS", "7")),
		ActivityReminderDays:      mustInt(getEnv("ACTIVITY_REMINDER_DAYS", "60")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.EmailEnabled && cfg.SMTPHost == "" {
		cfg.EmailEnabled = false
	}

	return cfg, nil
}

// Interface implementations.

func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

func (c *Config) GetRedisURL() string            { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool      { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string      { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int       { return c.AsynqConcurrency }
func (c *Config) GetProgressWarningCron() string { return c.ProgressWarningCron }
func (c *Config) GetProtectionExpiryCron() string {
	return c.ProtectionExpiryCron
}
func (c *Config) GetPseudonymizationCron() string {
	return c.PseudonymizationCron
}
func (c *Config) GetImportArchivalCron() string { return c.ImportArchivalCron }
func (c *Config) GetActivityTrackCron() string  { return c.ActivityTrackCron }
func (c *Config) GetRescoreCron() string        { return c.RescoreCron }

func (c *Config) GetEmailEnabled() bool          { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string            { return c.SMTPHost }
func (c *Config) GetSMTPPort() int               { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string        { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string        { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string       { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string    { return c.EmailFromAddress }
func (c *Config) GetManagerEmailAddress() string { return c.ManagerEmailAddress }
func (c *Config) GetOwnerEmailDomain() string    { return c.OwnerEmailDomain }

func (c *Config) GetMaintenanceBatchSize() int  { return c.MaintenanceBatchSize }
func (c *Config) GetProtectionWarningDays() int { return c.ProtectionWarningDays }
func (c *Config) GetGracePeriodDays() int       { return c.GracePeriodDays }
func (c *Config) GetPseudonymizationDelayDays() int {
	return c.PseudonymizationDelayDays
}
func (c *Config) GetImportJobRetentionDays() int { return c.ImportJobRetentionDays }
func (c *Config) GetActivityReminderDays() int   { return c.ActivityReminderDays }

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func mustInt(value string) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return parsed
}
