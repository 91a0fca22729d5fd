package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/tenancy/pkg/audit"
	"github.com/platinummonkey/tenancy/pkg/ratelimit"
	"github.com/platinummonkey/tenancy/pkg/storage"
)

// Config holds all daemon configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage configuration
	Storage storage.Config

	// Redis configuration (distributed rate limiting)
	Redis RedisConfig

	// Email configuration
	Email EmailConfig

	// Rate limit configuration
	RateLimit RateLimitConfig

	// Audit retention and archiving configuration
	Audit AuditConfig

	// Invitations retention configuration
	Invitations InvitationsConfig

	// Logging configuration
	Log LogConfig

	// OpenTelemetry configuration
	OTel OTelConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Address returns the host:port the server listens on
func (c ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// RedisConfig holds Redis settings. An empty URL keeps rate limiting
// in-process.
type RedisConfig struct {
	URL string
}

// EmailConfig holds outbound email settings. An empty APIKey disables
// delivery entirely; invitations still work, they just go unannounced.
type EmailConfig struct {
	APIKey    string
	FromEmail string
	FromName  string

	// BaseURL prefixes invitation acceptance links in outbound mail
	BaseURL string

	// TemplateDir overrides the compiled-in templates when set
	TemplateDir string
}

// RateLimitConfig holds the invitation quotas, counted per hour
type RateLimitConfig struct {
	UserPerHour int
	OrgPerHour  int
}

// AuditConfig holds audit trail retention settings. An empty S3 bucket
// disables archiving; aged rows are then deleted without an offload.
type AuditConfig struct {
	RetentionDays int

	// ArchivePrefix namespaces archive object keys within the bucket
	ArchivePrefix string

	S3 audit.S3Config
}

// InvitationsConfig holds invitation retention settings
type InvitationsConfig struct {
	// PurgeGraceDays keeps expired unaccepted invitations visible this many
	// days past expiry before the nightly purge removes them.
	PurgeGraceDays int
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or text
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled        bool
	Endpoint       string
	ServiceName    string
	ServiceVersion string
	SampleRatio    float64
	Insecure       bool // use insecure gRPC connection
}

// Load builds the configuration: defaults, then the optional YAML file
// (path argument, or TENANCY_CONFIG when the argument is empty), then
// TENANCY_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path == "" {
		path = os.Getenv("TENANCY_CONFIG")
	}
	if path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// defaults returns a configuration that runs on a laptop with no external
// services: sqlite storage, in-process rate limiting, no email, no tracing.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Storage: storage.Config{
			Driver: storage.DriverSQLite,
			DSN:    "tenancy.db",
		},
		Email: EmailConfig{
			FromName: "Tenancy",
			BaseURL:  "http://localhost:3000",
		},
		RateLimit: RateLimitConfig{
			UserPerHour: ratelimit.DefaultUserLimit,
			OrgPerHour:  ratelimit.DefaultOrgLimit,
		},
		Audit: AuditConfig{
			RetentionDays: 365,
			ArchivePrefix: "audit",
		},
		Invitations: InvitationsConfig{
			PurgeGraceDays: 30,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		OTel: OTelConfig{
			Endpoint:       "localhost:4317",
			ServiceName:    "tenancy",
			ServiceVersion: "1.0.0",
			SampleRatio:    1.0,
			Insecure:       true,
		},
	}
}

// applyEnv overlays TENANCY_* environment variables onto cfg
func applyEnv(cfg *Config) {
	setString(&cfg.Server.Host, "TENANCY_HOST")
	setString(&cfg.Server.Port, "TENANCY_PORT")
	setDuration(&cfg.Server.ReadTimeout, "TENANCY_READ_TIMEOUT")
	setDuration(&cfg.Server.WriteTimeout, "TENANCY_WRITE_TIMEOUT")
	setDuration(&cfg.Server.IdleTimeout, "TENANCY_IDLE_TIMEOUT")
	setDuration(&cfg.Server.ShutdownTimeout, "TENANCY_SHUTDOWN_TIMEOUT")

	setString(&cfg.Storage.Driver, "TENANCY_STORAGE_DRIVER")
	setString(&cfg.Storage.DSN, "TENANCY_STORAGE_DSN")
	setInt(&cfg.Storage.MaxOpenConns, "TENANCY_STORAGE_MAX_OPEN_CONNS")
	setInt(&cfg.Storage.MaxIdleConns, "TENANCY_STORAGE_MAX_IDLE_CONNS")

	setString(&cfg.Redis.URL, "TENANCY_REDIS_URL")

	setString(&cfg.Email.APIKey, "TENANCY_EMAIL_API_KEY")
	setString(&cfg.Email.FromEmail, "TENANCY_EMAIL_FROM")
	setString(&cfg.Email.FromName, "TENANCY_EMAIL_FROM_NAME")
	setString(&cfg.Email.BaseURL, "TENANCY_EMAIL_BASE_URL")
	setString(&cfg.Email.TemplateDir, "TENANCY_EMAIL_TEMPLATE_DIR")

	setInt(&cfg.RateLimit.UserPerHour, "TENANCY_RATE_LIMIT_USER_PER_HOUR")
	setInt(&cfg.RateLimit.OrgPerHour, "TENANCY_RATE_LIMIT_ORG_PER_HOUR")

	setInt(&cfg.Audit.RetentionDays, "TENANCY_AUDIT_RETENTION_DAYS")
	setString(&cfg.Audit.ArchivePrefix, "TENANCY_AUDIT_S3_PREFIX")
	setString(&cfg.Audit.S3.Bucket, "TENANCY_AUDIT_S3_BUCKET")
	setString(&cfg.Audit.S3.Region, "TENANCY_AUDIT_S3_REGION")
	setString(&cfg.Audit.S3.Endpoint, "TENANCY_AUDIT_S3_ENDPOINT")
	setString(&cfg.Audit.S3.AccessKey, "TENANCY_AUDIT_S3_ACCESS_KEY")
	setString(&cfg.Audit.S3.SecretKey, "TENANCY_AUDIT_S3_SECRET_KEY")
	setBool(&cfg.Audit.S3.UsePathStyle, "TENANCY_AUDIT_S3_PATH_STYLE")

	setInt(&cfg.Invitations.PurgeGraceDays, "TENANCY_INVITATION_PURGE_DAYS")

	setString(&cfg.Log.Level, "TENANCY_LOG_LEVEL")
	setString(&cfg.Log.Format, "TENANCY_LOG_FORMAT")

	setBool(&cfg.OTel.Enabled, "TENANCY_OTEL_ENABLED")
	setString(&cfg.OTel.Endpoint, "TENANCY_OTEL_ENDPOINT")
	setString(&cfg.OTel.ServiceName, "TENANCY_OTEL_SERVICE_NAME")
	setString(&cfg.OTel.ServiceVersion, "TENANCY_OTEL_SERVICE_VERSION")
	setFloat(&cfg.OTel.SampleRatio, "TENANCY_OTEL_SAMPLE_RATIO")
	setBool(&cfg.OTel.Insecure, "TENANCY_OTEL_INSECURE")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	switch c.Storage.Driver {
	case storage.DriverPostgres, storage.DriverSQLite:
	default:
		return fmt.Errorf("invalid storage driver: %s (must be postgres or sqlite)", c.Storage.Driver)
	}
	if c.Storage.DSN == "" {
		return fmt.Errorf("storage DSN is required")
	}

	if c.Email.APIKey != "" && c.Email.FromEmail == "" {
		return fmt.Errorf("email from address is required when an API key is set")
	}

	if c.RateLimit.UserPerHour <= 0 || c.RateLimit.OrgPerHour <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}

	if c.Audit.RetentionDays <= 0 {
		return fmt.Errorf("audit retention days must be positive")
	}
	if c.Invitations.PurgeGraceDays < 0 {
		return fmt.Errorf("invitation purge grace days cannot be negative")
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Log.Format)
	}

	if c.OTel.Enabled {
		if c.OTel.Endpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.OTel.SampleRatio < 0 || c.OTel.SampleRatio > 1 {
			return fmt.Errorf("OpenTelemetry sample ratio must be between 0 and 1")
		}
	}

	return nil
}

// setString overwrites dst when the environment variable is set
func setString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

// setBool overwrites dst when the environment variable is set
func setBool(dst *bool, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = strings.EqualFold(value, "true") || value == "1"
	}
}

// setInt overwrites dst when the environment variable parses as an integer
func setInt(dst *int, key string) {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			*dst = parsed
		}
	}
}

// setFloat overwrites dst when the environment variable parses as a float
func setFloat(dst *float64, key string) {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*dst = parsed
		}
	}
}

// setDuration overwrites dst when the environment variable parses as a
// duration.
func setDuration(dst *time.Duration, key string) {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			*dst = parsed
		}
	}
}
