package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML schema. Scalars whose zero value is a legitimate
// setting are pointers so an absent key leaves the default untouched.
// Durations are written in Go syntax ("15s", "1m30s").
type fileConfig struct {
	Server struct {
		Host            string `yaml:"host"`
		Port            string `yaml:"port"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		IdleTimeout     string `yaml:"idle_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Storage struct {
		Driver       string `yaml:"driver"`
		DSN          string `yaml:"dsn"`
		MaxOpenConns *int   `yaml:"max_open_conns"`
		MaxIdleConns *int   `yaml:"max_idle_conns"`
	} `yaml:"storage"`

	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`

	Email struct {
		APIKey      string `yaml:"api_key"`
		FromEmail   string `yaml:"from_email"`
		FromName    string `yaml:"from_name"`
		BaseURL     string `yaml:"base_url"`
		TemplateDir string `yaml:"template_dir"`
	} `yaml:"email"`

	RateLimit struct {
		UserPerHour *int `yaml:"user_per_hour"`
		OrgPerHour  *int `yaml:"org_per_hour"`
	} `yaml:"rate_limit"`

	Audit struct {
		RetentionDays *int   `yaml:"retention_days"`
		ArchivePrefix string `yaml:"archive_prefix"`
		S3            struct {
			Bucket       string `yaml:"bucket"`
			Region       string `yaml:"region"`
			Endpoint     string `yaml:"endpoint"`
			AccessKey    string `yaml:"access_key"`
			SecretKey    string `yaml:"secret_key"`
			UsePathStyle *bool  `yaml:"use_path_style"`
		} `yaml:"s3"`
	} `yaml:"audit"`

	Invitations struct {
		PurgeGraceDays *int `yaml:"purge_grace_days"`
	} `yaml:"invitations"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	OTel struct {
		Enabled        *bool    `yaml:"enabled"`
		Endpoint       string   `yaml:"endpoint"`
		ServiceName    string   `yaml:"service_name"`
		ServiceVersion string   `yaml:"service_version"`
		SampleRatio    *float64 `yaml:"sample_ratio"`
		Insecure       *bool    `yaml:"insecure"`
	} `yaml:"otel"`
}

// applyFile overlays the YAML file at path onto cfg. Keys absent from the
// file keep their current values; malformed values fail loudly.
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	overlayString(&cfg.Server.Host, file.Server.Host)
	overlayString(&cfg.Server.Port, file.Server.Port)
	if err := overlayDuration(&cfg.Server.ReadTimeout, file.Server.ReadTimeout, "server.read_timeout"); err != nil {
		return err
	}
	if err := overlayDuration(&cfg.Server.WriteTimeout, file.Server.WriteTimeout, "server.write_timeout"); err != nil {
		return err
	}
	if err := overlayDuration(&cfg.Server.IdleTimeout, file.Server.IdleTimeout, "server.idle_timeout"); err != nil {
		return err
	}
	if err := overlayDuration(&cfg.Server.ShutdownTimeout, file.Server.ShutdownTimeout, "server.shutdown_timeout"); err != nil {
		return err
	}

	overlayString(&cfg.Storage.Driver, file.Storage.Driver)
	overlayString(&cfg.Storage.DSN, file.Storage.DSN)
	overlayInt(&cfg.Storage.MaxOpenConns, file.Storage.MaxOpenConns)
	overlayInt(&cfg.Storage.MaxIdleConns, file.Storage.MaxIdleConns)

	overlayString(&cfg.Redis.URL, file.Redis.URL)

	overlayString(&cfg.Email.APIKey, file.Email.APIKey)
	overlayString(&cfg.Email.FromEmail, file.Email.FromEmail)
	overlayString(&cfg.Email.FromName, file.Email.FromName)
	overlayString(&cfg.Email.BaseURL, file.Email.BaseURL)
	overlayString(&cfg.Email.TemplateDir, file.Email.TemplateDir)

	overlayInt(&cfg.RateLimit.UserPerHour, file.RateLimit.UserPerHour)
	overlayInt(&cfg.RateLimit.OrgPerHour, file.RateLimit.OrgPerHour)

	overlayInt(&cfg.Audit.RetentionDays, file.Audit.RetentionDays)
	overlayString(&cfg.Audit.ArchivePrefix, file.Audit.ArchivePrefix)
	overlayString(&cfg.Audit.S3.Bucket, file.Audit.S3.Bucket)
	overlayString(&cfg.Audit.S3.Region, file.Audit.S3.Region)
	overlayString(&cfg.Audit.S3.Endpoint, file.Audit.S3.Endpoint)
	overlayString(&cfg.Audit.S3.AccessKey, file.Audit.S3.AccessKey)
	overlayString(&cfg.Audit.S3.SecretKey, file.Audit.S3.SecretKey)
	overlayBool(&cfg.Audit.S3.UsePathStyle, file.Audit.S3.UsePathStyle)

	overlayInt(&cfg.Invitations.PurgeGraceDays, file.Invitations.PurgeGraceDays)

	overlayString(&cfg.Log.Level, file.Log.Level)
	overlayString(&cfg.Log.Format, file.Log.Format)

	overlayBool(&cfg.OTel.Enabled, file.OTel.Enabled)
	overlayString(&cfg.OTel.Endpoint, file.OTel.Endpoint)
	overlayString(&cfg.OTel.ServiceName, file.OTel.ServiceName)
	overlayString(&cfg.OTel.ServiceVersion, file.OTel.ServiceVersion)
	overlayFloat(&cfg.OTel.SampleRatio, file.OTel.SampleRatio)
	overlayBool(&cfg.OTel.Insecure, file.OTel.Insecure)

	return nil
}

func overlayString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func overlayInt(dst *int, value *int) {
	if value != nil {
		*dst = *value
	}
}

func overlayBool(dst *bool, value *bool) {
	if value != nil {
		*dst = *value
	}
}

func overlayFloat(dst *float64, value *float64) {
	if value != nil {
		*dst = *value
	}
}

func overlayDuration(dst *time.Duration, value, key string) error {
	if value == "" {
		return nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration for %s: %q", key, value)
	}
	*dst = parsed
	return nil
}
