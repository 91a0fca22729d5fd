package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/tenancy/pkg/storage"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)

	assert.Equal(t, storage.DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "tenancy.db", cfg.Storage.DSN)

	assert.Empty(t, cfg.Redis.URL)
	assert.Empty(t, cfg.Email.APIKey)
	assert.Equal(t, "http://localhost:3000", cfg.Email.BaseURL)

	assert.Equal(t, 20, cfg.RateLimit.UserPerHour)
	assert.Equal(t, 5, cfg.RateLimit.OrgPerHour)

	assert.Equal(t, 365, cfg.Audit.RetentionDays)
	assert.Equal(t, 30, cfg.Invitations.PurgeGraceDays)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.False(t, cfg.OTel.Enabled)
	assert.Equal(t, 1.0, cfg.OTel.SampleRatio)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TENANCY_PORT", "9000")
	t.Setenv("TENANCY_READ_TIMEOUT", "45s")
	t.Setenv("TENANCY_STORAGE_DRIVER", "postgres")
	t.Setenv("TENANCY_STORAGE_DSN", "postgres://localhost/tenancy?sslmode=disable")
	t.Setenv("TENANCY_STORAGE_MAX_OPEN_CONNS", "50")
	t.Setenv("TENANCY_REDIS_URL", "redis://localhost:6379/1")
	t.Setenv("TENANCY_RATE_LIMIT_USER_PER_HOUR", "100")
	t.Setenv("TENANCY_AUDIT_S3_PATH_STYLE", "true")
	t.Setenv("TENANCY_OTEL_ENABLED", "1")
	t.Setenv("TENANCY_OTEL_SAMPLE_RATIO", "0.25")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 45*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, storage.DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, "postgres://localhost/tenancy?sslmode=disable", cfg.Storage.DSN)
	assert.Equal(t, 50, cfg.Storage.MaxOpenConns)
	assert.Equal(t, "redis://localhost:6379/1", cfg.Redis.URL)
	assert.Equal(t, 100, cfg.RateLimit.UserPerHour)
	assert.True(t, cfg.Audit.S3.UsePathStyle)
	assert.True(t, cfg.OTel.Enabled)
	assert.Equal(t, 0.25, cfg.OTel.SampleRatio)
}

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tenancy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: "8443"
  read_timeout: 20s
storage:
  driver: postgres
  dsn: postgres://db.internal/tenancy
  max_open_conns: 40
email:
  api_key: re_test_key
  from_email: noreply@example.com
  base_url: https://app.example.com
rate_limit:
  org_per_hour: 50
audit:
  retention_days: 90
  s3:
    bucket: tenancy-audit
    region: us-east-1
    use_path_style: true
invitations:
  purge_grace_days: 7
log:
  format: json
otel:
  enabled: true
  endpoint: collector:4317
  sample_ratio: 0.5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "8443", cfg.Server.Port)
	assert.Equal(t, 20*time.Second, cfg.Server.ReadTimeout)
	// Untouched keys keep their defaults.
	assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout)

	assert.Equal(t, storage.DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, 40, cfg.Storage.MaxOpenConns)

	assert.Equal(t, "re_test_key", cfg.Email.APIKey)
	assert.Equal(t, "https://app.example.com", cfg.Email.BaseURL)

	assert.Equal(t, 20, cfg.RateLimit.UserPerHour)
	assert.Equal(t, 50, cfg.RateLimit.OrgPerHour)

	assert.Equal(t, 90, cfg.Audit.RetentionDays)
	assert.Equal(t, "tenancy-audit", cfg.Audit.S3.Bucket)
	assert.True(t, cfg.Audit.S3.UsePathStyle)
	assert.Equal(t, 7, cfg.Invitations.PurgeGraceDays)

	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.OTel.Enabled)
	assert.Equal(t, 0.5, cfg.OTel.SampleRatio)
}

func TestEnvBeatsFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: "8443"
`)
	t.Setenv("TENANCY_PORT", "9999")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.Server.Port)
}

func TestConfigPathFromEnv(t *testing.T) {
	path := writeConfigFile(t, `
log:
  level: debug
`)
	t.Setenv("TENANCY_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadFileErrors(t *testing.T) {
	t.Run("MissingFile", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})

	t.Run("MalformedYAML", func(t *testing.T) {
		path := writeConfigFile(t, "server: [not a map")
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})

	t.Run("BadDuration", func(t *testing.T) {
		path := writeConfigFile(t, `
server:
  read_timeout: fifteen seconds
`)
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "server.read_timeout")
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config { return defaults() }

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "MissingPort",
			mutate:  func(c *Config) { c.Server.Port = "" },
			wantErr: "server port is required",
		},
		{
			name:    "UnknownDriver",
			mutate:  func(c *Config) { c.Storage.Driver = "oracle" },
			wantErr: "invalid storage driver",
		},
		{
			name:    "MissingDSN",
			mutate:  func(c *Config) { c.Storage.DSN = "" },
			wantErr: "storage DSN is required",
		},
		{
			name:    "APIKeyWithoutFrom",
			mutate:  func(c *Config) { c.Email.APIKey = "re_key" },
			wantErr: "email from address is required",
		},
		{
			name:    "ZeroRateLimit",
			mutate:  func(c *Config) { c.RateLimit.OrgPerHour = 0 },
			wantErr: "rate limits must be positive",
		},
		{
			name:    "ZeroRetention",
			mutate:  func(c *Config) { c.Audit.RetentionDays = 0 },
			wantErr: "audit retention days must be positive",
		},
		{
			name:    "NegativePurgeGrace",
			mutate:  func(c *Config) { c.Invitations.PurgeGraceDays = -1 },
			wantErr: "cannot be negative",
		},
		{
			name:    "BadLogFormat",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: "invalid log format",
		},
		{
			name: "OTelWithoutEndpoint",
			mutate: func(c *Config) {
				c.OTel.Enabled = true
				c.OTel.Endpoint = ""
			},
			wantErr: "OpenTelemetry endpoint is required",
		},
		{
			name: "SampleRatioOutOfRange",
			mutate: func(c *Config) {
				c.OTel.Enabled = true
				c.OTel.SampleRatio = 1.5
			},
			wantErr: "sample ratio",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("DefaultsAreValid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})
}
