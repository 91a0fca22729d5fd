// Package config provides daemon configuration from a YAML file and environment variables.
//
// # Overview
//
// This package builds configuration in three layers: compiled-in defaults
// that run on a laptop with no external services, an optional YAML file, and
// TENANCY_* environment overrides applied last.
//
// # Configuration Structure
//
// Server settings:
//
//	TENANCY_HOST="0.0.0.0"
//	TENANCY_PORT="8080"
//	TENANCY_READ_TIMEOUT="15s"
//	TENANCY_WRITE_TIMEOUT="15s"
//	TENANCY_SHUTDOWN_TIMEOUT="30s"
//
// Storage settings:
//
//	TENANCY_STORAGE_DRIVER="postgres"  # postgres, sqlite
//	TENANCY_STORAGE_DSN="postgres://localhost/tenancy?sslmode=disable"
//	TENANCY_STORAGE_MAX_OPEN_CONNS="25"
//
// Collaborator settings:
//
//	TENANCY_REDIS_URL="redis://localhost:6379/0"   # empty keeps rate limiting in-process
//	TENANCY_EMAIL_API_KEY="re_..."                 # empty disables email delivery
//	TENANCY_EMAIL_FROM="noreply@example.com"
//	TENANCY_EMAIL_BASE_URL="https://app.example.com"
//	TENANCY_RATE_LIMIT_USER_PER_HOUR="20"
//	TENANCY_RATE_LIMIT_ORG_PER_HOUR="5"
//
// Retention settings:
//
//	TENANCY_AUDIT_RETENTION_DAYS="365"
//	TENANCY_AUDIT_S3_BUCKET="tenancy-audit"        # empty disables archiving
//	TENANCY_AUDIT_S3_ENDPOINT="http://minio:9000"  # MinIO and friends
//	TENANCY_INVITATION_PURGE_DAYS="30"
//
// Observability settings:
//
//	TENANCY_LOG_LEVEL="info"    # debug, info, warn, error
//	TENANCY_LOG_FORMAT="text"   # json, text
//	TENANCY_OTEL_ENABLED="true"
//	TENANCY_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.Load("")  // honors TENANCY_CONFIG when set
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s\n", cfg.Server.Address())
//	fmt.Printf("Storage: %s\n", cfg.Storage.Driver)
//
// # Related Packages
//
//   - pkg/storage: Uses storage configuration
//   - pkg/observability: Uses log and OTel configuration
package config
