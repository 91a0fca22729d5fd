package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// DBRecorder persists audit events to the configured database. Insert
// failures are logged and counted, never returned.
type DBRecorder struct {
	db      *sql.DB
	dialect Dialect
	logger  *logrus.Logger
	drops   prometheus.Counter
}

// NewDBRecorder creates a database-backed recorder and ensures the audit_logs
// table exists. drops may be nil when the deployment does not export metrics.
func NewDBRecorder(db *sql.DB, dialect Dialect, logger *logrus.Logger, drops prometheus.Counter) (*DBRecorder, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if dialect == "" {
		dialect = DialectPostgres
	}
	if logger == nil {
		logger = logrus.New()
	}

	r := &DBRecorder{db: db, dialect: dialect, logger: logger, drops: drops}
	if err := r.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_logs table: %w", err)
	}
	return r, nil
}

// ensureTable creates the audit_logs table if it doesn't exist
func (r *DBRecorder) ensureTable() error {
	_, err := r.db.Exec(r.dialect.auditTableDDL())
	return err
}

// Record inserts the event, filling in the ID, timestamp, and any client
// metadata available on the context. Failures are swallowed by contract.
func (r *DBRecorder) Record(ctx context.Context, event *Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	if event.IPAddress == "" && event.UserAgent == "" {
		info := ClientInfoFromContext(ctx)
		event.IPAddress = info.IPAddress
		event.UserAgent = info.UserAgent
	}

	var detailsJSON []byte
	if event.Details != nil {
		var err error
		detailsJSON, err = json.Marshal(event.Details)
		if err != nil {
			r.logger.WithError(err).Warn("Failed to marshal audit event details")
			detailsJSON = nil
		}
	}

	query := r.dialect.rebind(`
		INSERT INTO audit_logs (
			id, organization_id, user_id, action, resource_type, resource_id,
			ip_address, user_agent, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`)

	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.OrganizationID, event.UserID, event.Action,
		event.ResourceType, event.ResourceID,
		nullIfEmpty(event.IPAddress), nullIfEmpty(event.UserAgent),
		detailsJSON, event.CreatedAt,
	)
	if err != nil {
		if r.drops != nil {
			r.drops.Inc()
		}
		r.logger.WithError(err).WithFields(logrus.Fields{
			"action":  event.Action,
			"user_id": event.UserID,
		}).Warn("Failed to record audit event")
	}
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
