package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// DefaultListLimit applies when a caller does not request a page size
const DefaultListLimit = 50

// MaxListLimit caps a single page of audit results
const MaxListLimit = 1000

// ListOptions filters and pages an organization's audit trail
type ListOptions struct {
	Limit   int
	Offset  int
	Actions []Action
}

// Store provides read and retention access to persisted audit events
type Store interface {
	// ListByOrganization returns an organization's events, newest first
	ListByOrganization(ctx context.Context, orgID string, opts ListOptions) ([]*Event, error)

	// ListBefore returns events created before the cutoff, oldest first,
	// paged for archival.
	ListBefore(ctx context.Context, cutoff time.Time, limit, offset int) ([]*Event, error)

	// DeleteBefore removes events created before the cutoff and reports how
	// many rows were deleted.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// DBStore implements Store against the audit_logs table written by DBRecorder
type DBStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewDBStore creates a database-backed audit store
func NewDBStore(db *sql.DB, dialect Dialect) *DBStore {
	if dialect == "" {
		dialect = DialectPostgres
	}
	return &DBStore{db: db, dialect: dialect}
}

const eventColumns = `id, organization_id, user_id, action, resource_type, resource_id,
		ip_address, user_agent, details, created_at`

// ListByOrganization returns an organization's events, newest first
func (s *DBStore) ListByOrganization(ctx context.Context, orgID string, opts ListOptions) ([]*Event, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM audit_logs WHERE organization_id = $1`, eventColumns)
	args := []interface{}{orgID}
	argCount := 2

	if len(opts.Actions) > 0 {
		actionStrs := make([]string, len(opts.Actions))
		for i, a := range opts.Actions {
			actionStrs[i] = string(a)
		}
		if s.dialect == DialectSQLite {
			// sqlite has no array binding; expand the filter into an IN list.
			query += " AND action IN (" + strings.TrimSuffix(strings.Repeat("?,", len(actionStrs)), ",") + ")"
			for _, a := range actionStrs {
				args = append(args, a)
			}
		} else {
			query += fmt.Sprintf(" AND action = ANY($%d)", argCount)
			args = append(args, pq.Array(actionStrs))
			argCount++
		}
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListBefore returns events created before the cutoff, oldest first
func (s *DBStore) ListBefore(ctx context.Context, cutoff time.Time, limit, offset int) ([]*Event, error) {
	query := s.dialect.rebind(fmt.Sprintf(`SELECT %s FROM audit_logs
		WHERE created_at < $1 ORDER BY created_at ASC LIMIT $2 OFFSET $3`, eventColumns))

	rows, err := s.db.QueryContext(ctx, query, cutoff, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events before cutoff: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// DeleteBefore removes events created before the cutoff
func (s *DBStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, s.dialect.rebind(`DELETE FROM audit_logs WHERE created_at < $1`), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete audit events: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted audit events: %w", err)
	}
	return deleted, nil
}

func scanEvents(rows *sql.Rows) ([]*Event, error) {
	var events []*Event
	for rows.Next() {
		var event Event
		var orgID, resourceID, ipAddress, userAgent sql.NullString
		var details []byte

		err := rows.Scan(
			&event.ID, &orgID, &event.UserID, &event.Action,
			&event.ResourceType, &resourceID,
			&ipAddress, &userAgent, &details, &event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}

		if orgID.Valid {
			event.OrganizationID = &orgID.String
		}
		if resourceID.Valid {
			event.ResourceID = &resourceID.String
		}
		event.IPAddress = ipAddress.String
		event.UserAgent = userAgent.String

		if len(details) > 0 {
			if err := json.Unmarshal(details, &event.Details); err != nil {
				event.Details = nil
			}
		}

		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit events: %w", err)
	}
	return events, nil
}
