package audit

import "regexp"

// Dialect selects the SQL flavor the database-backed recorder and store
// speak. The audit table lives in the same database as the rest of the
// schema, so it follows the configured storage driver.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

var placeholderPattern = regexp.MustCompile(`\$\d+`)

// rebind rewrites postgres-style numbered placeholders into positional ?
// markers for sqlite. Queries here bind arguments in order and never repeat
// a placeholder, so the rewrite is purely textual.
func (d Dialect) rebind(query string) string {
	if d == DialectSQLite {
		return placeholderPattern.ReplaceAllString(query, "?")
	}
	return query
}

func (d Dialect) auditTableDDL() string {
	if d == DialectSQLite {
		return `
	CREATE TABLE IF NOT EXISTS audit_logs (
		id TEXT PRIMARY KEY,
		organization_id TEXT,
		user_id TEXT NOT NULL,
		action TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		resource_id TEXT,
		ip_address TEXT,
		user_agent TEXT,
		details TEXT,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_logs_org_created ON audit_logs(organization_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_action ON audit_logs(action);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_created_at ON audit_logs(created_at);
	`
	}
	return `
	CREATE TABLE IF NOT EXISTS audit_logs (
		id UUID PRIMARY KEY,
		organization_id UUID,
		user_id TEXT NOT NULL,
		action VARCHAR(100) NOT NULL,
		resource_type VARCHAR(50) NOT NULL,
		resource_id TEXT,
		ip_address VARCHAR(45),
		user_agent TEXT,
		details JSONB,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);

	-- Indexes for the common query patterns
	CREATE INDEX IF NOT EXISTS idx_audit_logs_org_created ON audit_logs(organization_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_action ON audit_logs(action);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_created_at ON audit_logs(created_at);
	`
}
