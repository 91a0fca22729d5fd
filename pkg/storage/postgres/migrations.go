package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Migration is one versioned schema change
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// migrations returns the schema in apply order. Statements are idempotent so
// a replay against an up-to-date database is harmless.
func migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create organizations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS organizations (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					owner_id TEXT NOT NULL,
					max_members INT NOT NULL DEFAULT 10,
					settings JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					deleted_at TIMESTAMPTZ
				);

				CREATE INDEX IF NOT EXISTS idx_organizations_owner_id ON organizations(owner_id);
			`,
		},
		{
			Version:     2,
			Description: "Create organization_members table",
			SQL: `
				CREATE TABLE IF NOT EXISTS organization_members (
					id TEXT PRIMARY KEY,
					organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					user_id TEXT NOT NULL,
					role TEXT NOT NULL,
					invited_by TEXT,
					joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					user_email TEXT NOT NULL DEFAULT '',
					user_name TEXT NOT NULL DEFAULT '',
					UNIQUE (organization_id, user_id)
				);

				CREATE INDEX IF NOT EXISTS idx_organization_members_user_id ON organization_members(user_id);
			`,
		},
		{
			Version:     3,
			Description: "Create organization_invitations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS organization_invitations (
					id TEXT PRIMARY KEY,
					organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					email TEXT NOT NULL,
					role TEXT NOT NULL,
					invited_by TEXT NOT NULL,
					token TEXT NOT NULL UNIQUE,
					expires_at TIMESTAMPTZ NOT NULL,
					accepted_at TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				-- One live invitation per address per organization. Accepted
				-- rows fall out of the index so the address can be re-invited.
				CREATE UNIQUE INDEX IF NOT EXISTS idx_organization_invitations_pending
					ON organization_invitations(organization_id, email)
					WHERE accepted_at IS NULL;

				CREATE INDEX IF NOT EXISTS idx_organization_invitations_email ON organization_invitations(email);
			`,
		},
	}
}

// RunMigrations applies pending schema changes, each in its own transaction
func RunMigrations(ctx context.Context, db *sql.DB, logger *logrus.Logger) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tenancy_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM tenancy_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()

	for _, migration := range migrations() {
		if applied[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO tenancy_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}

		logger.WithFields(logrus.Fields{
			"version":     migration.Version,
			"description": migration.Description,
		}).Info("Applied schema migration")
	}

	return nil
}
