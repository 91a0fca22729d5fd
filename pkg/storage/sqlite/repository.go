// Package sqlite backs orgs.Repository with SQLite for local development and
// tests. The schema and error mapping match the postgres package; timestamps
// are generated in Go because SQLite has no NOW() with timezone semantics.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/platinummonkey/tenancy/pkg/auth"
	"github.com/platinummonkey/tenancy/pkg/orgs"
)

// Repository implements orgs.Repository on SQLite
type Repository struct {
	db *sql.DB
}

// NewRepository wraps an open database handle. Run RunMigrations first.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var _ orgs.Repository = (*Repository)(nil)

const organizationColumns = `
	o.id, o.name, o.description, o.owner_id, o.max_members, o.settings,
	o.created_at, o.updated_at, o.deleted_at,
	(SELECT COUNT(*) FROM organization_members m WHERE m.organization_id = o.id) AS member_count`

const memberColumns = `id, organization_id, user_id, role, invited_by, joined_at, user_email, user_name`

const invitationColumns = `id, organization_id, email, role, invited_by, token, expires_at, accepted_at, created_at`

func (r *Repository) CreateOrganization(ctx context.Context, org *orgs.Organization, founder *orgs.Member) error {
	if org.Settings == nil {
		org.Settings = make(map[string]interface{})
	}
	settings, err := json.Marshal(org.Settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	org.ID = uuid.New().String()
	org.CreatedAt = now
	org.UpdatedAt = now
	_, err = tx.ExecContext(ctx, `
		INSERT INTO organizations (id, name, description, owner_id, max_members, settings, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, org.ID, org.Name, org.Description, org.OwnerID, org.MaxMembers, settings, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert organization: %w", err)
	}

	founder.ID = uuid.New().String()
	founder.OrganizationID = org.ID
	founder.JoinedAt = now
	if err := insertMember(ctx, tx, founder); err != nil {
		return fmt.Errorf("failed to insert founding member: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *Repository) GetOrganization(ctx context.Context, orgID string) (*orgs.Organization, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+organizationColumns+`
		FROM organizations o
		WHERE o.id = ? AND o.deleted_at IS NULL
	`, orgID)

	org, err := scanOrganization(row)
	if err == sql.ErrNoRows {
		return nil, orgs.ErrNotFound("organization not found")
	} else if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return org, nil
}

func (r *Repository) GetOrganizationsByUser(ctx context.Context, userID string) ([]*orgs.Organization, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+organizationColumns+`
		FROM organizations o
		JOIN organization_members m ON m.organization_id = o.id
		WHERE m.user_id = ? AND o.deleted_at IS NULL
		ORDER BY o.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var out []*orgs.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		out = append(out, org)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	return out, nil
}

func (r *Repository) UpdateOrganization(ctx context.Context, org *orgs.Organization) error {
	if org.Settings == nil {
		org.Settings = make(map[string]interface{})
	}
	settings, err := json.Marshal(org.Settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE organizations
		SET name = ?, description = ?, max_members = ?, settings = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, org.Name, org.Description, org.MaxMembers, settings, now, org.ID)
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return orgs.ErrNotFound("organization not found")
	}
	org.UpdatedAt = now
	return nil
}

func (r *Repository) DeleteOrganization(ctx context.Context, orgID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE organizations SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, time.Now().UTC(), orgID)
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return orgs.ErrNotFound("organization not found")
	}
	return nil
}

func (r *Repository) AddMember(ctx context.Context, member *orgs.Member) error {
	member.ID = uuid.New().String()
	member.JoinedAt = time.Now().UTC()
	if err := insertMember(ctx, r.db, member); err != nil {
		if isUniqueViolation(err) {
			return orgs.ErrConflict("already a member of this organization")
		}
		return fmt.Errorf("failed to insert member: %w", err)
	}
	return nil
}

func (r *Repository) GetMember(ctx context.Context, orgID, userID string) (*orgs.Member, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+memberColumns+`
		FROM organization_members
		WHERE organization_id = ? AND user_id = ?
	`, orgID, userID)

	member, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, orgs.ErrNotFound("member not found")
	} else if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return member, nil
}

func (r *Repository) GetMembers(ctx context.Context, orgID string) ([]*orgs.Member, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+memberColumns+`
		FROM organization_members
		WHERE organization_id = ?
		ORDER BY joined_at, id
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var out []*orgs.Member
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		out = append(out, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return out, nil
}

func (r *Repository) UpdateMemberRole(ctx context.Context, orgID, userID string, role auth.Role) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE organization_members SET role = ?
		WHERE organization_id = ? AND user_id = ?
	`, string(role), orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return orgs.ErrNotFound("member not found")
	}
	return nil
}

func (r *Repository) RemoveMember(ctx context.Context, orgID, userID string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM organization_members
		WHERE organization_id = ? AND user_id = ?
	`, orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return orgs.ErrNotFound("member not found")
	}
	return nil
}

func (r *Repository) CountMembers(ctx context.Context, orgID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM organization_members WHERE organization_id = ?", orgID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return count, nil
}

func (r *Repository) CreateInvitation(ctx context.Context, invitation *orgs.Invitation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	// The partial unique index covers every unaccepted row, expired ones
	// included. Clear expired rows for this address first so the index only
	// ever blocks a live duplicate.
	_, err = tx.ExecContext(ctx, `
		DELETE FROM organization_invitations
		WHERE organization_id = ? AND email = ? AND accepted_at IS NULL AND expires_at < ?
	`, invitation.OrganizationID, invitation.Email, now)
	if err != nil {
		return fmt.Errorf("failed to clear expired invitations: %w", err)
	}

	invitation.ID = uuid.New().String()
	invitation.CreatedAt = now
	_, err = tx.ExecContext(ctx, `
		INSERT INTO organization_invitations (id, organization_id, email, role, invited_by, token, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, invitation.ID, invitation.OrganizationID, invitation.Email, string(invitation.Role),
		invitation.InvitedBy, invitation.Token, invitation.ExpiresAt, invitation.CreatedAt)
	if err != nil {
		// The partial unique index catches a concurrent invite to the same
		// address that the service-level scan missed.
		if isUniqueViolation(err) {
			return orgs.ErrConflict("invitation already exists for this email")
		}
		return fmt.Errorf("failed to insert invitation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *Repository) GetInvitation(ctx context.Context, invitationID string) (*orgs.Invitation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+invitationColumns+`
		FROM organization_invitations
		WHERE id = ?
	`, invitationID)

	invitation, err := scanInvitation(row)
	if err == sql.ErrNoRows {
		return nil, orgs.ErrNotFound("invitation not found")
	} else if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return invitation, nil
}

func (r *Repository) GetInvitationByToken(ctx context.Context, token string) (*orgs.Invitation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+invitationColumns+`
		FROM organization_invitations
		WHERE token = ?
	`, token)

	invitation, err := scanInvitation(row)
	if err == sql.ErrNoRows {
		return nil, orgs.ErrNotFound("invitation not found")
	} else if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return invitation, nil
}

func (r *Repository) GetInvitationsByOrganization(ctx context.Context, orgID string) ([]*orgs.Invitation, error) {
	return r.listInvitations(ctx, `
		SELECT `+invitationColumns+`
		FROM organization_invitations
		WHERE organization_id = ?
		ORDER BY created_at DESC
	`, orgID)
}

func (r *Repository) GetInvitationsByEmail(ctx context.Context, email string) ([]*orgs.Invitation, error) {
	return r.listInvitations(ctx, `
		SELECT `+invitationColumns+`
		FROM organization_invitations
		WHERE email = ?
		ORDER BY created_at DESC
	`, email)
}

func (r *Repository) listInvitations(ctx context.Context, query string, args ...interface{}) ([]*orgs.Invitation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	var out []*orgs.Invitation
	for rows.Next() {
		invitation, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		out = append(out, invitation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	return out, nil
}

func (r *Repository) SetInvitationAccepted(ctx context.Context, invitationID string, acceptedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE organization_invitations SET accepted_at = ?
		WHERE id = ?
	`, acceptedAt.UTC(), invitationID)
	if err != nil {
		return fmt.Errorf("failed to update invitation: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return orgs.ErrNotFound("invitation not found")
	}
	return nil
}

func (r *Repository) DeleteInvitation(ctx context.Context, invitationID string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM organization_invitations WHERE id = ?
	`, invitationID)
	if err != nil {
		return fmt.Errorf("failed to delete invitation: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return orgs.ErrNotFound("invitation not found")
	}
	return nil
}

// DeleteExpiredInvitations removes unaccepted invitations that expired before
// the cutoff.
func (r *Repository) DeleteExpiredInvitations(ctx context.Context, expiredBefore time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM organization_invitations
		WHERE accepted_at IS NULL AND expires_at < ?
	`, expiredBefore.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired invitations: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted invitations: %w", err)
	}
	return deleted, nil
}

// execer covers *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertMember(ctx context.Context, e execer, member *orgs.Member) error {
	var email, name string
	if member.User != nil {
		email = member.User.Email
		name = member.User.Name
	}
	_, err := e.ExecContext(ctx, `
		INSERT INTO organization_members (id, organization_id, user_id, role, invited_by, joined_at, user_email, user_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, member.ID, member.OrganizationID, member.UserID, string(member.Role),
		member.InvitedBy, member.JoinedAt, email, name)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrganization(row rowScanner) (*orgs.Organization, error) {
	var (
		org       orgs.Organization
		settings  []byte
		deletedAt sql.NullTime
	)
	err := row.Scan(&org.ID, &org.Name, &org.Description, &org.OwnerID, &org.MaxMembers,
		&settings, &org.CreatedAt, &org.UpdatedAt, &deletedAt, &org.MemberCount)
	if err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		org.DeletedAt = &t
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &org.Settings); err != nil {
			return nil, fmt.Errorf("failed to decode settings: %w", err)
		}
	}
	if org.Settings == nil {
		org.Settings = make(map[string]interface{})
	}
	return &org, nil
}

func scanMember(row rowScanner) (*orgs.Member, error) {
	var (
		member    orgs.Member
		role      string
		invitedBy sql.NullString
		email     string
		name      string
	)
	err := row.Scan(&member.ID, &member.OrganizationID, &member.UserID, &role,
		&invitedBy, &member.JoinedAt, &email, &name)
	if err != nil {
		return nil, err
	}
	member.Role = auth.Role(role)
	if invitedBy.Valid {
		v := invitedBy.String
		member.InvitedBy = &v
	}
	member.User = &orgs.UserInfo{ID: member.UserID, Email: email, Name: name}
	return &member, nil
}

func scanInvitation(row rowScanner) (*orgs.Invitation, error) {
	var (
		invitation orgs.Invitation
		role       string
		acceptedAt sql.NullTime
	)
	err := row.Scan(&invitation.ID, &invitation.OrganizationID, &invitation.Email, &role,
		&invitation.InvitedBy, &invitation.Token, &invitation.ExpiresAt, &acceptedAt, &invitation.CreatedAt)
	if err != nil {
		return nil, err
	}
	invitation.Role = auth.Role(role)
	if acceptedAt.Valid {
		t := acceptedAt.Time
		invitation.AcceptedAt = &t
	}
	return &invitation, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
