package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/tenancy/pkg/auth"
	"github.com/platinummonkey/tenancy/pkg/orgs"
)

var tracer = otel.Tracer("tenancy/storage/postgres")

// Repository implements orgs.Repository on PostgreSQL. Timestamps come from
// the database (DEFAULT NOW() + RETURNING); ids are generated here so the
// sqlite store can share the same contract.
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
	ctx, span := tracer.Start(ctx, "CreateOrganization",
		trace.WithAttributes(attribute.String("owner_id", org.OwnerID)))
	defer span.End()

	if org.Settings == nil {
		org.Settings = make(map[string]interface{})
	}
	settings, err := json.Marshal(org.Settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	org.ID = uuid.New().String()
	err = tx.QueryRowContext(ctx, `
		INSERT INTO organizations (id, name, description, owner_id, max_members, settings)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, org.ID, org.Name, org.Description, org.OwnerID, org.MaxMembers, settings,
	).Scan(&org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert organization: %w", err)
	}

	founder.ID = uuid.New().String()
	founder.OrganizationID = org.ID
	if err := insertMember(ctx, tx, founder); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert founding member: %w", err)
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *Repository) GetOrganization(ctx context.Context, orgID string) (*orgs.Organization, error) {
	ctx, span := tracer.Start(ctx, "GetOrganization",
		trace.WithAttributes(attribute.String("organization_id", orgID)))
	defer span.End()

	row := r.db.QueryRowContext(ctx, `
		SELECT `+organizationColumns+`
		FROM organizations o
		WHERE o.id = $1 AND o.deleted_at IS NULL
	`, orgID)

	org, err := scanOrganization(row)
	if err == sql.ErrNoRows {
		return nil, orgs.ErrNotFound("organization not found")
	} else if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return org, nil
}

func (r *Repository) GetOrganizationsByUser(ctx context.Context, userID string) ([]*orgs.Organization, error) {
	ctx, span := tracer.Start(ctx, "GetOrganizationsByUser",
		trace.WithAttributes(attribute.String("user_id", userID)))
	defer span.End()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+organizationColumns+`
		FROM organizations o
		JOIN organization_members m ON m.organization_id = o.id
		WHERE m.user_id = $1 AND o.deleted_at IS NULL
		ORDER BY o.created_at DESC
	`, userID)
	if err != nil {
		span.RecordError(err)
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
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	return out, nil
}

func (r *Repository) UpdateOrganization(ctx context.Context, org *orgs.Organization) error {
	ctx, span := tracer.Start(ctx, "UpdateOrganization",
		trace.WithAttributes(attribute.String("organization_id", org.ID)))
	defer span.End()

	if org.Settings == nil {
		org.Settings = make(map[string]interface{})
	}
	settings, err := json.Marshal(org.Settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `
		UPDATE organizations
		SET name = $2, description = $3, max_members = $4, settings = $5, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING updated_at
	`, org.ID, org.Name, org.Description, org.MaxMembers, settings).Scan(&org.UpdatedAt)
	if err == sql.ErrNoRows {
		return orgs.ErrNotFound("organization not found")
	} else if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update organization: %w", err)
	}
	return nil
}

func (r *Repository) DeleteOrganization(ctx context.Context, orgID string) error {
	ctx, span := tracer.Start(ctx, "DeleteOrganization",
		trace.WithAttributes(attribute.String("organization_id", orgID)))
	defer span.End()

	res, err := r.db.ExecContext(ctx, `
		UPDATE organizations SET deleted_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`, orgID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete organization: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return orgs.ErrNotFound("organization not found")
	}
	return nil
}

func (r *Repository) AddMember(ctx context.Context, member *orgs.Member) error {
	ctx, span := tracer.Start(ctx, "AddMember", trace.WithAttributes(
		attribute.String("organization_id", member.OrganizationID),
		attribute.String("user_id", member.UserID),
	))
	defer span.End()

	member.ID = uuid.New().String()
	if err := insertMember(ctx, r.db, member); err != nil {
		if isUniqueViolation(err) {
			return orgs.ErrConflict("already a member of this organization")
		}
		span.RecordError(err)
		return fmt.Errorf("failed to insert member: %w", err)
	}
	return nil
}

func (r *Repository) GetMember(ctx context.Context, orgID, userID string) (*orgs.Member, error) {
	ctx, span := tracer.Start(ctx, "GetMember", trace.WithAttributes(
		attribute.String("organization_id", orgID),
		attribute.String("user_id", userID),
	))
	defer span.End()

	row := r.db.QueryRowContext(ctx, `
		SELECT `+memberColumns+`
		FROM organization_members
		WHERE organization_id = $1 AND user_id = $2
	`, orgID, userID)

	member, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, orgs.ErrNotFound("member not found")
	} else if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return member, nil
}

func (r *Repository) GetMembers(ctx context.Context, orgID string) ([]*orgs.Member, error) {
	ctx, span := tracer.Start(ctx, "GetMembers",
		trace.WithAttributes(attribute.String("organization_id", orgID)))
	defer span.End()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+memberColumns+`
		FROM organization_members
		WHERE organization_id = $1
		ORDER BY joined_at, id
	`, orgID)
	if err != nil {
		span.RecordError(err)
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
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return out, nil
}

func (r *Repository) UpdateMemberRole(ctx context.Context, orgID, userID string, role auth.Role) error {
	ctx, span := tracer.Start(ctx, "UpdateMemberRole", trace.WithAttributes(
		attribute.String("organization_id", orgID),
		attribute.String("user_id", userID),
		attribute.String("role", string(role)),
	))
	defer span.End()

	res, err := r.db.ExecContext(ctx, `
		UPDATE organization_members SET role = $3
		WHERE organization_id = $1 AND user_id = $2
	`, orgID, userID, string(role))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update member role: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return orgs.ErrNotFound("member not found")
	}
	return nil
}

func (r *Repository) RemoveMember(ctx context.Context, orgID, userID string) error {
	ctx, span := tracer.Start(ctx, "RemoveMember", trace.WithAttributes(
		attribute.String("organization_id", orgID),
		attribute.String("user_id", userID),
	))
	defer span.End()

	res, err := r.db.ExecContext(ctx, `
		DELETE FROM organization_members
		WHERE organization_id = $1 AND user_id = $2
	`, orgID, userID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to remove member: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return orgs.ErrNotFound("member not found")
	}
	return nil
}

func (r *Repository) CountMembers(ctx context.Context, orgID string) (int, error) {
	ctx, span := tracer.Start(ctx, "CountMembers",
		trace.WithAttributes(attribute.String("organization_id", orgID)))
	defer span.End()

	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM organization_members WHERE organization_id = $1", orgID,
	).Scan(&count)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return count, nil
}

func (r *Repository) CreateInvitation(ctx context.Context, invitation *orgs.Invitation) error {
	ctx, span := tracer.Start(ctx, "CreateInvitation",
		trace.WithAttributes(attribute.String("organization_id", invitation.OrganizationID)))
	defer span.End()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	// The partial unique index covers every unaccepted row, expired ones
	// included. Clear expired rows for this address first so the index only
	// ever blocks a live duplicate.
	_, err = tx.ExecContext(ctx, `
		DELETE FROM organization_invitations
		WHERE organization_id = $1 AND email = $2 AND accepted_at IS NULL AND expires_at < NOW()
	`, invitation.OrganizationID, invitation.Email)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to clear expired invitations: %w", err)
	}

	invitation.ID = uuid.New().String()
	err = tx.QueryRowContext(ctx, `
		INSERT INTO organization_invitations (id, organization_id, email, role, invited_by, token, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, invitation.ID, invitation.OrganizationID, invitation.Email, string(invitation.Role),
		invitation.InvitedBy, invitation.Token, invitation.ExpiresAt,
	).Scan(&invitation.CreatedAt)
	if err != nil {
		// The partial unique index catches a concurrent invite to the same
		// address that the service-level scan missed.
		if isUniqueViolation(err) {
			return orgs.ErrConflict("invitation already exists for this email")
		}
		span.RecordError(err)
		return fmt.Errorf("failed to insert invitation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *Repository) GetInvitation(ctx context.Context, invitationID string) (*orgs.Invitation, error) {
	ctx, span := tracer.Start(ctx, "GetInvitation",
		trace.WithAttributes(attribute.String("invitation_id", invitationID)))
	defer span.End()

	row := r.db.QueryRowContext(ctx, `
		SELECT `+invitationColumns+`
		FROM organization_invitations
		WHERE id = $1
	`, invitationID)

	invitation, err := scanInvitation(row)
	if err == sql.ErrNoRows {
		return nil, orgs.ErrNotFound("invitation not found")
	} else if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return invitation, nil
}

func (r *Repository) GetInvitationByToken(ctx context.Context, token string) (*orgs.Invitation, error) {
	// The token itself stays out of span attributes.
	ctx, span := tracer.Start(ctx, "GetInvitationByToken")
	defer span.End()

	row := r.db.QueryRowContext(ctx, `
		SELECT `+invitationColumns+`
		FROM organization_invitations
		WHERE token = $1
	`, token)

	invitation, err := scanInvitation(row)
	if err == sql.ErrNoRows {
		return nil, orgs.ErrNotFound("invitation not found")
	} else if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return invitation, nil
}

func (r *Repository) GetInvitationsByOrganization(ctx context.Context, orgID string) ([]*orgs.Invitation, error) {
	ctx, span := tracer.Start(ctx, "GetInvitationsByOrganization",
		trace.WithAttributes(attribute.String("organization_id", orgID)))
	defer span.End()

	return r.listInvitations(ctx, span, `
		SELECT `+invitationColumns+`
		FROM organization_invitations
		WHERE organization_id = $1
		ORDER BY created_at DESC
	`, orgID)
}

func (r *Repository) GetInvitationsByEmail(ctx context.Context, email string) ([]*orgs.Invitation, error) {
	ctx, span := tracer.Start(ctx, "GetInvitationsByEmail")
	defer span.End()

	return r.listInvitations(ctx, span, `
		SELECT `+invitationColumns+`
		FROM organization_invitations
		WHERE email = $1
		ORDER BY created_at DESC
	`, email)
}

func (r *Repository) listInvitations(ctx context.Context, span trace.Span, query string, args ...interface{}) ([]*orgs.Invitation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
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
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	return out, nil
}

func (r *Repository) SetInvitationAccepted(ctx context.Context, invitationID string, acceptedAt time.Time) error {
	ctx, span := tracer.Start(ctx, "SetInvitationAccepted",
		trace.WithAttributes(attribute.String("invitation_id", invitationID)))
	defer span.End()

	res, err := r.db.ExecContext(ctx, `
		UPDATE organization_invitations SET accepted_at = $2
		WHERE id = $1
	`, invitationID, acceptedAt)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update invitation: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return orgs.ErrNotFound("invitation not found")
	}
	return nil
}

func (r *Repository) DeleteInvitation(ctx context.Context, invitationID string) error {
	ctx, span := tracer.Start(ctx, "DeleteInvitation",
		trace.WithAttributes(attribute.String("invitation_id", invitationID)))
	defer span.End()

	res, err := r.db.ExecContext(ctx, `
		DELETE FROM organization_invitations WHERE id = $1
	`, invitationID)
	if err != nil {
		span.RecordError(err)
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
	ctx, span := tracer.Start(ctx, "DeleteExpiredInvitations")
	defer span.End()

	res, err := r.db.ExecContext(ctx, `
		DELETE FROM organization_invitations
		WHERE accepted_at IS NULL AND expires_at < $1
	`, expiredBefore)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to delete expired invitations: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted invitations: %w", err)
	}
	span.SetAttributes(attribute.Int64("deleted", deleted))
	return deleted, nil
}

// querier covers *sql.DB and *sql.Tx
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func insertMember(ctx context.Context, q querier, member *orgs.Member) error {
	var email, name string
	if member.User != nil {
		email = member.User.Email
		name = member.User.Name
	}
	return q.QueryRowContext(ctx, `
		INSERT INTO organization_members (id, organization_id, user_id, role, invited_by, user_email, user_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING joined_at
	`, member.ID, member.OrganizationID, member.UserID, string(member.Role),
		member.InvitedBy, email, name,
	).Scan(&member.JoinedAt)
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
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
