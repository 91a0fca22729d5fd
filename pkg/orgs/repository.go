package orgs

import (
	"context"
	"time"

	"github.com/platinummonkey/tenancy/pkg/auth"
)

// Repository is the persistence port the Service consumes. Implementations
// own atomicity: CreateOrganization persists the organization and its
// founding owner membership in one transaction, and missing rows surface as
// KindNotFound errors. The audit trail lives behind pkg/audit, not here.
type Repository interface {
	// CreateOrganization persists org and its founding Owner membership
	// atomically, filling in generated ids and timestamps on both.
	CreateOrganization(ctx context.Context, org *Organization, founder *Member) error

	// GetOrganization returns an active organization with MemberCount
	// populated. Soft-deleted and unknown ids are KindNotFound.
	GetOrganization(ctx context.Context, orgID string) (*Organization, error)

	// GetOrganizationsByUser returns the active organizations the user
	// belongs to, newest first. Empty slice when none.
	GetOrganizationsByUser(ctx context.Context, userID string) ([]*Organization, error)

	// UpdateOrganization persists name, description, max members, and
	// settings, refreshing UpdatedAt.
	UpdateOrganization(ctx context.Context, org *Organization) error

	// DeleteOrganization soft-deletes by stamping DeletedAt
	DeleteOrganization(ctx context.Context, orgID string) error

	// AddMember persists a membership, filling in the generated id
	AddMember(ctx context.Context, member *Member) error

	// GetMember returns the membership of userID in orgID, KindNotFound when
	// absent.
	GetMember(ctx context.Context, orgID, userID string) (*Member, error)

	// GetMembers lists an organization's memberships, oldest join first
	GetMembers(ctx context.Context, orgID string) ([]*Member, error)

	// UpdateMemberRole sets the member's role
	UpdateMemberRole(ctx context.Context, orgID, userID string, role auth.Role) error

	// RemoveMember deletes the membership row
	RemoveMember(ctx context.Context, orgID, userID string) error

	// CountMembers returns the number of memberships in the organization
	CountMembers(ctx context.Context, orgID string) (int, error)

	// CreateInvitation persists an invitation, filling in the generated id
	// and CreatedAt. A unique-constraint conflict on the pending
	// (organization, email) index surfaces as KindConflict.
	CreateInvitation(ctx context.Context, invitation *Invitation) error

	// GetInvitation returns an invitation by id, KindNotFound when absent
	GetInvitation(ctx context.Context, invitationID string) (*Invitation, error)

	// GetInvitationByToken returns an invitation by its token, KindNotFound
	// when absent.
	GetInvitationByToken(ctx context.Context, token string) (*Invitation, error)

	// GetInvitationsByOrganization lists an organization's invitations,
	// newest first.
	GetInvitationsByOrganization(ctx context.Context, orgID string) ([]*Invitation, error)

	// GetInvitationsByEmail lists invitations addressed to the lowercased
	// email, newest first.
	GetInvitationsByEmail(ctx context.Context, email string) ([]*Invitation, error)

	// SetInvitationAccepted stamps AcceptedAt
	SetInvitationAccepted(ctx context.Context, invitationID string, acceptedAt time.Time) error

	// DeleteInvitation hard-deletes the invitation row, KindNotFound when
	// absent.
	DeleteInvitation(ctx context.Context, invitationID string) error

	// DeleteExpiredInvitations removes unaccepted invitations whose expiry
	// passed before the cutoff and reports how many rows were deleted.
	DeleteExpiredInvitations(ctx context.Context, expiredBefore time.Time) (int64, error)
}
