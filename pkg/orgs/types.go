package orgs

import (
	"time"

	"github.com/platinummonkey/tenancy/pkg/auth"
)

// DefaultMaxMembers caps a newly created organization
const DefaultMaxMembers = 10

// InvitationTTL is how long an invitation stays acceptable
const InvitationTTL = 7 * 24 * time.Hour

// Actor is the authenticated identity performing an operation, resolved
// upstream of this package. Email and Name are display data carried along for
// membership rows and notifications.
type Actor struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// DisplayName returns the best human-readable label for the actor
func (a Actor) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Email
}

// Organization is a tenant workspace. DeletedAt is set on soft deletion; the
// row and its audit history stay addressable afterwards.
type Organization struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	OwnerID     string                 `json:"owner_id"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	DeletedAt   *time.Time             `json:"deleted_at,omitempty"`
	MaxMembers  int                    `json:"max_members"`
	Settings    map[string]interface{} `json:"settings,omitempty"`

	// Derived on reads, not stored
	MemberCount int `json:"member_count,omitempty"`
}

// Member binds a user to an organization with a role. InvitedBy is nil for
// the founding owner.
type Member struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	UserID         string    `json:"user_id"`
	Role           auth.Role `json:"role"`
	InvitedBy      *string   `json:"invited_by,omitempty"`
	JoinedAt       time.Time `json:"joined_at"`

	// Display data captured at join time
	User *UserInfo `json:"user,omitempty"`
}

// UserInfo is the display data kept on a membership row
type UserInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Invitation is a time-boxed, tokenized offer of membership. Its state is
// derived from the two timestamps, never stored.
type Invitation struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	Email          string     `json:"email"`
	Role           auth.Role  `json:"role"`
	InvitedBy      string     `json:"invited_by"`
	Token          string     `json:"token"`
	ExpiresAt      time.Time  `json:"expires_at"`
	AcceptedAt     *time.Time `json:"accepted_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// IsExpired reports whether the invitation is past its expiry
func (i *Invitation) IsExpired() bool {
	return time.Now().After(i.ExpiresAt)
}

// IsAccepted reports whether the invitation has been accepted
func (i *Invitation) IsAccepted() bool {
	return i.AcceptedAt != nil
}

// IsPending reports whether the invitation can still be accepted
func (i *Invitation) IsPending() bool {
	return !i.IsAccepted() && !i.IsExpired()
}

// CreateOrganizationInput creates an organization
type CreateOrganizationInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// UpdateOrganizationInput carries partial updates; nil fields are untouched
type UpdateOrganizationInput struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	MaxMembers  *int    `json:"max_members,omitempty"`
}

// CreateInvitationInput creates an invitation
type CreateInvitationInput struct {
	Email string    `json:"email"`
	Role  auth.Role `json:"role"`
}

// UpdateMemberRoleInput changes a member's role
type UpdateMemberRoleInput struct {
	Role auth.Role `json:"role"`
}
