package audit

import "time"

// Action is a dotted event name identifying what happened
type Action string

const (
	// Authorization
	ActionAuthzDenied Action = "authz.denied"

	// Organization lifecycle
	ActionOrgCreate Action = "org.create"
	ActionOrgUpdate Action = "org.update"
	ActionOrgDelete Action = "org.delete"

	// Membership
	ActionMemberRoleChange Action = "member.role_change"
	ActionMemberRemove     Action = "member.remove"

	// Invitations
	ActionInvitationCreate  Action = "invitation.create"
	ActionInvitationAccept  Action = "invitation.accept"
	ActionInvitationDecline Action = "invitation.decline"
	ActionInvitationRevoke  Action = "invitation.revoke"
)

// Resource types recorded alongside events
const (
	ResourceOrganization = "organization"
	ResourceMember       = "member"
	ResourceInvitation   = "invitation"
)

// Event is a single append-only audit record. OrganizationID is nil for
// organization-agnostic events such as a decline by token.
type Event struct {
	ID             string                 `json:"id"`
	OrganizationID *string                `json:"organization_id,omitempty"`
	UserID         string                 `json:"user_id"`
	Action         Action                 `json:"action"`
	ResourceType   string                 `json:"resource_type"`
	ResourceID     *string                `json:"resource_id,omitempty"`
	IPAddress      string                 `json:"ip_address,omitempty"`
	UserAgent      string                 `json:"user_agent,omitempty"`
	Details        map[string]interface{} `json:"details,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}
