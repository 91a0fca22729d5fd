package auth

import "fmt"

// Role represents an actor's role within an organization
type Role string

const (
	RoleOwner  Role = "owner"  // Full control, including deletion
	RoleAdmin  Role = "admin"  // Full control except deletion
	RoleMember Role = "member" // View plus create on connections and queries
)

// Validate checks that the role is one of the known roles
func (r Role) Validate() error {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return nil
	default:
		return fmt.Errorf("invalid role: %s", r)
	}
}

// IsPrivileged reports whether the role carries organization-wide management
// rights rather than only ownership-scoped ones.
func (r Role) IsPrivileged() bool {
	return r == RoleOwner || r == RoleAdmin
}
