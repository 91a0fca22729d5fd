package auth

// Permission represents a named capability that can be checked against a role
type Permission string

const (
	// Organization management
	PermViewOrganization   Permission = "org:view"
	PermUpdateOrganization Permission = "org:update"
	PermDeleteOrganization Permission = "org:delete"

	// Member management
	PermInviteMembers     Permission = "members:invite"
	PermRemoveMembers     Permission = "members:remove"
	PermUpdateMemberRoles Permission = "members:update_roles"

	// Audit access
	PermViewAuditLogs Permission = "audit:view"

	// Connection management
	PermViewConnections   Permission = "connections:view"
	PermCreateConnections Permission = "connections:create"
	PermUpdateConnections Permission = "connections:update"
	PermDeleteConnections Permission = "connections:delete"

	// Query management
	PermViewQueries   Permission = "queries:view"
	PermCreateQueries Permission = "queries:create"
	PermUpdateQueries Permission = "queries:update"
	PermDeleteQueries Permission = "queries:delete"
)

// rolePermissions is the authoritative capability matrix. Owners hold every
// capability; Admins hold everything except organization deletion; Members
// hold view access plus create on connections and queries. Update and delete
// of individual resources still reach Members through the ownership override
// in CanUpdateResource/CanDeleteResource.
var rolePermissions = map[Role][]Permission{
	RoleOwner: {
		PermViewOrganization,
		PermUpdateOrganization,
		PermDeleteOrganization,
		PermInviteMembers,
		PermRemoveMembers,
		PermUpdateMemberRoles,
		PermViewAuditLogs,
		PermViewConnections,
		PermCreateConnections,
		PermUpdateConnections,
		PermDeleteConnections,
		PermViewQueries,
		PermCreateQueries,
		PermUpdateQueries,
		PermDeleteQueries,
	},
	RoleAdmin: {
		PermViewOrganization,
		PermUpdateOrganization,
		PermInviteMembers,
		PermRemoveMembers,
		PermUpdateMemberRoles,
		PermViewAuditLogs,
		PermViewConnections,
		PermCreateConnections,
		PermUpdateConnections,
		PermDeleteConnections,
		PermViewQueries,
		PermCreateQueries,
		PermUpdateQueries,
		PermDeleteQueries,
	},
	RoleMember: {
		PermViewOrganization,
		PermViewConnections,
		PermCreateConnections,
		PermViewQueries,
		PermCreateQueries,
	},
}

// HasPermission reports whether the role grants the capability. Unknown roles
// and unknown capabilities always deny.
func HasPermission(role Role, perm Permission) bool {
	perms, ok := rolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == perm {
			return true
		}
	}
	return false
}

// GetPermissionsForRole returns the capability set granted to the role. The
// returned slice is a copy; callers may mutate it freely.
func GetPermissionsForRole(role Role) []Permission {
	perms, ok := rolePermissions[role]
	if !ok {
		return []Permission{}
	}
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

// IsValidPermission reports whether the capability exists in the matrix at all
func IsValidPermission(perm Permission) bool {
	for _, perms := range rolePermissions {
		for _, p := range perms {
			if p == perm {
				return true
			}
		}
	}
	return false
}

// CanUpdateResource reports whether an actor may modify a resource. Owners and
// Admins may modify anything in the organization; everyone else only what
// they created.
func CanUpdateResource(role Role, resourceOwnerID, actorID string) bool {
	if role.IsPrivileged() {
		return true
	}
	return resourceOwnerID == actorID
}

// CanDeleteResource reports whether an actor may delete a resource. Same rule
// as CanUpdateResource.
func CanDeleteResource(role Role, resourceOwnerID, actorID string) bool {
	if role.IsPrivileged() {
		return true
	}
	return resourceOwnerID == actorID
}
