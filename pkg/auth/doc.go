// Package auth defines the fixed role hierarchy and capability matrix used
// across the tenancy service.
//
// # Overview
//
// Authorization is a pure lookup: three roles (Owner, Admin, Member) map to
// static capability sets, and every check fails closed when it sees a role or
// capability it does not recognize. There is no dynamic role storage and no
// per-organization customization. Actor identity itself is resolved upstream
// of this service and is out of scope here.
//
// # Role Hierarchy
//
//	RoleOwner  - every capability, including organization deletion
//	RoleAdmin  - every capability except organization deletion
//	RoleMember - view the organization, view/create connections and queries
//
// # Checking Capabilities
//
//	member, _ := repo.GetMember(ctx, orgID, actorID)
//	if !auth.HasPermission(member.Role, auth.PermInviteMembers) {
//		// deny and audit
//	}
//
// Resource-level updates honor an ownership override so a Member can still
// manage what they created:
//
//	if !auth.CanUpdateResource(member.Role, query.CreatedBy, actorID) {
//		// deny
//	}
//
// # Related Packages
//
//   - pkg/orgs: the membership service that consults this matrix
//   - pkg/audit: records every capability denial
package auth
