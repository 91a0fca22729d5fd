package orgs

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/tenancy/pkg/audit"
	"github.com/platinummonkey/tenancy/pkg/auth"
)

// GetMembers lists the organization's members. Any member may look.
func (s *Service) GetMembers(ctx context.Context, orgID, actorID string) ([]*Member, error) {
	if _, err := s.membership(ctx, orgID, actorID); err != nil {
		return nil, err
	}

	members, err := s.repo.GetMembers(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	return members, nil
}

// UpdateMemberRole changes targetUserID's role. The owner's role is immutable
// through this path, and only an Owner may hand out the Owner role.
func (s *Service) UpdateMemberRole(ctx context.Context, orgID, targetUserID, actorID string, role auth.Role) error {
	actorMember, err := s.membership(ctx, orgID, actorID)
	if err != nil {
		return err
	}

	if !auth.HasPermission(actorMember.Role, auth.PermUpdateMemberRoles) {
		s.recordDenial(ctx, orgID, actorID, actorMember.Role, auth.PermUpdateMemberRoles,
			"update_member_role", audit.ResourceMember, &targetUserID,
			map[string]interface{}{"target_user": targetUserID, "desired_role": string(role)})
		return ErrPermission("insufficient permissions")
	}

	if err := role.Validate(); err != nil {
		return ErrValidation("invalid role: %s", role)
	}

	org, err := s.repo.GetOrganization(ctx, orgID)
	if err != nil {
		if IsNotFound(err) {
			return err
		}
		return fmt.Errorf("failed to get organization: %w", err)
	}

	if targetUserID == org.OwnerID {
		s.recordDenial(ctx, orgID, actorID, actorMember.Role, auth.PermUpdateMemberRoles,
			"change_owner_role", audit.ResourceMember, &targetUserID,
			map[string]interface{}{"target_user": targetUserID, "desired_role": string(role)})
		return ErrPermission("cannot change owner's role")
	}

	if actorMember.Role == auth.RoleAdmin && role == auth.RoleOwner {
		s.recordDenial(ctx, orgID, actorID, actorMember.Role, auth.PermUpdateMemberRoles,
			"assign_owner_role", audit.ResourceMember, &targetUserID,
			map[string]interface{}{"target_user": targetUserID, "desired_role": string(role)})
		return ErrPermission("only owners can assign owner role")
	}

	if err := s.repo.UpdateMemberRole(ctx, orgID, targetUserID, role); err != nil {
		if IsNotFound(err) {
			return err
		}
		return fmt.Errorf("failed to update member role: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"organization_id": orgID,
		"target_user_id":  targetUserID,
		"actor_user_id":   actorID,
		"new_role":        role,
	}).Info("Member role updated")

	s.audit.Record(ctx, &audit.Event{
		OrganizationID: &orgID,
		UserID:         actorID,
		Action:         audit.ActionMemberRoleChange,
		ResourceType:   audit.ResourceMember,
		ResourceID:     &targetUserID,
		Details:        map[string]interface{}{"new_role": string(role)},
	})

	return nil
}

// RemoveMember removes targetUserID from the organization. The Owner can
// never be removed; an Admin actor may only remove plain Members. A removal
// notice is dispatched best effort.
func (s *Service) RemoveMember(ctx context.Context, orgID, targetUserID, actorID string) error {
	actorMember, err := s.membership(ctx, orgID, actorID)
	if err != nil {
		return err
	}

	if !auth.HasPermission(actorMember.Role, auth.PermRemoveMembers) {
		s.recordDenial(ctx, orgID, actorID, actorMember.Role, auth.PermRemoveMembers,
			"remove_member", audit.ResourceMember, &targetUserID,
			map[string]interface{}{"target_user": targetUserID})
		return ErrPermission("insufficient permissions")
	}

	org, err := s.repo.GetOrganization(ctx, orgID)
	if err != nil {
		if IsNotFound(err) {
			return err
		}
		return fmt.Errorf("failed to get organization: %w", err)
	}

	if targetUserID == org.OwnerID {
		s.recordDenial(ctx, orgID, actorID, actorMember.Role, auth.PermRemoveMembers,
			"remove_owner", audit.ResourceMember, &targetUserID,
			map[string]interface{}{"target_user": targetUserID})
		return ErrPermission("cannot remove owner from organization")
	}

	targetMember, err := s.repo.GetMember(ctx, orgID, targetUserID)
	if err != nil {
		if IsNotFound(err) {
			return err
		}
		return fmt.Errorf("failed to get target member: %w", err)
	}

	if actorMember.Role == auth.RoleAdmin && targetMember.Role != auth.RoleMember {
		s.recordDenial(ctx, orgID, actorID, actorMember.Role, auth.PermRemoveMembers,
			"remove_member", audit.ResourceMember, &targetUserID,
			map[string]interface{}{"target_user": targetUserID, "target_role": string(targetMember.Role)})
		return ErrPermission("admins can only remove members")
	}

	if err := s.repo.RemoveMember(ctx, orgID, targetUserID); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"organization_id": orgID,
		"target_user_id":  targetUserID,
		"actor_user_id":   actorID,
	}).Info("Member removed from organization")

	s.audit.Record(ctx, &audit.Event{
		OrganizationID: &orgID,
		UserID:         actorID,
		Action:         audit.ActionMemberRemove,
		ResourceType:   audit.ResourceMember,
		ResourceID:     &targetUserID,
		Details:        map[string]interface{}{"target_role": string(targetMember.Role)},
	})

	if targetMember.User != nil && targetMember.User.Email != "" {
		recipient := targetMember.User.Email
		orgName := org.Name
		s.tasks.Submit("member-removed-email", func(ctx context.Context) {
			if err := s.email.SendMemberRemoved(ctx, recipient, orgName); err != nil {
				s.logger.WithError(err).WithFields(logrus.Fields{
					"user_id": targetUserID,
					"org_id":  orgID,
				}).Error("Failed to send member removed email")
			}
		})
	}

	return nil
}
