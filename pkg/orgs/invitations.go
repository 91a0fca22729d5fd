package orgs

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/tenancy/pkg/audit"
	"github.com/platinummonkey/tenancy/pkg/auth"
	"github.com/platinummonkey/tenancy/pkg/ratelimit"
)

// CreateInvitation issues a time-boxed invitation to join the organization.
// The check order is load-bearing: the rate limiter is consulted before any
// state is read beyond the actor's own membership, and the persistence layer
// backstops the uniqueness check against concurrent creates.
func (s *Service) CreateInvitation(ctx context.Context, orgID, actorID string, input *CreateInvitationInput) (*Invitation, error) {
	actorMember, err := s.membership(ctx, orgID, actorID)
	if err != nil {
		return nil, err
	}

	if !auth.HasPermission(actorMember.Role, auth.PermInviteMembers) {
		s.recordDenial(ctx, orgID, actorID, actorMember.Role, auth.PermInviteMembers,
			"create_invitation", audit.ResourceInvitation, nil,
			map[string]interface{}{"email": input.Email})
		return nil, ErrPermission("insufficient permissions")
	}

	if allowed, reason := s.limiter.Check(ctx, actorID, orgID); !allowed {
		s.logger.WithFields(logrus.Fields{
			"user_id": actorID,
			"org_id":  orgID,
			"reason":  reason,
		}).Warn("Invitation rate limit exceeded")

		rlErr := ErrRateLimited(reason)
		if hinter, ok := s.limiter.(ratelimit.RetryHinter); ok {
			rlErr.RetryAfter = hinter.RetryAfter(ctx, actorID, orgID)
		}
		return nil, rlErr
	}

	org, err := s.repo.GetOrganization(ctx, orgID)
	if err != nil {
		if IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	count, err := s.repo.CountMembers(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to get member count: %w", err)
	}
	if count >= org.MaxMembers {
		return nil, ErrConflict("organization has reached maximum member limit (%d)", org.MaxMembers)
	}

	if !isValidEmail(input.Email) {
		return nil, ErrValidation("invalid email address")
	}
	if err := input.Role.Validate(); err != nil {
		return nil, ErrValidation("invalid role: %s", input.Role)
	}

	if actorMember.Role == auth.RoleAdmin && input.Role == auth.RoleAdmin {
		s.recordDenial(ctx, orgID, actorID, actorMember.Role, auth.PermInviteMembers,
			"invite_admin", audit.ResourceInvitation, nil,
			map[string]interface{}{"email": input.Email, "desired_role": string(input.Role)})
		return nil, ErrPermission("only owners can invite admins")
	}

	normalizedEmail := strings.ToLower(input.Email)
	existing, err := s.repo.GetInvitationsByOrganization(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing invitations: %w", err)
	}
	for _, inv := range existing {
		if strings.ToLower(inv.Email) == normalizedEmail && inv.IsPending() {
			return nil, ErrConflict("invitation already exists for this email")
		}
	}

	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	invitation := &Invitation{
		OrganizationID: orgID,
		Email:          normalizedEmail,
		Role:           input.Role,
		InvitedBy:      actorID,
		Token:          token,
		ExpiresAt:      time.Now().Add(InvitationTTL),
	}

	if err := s.repo.CreateInvitation(ctx, invitation); err != nil {
		// The partial unique index resolves the check-then-insert race.
		if IsConflict(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"invitation_id":   invitation.ID,
		"organization_id": orgID,
		"email":           invitation.Email,
		"invited_by":      actorID,
	}).Info("Invitation created")

	s.audit.Record(ctx, &audit.Event{
		OrganizationID: &orgID,
		UserID:         actorID,
		Action:         audit.ActionInvitationCreate,
		ResourceType:   audit.ResourceInvitation,
		ResourceID:     &invitation.ID,
		Details:        map[string]interface{}{"email": invitation.Email, "role": string(invitation.Role)},
	})

	recipient := invitation.Email
	orgName := org.Name
	role := string(invitation.Role)
	inviterName := inviterDisplayName(actorMember, actorID)
	inviteURL := fmt.Sprintf("%s/invitations/accept?token=%s", s.inviteBaseURL, token)
	invitationID := invitation.ID
	s.tasks.Submit("invitation-email", func(ctx context.Context) {
		if err := s.email.SendInvitation(ctx, recipient, orgName, inviterName, role, inviteURL); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"invitation_id": invitationID,
				"email":         recipient,
			}).Error("Failed to send invitation email")
		}
	})

	return invitation, nil
}

// GetInvitations lists the organization's invitations. Gated by the invite
// capability, the token column is sensitive.
func (s *Service) GetInvitations(ctx context.Context, orgID, actorID string) ([]*Invitation, error) {
	member, err := s.membership(ctx, orgID, actorID)
	if err != nil {
		return nil, err
	}

	if !auth.HasPermission(member.Role, auth.PermInviteMembers) {
		s.recordDenial(ctx, orgID, actorID, member.Role, auth.PermInviteMembers,
			"view_invitations", audit.ResourceInvitation, nil, nil)
		return nil, ErrPermission("insufficient permissions")
	}

	invitations, err := s.repo.GetInvitationsByOrganization(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to get invitations: %w", err)
	}
	return invitations, nil
}

// GetPendingInvitationsForEmail returns the still-acceptable invitations
// addressed to email.
func (s *Service) GetPendingInvitationsForEmail(ctx context.Context, address string) ([]*Invitation, error) {
	invitations, err := s.repo.GetInvitationsByEmail(ctx, strings.ToLower(address))
	if err != nil {
		return nil, fmt.Errorf("failed to get invitations: %w", err)
	}

	pending := make([]*Invitation, 0, len(invitations))
	for _, inv := range invitations {
		if inv.IsPending() {
			pending = append(pending, inv)
		}
	}
	return pending, nil
}

// AcceptInvitation redeems a token and joins the actor to the organization.
// The membership write is the outcome; a failure to stamp AcceptedAt
// afterwards is logged and swallowed because the membership already exists.
func (s *Service) AcceptInvitation(ctx context.Context, token string, actor Actor) (*Organization, error) {
	invitation, err := s.repo.GetInvitationByToken(ctx, token)
	if err != nil {
		if IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}

	if invitation.IsAccepted() {
		return nil, ErrExpiredOrConsumed("invitation already accepted")
	}
	if invitation.IsExpired() {
		return nil, ErrExpiredOrConsumed("invitation has expired")
	}

	org, err := s.repo.GetOrganization(ctx, invitation.OrganizationID)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrNotFound("organization no longer exists")
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	if _, err := s.repo.GetMember(ctx, invitation.OrganizationID, actor.ID); err == nil {
		return nil, ErrConflict("already a member of this organization")
	} else if !IsNotFound(err) {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	count, err := s.repo.CountMembers(ctx, invitation.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get member count: %w", err)
	}
	if count >= org.MaxMembers {
		return nil, ErrConflict("organization has reached maximum member limit (%d)", org.MaxMembers)
	}

	member := &Member{
		OrganizationID: invitation.OrganizationID,
		UserID:         actor.ID,
		Role:           invitation.Role,
		InvitedBy:      &invitation.InvitedBy,
		User: &UserInfo{
			ID:    actor.ID,
			Email: actor.Email,
			Name:  actor.Name,
		},
	}
	if err := s.repo.AddMember(ctx, member); err != nil {
		return nil, fmt.Errorf("failed to add member: %w", err)
	}

	if err := s.repo.SetInvitationAccepted(ctx, invitation.ID, time.Now()); err != nil {
		s.logger.WithError(err).WithField("invitation_id", invitation.ID).
			Warn("Failed to update invitation status")
	}

	s.logger.WithFields(logrus.Fields{
		"invitation_id":   invitation.ID,
		"organization_id": invitation.OrganizationID,
		"user_id":         actor.ID,
	}).Info("Invitation accepted")

	s.audit.Record(ctx, &audit.Event{
		OrganizationID: &invitation.OrganizationID,
		UserID:         actor.ID,
		Action:         audit.ActionInvitationAccept,
		ResourceType:   audit.ResourceInvitation,
		ResourceID:     &invitation.ID,
		Details:        map[string]interface{}{"email": invitation.Email, "role": string(invitation.Role)},
	})

	if actor.Email != "" {
		recipient := actor.Email
		name := actor.DisplayName()
		orgName := org.Name
		role := string(invitation.Role)
		userID := actor.ID
		orgID := invitation.OrganizationID
		s.tasks.Submit("welcome-email", func(ctx context.Context) {
			if err := s.email.SendWelcome(ctx, recipient, name, orgName, role); err != nil {
				s.logger.WithError(err).WithFields(logrus.Fields{
					"user_id": userID,
					"org_id":  orgID,
				}).Error("Failed to send welcome email")
			}
		})
	}

	org.MemberCount = count + 1
	return org, nil
}

// DeclineInvitation discards an invitation by token. No capability check,
// the token holder may be unauthenticated. Declining an already-declined or
// unknown token is the same NotFound.
func (s *Service) DeclineInvitation(ctx context.Context, token string) error {
	invitation, err := s.repo.GetInvitationByToken(ctx, token)
	if err != nil {
		if IsNotFound(err) {
			return err
		}
		return fmt.Errorf("failed to get invitation: %w", err)
	}

	if err := s.repo.DeleteInvitation(ctx, invitation.ID); err != nil {
		if IsNotFound(err) {
			return err
		}
		return fmt.Errorf("failed to decline invitation: %w", err)
	}

	s.logger.WithField("invitation_id", invitation.ID).Info("Invitation declined")

	s.audit.Record(ctx, &audit.Event{
		UserID:       "",
		Action:       audit.ActionInvitationDecline,
		ResourceType: audit.ResourceInvitation,
		ResourceID:   &invitation.ID,
		Details:      map[string]interface{}{"email": invitation.Email},
	})

	return nil
}

// RevokeInvitation withdraws an invitation. The invitation must belong to
// orgID; a mismatch is reported as NotFound so ids can't be probed across
// tenants.
func (s *Service) RevokeInvitation(ctx context.Context, orgID, invitationID, actorID string) error {
	member, err := s.membership(ctx, orgID, actorID)
	if err != nil {
		return err
	}

	if !auth.HasPermission(member.Role, auth.PermInviteMembers) {
		s.recordDenial(ctx, orgID, actorID, member.Role, auth.PermInviteMembers,
			"revoke_invitation", audit.ResourceInvitation, &invitationID, nil)
		return ErrPermission("insufficient permissions")
	}

	invitation, err := s.repo.GetInvitation(ctx, invitationID)
	if err != nil {
		if IsNotFound(err) {
			return err
		}
		return fmt.Errorf("failed to get invitation: %w", err)
	}

	if invitation.OrganizationID != orgID {
		return ErrNotFound("invitation not found")
	}

	if err := s.repo.DeleteInvitation(ctx, invitationID); err != nil {
		if IsNotFound(err) {
			return err
		}
		return fmt.Errorf("failed to revoke invitation: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"invitation_id":   invitationID,
		"organization_id": orgID,
		"revoked_by":      actorID,
	}).Info("Invitation revoked")

	s.audit.Record(ctx, &audit.Event{
		OrganizationID: &orgID,
		UserID:         actorID,
		Action:         audit.ActionInvitationRevoke,
		ResourceType:   audit.ResourceInvitation,
		ResourceID:     &invitationID,
		Details:        map[string]interface{}{"email": invitation.Email},
	})

	return nil
}

// PurgeStaleInvitations deletes unaccepted invitations whose expiry passed
// more than gracePeriod ago. Recently expired invitations stay listable so
// admins can see what lapsed before re-inviting. Intended for a retention
// job, not the request path.
func (s *Service) PurgeStaleInvitations(ctx context.Context, gracePeriod time.Duration) (int64, error) {
	if gracePeriod < 0 {
		return 0, ErrValidation("grace period cannot be negative")
	}

	cutoff := time.Now().Add(-gracePeriod)
	deleted, err := s.repo.DeleteExpiredInvitations(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge stale invitations: %w", err)
	}

	if deleted > 0 {
		s.logger.WithFields(logrus.Fields{
			"deleted": deleted,
			"cutoff":  cutoff.Format(time.RFC3339),
		}).Info("Purged stale invitations")
	}
	return deleted, nil
}

// inviterDisplayName picks the friendliest label available for the inviter
func inviterDisplayName(member *Member, fallback string) string {
	if member.User != nil {
		if member.User.Name != "" {
			return member.User.Name
		}
		if member.User.Email != "" {
			return member.User.Email
		}
	}
	return fallback
}

// generateToken returns 32 bytes of crypto/rand entropy, URL-safe encoded.
// The keyspace makes collisions a non-concern.
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
