package orgs

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/tenancy/pkg/async"
	"github.com/platinummonkey/tenancy/pkg/audit"
	"github.com/platinummonkey/tenancy/pkg/auth"
	"github.com/platinummonkey/tenancy/pkg/email"
	"github.com/platinummonkey/tenancy/pkg/ratelimit"
)

// defaultInviteBaseURL anchors invitation links when no base URL is configured
const defaultInviteBaseURL = "http://localhost:3000"

var (
	orgNamePattern = regexp.MustCompile(`^[a-zA-Z0-9 _-]+$`)
	emailPattern   = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// Config wires the Service's collaborators. Repository is required; every
// other collaborator is optional and defaults to a safe no-op or local
// implementation.
type Config struct {
	Repository Repository
	Logger     *logrus.Logger

	// Audit receives denial and state-transition events, best effort
	Audit audit.Recorder

	// AuditStore serves the audit listing operation. Optional; when nil,
	// GetAuditLogs reports an unavailable trail.
	AuditStore audit.Store

	// Email delivers membership notifications off the request path
	Email email.Sender

	// RateLimiter throttles invitation creation
	RateLimiter ratelimit.Limiter

	// Tasks dispatches notification sends. Defaults to a panic-safe spawner
	// with detached contexts.
	Tasks async.Runner

	// InviteBaseURL prefixes invitation acceptance links
	InviteBaseURL string
}

// Service carries the membership business rules
type Service struct {
	repo          Repository
	logger        *logrus.Logger
	audit         audit.Recorder
	auditStore    audit.Store
	email         email.Sender
	limiter       ratelimit.Limiter
	tasks         async.Runner
	inviteBaseURL string
}

// NewService creates a Service from cfg
func NewService(cfg Config) (*Service, error) {
	if cfg.Repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}
	recorder := cfg.Audit
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	sender := cfg.Email
	if sender == nil {
		sender = email.NopSender{}
	}
	limiter := cfg.RateLimiter
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	tasks := cfg.Tasks
	if tasks == nil {
		tasks = async.NewSpawner(logger, async.DefaultTaskTimeout)
	}
	baseURL := strings.TrimRight(cfg.InviteBaseURL, "/")
	if baseURL == "" {
		baseURL = defaultInviteBaseURL
	}

	return &Service{
		repo:          cfg.Repository,
		logger:        logger,
		audit:         recorder,
		auditStore:    cfg.AuditStore,
		email:         sender,
		limiter:       limiter,
		tasks:         tasks,
		inviteBaseURL: baseURL,
	}, nil
}

// CreateOrganization creates an organization with the actor as its sole
// founding Owner.
func (s *Service) CreateOrganization(ctx context.Context, actor Actor, input *CreateOrganizationInput) (*Organization, error) {
	if err := validateOrganizationName(input.Name); err != nil {
		return nil, err
	}

	org := &Organization{
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		OwnerID:     actor.ID,
		MaxMembers:  DefaultMaxMembers,
		Settings:    make(map[string]interface{}),
	}
	founder := &Member{
		UserID: actor.ID,
		Role:   auth.RoleOwner,
		User: &UserInfo{
			ID:    actor.ID,
			Email: actor.Email,
			Name:  actor.Name,
		},
	}

	if err := s.repo.CreateOrganization(ctx, org, founder); err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"organization_id": org.ID,
		"user_id":         actor.ID,
		"name":            org.Name,
	}).Info("Organization created")

	s.audit.Record(ctx, &audit.Event{
		OrganizationID: &org.ID,
		UserID:         actor.ID,
		Action:         audit.ActionOrgCreate,
		ResourceType:   audit.ResourceOrganization,
		ResourceID:     &org.ID,
		Details:        map[string]interface{}{"name": org.Name},
	})

	org.MemberCount = 1
	return org, nil
}

// GetOrganization returns the organization when the actor is a member
func (s *Service) GetOrganization(ctx context.Context, orgID, actorID string) (*Organization, error) {
	if _, err := s.membership(ctx, orgID, actorID); err != nil {
		return nil, err
	}

	org, err := s.repo.GetOrganization(ctx, orgID)
	if err != nil {
		if IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return org, nil
}

// GetUserOrganizations returns the active organizations the actor belongs to
func (s *Service) GetUserOrganizations(ctx context.Context, actorID string) ([]*Organization, error) {
	organizations, err := s.repo.GetOrganizationsByUser(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user organizations: %w", err)
	}
	return organizations, nil
}

// UpdateOrganization applies the non-nil fields of input
func (s *Service) UpdateOrganization(ctx context.Context, orgID, actorID string, input *UpdateOrganizationInput) (*Organization, error) {
	member, err := s.membership(ctx, orgID, actorID)
	if err != nil {
		return nil, err
	}

	if !auth.HasPermission(member.Role, auth.PermUpdateOrganization) {
		s.recordDenial(ctx, orgID, actorID, member.Role, auth.PermUpdateOrganization,
			"update_organization", audit.ResourceOrganization, &orgID, nil)
		return nil, ErrPermission("insufficient permissions")
	}

	org, err := s.repo.GetOrganization(ctx, orgID)
	if err != nil {
		if IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	if input.Name != nil {
		if err := validateOrganizationName(*input.Name); err != nil {
			return nil, err
		}
		org.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		org.Description = *input.Description
	}
	if input.MaxMembers != nil {
		if *input.MaxMembers < 1 {
			return nil, ErrValidation("max_members must be at least 1")
		}
		count, err := s.repo.CountMembers(ctx, orgID)
		if err != nil {
			return nil, fmt.Errorf("failed to get member count: %w", err)
		}
		if *input.MaxMembers < count {
			return nil, ErrConflict("cannot reduce max_members below current member count (%d)", count)
		}
		org.MaxMembers = *input.MaxMembers
	}

	if err := s.repo.UpdateOrganization(ctx, org); err != nil {
		return nil, fmt.Errorf("failed to update organization: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"organization_id": orgID,
		"user_id":         actorID,
	}).Info("Organization updated")

	s.audit.Record(ctx, &audit.Event{
		OrganizationID: &orgID,
		UserID:         actorID,
		Action:         audit.ActionOrgUpdate,
		ResourceType:   audit.ResourceOrganization,
		ResourceID:     &orgID,
	})

	return org, nil
}

// DeleteOrganization soft-deletes. Only the sole remaining Owner may delete;
// every other membership must be removed first.
func (s *Service) DeleteOrganization(ctx context.Context, orgID, actorID string) error {
	member, err := s.membership(ctx, orgID, actorID)
	if err != nil {
		return err
	}

	if !auth.HasPermission(member.Role, auth.PermDeleteOrganization) {
		s.recordDenial(ctx, orgID, actorID, member.Role, auth.PermDeleteOrganization,
			"delete_organization", audit.ResourceOrganization, &orgID, nil)
		return ErrPermission("insufficient permissions")
	}

	members, err := s.repo.GetMembers(ctx, orgID)
	if err != nil {
		return fmt.Errorf("failed to get members: %w", err)
	}
	if len(members) > 1 {
		return ErrConflict("cannot delete organization with other members (remove members first)")
	}

	if err := s.repo.DeleteOrganization(ctx, orgID); err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"organization_id": orgID,
		"user_id":         actorID,
	}).Info("Organization deleted")

	s.audit.Record(ctx, &audit.Event{
		OrganizationID: &orgID,
		UserID:         actorID,
		Action:         audit.ActionOrgDelete,
		ResourceType:   audit.ResourceOrganization,
		ResourceID:     &orgID,
	})

	return nil
}

// GetAuditLogs returns the organization's audit trail, newest first. Gated by
// the audit:view capability.
func (s *Service) GetAuditLogs(ctx context.Context, orgID, actorID string, opts audit.ListOptions) ([]*audit.Event, error) {
	member, err := s.membership(ctx, orgID, actorID)
	if err != nil {
		return nil, err
	}

	if !auth.HasPermission(member.Role, auth.PermViewAuditLogs) {
		s.recordDenial(ctx, orgID, actorID, member.Role, auth.PermViewAuditLogs,
			"view_audit_logs", audit.ResourceOrganization, &orgID, nil)
		return nil, ErrPermission("insufficient permissions")
	}

	if s.auditStore == nil {
		return nil, fmt.Errorf("audit trail storage is not configured")
	}

	events, err := s.auditStore.ListByOrganization(ctx, orgID, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit logs: %w", err)
	}
	return events, nil
}

// membership resolves the actor's membership, translating a missing row into
// the NotMember denial.
func (s *Service) membership(ctx context.Context, orgID, userID string) (*Member, error) {
	member, err := s.repo.GetMember(ctx, orgID, userID)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrNotMember()
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return member, nil
}

// recordDenial appends one audit record for a capability or invariant denial
func (s *Service) recordDenial(ctx context.Context, orgID, actorID string, role auth.Role, perm auth.Permission, attempted, resourceType string, resourceID *string, extra map[string]interface{}) {
	details := map[string]interface{}{
		"permission": string(perm),
		"role":       string(role),
		"attempted":  attempted,
	}
	for k, v := range extra {
		details[k] = v
	}

	s.audit.Record(ctx, &audit.Event{
		OrganizationID: &orgID,
		UserID:         actorID,
		Action:         audit.ActionAuthzDenied,
		ResourceType:   resourceType,
		ResourceID:     resourceID,
		Details:        details,
	})
}

func validateOrganizationName(name string) error {
	name = strings.TrimSpace(name)
	if len(name) < 3 {
		return ErrValidation("organization name must be at least 3 characters")
	}
	if len(name) > 50 {
		return ErrValidation("organization name must be at most 50 characters")
	}
	if !orgNamePattern.MatchString(name) {
		return ErrValidation("organization name can only contain letters, numbers, spaces, hyphens, and underscores")
	}
	return nil
}

func isValidEmail(address string) bool {
	return emailPattern.MatchString(address)
}
