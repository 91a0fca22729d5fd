package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/tenancy/pkg/audit"
	"github.com/platinummonkey/tenancy/pkg/auth"
	"github.com/platinummonkey/tenancy/pkg/middleware"
	"github.com/platinummonkey/tenancy/pkg/orgs"
)

// Service is the slice of the orgs service the handlers consume
type Service interface {
	CreateOrganization(ctx context.Context, actor orgs.Actor, input *orgs.CreateOrganizationInput) (*orgs.Organization, error)
	GetOrganization(ctx context.Context, orgID, actorID string) (*orgs.Organization, error)
	GetUserOrganizations(ctx context.Context, actorID string) ([]*orgs.Organization, error)
	UpdateOrganization(ctx context.Context, orgID, actorID string, input *orgs.UpdateOrganizationInput) (*orgs.Organization, error)
	DeleteOrganization(ctx context.Context, orgID, actorID string) error

	GetMembers(ctx context.Context, orgID, actorID string) ([]*orgs.Member, error)
	UpdateMemberRole(ctx context.Context, orgID, targetUserID, actorID string, role auth.Role) error
	RemoveMember(ctx context.Context, orgID, targetUserID, actorID string) error

	CreateInvitation(ctx context.Context, orgID, actorID string, input *orgs.CreateInvitationInput) (*orgs.Invitation, error)
	GetInvitations(ctx context.Context, orgID, actorID string) ([]*orgs.Invitation, error)
	GetPendingInvitationsForEmail(ctx context.Context, address string) ([]*orgs.Invitation, error)
	AcceptInvitation(ctx context.Context, token string, actor orgs.Actor) (*orgs.Organization, error)
	DeclineInvitation(ctx context.Context, token string) error
	RevokeInvitation(ctx context.Context, orgID, invitationID, actorID string) error

	GetAuditLogs(ctx context.Context, orgID, actorID string, opts audit.ListOptions) ([]*audit.Event, error)
}

var _ Service = (*orgs.Service)(nil)

// Server holds the route handlers for the membership API
type Server struct {
	service Service
	logger  *logrus.Logger
	router  *mux.Router
}

// NewServer creates a new API server
func NewServer(service Service, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	s := &Server{
		service: service,
		logger:  logger,
		router:  mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	actor := middleware.NewActorMiddleware(false)

	// Decline is token-authenticated only, so it sits outside the identity
	// gate. Registered first; mux matches in order.
	s.router.HandleFunc("/api/v1/invitations/{token}/decline", s.declineInvitation).Methods("POST")

	invitations := s.router.PathPrefix("/api/v1/invitations").Subrouter()
	invitations.Use(actor.Handler)
	invitations.HandleFunc("", s.listPendingInvitations).Methods("GET")
	invitations.HandleFunc("/{token}/accept", s.acceptInvitation).Methods("POST")

	organizations := s.router.PathPrefix("/api/v1/orgs").Subrouter()
	organizations.Use(actor.Handler)
	organizations.HandleFunc("", s.createOrganization).Methods("POST")
	organizations.HandleFunc("", s.listOrganizations).Methods("GET")
	organizations.HandleFunc("/{id}", s.getOrganization).Methods("GET")
	organizations.HandleFunc("/{id}", s.updateOrganization).Methods("PUT")
	organizations.HandleFunc("/{id}", s.deleteOrganization).Methods("DELETE")

	organizations.HandleFunc("/{id}/members", s.listMembers).Methods("GET")
	organizations.HandleFunc("/{id}/members/{user_id}/role", s.updateMemberRole).Methods("PUT")
	organizations.HandleFunc("/{id}/members/{user_id}", s.removeMember).Methods("DELETE")

	organizations.HandleFunc("/{id}/invitations", s.createInvitation).Methods("POST")
	organizations.HandleFunc("/{id}/invitations", s.listInvitations).Methods("GET")
	organizations.HandleFunc("/{id}/invitations/{invitation_id}", s.revokeInvitation).Methods("DELETE")

	organizations.HandleFunc("/{id}/audit-logs", s.getAuditLogs).Methods("GET")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
