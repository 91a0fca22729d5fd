package api

import (
	"net/http"
	"strings"

	"github.com/platinummonkey/tenancy/pkg/httputil"
	"github.com/platinummonkey/tenancy/pkg/middleware"
	"github.com/platinummonkey/tenancy/pkg/orgs"
)

// createInvitation handles POST /api/v1/orgs/{id}/invitations
func (s *Server) createInvitation(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r)
	if actor == nil {
		httputil.WriteUnauthorized(w, "missing actor identity")
		return
	}
	orgID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var input orgs.CreateInvitationInput
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}

	invitation, err := s.service.CreateInvitation(r.Context(), orgID, actor.ID, &input)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteCreated(w, invitation)
}

// listInvitations handles GET /api/v1/orgs/{id}/invitations
func (s *Server) listInvitations(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r)
	if actor == nil {
		httputil.WriteUnauthorized(w, "missing actor identity")
		return
	}
	orgID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	invitations, err := s.service.GetInvitations(r.Context(), orgID, actor.ID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if invitations == nil {
		invitations = []*orgs.Invitation{}
	}
	httputil.WriteSuccess(w, invitations)
}

// revokeInvitation handles DELETE /api/v1/orgs/{id}/invitations/{invitation_id}
func (s *Server) revokeInvitation(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r)
	if actor == nil {
		httputil.WriteUnauthorized(w, "missing actor identity")
		return
	}
	orgID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	invitationID, ok := httputil.ParsePathStringOrError(w, r, "invitation_id")
	if !ok {
		return
	}

	if err := s.service.RevokeInvitation(r.Context(), orgID, invitationID, actor.ID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// listPendingInvitations handles GET /api/v1/invitations. Callers may only
// see invitations addressed to their own verified email.
func (s *Server) listPendingInvitations(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r)
	if actor == nil {
		httputil.WriteUnauthorized(w, "missing actor identity")
		return
	}

	address := httputil.ParseQueryString(r, "email", actor.Email)
	if address == "" {
		httputil.WriteBadRequest(w, "email is required")
		return
	}
	if !strings.EqualFold(address, actor.Email) {
		httputil.WriteErrorMessage(w, http.StatusForbidden, "can only list invitations for your own email")
		return
	}

	invitations, err := s.service.GetPendingInvitationsForEmail(r.Context(), address)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if invitations == nil {
		invitations = []*orgs.Invitation{}
	}
	httputil.WriteSuccess(w, invitations)
}

// acceptInvitation handles POST /api/v1/invitations/{token}/accept
func (s *Server) acceptInvitation(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r)
	if actor == nil {
		httputil.WriteUnauthorized(w, "missing actor identity")
		return
	}
	token, ok := httputil.ParsePathStringOrError(w, r, "token")
	if !ok {
		return
	}

	org, err := s.service.AcceptInvitation(r.Context(), token, *actor)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, org)
}

// declineInvitation handles POST /api/v1/invitations/{token}/decline
func (s *Server) declineInvitation(w http.ResponseWriter, r *http.Request) {
	token, ok := httputil.ParsePathStringOrError(w, r, "token")
	if !ok {
		return
	}

	if err := s.service.DeclineInvitation(r.Context(), token); err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
