package api

import (
	"net/http"

	"github.com/platinummonkey/tenancy/pkg/httputil"
	"github.com/platinummonkey/tenancy/pkg/middleware"
	"github.com/platinummonkey/tenancy/pkg/orgs"
)

// listMembers handles GET /api/v1/orgs/{id}/members
func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r)
	if actor == nil {
		httputil.WriteUnauthorized(w, "missing actor identity")
		return
	}
	orgID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	members, err := s.service.GetMembers(r.Context(), orgID, actor.ID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if members == nil {
		members = []*orgs.Member{}
	}
	httputil.WriteSuccess(w, members)
}

// updateMemberRole handles PUT /api/v1/orgs/{id}/members/{user_id}/role
func (s *Server) updateMemberRole(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r)
	if actor == nil {
		httputil.WriteUnauthorized(w, "missing actor identity")
		return
	}
	orgID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathStringOrError(w, r, "user_id")
	if !ok {
		return
	}

	var input orgs.UpdateMemberRoleInput
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}

	if err := s.service.UpdateMemberRole(r.Context(), orgID, userID, actor.ID, input.Role); err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// removeMember handles DELETE /api/v1/orgs/{id}/members/{user_id}
func (s *Server) removeMember(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r)
	if actor == nil {
		httputil.WriteUnauthorized(w, "missing actor identity")
		return
	}
	orgID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathStringOrError(w, r, "user_id")
	if !ok {
		return
	}

	if err := s.service.RemoveMember(r.Context(), orgID, userID, actor.ID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
