package api

import (
	"net/http"

	"github.com/platinummonkey/tenancy/pkg/audit"
	"github.com/platinummonkey/tenancy/pkg/httputil"
	"github.com/platinummonkey/tenancy/pkg/middleware"
	"github.com/platinummonkey/tenancy/pkg/orgs"
)

// createOrganization handles POST /api/v1/orgs
func (s *Server) createOrganization(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r)
	if actor == nil {
		httputil.WriteUnauthorized(w, "missing actor identity")
		return
	}

	var input orgs.CreateOrganizationInput
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}

	org, err := s.service.CreateOrganization(r.Context(), *actor, &input)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteCreated(w, org)
}

// listOrganizations handles GET /api/v1/orgs
func (s *Server) listOrganizations(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r)
	if actor == nil {
		httputil.WriteUnauthorized(w, "missing actor identity")
		return
	}

	list, err := s.service.GetUserOrganizations(r.Context(), actor.ID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if list == nil {
		list = []*orgs.Organization{}
	}
	httputil.WriteSuccess(w, list)
}

// getOrganization handles GET /api/v1/orgs/{id}
func (s *Server) getOrganization(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r)
	if actor == nil {
		httputil.WriteUnauthorized(w, "missing actor identity")
		return
	}
	orgID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	org, err := s.service.GetOrganization(r.Context(), orgID, actor.ID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, org)
}

// updateOrganization handles PUT /api/v1/orgs/{id}
func (s *Server) updateOrganization(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r)
	if actor == nil {
		httputil.WriteUnauthorized(w, "missing actor identity")
		return
	}
	orgID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var input orgs.UpdateOrganizationInput
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}

	org, err := s.service.UpdateOrganization(r.Context(), orgID, actor.ID, &input)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, org)
}

// deleteOrganization handles DELETE /api/v1/orgs/{id}
func (s *Server) deleteOrganization(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r)
	if actor == nil {
		httputil.WriteUnauthorized(w, "missing actor identity")
		return
	}
	orgID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if err := s.service.DeleteOrganization(r.Context(), orgID, actor.ID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// getAuditLogs handles GET /api/v1/orgs/{id}/audit-logs
func (s *Server) getAuditLogs(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r)
	if actor == nil {
		httputil.WriteUnauthorized(w, "missing actor identity")
		return
	}
	orgID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	limit, err := httputil.ParseQueryInt(r, "limit", 50)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	offset, err := httputil.ParseQueryInt(r, "offset", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	opts := audit.ListOptions{Limit: limit, Offset: offset}
	for _, action := range r.URL.Query()["action"] {
		opts.Actions = append(opts.Actions, audit.Action(action))
	}

	events, err := s.service.GetAuditLogs(r.Context(), orgID, actor.ID, opts)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if events == nil {
		events = []*audit.Event{}
	}
	httputil.WriteSuccess(w, events)
}
