// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Overview
//
// This package offers helper functions for JSON encoding/decoding, error
// responses, and parameter parsing. It carries no domain knowledge; mapping
// service errors to status codes belongs to the API layer.
//
// # Response Helpers
//
// JSON responses:
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteCreated(w, resource)
//	httputil.WriteNoContent(w)
//
// Error responses:
//
//	httputil.WriteErrorMessage(w, http.StatusConflict, "already a member")
//	httputil.WriteBadRequest(w, "invalid input")
//	httputil.WriteUnauthorized(w, "missing actor identity")
//
// # Request Parsing
//
// JSON parsing:
//
//	var req createOrganizationRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
// Path and query parameters:
//
//	orgID, ok := httputil.ParsePathStringOrError(w, r, "id")
//	limit := httputil.ParseQueryInt(r, "limit", 50)
//	action := httputil.ParseQueryString(r, "action", "")
//
// # Related Packages
//
//   - pkg/middleware: Identity, metadata, and logging middleware
//   - pkg/api: Route handlers built on these helpers
package httputil
