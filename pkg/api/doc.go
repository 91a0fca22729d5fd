// Package api exposes the organization membership service over HTTP.
//
// # Overview
//
// Handlers are thin: decode with httputil, read the actor placed in context
// by middleware.ActorMiddleware, call the service, and translate error kinds
// to status codes. All authorization lives in pkg/orgs; the API layer never
// second-guesses it.
//
// # Routes
//
//	POST   /api/v1/orgs                                   create organization
//	GET    /api/v1/orgs                                   list actor's organizations
//	GET    /api/v1/orgs/{id}                              get organization
//	PUT    /api/v1/orgs/{id}                              update organization
//	DELETE /api/v1/orgs/{id}                              soft-delete organization
//	GET    /api/v1/orgs/{id}/members                      list members
//	PUT    /api/v1/orgs/{id}/members/{user_id}/role       change member role
//	DELETE /api/v1/orgs/{id}/members/{user_id}            remove member
//	POST   /api/v1/orgs/{id}/invitations                  create invitation
//	GET    /api/v1/orgs/{id}/invitations                  list invitations
//	DELETE /api/v1/orgs/{id}/invitations/{invitation_id}  revoke invitation
//	GET    /api/v1/orgs/{id}/audit-logs                   audit trail
//	GET    /api/v1/invitations                            pending for actor's email
//	POST   /api/v1/invitations/{token}/accept             accept invitation
//	POST   /api/v1/invitations/{token}/decline            decline invitation
//
// Decline is the single unauthenticated route; possession of the token is the
// credential, matching the email link a recipient clicks without an account.
//
// # Error Mapping
//
//	not_member, insufficient_permission -> 403
//	validation                          -> 400
//	conflict                            -> 409
//	expired_or_consumed                 -> 410
//	not_found                           -> 404
//	rate_limited                        -> 429 (+ Retry-After)
//	anything else                       -> 500
//
// # Related Packages
//
//   - pkg/orgs: Service and error kinds
//   - pkg/middleware: Actor and client metadata extraction
//   - pkg/httputil: JSON helpers
package api
