// Package middleware provides HTTP middleware for the tenancy API: caller
// identity resolution, client metadata capture, request logging, and panic
// recovery.
//
// # Middleware Components
//
// ActorMiddleware: Identity resolution from gateway headers
//
//	router.Use(middleware.NewActorMiddleware(false).Handler)
//	// Reads X-Actor-ID/-Email/-Name, adds *orgs.Actor to the request context
//
// ClientMeta: Request id and network metadata
//
//	router.Use(middleware.ClientMeta)
//	// Propagates or generates X-Request-ID, stores audit.ClientInfo
//
// RequestLogger / Recovery: Structured access logs and panic containment
//
//	router.Use(middleware.Recovery(logger))
//	router.Use(middleware.RequestLogger(logger))
//
// # Ordering
//
// ClientMeta runs before everything else so later stages, and every audit
// event recorded downstream, see the request id and caller address. Recovery
// wraps RequestLogger so a panic still produces an access log line.
//
// # Related Packages
//
//   - pkg/orgs: Actor type consumed by handlers
//   - pkg/audit: ClientInfo enrichment of audit events
//   - pkg/contextkeys: Context key definitions
package middleware
