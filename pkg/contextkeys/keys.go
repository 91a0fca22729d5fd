// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
//
// USAGE PATTERN:
//   import "github.com/platinummonkey/tenancy/pkg/contextkeys"
//   ctx = context.WithValue(ctx, contextkeys.ActorKey, actor)
//   actor := ctx.Value(contextkeys.ActorKey).(*orgs.Actor)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// ActorKey contains the verified caller identity
	// Set by: middleware.ActorMiddleware (pkg/middleware/actor.go)
	// Required by: All API endpoints acting on behalf of a caller
	// Type: *orgs.Actor
	ActorKey Key = "actor"

	// ClientInfoKey contains network metadata for audit enrichment
	// Set by: middleware.ClientMeta (pkg/middleware/clientmeta.go)
	// Used by: pkg/audit recorders
	// Type: audit.ClientInfo
	ClientInfoKey Key = "client_info"

	// RequestIDKey contains the request ID string (UUID)
	// Set by: middleware.ClientMeta
	// Used by: Logger, audit trail
	// Type: string
	RequestIDKey Key = "request_id"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
