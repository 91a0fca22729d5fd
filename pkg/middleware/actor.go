package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/platinummonkey/tenancy/pkg/contextkeys"
	"github.com/platinummonkey/tenancy/pkg/httputil"
	"github.com/platinummonkey/tenancy/pkg/orgs"
)

// Headers the identity gateway sets on proxied requests. The gateway strips
// any client-supplied copies before forwarding, so their presence is proof of
// authentication.
const (
	HeaderActorID    = "X-Actor-ID"
	HeaderActorEmail = "X-Actor-Email"
	HeaderActorName  = "X-Actor-Name"
)

// ActorMiddleware resolves the caller identity from gateway headers
type ActorMiddleware struct {
	optional bool // If true, allow requests without an identity
}

// NewActorMiddleware creates identity middleware. With optional set, requests
// without an actor pass through unauthenticated; handlers that need an actor
// must check for themselves.
func NewActorMiddleware(optional bool) *ActorMiddleware {
	return &ActorMiddleware{optional: optional}
}

// Handler wraps an HTTP handler with identity resolution
func (m *ActorMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderActorID))
		if id == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing actor identity")
			return
		}

		actor := &orgs.Actor{
			ID:    id,
			Email: strings.TrimSpace(r.Header.Get(HeaderActorEmail)),
			Name:  strings.TrimSpace(r.Header.Get(HeaderActorName)),
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// WithActor stores the caller identity in the context
func WithActor(ctx context.Context, actor *orgs.Actor) context.Context {
	return context.WithValue(ctx, contextkeys.ActorKey, actor)
}

// GetActor extracts the caller identity from the request. Returns nil when
// the request is unauthenticated.
func GetActor(r *http.Request) *orgs.Actor {
	actor, ok := r.Context().Value(contextkeys.ActorKey).(*orgs.Actor)
	if !ok {
		return nil
	}
	return actor
}
