// Package orgs is the multi-tenant membership core: organizations, members,
// and invitations.
//
// # Overview
//
// The Service carries the business rules. Every mutating operation resolves
// the acting user's membership, evaluates the required capability against
// pkg/auth, records capability denials to the audit trail, and only then
// performs the state transition. Durable state lives behind the Repository
// port; notifications, rate limiting, and audit are optional collaborators
// injected through Config.
//
// Failures carry a typed Kind (NotFound, Conflict, Validation, ...) that the
// HTTP boundary maps to a status code. See errors.go.
//
// # Usage Example
//
//	svc, err := orgs.NewService(orgs.Config{
//		Repository:  store,
//		Logger:      logger,
//		Audit:       recorder,
//		Email:       sender,
//		RateLimiter: limiter,
//	})
//	if err != nil {
//		return err
//	}
//
//	org, err := svc.CreateOrganization(ctx, actor, &orgs.CreateOrganizationInput{
//		Name: "Acme Corp",
//	})
//
// # Related Packages
//
//   - pkg/auth: role and capability matrix
//   - pkg/storage: Repository implementations (Postgres, SQLite)
//   - pkg/audit: best-effort audit recording
//   - pkg/ratelimit: invitation throttling
//   - pkg/email: membership notifications
package orgs
