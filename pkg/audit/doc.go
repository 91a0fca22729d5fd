// Package audit records permission denials and sensitive state transitions
// for compliance and forensics.
//
// # Overview
//
// Every capability denial and every organization, membership, and invitation
// state change produces one Event. Recording is best-effort by contract:
// Recorder.Record has no error return, and the database recorder logs and
// counts failed inserts instead of surfacing them, because an unavailable
// audit trail must never block a legitimate operation.
//
// # Event Names
//
// Actions are dotted names grouped by area:
//
//	authz.denied
//	org.create  org.update  org.delete
//	member.role_change  member.remove
//	invitation.create  invitation.accept  invitation.decline  invitation.revoke
//
// # Usage Example
//
// Recording (from the orgs service):
//
//	recorder.Record(ctx, &audit.Event{
//		OrganizationID: &orgID,
//		UserID:         actorID,
//		Action:         audit.ActionAuthzDenied,
//		ResourceType:   audit.ResourceOrganization,
//		Details: map[string]interface{}{
//			"permission": "org:update",
//			"role":       "member",
//			"attempted":  "update_organization",
//		},
//	})
//
// Reading (from the HTTP layer, gated by the audit:view capability):
//
//	events, err := store.ListByOrganization(ctx, orgID, audit.ListOptions{Limit: 50})
//
// # Retention
//
// The Archiver copies aged events to object storage as JSON Lines batches and
// only then deletes them, so a failed upload leaves rows in place for the next
// scheduled run.
//
// # Related Packages
//
//   - pkg/orgs: produces the events
//   - pkg/middleware: captures the client metadata attached to them
package audit
