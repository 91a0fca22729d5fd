// Package email delivers membership notifications.
//
// # Overview
//
// The Sender port covers the three notifications the membership flows
// produce: an invitation, a welcome on acceptance, and a removal notice.
// Senders take display data only and never drive control flow; callers
// dispatch through pkg/async and treat failures as log lines.
//
// APISender posts JSON to a Resend-compatible HTTP API. Bodies are rendered
// from html/template; compiled-in defaults can be overridden per template by
// files in a directory, watched for live reload.
//
// # Usage Example
//
//	store, _ := email.NewTemplateStore("")
//	sender, err := email.NewAPISender(apiKey, "noreply@example.com", "Tenancy", store, logger)
//	if err != nil {
//	    return err
//	}
//	_ = sender.SendInvitation(ctx, "bob@example.com", "Acme", "Alice", "member", inviteURL)
//
// # Related Packages
//
//   - pkg/orgs: fires notifications on invitation and membership changes
//   - pkg/async: runs sends off the request path
package email
