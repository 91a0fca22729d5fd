package email

import "context"

// Sender delivers membership notifications. Implementations receive display
// data only; the caller owns retries, dispatch, and failure policy.
type Sender interface {
	// SendInvitation notifies email that inviterName invited it to join
	// orgName with the given role. inviteURL carries the acceptance token.
	SendInvitation(ctx context.Context, email, orgName, inviterName, role, inviteURL string) error

	// SendWelcome greets a member who just joined orgName
	SendWelcome(ctx context.Context, email, name, orgName, role string) error

	// SendMemberRemoved notifies a member removed from orgName
	SendMemberRemoved(ctx context.Context, email, orgName string) error
}

// NopSender discards all notifications. Used when no API key is configured.
type NopSender struct{}

func (NopSender) SendInvitation(ctx context.Context, email, orgName, inviterName, role, inviteURL string) error {
	return nil
}

func (NopSender) SendWelcome(ctx context.Context, email, name, orgName, role string) error {
	return nil
}

func (NopSender) SendMemberRemoved(ctx context.Context, email, orgName string) error {
	return nil
}
