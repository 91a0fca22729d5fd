package email

import (
	"context"
	"sync"
	"time"
)

// Kinds of recorded messages
const (
	KindInvitation    = "invitation"
	KindWelcome       = "welcome"
	KindMemberRemoved = "member_removed"
)

// SentEmail is one recorded notification
type SentEmail struct {
	To          string
	Kind        string
	Name        string
	OrgName     string
	InviterName string
	Role        string
	InviteURL   string
	SentAt      time.Time
}

// MemorySender records notifications instead of delivering them. Safe for
// concurrent use; intended for tests.
type MemorySender struct {
	mu   sync.Mutex
	sent []SentEmail
}

// NewMemorySender creates an empty recording sender
func NewMemorySender() *MemorySender {
	return &MemorySender{}
}

func (s *MemorySender) SendInvitation(ctx context.Context, email, orgName, inviterName, role, inviteURL string) error {
	s.record(SentEmail{
		To:          email,
		Kind:        KindInvitation,
		OrgName:     orgName,
		InviterName: inviterName,
		Role:        role,
		InviteURL:   inviteURL,
	})
	return nil
}

func (s *MemorySender) SendWelcome(ctx context.Context, email, name, orgName, role string) error {
	s.record(SentEmail{
		To:      email,
		Kind:    KindWelcome,
		Name:    name,
		OrgName: orgName,
		Role:    role,
	})
	return nil
}

func (s *MemorySender) SendMemberRemoved(ctx context.Context, email, orgName string) error {
	s.record(SentEmail{
		To:      email,
		Kind:    KindMemberRemoved,
		OrgName: orgName,
	})
	return nil
}

// Sent returns a copy of everything recorded so far
func (s *MemorySender) Sent() []SentEmail {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SentEmail, len(s.sent))
	copy(out, s.sent)
	return out
}

// Clear discards all recorded messages
func (s *MemorySender) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = nil
}

func (s *MemorySender) record(mail SentEmail) {
	mail.SentAt = time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, mail)
}
