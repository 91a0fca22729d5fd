package orgs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInvitationState(t *testing.T) {
	now := time.Now()
	accepted := now.Add(-time.Hour)

	tests := []struct {
		name       string
		expiresAt  time.Time
		acceptedAt *time.Time
		expired    bool
		isAccepted bool
		pending    bool
	}{
		{"fresh", now.Add(24 * time.Hour), nil, false, false, true},
		{"expired", now.Add(-time.Minute), nil, true, false, false},
		{"accepted", now.Add(24 * time.Hour), &accepted, false, true, false},
		{"accepted then expired", now.Add(-time.Minute), &accepted, true, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &Invitation{ExpiresAt: tt.expiresAt, AcceptedAt: tt.acceptedAt}
			assert.Equal(t, tt.expired, inv.IsExpired())
			assert.Equal(t, tt.isAccepted, inv.IsAccepted())
			assert.Equal(t, tt.pending, inv.IsPending())
		})
	}
}

func TestActorDisplayName(t *testing.T) {
	assert.Equal(t, "Ada", Actor{ID: "u1", Email: "ada@example.com", Name: "Ada"}.DisplayName())
	assert.Equal(t, "ada@example.com", Actor{ID: "u1", Email: "ada@example.com"}.DisplayName())
	assert.Equal(t, "", Actor{ID: "u1"}.DisplayName())
}
