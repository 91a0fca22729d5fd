package email

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type capturedRequest struct {
	auth string
	body apiRequest
}

func newTestSender(t *testing.T, status int, respBody string) (*APISender, *capturedRequest, func()) {
	t.Helper()

	captured := &capturedRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured.body))
		w.WriteHeader(status)
		w.Write([]byte(respBody))
	}))

	sender, err := NewAPISender("test-key", "noreply@example.com", "Tenancy", nil, quietLogger())
	require.NoError(t, err)
	sender.baseURL = server.URL

	return sender, captured, server.Close
}

func TestNewAPISender_Validation(t *testing.T) {
	_, err := NewAPISender("", "noreply@example.com", "", nil, quietLogger())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "API key is required")

	_, err = NewAPISender("key", "", "", nil, quietLogger())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "from email is required")
}

func TestAPISender_SendInvitation(t *testing.T) {
	sender, captured, cleanup := newTestSender(t, http.StatusOK, `{"id":"email-1"}`)
	defer cleanup()

	err := sender.SendInvitation(context.Background(),
		"bob@example.com", "Acme", "Alice", "member", "https://app.example.com/invitations/accept?token=tok123")
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", captured.auth)
	assert.Equal(t, "Tenancy <noreply@example.com>", captured.body.From)
	assert.Equal(t, []string{"bob@example.com"}, captured.body.To)
	assert.Equal(t, "You're invited to join Acme", captured.body.Subject)
	assert.Contains(t, captured.body.HTML, "Alice")
	assert.Contains(t, captured.body.HTML, "Acme")
	assert.Contains(t, captured.body.HTML, "token=tok123")
}

func TestAPISender_SendWelcome(t *testing.T) {
	t.Run("with name", func(t *testing.T) {
		sender, captured, cleanup := newTestSender(t, http.StatusOK, `{"id":"email-2"}`)
		defer cleanup()

		err := sender.SendWelcome(context.Background(), "bob@example.com", "Bob", "Acme", "admin")
		require.NoError(t, err)

		assert.Equal(t, "Welcome to Acme!", captured.body.Subject)
		assert.Contains(t, captured.body.HTML, "Bob")
		assert.Contains(t, captured.body.HTML, "admin")
	})

	t.Run("empty name falls back", func(t *testing.T) {
		sender, captured, cleanup := newTestSender(t, http.StatusOK, `{"id":"email-3"}`)
		defer cleanup()

		err := sender.SendWelcome(context.Background(), "bob@example.com", "", "Acme", "member")
		require.NoError(t, err)
		assert.Contains(t, captured.body.HTML, "there")
	})
}

func TestAPISender_SendMemberRemoved(t *testing.T) {
	sender, captured, cleanup := newTestSender(t, http.StatusOK, `{"id":"email-4"}`)
	defer cleanup()

	err := sender.SendMemberRemoved(context.Background(), "bob@example.com", "Acme")
	require.NoError(t, err)

	assert.Equal(t, "You've been removed from Acme", captured.body.Subject)
	assert.Contains(t, captured.body.HTML, "Acme")
}

func TestAPISender_APIError(t *testing.T) {
	sender, _, cleanup := newTestSender(t, http.StatusUnprocessableEntity,
		`{"error":{"message":"invalid recipient","name":"validation_error"}}`)
	defer cleanup()

	err := sender.SendInvitation(context.Background(), "not-an-email", "Acme", "Alice", "member", "https://x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid recipient")
}

func TestAPISender_UnreachableServer(t *testing.T) {
	sender, _, cleanup := newTestSender(t, http.StatusOK, `{}`)
	cleanup() // shut the server down before sending

	err := sender.SendWelcome(context.Background(), "bob@example.com", "Bob", "Acme", "member")
	assert.Error(t, err)
}
