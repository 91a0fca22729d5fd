package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/tenancy/pkg/audit"
	"github.com/platinummonkey/tenancy/pkg/orgs"
)

func TestCreateOrganizationHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		var gotActor orgs.Actor
		var gotInput *orgs.CreateOrganizationInput
		s := newTestServer(&mockService{
			createOrganizationFunc: func(ctx context.Context, actor orgs.Actor, input *orgs.CreateOrganizationInput) (*orgs.Organization, error) {
				gotActor = actor
				gotInput = input
				return &orgs.Organization{ID: "org-1", Name: input.Name, Description: input.Description, OwnerID: actor.ID}, nil
			},
		})

		w := doRequest(t, s, http.MethodPost, "/api/v1/orgs",
			orgs.CreateOrganizationInput{Name: "Acme Rockets", Description: "rocketry supplies"}, "user-1")

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "user-1", gotActor.ID)
		assert.Equal(t, "user-1@example.com", gotActor.Email)
		require.NotNil(t, gotInput)
		assert.Equal(t, "Acme Rockets", gotInput.Name)

		var org orgs.Organization
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &org))
		assert.Equal(t, "org-1", org.ID)
		assert.Equal(t, "Acme Rockets", org.Name)
	})

	t.Run("MalformedBody", func(t *testing.T) {
		s := newTestServer(&mockService{})
		w := doRequest(t, s, http.MethodPost, "/api/v1/orgs", "not an object", "user-1")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("ValidationError", func(t *testing.T) {
		s := newTestServer(&mockService{
			createOrganizationFunc: func(ctx context.Context, actor orgs.Actor, input *orgs.CreateOrganizationInput) (*orgs.Organization, error) {
				return nil, orgs.ErrValidation("organization name is required")
			},
		})

		w := doRequest(t, s, http.MethodPost, "/api/v1/orgs", orgs.CreateOrganizationInput{}, "user-1")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "organization name is required")
	})
}

func TestListOrganizationsHandler(t *testing.T) {
	t.Run("ReturnsOrganizations", func(t *testing.T) {
		s := newTestServer(&mockService{
			getUserOrganizationsFunc: func(ctx context.Context, actorID string) ([]*orgs.Organization, error) {
				assert.Equal(t, "user-1", actorID)
				return []*orgs.Organization{{ID: "org-1"}, {ID: "org-2"}}, nil
			},
		})

		w := doRequest(t, s, http.MethodGet, "/api/v1/orgs", nil, "user-1")
		assert.Equal(t, http.StatusOK, w.Code)

		var result []*orgs.Organization
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.Len(t, result, 2)
	})

	t.Run("EmptyIsArrayNotNull", func(t *testing.T) {
		s := newTestServer(&mockService{})
		w := doRequest(t, s, http.MethodGet, "/api/v1/orgs", nil, "user-1")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "[]\n", w.Body.String())
	})
}

func TestGetOrganizationHandler(t *testing.T) {
	s := newTestServer(&mockService{
		getOrganizationFunc: func(ctx context.Context, orgID, actorID string) (*orgs.Organization, error) {
			assert.Equal(t, "org-1", orgID)
			assert.Equal(t, "user-1", actorID)
			return &orgs.Organization{ID: orgID, Name: "Acme Rockets", MemberCount: 3}, nil
		},
	})

	w := doRequest(t, s, http.MethodGet, "/api/v1/orgs/org-1", nil, "user-1")
	assert.Equal(t, http.StatusOK, w.Code)

	var org orgs.Organization
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &org))
	assert.Equal(t, "Acme Rockets", org.Name)
	assert.Equal(t, 3, org.MemberCount)
}

func TestUpdateOrganizationHandler(t *testing.T) {
	t.Run("PartialUpdate", func(t *testing.T) {
		var gotInput *orgs.UpdateOrganizationInput
		s := newTestServer(&mockService{
			updateOrganizationFunc: func(ctx context.Context, orgID, actorID string, input *orgs.UpdateOrganizationInput) (*orgs.Organization, error) {
				gotInput = input
				return &orgs.Organization{ID: orgID, Name: *input.Name}, nil
			},
		})

		w := doRequest(t, s, http.MethodPut, "/api/v1/orgs/org-1",
			map[string]interface{}{"name": "Acme Labs"}, "user-1")

		assert.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, gotInput)
		require.NotNil(t, gotInput.Name)
		assert.Equal(t, "Acme Labs", *gotInput.Name)
		assert.Nil(t, gotInput.Description)
		assert.Nil(t, gotInput.MaxMembers)
	})

	t.Run("NotMember", func(t *testing.T) {
		s := newTestServer(&mockService{
			updateOrganizationFunc: func(ctx context.Context, orgID, actorID string, input *orgs.UpdateOrganizationInput) (*orgs.Organization, error) {
				return nil, orgs.ErrNotMember()
			},
		})

		w := doRequest(t, s, http.MethodPut, "/api/v1/orgs/org-1",
			map[string]interface{}{"name": "Acme Labs"}, "user-9")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestDeleteOrganizationHandler(t *testing.T) {
	deleted := false
	s := newTestServer(&mockService{
		deleteOrganizationFunc: func(ctx context.Context, orgID, actorID string) error {
			assert.Equal(t, "org-1", orgID)
			deleted = true
			return nil
		},
	})

	w := doRequest(t, s, http.MethodDelete, "/api/v1/orgs/org-1", nil, "user-1")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, deleted)
}

func TestGetAuditLogsHandler(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		var gotOpts audit.ListOptions
		s := newTestServer(&mockService{
			getAuditLogsFunc: func(ctx context.Context, orgID, actorID string, opts audit.ListOptions) ([]*audit.Event, error) {
				gotOpts = opts
				return []*audit.Event{{ID: "evt-1", UserID: actorID, Action: audit.ActionOrgCreate}}, nil
			},
		})

		w := doRequest(t, s, http.MethodGet, "/api/v1/orgs/org-1/audit-logs", nil, "user-1")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 50, gotOpts.Limit)
		assert.Equal(t, 0, gotOpts.Offset)
		assert.Empty(t, gotOpts.Actions)
	})

	t.Run("PaginationAndActionFilter", func(t *testing.T) {
		var gotOpts audit.ListOptions
		s := newTestServer(&mockService{
			getAuditLogsFunc: func(ctx context.Context, orgID, actorID string, opts audit.ListOptions) ([]*audit.Event, error) {
				gotOpts = opts
				return nil, nil
			},
		})

		w := doRequest(t, s, http.MethodGet,
			"/api/v1/orgs/org-1/audit-logs?limit=10&offset=20&action=invitation.create&action=invitation.accept",
			nil, "user-1")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 10, gotOpts.Limit)
		assert.Equal(t, 20, gotOpts.Offset)
		assert.Equal(t, []audit.Action{audit.ActionInvitationCreate, audit.ActionInvitationAccept}, gotOpts.Actions)
	})

	t.Run("InvalidLimit", func(t *testing.T) {
		s := newTestServer(&mockService{})
		w := doRequest(t, s, http.MethodGet, "/api/v1/orgs/org-1/audit-logs?limit=lots", nil, "user-1")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("EmptyIsArrayNotNull", func(t *testing.T) {
		s := newTestServer(&mockService{})
		w := doRequest(t, s, http.MethodGet, "/api/v1/orgs/org-1/audit-logs", nil, "user-1")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "[]\n", w.Body.String())
	})
}
