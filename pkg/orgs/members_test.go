package orgs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/tenancy/pkg/audit"
	"github.com/platinummonkey/tenancy/pkg/auth"
	"github.com/platinummonkey/tenancy/pkg/email"
)

func TestGetMembers(t *testing.T) {
	ctx := context.Background()

	t.Run("AnyMemberMayList", func(t *testing.T) {
		f := newFixture(t)
		org := f.createOrg(t, "owner-1")
		f.addMember(t, org.ID, "user-2", auth.RoleMember)

		members, err := f.svc.GetMembers(ctx, org.ID, "user-2")
		require.NoError(t, err)
		require.Len(t, members, 2)
		assert.Equal(t, "owner-1", members[0].UserID)
		assert.Equal(t, auth.RoleOwner, members[0].Role)
	})

	t.Run("StrangerDenied", func(t *testing.T) {
		f := newFixture(t)
		org := f.createOrg(t, "owner-1")

		_, err := f.svc.GetMembers(ctx, org.ID, "stranger")
		require.Error(t, err)
		assert.True(t, IsNotMember(err))
	})
}

func TestUpdateMemberRole(t *testing.T) {
	ctx := context.Background()

	t.Run("OwnerPromotesMember", func(t *testing.T) {
		f := newFixture(t)
		org := f.createOrg(t, "owner-1")
		f.addMember(t, org.ID, "user-2", auth.RoleMember)

		require.NoError(t, f.svc.UpdateMemberRole(ctx, org.ID, "user-2", "owner-1", auth.RoleAdmin))

		member, err := f.repo.GetMember(ctx, org.ID, "user-2")
		require.NoError(t, err)
		assert.Equal(t, auth.RoleAdmin, member.Role)

		changes := f.audit.byAction(audit.ActionMemberRoleChange)
		require.Len(t, changes, 1)
		assert.Equal(t, "owner-1", changes[0].UserID)
		assert.Equal(t, string(auth.RoleAdmin), changes[0].Details["new_role"])
	})

	t.Run("AdminPromotesMemberToAdmin", func(t *testing.T) {
		f := newFixture(t)
		org := f.createOrg(t, "owner-1")
		f.addMember(t, org.ID, "admin-1", auth.RoleAdmin)
		f.addMember(t, org.ID, "user-2", auth.RoleMember)

		assert.NoError(t, f.svc.UpdateMemberRole(ctx, org.ID, "user-2", "admin-1", auth.RoleAdmin))
	})

	t.Run("MemberDenied", func(t *testing.T) {
		f := newFixture(t)
		org := f.createOrg(t, "owner-1")
		f.addMember(t, org.ID, "user-2", auth.RoleMember)
		f.addMember(t, org.ID, "user-3", auth.RoleMember)

		err := f.svc.UpdateMemberRole(ctx, org.ID, "user-3", "user-2", auth.RoleAdmin)
		require.Error(t, err)
		assert.True(t, IsPermissionDenied(err))

		denial := f.audit.lastDenial()
		require.NotNil(t, denial)
		assert.Equal(t, "update_member_role", denial.Details["attempted"])
		assert.Equal(t, "user-3", denial.Details["target_user"])
	})

	t.Run("InvalidRole", func(t *testing.T) {
		f := newFixture(t)
		org := f.createOrg(t, "owner-1")
		f.addMember(t, org.ID, "user-2", auth.RoleMember)

		err := f.svc.UpdateMemberRole(ctx, org.ID, "user-2", "owner-1", auth.Role("superuser"))
		require.Error(t, err)
		assert.True(t, IsValidation(err))
		assert.Contains(t, err.Error(), "invalid role: superuser")
	})

	t.Run("OwnerRoleImmutable", func(t *testing.T) {
		f := newFixture(t)
		org := f.createOrg(t, "owner-1")
		f.addMember(t, org.ID, "admin-1", auth.RoleAdmin)

		// Not even the owner can demote themselves through this path.
		for _, actor := range []string{"owner-1", "admin-1"} {
			err := f.svc.UpdateMemberRole(ctx, org.ID, "owner-1", actor, auth.RoleMember)
			require.Error(t, err, "actor %s", actor)
			assert.True(t, IsPermissionDenied(err))
			assert.Contains(t, err.Error(), "cannot change owner's role")
		}

		denial := f.audit.lastDenial()
		require.NotNil(t, denial)
		assert.Equal(t, "change_owner_role", denial.Details["attempted"])

		member, err := f.repo.GetMember(ctx, org.ID, "owner-1")
		require.NoError(t, err)
		assert.Equal(t, auth.RoleOwner, member.Role)
	})

	t.Run("AdminCannotAssignOwner", func(t *testing.T) {
		f := newFixture(t)
		org := f.createOrg(t, "owner-1")
		f.addMember(t, org.ID, "admin-1", auth.RoleAdmin)
		f.addMember(t, org.ID, "user-2", auth.RoleMember)

		err := f.svc.UpdateMemberRole(ctx, org.ID, "user-2", "admin-1", auth.RoleOwner)
		require.Error(t, err)
		assert.True(t, IsPermissionDenied(err))
		assert.Contains(t, err.Error(), "only owners can assign owner role")

		denial := f.audit.lastDenial()
		require.NotNil(t, denial)
		assert.Equal(t, "assign_owner_role", denial.Details["attempted"])
		assert.Equal(t, string(auth.RoleOwner), denial.Details["desired_role"])
	})

	t.Run("TargetNotFound", func(t *testing.T) {
		f := newFixture(t)
		org := f.createOrg(t, "owner-1")

		err := f.svc.UpdateMemberRole(ctx, org.ID, "ghost", "owner-1", auth.RoleAdmin)
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
	})
}

func TestRemoveMember(t *testing.T) {
	ctx := context.Background()

	t.Run("OwnerRemovesMember", func(t *testing.T) {
		f := newFixture(t)
		org := f.createOrg(t, "owner-1")
		f.addMember(t, org.ID, "user-2", auth.RoleMember)

		require.NoError(t, f.svc.RemoveMember(ctx, org.ID, "user-2", "owner-1"))

		_, err := f.repo.GetMember(ctx, org.ID, "user-2")
		assert.True(t, IsNotFound(err))

		removed := f.audit.byAction(audit.ActionMemberRemove)
		require.Len(t, removed, 1)
		assert.Equal(t, string(auth.RoleMember), removed[0].Details["target_role"])

		sent := f.sender.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, email.KindMemberRemoved, sent[0].Kind)
		assert.Equal(t, "user-2@example.com", sent[0].To)
		assert.Equal(t, "Acme Rockets", sent[0].OrgName)
	})

	t.Run("AdminRemovesMember", func(t *testing.T) {
		f := newFixture(t)
		org := f.createOrg(t, "owner-1")
		f.addMember(t, org.ID, "admin-1", auth.RoleAdmin)
		f.addMember(t, org.ID, "user-2", auth.RoleMember)

		assert.NoError(t, f.svc.RemoveMember(ctx, org.ID, "user-2", "admin-1"))
	})

	t.Run("AdminCannotRemoveAdmin", func(t *testing.T) {
		f := newFixture(t)
		org := f.createOrg(t, "owner-1")
		f.addMember(t, org.ID, "admin-1", auth.RoleAdmin)
		f.addMember(t, org.ID, "admin-2", auth.RoleAdmin)

		err := f.svc.RemoveMember(ctx, org.ID, "admin-2", "admin-1")
		require.Error(t, err)
		assert.True(t, IsPermissionDenied(err))
		assert.Contains(t, err.Error(), "admins can only remove members")

		denial := f.audit.lastDenial()
		require.NotNil(t, denial)
		assert.Equal(t, string(auth.RoleAdmin), denial.Details["target_role"])
	})

	t.Run("OwnerCannotBeRemoved", func(t *testing.T) {
		f := newFixture(t)
		org := f.createOrg(t, "owner-1")
		f.addMember(t, org.ID, "admin-1", auth.RoleAdmin)

		err := f.svc.RemoveMember(ctx, org.ID, "owner-1", "admin-1")
		require.Error(t, err)
		assert.True(t, IsPermissionDenied(err))
		assert.Contains(t, err.Error(), "cannot remove owner")

		denial := f.audit.lastDenial()
		require.NotNil(t, denial)
		assert.Equal(t, "remove_owner", denial.Details["attempted"])
	})

	t.Run("MemberDenied", func(t *testing.T) {
		f := newFixture(t)
		org := f.createOrg(t, "owner-1")
		f.addMember(t, org.ID, "user-2", auth.RoleMember)
		f.addMember(t, org.ID, "user-3", auth.RoleMember)

		err := f.svc.RemoveMember(ctx, org.ID, "user-3", "user-2")
		require.Error(t, err)
		assert.True(t, IsPermissionDenied(err))
	})

	t.Run("TargetNotFound", func(t *testing.T) {
		f := newFixture(t)
		org := f.createOrg(t, "owner-1")

		err := f.svc.RemoveMember(ctx, org.ID, "ghost", "owner-1")
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
	})

	t.Run("NoEmailOnFileSkipsNotice", func(t *testing.T) {
		f := newFixture(t)
		org := f.createOrg(t, "owner-1")
		member := &Member{OrganizationID: org.ID, UserID: "user-2", Role: auth.RoleMember}
		require.NoError(t, f.repo.AddMember(ctx, member))

		require.NoError(t, f.svc.RemoveMember(ctx, org.ID, "user-2", "owner-1"))
		assert.Empty(t, f.sender.Sent())
	})
}
