package service

import (
	"context"
	"testing"

	"github.com/eventostec/eventostec/entity"
	"github.com/eventostec/eventostec/store"
	"github.com/stretchr/testify/assert"
)

func newUserFixture() (*store.MemoryStore, *UserService) {
	s := store.NewMemoryStore()
	return s, NewUserService(s)
}

func TestFindOrCreateFirstSignIn(t *testing.T) {
	s, users := newUserFixture()
	ctx := context.Background()

	user, err := users.FindOrCreate(ctx, "U1", "Ana", "García", "ana@tec.mx")
	assert.NoError(t, err)
	assert.Equal(t, "U1", user.UID)
	assert.Equal(t, []string{entity.RoleUser}, user.Roles)

	var stored entity.User
	assert.NoError(t, s.Get(ctx, store.Users, "U1", &stored))
	assert.Equal(t, "Ana", stored.FName)

	// Second sign-in finds the existing document.
	again, err := users.FindOrCreate(ctx, "U1", "Ana", "García", "ana@tec.mx")
	assert.NoError(t, err)
	assert.Equal(t, *user, *again)
	assert.Equal(t, 1, s.WriteCount(store.Users, "U1"))
}

func TestGetUserRequiresSuperadmin(t *testing.T) {
	s, users := newUserFixture()
	ctx := context.Background()
	seed(t, s, store.Users, "U1", entity.User{UID: "U1", Roles: []string{entity.RoleUser}})

	_, err := users.GetUser(ctx, adminOf("U2", "SAITC"), "U1", false)
	assert.ErrorIs(t, err, ErrUnauthorized)

	got, err := users.GetUser(ctx, superadmin, "U1", false)
	assert.NoError(t, err)
	assert.Equal(t, "U1", got.UID)

	// Cached on the second read.
	_, err = users.GetUser(ctx, superadmin, "U1", false)
	assert.NoError(t, err)
	assert.Equal(t, 1, s.ReadCount(store.Users, "U1"))
}

func TestAdminListCached(t *testing.T) {
	s, users := newUserFixture()
	ctx := context.Background()
	seed(t, s, store.Shared, store.SharedAdmins, entity.AdminIndex{
		ID: store.SharedAdmins,
		Admins: map[string]entity.UserSummary{
			"U1": {UID: "U1", Roles: []string{entity.RoleUser, entity.RoleAdmin}, Administra: []string{"SAITC"}},
		},
	})

	list, err := users.AdminList(ctx, superadmin, false)
	assert.NoError(t, err)
	assert.Contains(t, list, "U1")

	_, err = users.AdminList(ctx, superadmin, false)
	assert.NoError(t, err)
	assert.Equal(t, 1, s.ReadCount(store.Shared, store.SharedAdmins))

	_, err = users.AdminList(ctx, superadmin, true)
	assert.NoError(t, err)
	assert.Equal(t, 2, s.ReadCount(store.Shared, store.SharedAdmins))

	_, err = users.AdminList(ctx, plainActor, false)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestUpdateRolesGrantSuperadmin(t *testing.T) {
	s, users := newUserFixture()
	ctx := context.Background()
	seed(t, s, store.Users, "U1", entity.User{UID: "U1", Roles: []string{entity.RoleUser}})

	updated, err := users.UpdateRoles(ctx, superadmin, "U1", nil, []string{entity.RoleSuperadmin})
	assert.NoError(t, err)
	assert.Equal(t, []string{entity.RoleUser, entity.RoleSuperadmin}, updated.Roles)

	var stored entity.User
	assert.NoError(t, s.Get(ctx, store.Users, "U1", &stored))
	assert.Equal(t, updated.Roles, stored.Roles)
}

func TestUpdateRolesAdminGrantRejected(t *testing.T) {
	s, users := newUserFixture()
	ctx := context.Background()
	seed(t, s, store.Users, "U1", entity.User{UID: "U1", Roles: []string{entity.RoleUser}})

	_, err := users.UpdateRoles(ctx, superadmin, "U1", nil, []string{entity.RoleAdmin})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, 0, s.WriteCount(store.Users, "U1"))
}

func TestUpdateRolesRevokeAdminCascades(t *testing.T) {
	s, users := newUserFixture()
	ctx := context.Background()

	seed(t, s, store.Users, "U1", entity.User{
		UID:        "U1",
		Roles:      []string{entity.RoleUser, entity.RoleAdmin},
		Administra: []string{"SAITC", "ROBOTICA"},
	})
	seed(t, s, store.Groups, "SAITC", entity.Group{GID: "SAITC", Name: "SAITC", Admins: []string{"U1", "U2"}})
	seed(t, s, store.Groups, "ROBOTICA", entity.Group{GID: "ROBOTICA", Name: "Club de Robotica", Admins: []string{"U1"}})
	seed(t, s, store.Shared, store.SharedAdmins, entity.AdminIndex{
		ID: store.SharedAdmins,
		Admins: map[string]entity.UserSummary{
			"U1": {UID: "U1", Roles: []string{entity.RoleUser, entity.RoleAdmin}, Administra: []string{"SAITC", "ROBOTICA"}},
		},
	})

	updated, err := users.UpdateRoles(ctx, superadmin, "U1", []string{entity.RoleAdmin}, nil)
	assert.NoError(t, err)
	assert.Equal(t, []string{entity.RoleUser}, updated.Roles)
	assert.Empty(t, updated.Administra)

	var stored entity.User
	assert.NoError(t, s.Get(ctx, store.Users, "U1", &stored))
	assert.Equal(t, []string{entity.RoleUser}, stored.Roles)
	assert.Empty(t, stored.Administra)

	var saitc entity.Group
	assert.NoError(t, s.Get(ctx, store.Groups, "SAITC", &saitc))
	assert.Equal(t, []string{"U2"}, saitc.Admins)

	var robotica entity.Group
	assert.NoError(t, s.Get(ctx, store.Groups, "ROBOTICA", &robotica))
	assert.Empty(t, robotica.Admins)

	var index entity.AdminIndex
	assert.NoError(t, s.Get(ctx, store.Shared, store.SharedAdmins, &index))
	assert.NotContains(t, index.Admins, "U1")
}

func TestUpdateRolesKeepsIndexRolesCurrent(t *testing.T) {
	s, users := newUserFixture()
	ctx := context.Background()

	seed(t, s, store.Users, "U1", entity.User{
		UID:        "U1",
		Roles:      []string{entity.RoleUser, entity.RoleAdmin},
		Administra: []string{"SAITC"},
	})
	seed(t, s, store.Shared, store.SharedAdmins, entity.AdminIndex{
		ID: store.SharedAdmins,
		Admins: map[string]entity.UserSummary{
			"U1": {UID: "U1", Roles: []string{entity.RoleUser, entity.RoleAdmin}, Administra: []string{"SAITC"}},
		},
	})

	// Granting superadmin to an admin updates their index entry too.
	updated, err := users.UpdateRoles(ctx, superadmin, "U1", nil, []string{entity.RoleSuperadmin})
	assert.NoError(t, err)
	assert.Contains(t, updated.Roles, entity.RoleSuperadmin)

	var index entity.AdminIndex
	assert.NoError(t, s.Get(ctx, store.Shared, store.SharedAdmins, &index))
	assert.Contains(t, index.Admins["U1"].Roles, entity.RoleSuperadmin)
	assert.Equal(t, []string{"SAITC"}, index.Admins["U1"].Administra)
}

func TestUpdateRolesAuthorization(t *testing.T) {
	s, users := newUserFixture()
	ctx := context.Background()
	seed(t, s, store.Users, "U1", entity.User{UID: "U1", Roles: []string{entity.RoleUser}})

	_, err := users.UpdateRoles(ctx, adminOf("U2", "SAITC"), "U1", nil, []string{entity.RoleSuperadmin})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = users.UpdateRoles(ctx, superadmin, "missing", nil, []string{entity.RoleSuperadmin})
	assert.ErrorIs(t, err, store.ErrNotFound)
}
