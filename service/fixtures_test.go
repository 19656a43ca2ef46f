package service

import (
	"testing"

	"github.com/eventostec/eventostec/entity"
	"github.com/eventostec/eventostec/store"
	"github.com/stretchr/testify/require"
)

var (
	superadmin = entity.Actor{UID: "SA", Roles: []string{entity.RoleUser, entity.RoleSuperadmin}}
	plainActor = entity.Actor{UID: "U-PLAIN", Roles: []string{entity.RoleUser}}
)

func adminOf(uid string, gids ...string) entity.Actor {
	return entity.Actor{
		UID:        uid,
		Roles:      []string{entity.RoleUser, entity.RoleAdmin},
		Administra: gids,
	}
}

func seed(t *testing.T, s *store.MemoryStore, collection, id string, doc interface{}) {
	t.Helper()
	require.NoError(t, s.Seed(collection, id, doc))
}
