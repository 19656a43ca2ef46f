package entity

import "golang.org/x/exp/slices"

// Actor is the authenticated identity a mutation runs as. It is built once
// per request from the user document and passed explicitly into every service
// call, so authorization never reads ambient state.
type Actor struct {
	UID        string
	Roles      []string
	Administra []string
}

func ActorFromUser(u *User) Actor {
	return Actor{
		UID:        u.UID,
		Roles:      slices.Clone(u.Roles),
		Administra: slices.Clone(u.Administra),
	}
}

func (a *Actor) IsAuthenticated() bool {
	return a.UID != ""
}

func (a *Actor) IsSuperadmin() bool {
	return slices.Contains(a.Roles, RoleSuperadmin)
}

// CanMutateEvent reports whether the actor may create, update or delete an
// event organized by the given groups. For updates and deletes the decision
// is always taken against the event's current groups, never the patched ones.
func (a *Actor) CanMutateEvent(event *Event) bool {
	if a.IsSuperadmin() {
		return true
	}

	for _, gid := range a.Administra {
		if slices.Contains(event.OrganizingGroups, gid) {
			return true
		}
	}

	return false
}

func (a *Actor) CanMutateGroup(gid string) bool {
	return a.IsSuperadmin() || slices.Contains(a.Administra, gid)
}
