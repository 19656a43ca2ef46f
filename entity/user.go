package entity

import "golang.org/x/exp/slices"

const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperadmin = "superadmin"
)

type User struct {
	UID   string   `bson:"_id" json:"uid"`
	FName string   `bson:"fName" json:"fName"`
	LName string   `bson:"lName" json:"lName"`
	Email string   `bson:"email" json:"email"`
	Roles []string `bson:"roles" json:"roles"`

	// Administra holds the ids of the groups this user administers.
	// Invariant: non-empty exactly when Roles contains RoleAdmin.
	Administra []string `bson:"administra,omitempty" json:"administra,omitempty"`

	Following    []string `bson:"following,omitempty" json:"following,omitempty"`
	Favorite     []string `bson:"favorite,omitempty" json:"favorite,omitempty"`
	RegisteredIn []string `bson:"registeredIn,omitempty" json:"registeredIn,omitempty"`
}

func (u *User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

// UserSummary is the denormalized subset of a User kept in the shared admins
// list document, present exactly while the user holds the admin role.
type UserSummary struct {
	UID        string   `bson:"uid" json:"uid"`
	FName      string   `bson:"fName" json:"fName"`
	LName      string   `bson:"lName" json:"lName"`
	Email      string   `bson:"email" json:"email"`
	Roles      []string `bson:"roles" json:"roles"`
	Administra []string `bson:"administra,omitempty" json:"administra,omitempty"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		UID:        u.UID,
		FName:      u.FName,
		LName:      u.LName,
		Email:      u.Email,
		Roles:      slices.Clone(u.Roles),
		Administra: slices.Clone(u.Administra),
	}
}

// AdminIndex is the shared/admins document.
type AdminIndex struct {
	ID     string                 `bson:"_id" json:"-"`
	Admins map[string]UserSummary `bson:"admins" json:"admins"`
}
