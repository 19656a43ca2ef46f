package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/eventostec/eventostec/entity"
	"github.com/eventostec/eventostec/store"
	"golang.org/x/exp/slices"
)

type UserService struct {
	store store.Store

	mu          sync.RWMutex
	userDetails map[string]*entity.User
	adminsList  map[string]entity.UserSummary
}

func NewUserService(st store.Store) *UserService {
	return &UserService{
		store:       st,
		userDetails: map[string]*entity.User{},
	}
}

// FindOrCreate materializes the user document on first sign-in. The identity
// fields come from the upstream auth provider; new users start with the plain
// user role.
func (s *UserService) FindOrCreate(ctx context.Context, uid, fName, lName, email string) (*entity.User, error) {
	var user entity.User
	err := s.store.Get(ctx, store.Users, uid, &user)
	if err == nil {
		s.rememberUser(&user)
		clone := user
		return &clone, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	created := entity.User{
		UID:   uid,
		FName: fName,
		LName: lName,
		Email: email,
		Roles: []string{entity.RoleUser},
	}

	err = s.store.RunTransaction(ctx, func(tx store.Tx) error {
		var existing entity.User
		err := tx.Get(store.Users, uid, &existing)
		if err == nil {
			// Concurrent first sign-in won the race.
			created = existing
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		return tx.Set(store.Users, uid, created)
	})
	if err != nil {
		return nil, err
	}

	s.rememberUser(&created)
	clone := created
	return &clone, nil
}

// GetUser serves the last-fetched snapshot unless forceUpdate is set.
func (s *UserService) GetUser(ctx context.Context, actor entity.Actor, uid string, forceUpdate bool) (*entity.User, error) {
	if !actor.IsSuperadmin() {
		return nil, fmt.Errorf("%w: superadmin required", ErrUnauthorized)
	}

	if !forceUpdate {
		s.mu.RLock()
		cached, ok := s.userDetails[uid]
		s.mu.RUnlock()
		if ok {
			clone := *cached
			return &clone, nil
		}
	}

	var user entity.User
	if err := s.store.Get(ctx, store.Users, uid, &user); err != nil {
		return nil, err
	}

	s.rememberUser(&user)

	clone := user
	return &clone, nil
}

// AdminList returns the shared admins index, fetched at most once per
// session unless forceUpdate is set.
func (s *UserService) AdminList(ctx context.Context, actor entity.Actor, forceUpdate bool) (map[string]entity.UserSummary, error) {
	if !actor.IsSuperadmin() {
		return nil, fmt.Errorf("%w: superadmin required", ErrUnauthorized)
	}

	if !forceUpdate {
		s.mu.RLock()
		cached := s.adminsList
		s.mu.RUnlock()
		if cached != nil {
			return cloneUserSummaries(cached), nil
		}
	}

	var index entity.AdminIndex
	err := s.store.Get(ctx, store.Shared, store.SharedAdmins, &index)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if index.Admins == nil {
		index.Admins = map[string]entity.UserSummary{}
	}

	s.mu.Lock()
	s.adminsList = index.Admins
	s.mu.Unlock()

	return cloneUserSummaries(index.Admins), nil
}

// UpdateRoles removes then adds the given roles on the user and mirrors the
// admin flag into the shared admins index in the same transaction.
//
// The admin role itself cannot be granted here: it exists exactly while the
// user administers at least one group, so it is only acquired through
// GroupService.UpdateAdmins. Revoking it here cascades: the user leaves the
// admins array of every group they administered, administra is cleared and
// the index entry removed, atomically.
func (s *UserService) UpdateRoles(ctx context.Context, actor entity.Actor, uid string, removeRoles, addRoles []string) (*entity.User, error) {
	if !actor.IsSuperadmin() {
		return nil, fmt.Errorf("%w: superadmin required", ErrUnauthorized)
	}
	if slices.Contains(addRoles, entity.RoleAdmin) {
		return nil, fmt.Errorf("%w: the admin role is granted by assigning a group, not directly", ErrInvalidInput)
	}

	var updated entity.User

	err := s.store.RunTransaction(ctx, func(tx store.Tx) error {
		var user entity.User
		if err := tx.Get(store.Users, uid, &user); err != nil {
			return err
		}

		newRoles := make([]string, 0, len(user.Roles)+len(addRoles))
		for _, role := range user.Roles {
			if !slices.Contains(removeRoles, role) {
				newRoles = append(newRoles, role)
			}
		}
		for _, role := range addRoles {
			if !slices.Contains(newRoles, role) {
				newRoles = append(newRoles, role)
			}
		}

		adminBefore := user.HasRole(entity.RoleAdmin)
		adminAfter := slices.Contains(newRoles, entity.RoleAdmin)

		fields := map[string]interface{}{"roles": newRoles}

		switch {
		case adminBefore && !adminAfter:
			for _, gid := range user.Administra {
				var group entity.Group
				err := tx.Get(store.Groups, gid, &group)
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				if err != nil {
					return err
				}
				if err := tx.Merge(store.Groups, gid, map[string]interface{}{
					"admins": removeString(group.Admins, uid),
				}); err != nil {
					return err
				}
			}

			fields["administra"] = []string{}
			if err := tx.Unset(store.Shared, store.SharedAdmins, "admins."+uid); err != nil {
				return err
			}

		case adminAfter:
			// Keep the index's role set current while the entry exists.
			if err := tx.Merge(store.Shared, store.SharedAdmins, map[string]interface{}{
				"admins." + uid + ".roles": newRoles,
			}); err != nil {
				return err
			}
		}

		if err := tx.Merge(store.Users, uid, fields); err != nil {
			return err
		}

		updated = user
		updated.Roles = newRoles
		if adminBefore && !adminAfter {
			updated.Administra = nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.rememberUser(&updated)

	s.mu.Lock()
	if s.adminsList != nil {
		if updated.HasRole(entity.RoleAdmin) {
			s.adminsList[uid] = updated.Summary()
		} else {
			delete(s.adminsList, uid)
		}
	}
	s.mu.Unlock()

	clone := updated
	return &clone, nil
}

func (s *UserService) rememberUser(user *entity.User) {
	clone := *user
	s.mu.Lock()
	s.userDetails[user.UID] = &clone
	s.mu.Unlock()
}

func cloneUserSummaries(in map[string]entity.UserSummary) map[string]entity.UserSummary {
	out := make(map[string]entity.UserSummary, len(in))
	for uid, summary := range in {
		out[uid] = summary
	}

	return out
}
