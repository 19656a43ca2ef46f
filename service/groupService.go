package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/eventostec/eventostec/entity"
	"github.com/eventostec/eventostec/store"
	"github.com/hbollon/go-edlib"
	"golang.org/x/exp/slices"
)

type GroupService struct {
	store store.Store

	mu           sync.RWMutex
	groupDetails map[string]*entity.Group
	groupsList   map[string]entity.GroupSummary
}

func NewGroupService(st store.Store) *GroupService {
	return &GroupService{
		store:        st,
		groupDetails: map[string]*entity.Group{},
	}
}

// CreateGroup registers a new group under its normalized gid and inserts its
// summary into the shared groups index, atomically. The admins array starts
// empty: admins are only assigned through UpdateAdmins so role flags and the
// shared admin index move together.
func (s *GroupService) CreateGroup(ctx context.Context, actor entity.Actor, group entity.Group) (*entity.Group, error) {
	if !actor.IsSuperadmin() {
		return nil, fmt.Errorf("%w: superadmin required", ErrUnauthorized)
	}

	group.GID = entity.NormalizeGID(group.GID)
	if group.GID == "" {
		return nil, fmt.Errorf("%w: gid is required", ErrInvalidInput)
	}
	if group.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	group.Admins = []string{}
	group.FollowedBy = nil

	err := s.store.RunTransaction(ctx, func(tx store.Tx) error {
		var existing entity.Group
		err := tx.Get(store.Groups, group.GID, &existing)
		if err == nil {
			return fmt.Errorf("%w: group %s", ErrAlreadyExists, group.GID)
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		if err := tx.Set(store.Groups, group.GID, group); err != nil {
			return err
		}
		return tx.Merge(store.Shared, store.SharedGroups, map[string]interface{}{
			"groups." + group.GID: group.Summary(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.rememberGroup(&group)
	return &group, nil
}

// UpdateGroup patches group metadata and keeps the shared index summary in
// sync. Admin changes go through UpdateAdmins.
func (s *GroupService) UpdateGroup(ctx context.Context, actor entity.Actor, gid string, patch entity.GroupPatch) (*entity.Group, error) {
	gid = entity.NormalizeGID(gid)
	if !actor.CanMutateGroup(gid) {
		return nil, fmt.Errorf("%w: admin of %s or superadmin required", ErrUnauthorized, gid)
	}

	var updated entity.Group
	err := s.store.RunTransaction(ctx, func(tx store.Tx) error {
		var current entity.Group
		if err := tx.Get(store.Groups, gid, &current); err != nil {
			return err
		}

		merged := patch.Apply(current)
		merged.GID = current.GID
		if merged.Name == "" {
			return fmt.Errorf("%w: name is required", ErrInvalidInput)
		}

		if err := tx.Set(store.Groups, gid, merged); err != nil {
			return err
		}
		if err := tx.Merge(store.Shared, store.SharedGroups, map[string]interface{}{
			"groups." + gid: merged.Summary(),
		}); err != nil {
			return err
		}

		updated = merged
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.rememberGroup(&updated)
	return &updated, nil
}

// DeleteGroup removes the group document and its shared index entry and
// demotes every remaining admin: the gid leaves their administra set, and
// whoever administered nothing else loses the admin role and their entry in
// the shared admin index, all in one transaction.
//
// TODO: reassign or delete events whose only organizing group was deleted;
// they currently keep a dangling gid until an admin edits them.
func (s *GroupService) DeleteGroup(ctx context.Context, actor entity.Actor, gid string) error {
	if !actor.IsSuperadmin() {
		return fmt.Errorf("%w: superadmin required", ErrUnauthorized)
	}
	gid = entity.NormalizeGID(gid)

	err := s.store.RunTransaction(ctx, func(tx store.Tx) error {
		var group entity.Group
		if err := tx.Get(store.Groups, gid, &group); err != nil {
			return err
		}

		for _, uid := range group.Admins {
			var user entity.User
			if err := tx.Get(store.Users, uid, &user); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				return err
			}

			if err := demoteAdmin(tx, &user, gid); err != nil {
				return err
			}
		}

		if err := tx.Unset(store.Shared, store.SharedGroups, "groups."+gid); err != nil {
			return err
		}
		return tx.Delete(store.Groups, gid)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.groupDetails, gid)
	if s.groupsList != nil {
		delete(s.groupsList, gid)
	}
	s.mu.Unlock()

	return nil
}

// UpdateAdmins applies the requested admin removals and additions with the
// minimum set of writes: removals not currently admins (or re-added in the
// same call) and additions already present are dropped before any user
// document is read. Every affected user's role flag and shared admin index
// entry move in the same transaction as the group's admins array.
func (s *GroupService) UpdateAdmins(ctx context.Context, actor entity.Actor, gid string, removeAdmins, addAdmins []string) error {
	gid = entity.NormalizeGID(gid)
	if !actor.CanMutateGroup(gid) {
		return fmt.Errorf("%w: admin of %s or superadmin required", ErrUnauthorized, gid)
	}

	err := s.store.RunTransaction(ctx, func(tx store.Tx) error {
		var group entity.Group
		if err := tx.Get(store.Groups, gid, &group); err != nil {
			return err
		}

		var effectiveRemove []string
		for _, uid := range removeAdmins {
			if slices.Contains(group.Admins, uid) &&
				!slices.Contains(addAdmins, uid) &&
				!slices.Contains(effectiveRemove, uid) {
				effectiveRemove = append(effectiveRemove, uid)
			}
		}
		var effectiveAdd []string
		for _, uid := range addAdmins {
			if !slices.Contains(group.Admins, uid) && !slices.Contains(effectiveAdd, uid) {
				effectiveAdd = append(effectiveAdd, uid)
			}
		}

		newAdmins := make([]string, 0, len(group.Admins)+len(effectiveAdd))
		for _, uid := range group.Admins {
			if !slices.Contains(effectiveRemove, uid) {
				newAdmins = append(newAdmins, uid)
			}
		}
		newAdmins = append(newAdmins, effectiveAdd...)

		for _, uid := range effectiveRemove {
			var user entity.User
			if err := tx.Get(store.Users, uid, &user); err != nil {
				return err
			}
			if err := demoteAdmin(tx, &user, gid); err != nil {
				return err
			}
		}

		for _, uid := range effectiveAdd {
			var user entity.User
			if err := tx.Get(store.Users, uid, &user); err != nil {
				return err
			}
			if err := promoteAdmin(tx, &user, gid); err != nil {
				return err
			}
		}

		if len(effectiveRemove) == 0 && len(effectiveAdd) == 0 {
			return nil
		}
		return tx.Merge(store.Groups, gid, map[string]interface{}{
			"admins": newAdmins,
		})
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.groupDetails, gid)
	s.mu.Unlock()

	return nil
}

// demoteAdmin takes gid out of the user's administra set. When that was
// their last administered group the admin role goes with it, together with
// their entry in the shared admin index.
func demoteAdmin(tx store.Tx, user *entity.User, gid string) error {
	administra := removeString(user.Administra, gid)

	if len(administra) == 0 {
		roles := removeString(user.Roles, entity.RoleAdmin)
		if err := tx.Merge(store.Users, user.UID, map[string]interface{}{
			"administra": administra,
			"roles":      roles,
		}); err != nil {
			return err
		}
		return tx.Unset(store.Shared, store.SharedAdmins, "admins."+user.UID)
	}

	if err := tx.Merge(store.Users, user.UID, map[string]interface{}{
		"administra": administra,
	}); err != nil {
		return err
	}
	return tx.Merge(store.Shared, store.SharedAdmins, map[string]interface{}{
		"admins." + user.UID + ".administra": administra,
	})
}

// promoteAdmin mirrors demoteAdmin: the first administered group grants the
// admin role and inserts the full summary into the shared admin index.
func promoteAdmin(tx store.Tx, user *entity.User, gid string) error {
	first := len(user.Administra) == 0
	user.Administra = append(slices.Clone(user.Administra), gid)

	if first {
		if !user.HasRole(entity.RoleAdmin) {
			user.Roles = append(slices.Clone(user.Roles), entity.RoleAdmin)
		}
		if err := tx.Merge(store.Users, user.UID, map[string]interface{}{
			"administra": user.Administra,
			"roles":      user.Roles,
		}); err != nil {
			return err
		}
		return tx.Merge(store.Shared, store.SharedAdmins, map[string]interface{}{
			"admins." + user.UID: user.Summary(),
		})
	}

	if err := tx.Merge(store.Users, user.UID, map[string]interface{}{
		"administra": user.Administra,
	}); err != nil {
		return err
	}
	return tx.Merge(store.Shared, store.SharedAdmins, map[string]interface{}{
		"admins." + user.UID + ".administra": user.Administra,
	})
}

// GetGroup serves the last-fetched snapshot unless forceUpdate is set.
func (s *GroupService) GetGroup(ctx context.Context, actor entity.Actor, gid string, forceUpdate bool) (*entity.Group, error) {
	gid = entity.NormalizeGID(gid)
	if !actor.CanMutateGroup(gid) {
		return nil, fmt.Errorf("%w: admin of %s or superadmin required", ErrUnauthorized, gid)
	}

	if !forceUpdate {
		s.mu.RLock()
		cached, ok := s.groupDetails[gid]
		s.mu.RUnlock()
		if ok {
			clone := *cached
			return &clone, nil
		}
	}

	var group entity.Group
	if err := s.store.Get(ctx, store.Groups, gid, &group); err != nil {
		return nil, err
	}

	s.rememberGroup(&group)

	clone := group
	return &clone, nil
}

// GroupsList returns the shared groups index, fetched at most once per
// session unless forceUpdate is set.
func (s *GroupService) GroupsList(ctx context.Context, actor entity.Actor, forceUpdate bool) (map[string]entity.GroupSummary, error) {
	if !actor.IsSuperadmin() {
		return nil, fmt.Errorf("%w: superadmin required", ErrUnauthorized)
	}

	if !forceUpdate {
		s.mu.RLock()
		cached := s.groupsList
		s.mu.RUnlock()
		if cached != nil {
			return cloneSummaries(cached), nil
		}
	}

	var index entity.GroupIndex
	err := s.store.Get(ctx, store.Shared, store.SharedGroups, &index)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if index.Groups == nil {
		index.Groups = map[string]entity.GroupSummary{}
	}

	s.mu.Lock()
	s.groupsList = index.Groups
	s.mu.Unlock()

	return cloneSummaries(index.Groups), nil
}

// SearchGroups ranks the groups index against the query by Levenshtein
// similarity of the name (substring hits count as exact).
func (s *GroupService) SearchGroups(ctx context.Context, actor entity.Actor, query string) ([]entity.GroupSummary, error) {
	list, err := s.GroupsList(ctx, actor, false)
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidInput)
	}

	type ranked struct {
		summary    entity.GroupSummary
		similarity float32
	}

	var matches []ranked
	for _, summary := range list {
		name := strings.ToLower(summary.Name)

		var similarity float32
		if strings.Contains(name, query) || strings.Contains(strings.ToLower(summary.GID), query) {
			similarity = 1
		} else {
			similarity, err = edlib.StringsSimilarity(query, name, edlib.Levenshtein)
			if err != nil {
				continue
			}
		}

		if similarity > 0.4 {
			matches = append(matches, ranked{summary: summary, similarity: similarity})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].similarity != matches[j].similarity {
			return matches[i].similarity > matches[j].similarity
		}
		return matches[i].summary.GID < matches[j].summary.GID
	})

	result := make([]entity.GroupSummary, len(matches))
	for i, match := range matches {
		result[i] = match.summary
	}

	return result, nil
}

func (s *GroupService) rememberGroup(group *entity.Group) {
	clone := *group
	s.mu.Lock()
	s.groupDetails[group.GID] = &clone
	if s.groupsList != nil {
		s.groupsList[group.GID] = group.Summary()
	}
	s.mu.Unlock()
}

func cloneSummaries(in map[string]entity.GroupSummary) map[string]entity.GroupSummary {
	out := make(map[string]entity.GroupSummary, len(in))
	for gid, summary := range in {
		out[gid] = summary
	}

	return out
}
