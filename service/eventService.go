package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/eventostec/eventostec/entity"
	"github.com/eventostec/eventostec/month"
	"github.com/eventostec/eventostec/store"
	"github.com/nats-io/nuid"
	"golang.org/x/exp/slices"
)

// EventMonthMargin widens an event's window when bucketing it, so events
// adjacent to a month boundary also show up when the neighboring month is on
// screen. Calendar reads bucket with margin zero.
const EventMonthMargin = 7 * 24 * time.Hour

type EventService struct {
	store    store.Store
	calendar *CalendarService

	mu           sync.RWMutex
	eventDetails map[string]*entity.Event
}

func NewEventService(st store.Store, calendar *CalendarService) *EventService {
	return &EventService{
		store:        st,
		calendar:     calendar,
		eventDetails: map[string]*entity.Event{},
	}
}

func validateEvent(event *entity.Event) error {
	if event.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if !event.Type.IsValid() {
		return fmt.Errorf("%w: unknown event type %q", ErrInvalidInput, event.Type)
	}
	if event.Area != "" && !entity.IsValidArea(event.Area) {
		return fmt.Errorf("%w: unknown area %q", ErrInvalidInput, event.Area)
	}
	if len(event.OrganizingGroups) == 0 {
		return fmt.Errorf("%w: at least one organizing group is required", ErrInvalidInput)
	}
	if !event.Timestamp.End.After(event.Timestamp.Start) {
		return fmt.Errorf("%w: event must end after it starts", ErrInvalidInput)
	}

	return nil
}

// CreateEvent writes the event document and merges its summary into every
// month bucket the window spans, atomically. Authorization runs against the
// draft's intended groups since no prior event exists.
func (s *EventService) CreateEvent(ctx context.Context, actor entity.Actor, draft entity.Event) (*entity.Event, error) {
	for i, gid := range draft.OrganizingGroups {
		draft.OrganizingGroups[i] = entity.NormalizeGID(gid)
	}

	if err := validateEvent(&draft); err != nil {
		return nil, err
	}
	if !actor.CanMutateEvent(&draft) {
		return nil, fmt.Errorf("%w: actor administers none of the organizing groups", ErrUnauthorized)
	}

	draft.EID = nuid.Next()
	// Server-owned fields are never taken from the caller.
	draft.FavoriteOf = nil
	draft.Registered = nil

	mids, err := month.IDs(draft.Timestamp.Start, draft.Timestamp.End, EventMonthMargin)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}

	summary := draft.Summary()

	err = s.store.RunTransaction(ctx, func(tx store.Tx) error {
		if err := tx.Set(store.Events, draft.EID, draft); err != nil {
			return err
		}
		for _, mid := range mids {
			if err := tx.Merge(store.Months, mid, map[string]interface{}{
				"events." + draft.EID: summary,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.rememberEvent(&draft)
	s.calendar.Invalidate(mids...)

	return &draft, nil
}

// UpdateEvent merges the patch over the current event and reconciles the
// month buckets with the minimum number of writes: buckets no longer spanned
// lose the eid key, every currently spanned bucket gets the fresh summary,
// and when the projected summary did not change at all no bucket is touched.
func (s *EventService) UpdateEvent(ctx context.Context, actor entity.Actor, eid string, patch entity.EventPatch) (*entity.Event, error) {
	if patch.OrganizingGroups != nil {
		for i, gid := range patch.OrganizingGroups {
			patch.OrganizingGroups[i] = entity.NormalizeGID(gid)
		}
	}

	var updated entity.Event
	var invalidate []string

	err := s.store.RunTransaction(ctx, func(tx store.Tx) error {
		var current entity.Event
		if err := tx.Get(store.Events, eid, &current); err != nil {
			return err
		}

		// Authorize against the pre-patch groups: an update can neither
		// steal an event for a foreign group nor be used to join one.
		if !actor.CanMutateEvent(&current) {
			return fmt.Errorf("%w: actor administers none of the organizing groups", ErrUnauthorized)
		}

		merged := patch.Apply(current)
		merged.EID = current.EID
		if err := validateEvent(&merged); err != nil {
			return err
		}

		monthsOld, err := month.IDs(current.Timestamp.Start, current.Timestamp.End, EventMonthMargin)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidInput, err)
		}
		monthsNew, err := month.IDs(merged.Timestamp.Start, merged.Timestamp.End, EventMonthMargin)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidInput, err)
		}

		if !summariesEqual(current.Summary(), merged.Summary()) {
			summary := merged.Summary()
			for _, mid := range monthsOld {
				if !slices.Contains(monthsNew, mid) {
					if err := tx.Unset(store.Months, mid, "events."+eid); err != nil {
						return err
					}
				}
			}
			for _, mid := range monthsNew {
				if err := tx.Merge(store.Months, mid, map[string]interface{}{
					"events." + eid: summary,
				}); err != nil {
					return err
				}
			}

			invalidate = monthsOld
			for _, mid := range monthsNew {
				if !slices.Contains(invalidate, mid) {
					invalidate = append(invalidate, mid)
				}
			}
		}

		if err := tx.Set(store.Events, eid, merged); err != nil {
			return err
		}

		updated = merged
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.rememberEvent(&updated)
	s.calendar.Invalidate(invalidate...)

	return &updated, nil
}

// DeleteEvent removes the event document and its key from every bucket the
// current window spans, atomically.
func (s *EventService) DeleteEvent(ctx context.Context, actor entity.Actor, eid string) error {
	var invalidate []string

	err := s.store.RunTransaction(ctx, func(tx store.Tx) error {
		var current entity.Event
		if err := tx.Get(store.Events, eid, &current); err != nil {
			return err
		}
		if !actor.CanMutateEvent(&current) {
			return fmt.Errorf("%w: actor administers none of the organizing groups", ErrUnauthorized)
		}

		mids, err := month.IDs(current.Timestamp.Start, current.Timestamp.End, EventMonthMargin)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidInput, err)
		}

		for _, mid := range mids {
			if err := tx.Unset(store.Months, mid, "events."+eid); err != nil {
				return err
			}
		}

		invalidate = mids
		return tx.Delete(store.Events, eid)
	})
	if err != nil {
		return err
	}

	s.forgetEvent(eid)
	s.calendar.Invalidate(invalidate...)

	return nil
}

// GetEvent serves the last-fetched snapshot unless forceUpdate is set.
func (s *EventService) GetEvent(ctx context.Context, eid string, forceUpdate bool) (*entity.Event, error) {
	if !forceUpdate {
		s.mu.RLock()
		cached, ok := s.eventDetails[eid]
		s.mu.RUnlock()
		if ok {
			clone := *cached
			return &clone, nil
		}
	}

	var event entity.Event
	if err := s.store.Get(ctx, store.Events, eid, &event); err != nil {
		return nil, err
	}

	s.rememberEvent(&event)

	clone := event
	return &clone, nil
}

// ToggleFavorite flips the actor's favorite mark on the event, mirroring the
// event's favoriteOf set and the user's favorite set in one transaction.
// Returns whether the event is favorited after the call.
func (s *EventService) ToggleFavorite(ctx context.Context, actor entity.Actor, eid string) (bool, error) {
	if !actor.IsAuthenticated() {
		return false, fmt.Errorf("%w: authentication required", ErrUnauthorized)
	}

	var favorite bool
	var snapshot entity.Event

	err := s.store.RunTransaction(ctx, func(tx store.Tx) error {
		var event entity.Event
		if err := tx.Get(store.Events, eid, &event); err != nil {
			return err
		}
		var user entity.User
		if err := tx.Get(store.Users, actor.UID, &user); err != nil {
			return err
		}

		if slices.Contains(event.FavoriteOf, actor.UID) {
			event.FavoriteOf = removeString(event.FavoriteOf, actor.UID)
			user.Favorite = removeString(user.Favorite, eid)
			favorite = false
		} else {
			event.FavoriteOf = append(event.FavoriteOf, actor.UID)
			user.Favorite = append(user.Favorite, eid)
			favorite = true
		}

		if err := tx.Merge(store.Events, eid, map[string]interface{}{
			"favoriteOf": event.FavoriteOf,
		}); err != nil {
			return err
		}
		if err := tx.Merge(store.Users, actor.UID, map[string]interface{}{
			"favorite": user.Favorite,
		}); err != nil {
			return err
		}

		snapshot = event
		return nil
	})
	if err != nil {
		return false, err
	}

	s.rememberEvent(&snapshot)
	return favorite, nil
}

// ToggleRegistration flips the actor's registration on the event. The event
// side keeps a snapshot of the user (name, email, time) taken inside the same
// transaction; the user side mirrors the eid in registeredIn.
func (s *EventService) ToggleRegistration(ctx context.Context, actor entity.Actor, eid string) (bool, error) {
	if !actor.IsAuthenticated() {
		return false, fmt.Errorf("%w: authentication required", ErrUnauthorized)
	}

	var registered bool
	var snapshot entity.Event

	err := s.store.RunTransaction(ctx, func(tx store.Tx) error {
		var event entity.Event
		if err := tx.Get(store.Events, eid, &event); err != nil {
			return err
		}
		var user entity.User
		if err := tx.Get(store.Users, actor.UID, &user); err != nil {
			return err
		}

		if _, ok := event.Registered[actor.UID]; ok {
			delete(event.Registered, actor.UID)
			user.RegisteredIn = removeString(user.RegisteredIn, eid)
			registered = false

			if err := tx.Unset(store.Events, eid, "registered."+actor.UID); err != nil {
				return err
			}
		} else {
			reg := entity.Registration{
				UID:          user.UID,
				Name:         fmt.Sprintf("%s %s", user.FName, user.LName),
				Email:        user.Email,
				RegisteredAt: time.Now().UTC(),
			}
			if event.Registered == nil {
				event.Registered = map[string]entity.Registration{}
			}
			event.Registered[actor.UID] = reg
			user.RegisteredIn = append(user.RegisteredIn, eid)
			registered = true

			if err := tx.Merge(store.Events, eid, map[string]interface{}{
				"registered." + actor.UID: reg,
			}); err != nil {
				return err
			}
		}

		if err := tx.Merge(store.Users, actor.UID, map[string]interface{}{
			"registeredIn": user.RegisteredIn,
		}); err != nil {
			return err
		}

		snapshot = event
		return nil
	})
	if err != nil {
		return false, err
	}

	s.rememberEvent(&snapshot)
	return registered, nil
}

func (s *EventService) rememberEvent(event *entity.Event) {
	clone := *event
	s.mu.Lock()
	s.eventDetails[event.EID] = &clone
	s.mu.Unlock()
}

func (s *EventService) forgetEvent(eid string) {
	s.mu.Lock()
	delete(s.eventDetails, eid)
	s.mu.Unlock()
}

func summariesEqual(a, b entity.EventSummary) bool {
	return a.EID == b.EID &&
		a.Title == b.Title &&
		a.Type == b.Type &&
		a.Area == b.Area &&
		slices.Equal(a.OrganizingGroups, b.OrganizingGroups) &&
		a.Timestamp.Start.Equal(b.Timestamp.Start) &&
		a.Timestamp.End.Equal(b.Timestamp.End)
}

func removeString(list []string, value string) []string {
	result := make([]string, 0, len(list))
	for _, item := range list {
		if item != value {
			result = append(result, item)
		}
	}

	return result
}
