package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/eventostec/eventostec/entity"
	"github.com/eventostec/eventostec/month"
	"github.com/eventostec/eventostec/store"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"
)

// CalendarFilter narrows a range query by area and event type. Filtering
// happens on the already-fetched buckets, never at the store.
type CalendarFilter struct {
	Areas []string
	Types []entity.EventType
}

func (f *CalendarFilter) matches(summary *entity.EventSummary) bool {
	if f == nil {
		return true
	}
	if len(f.Areas) > 0 && !slices.Contains(f.Areas, summary.Area) {
		return false
	}
	if len(f.Types) > 0 && !slices.Contains(f.Types, summary.Type) {
		return false
	}

	return true
}

// CalendarService is the read side of the calendar: month buckets fetched at
// most once and kept for the life of the process, dropped when a mutation
// touches them or the client asks for a refresh. Staleness here is cosmetic,
// the write path never reads through this cache.
type CalendarService struct {
	store store.Store

	mu     sync.RWMutex
	months map[string]map[string]entity.EventSummary
}

func NewCalendarService(st store.Store) *CalendarService {
	return &CalendarService{
		store:  st,
		months: map[string]map[string]entity.EventSummary{},
	}
}

// GetEvents returns the summaries of every event whose bucket set intersects
// [start, end], filtered and sorted by start time. Missing buckets are
// fetched concurrently; absent bucket documents count as empty months.
func (s *CalendarService) GetEvents(ctx context.Context, start, end time.Time, filter *CalendarFilter) ([]entity.EventSummary, error) {
	mids, err := month.IDs(start, end, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}

	buckets := make(map[string]map[string]entity.EventSummary, len(mids))

	s.mu.RLock()
	var missing []string
	for _, mid := range mids {
		if bucket, ok := s.months[mid]; ok {
			buckets[mid] = bucket
		} else {
			missing = append(missing, mid)
		}
	}
	s.mu.RUnlock()

	if len(missing) > 0 {
		fetched := make([]map[string]entity.EventSummary, len(missing))

		group, groupCtx := errgroup.WithContext(ctx)
		for i, mid := range missing {
			i, mid := i, mid
			group.Go(func() error {
				var bucket entity.MonthBucket
				err := s.store.Get(groupCtx, store.Months, mid, &bucket)
				if errors.Is(err, store.ErrNotFound) {
					fetched[i] = map[string]entity.EventSummary{}
					return nil
				}
				if err != nil {
					return err
				}

				if bucket.Events == nil {
					bucket.Events = map[string]entity.EventSummary{}
				}
				fetched[i] = bucket.Events
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return nil, err
		}

		s.mu.Lock()
		for i, mid := range missing {
			s.months[mid] = fetched[i]
			buckets[mid] = fetched[i]
		}
		s.mu.Unlock()
	}

	// An event near a month boundary sits in adjacent buckets too, so the
	// same eid may appear more than once across the requested months.
	seen := map[string]bool{}
	var result []entity.EventSummary
	for _, mid := range mids {
		for eid, summary := range buckets[mid] {
			if seen[eid] || !filter.matches(&summary) {
				continue
			}
			seen[eid] = true
			result = append(result, summary)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Timestamp.Start.Equal(result[j].Timestamp.Start) {
			return result[i].Timestamp.Start.Before(result[j].Timestamp.Start)
		}
		return result[i].EID < result[j].EID
	})

	return result, nil
}

// Invalidate drops the given month buckets from the cache.
func (s *CalendarService) Invalidate(mids ...string) {
	if len(mids) == 0 {
		return
	}

	s.mu.Lock()
	for _, mid := range mids {
		delete(s.months, mid)
	}
	s.mu.Unlock()
}

// Refresh drops the whole cache.
func (s *CalendarService) Refresh() {
	s.mu.Lock()
	s.months = map[string]map[string]entity.EventSummary{}
	s.mu.Unlock()
}
