// Package month maps event windows to the "YYYY-MM" bucket ids the calendar
// is sharded by.
package month

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRange reports a caller contract violation: end before start.
var ErrInvalidRange = errors.New("month: range end is before start")

// ID returns the bucket id the given instant falls in. Always computed in
// UTC so equivalent instants under different offsets agree.
func ID(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
}

// IDs returns every bucket id the interval [start-margin, end+margin]
// touches, both ends inclusive, in chronological order. start == end yields
// exactly one id; spans across year boundaries yield one id per month.
func IDs(start, end time.Time, margin time.Duration) ([]string, error) {
	if end.Before(start) {
		return nil, ErrInvalidRange
	}

	from := start.Add(-margin).UTC()
	to := end.Add(margin).UTC()

	year, m := from.Year(), from.Month()
	toYear, toMonth := to.Year(), to.Month()

	var ids []string
	for {
		ids = append(ids, fmt.Sprintf("%04d-%02d", year, int(m)))
		if year == toYear && m == toMonth {
			break
		}
		m++
		if m > time.December {
			m = time.January
			year++
		}
	}

	return ids, nil
}
