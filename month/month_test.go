package month

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIDSingleInstant(t *testing.T) {
	instant := time.Date(2024, time.March, 5, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "2024-03", ID(instant))

	ids, err := IDs(instant, instant, 0)
	assert.NoError(t, err)
	assert.Equal(t, []string{"2024-03"}, ids)
}

func TestIDsWithinOneMonth(t *testing.T) {
	start := time.Date(2024, time.March, 12, 18, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.March, 14, 20, 0, 0, 0, time.UTC)

	ids, err := IDs(start, end, 0)
	assert.NoError(t, err)
	assert.Equal(t, []string{"2024-03"}, ids)
}

func TestIDsSpansYearBoundary(t *testing.T) {
	start := time.Date(2023, time.November, 15, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.February, 10, 0, 0, 0, 0, time.UTC)

	ids, err := IDs(start, end, 0)
	assert.NoError(t, err)
	assert.Equal(t, []string{"2023-11", "2023-12", "2024-01", "2024-02"}, ids)
}

func TestIDsOffsetRepresentationIsStable(t *testing.T) {
	// 2024-03-30T23:00-06:00 .. 2024-03-31T01:00-06:00 is entirely inside
	// March in UTC; the local offset must not leak an April bucket.
	monterrey := time.FixedZone("UTC-6", -6*60*60)
	start := time.Date(2024, time.March, 30, 23, 0, 0, 0, monterrey)
	end := time.Date(2024, time.March, 31, 1, 0, 0, 0, monterrey)

	ids, err := IDs(start, end, 0)
	assert.NoError(t, err)
	assert.Equal(t, []string{"2024-03"}, ids)

	// The same instants expressed in UTC yield the same buckets.
	idsUTC, err := IDs(start.UTC(), end.UTC(), 0)
	assert.NoError(t, err)
	assert.Equal(t, ids, idsUTC)
}

func TestIDsMarginPullsInNeighbors(t *testing.T) {
	start := time.Date(2024, time.March, 2, 10, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.March, 2, 12, 0, 0, 0, time.UTC)

	ids, err := IDs(start, end, 7*24*time.Hour)
	assert.NoError(t, err)
	assert.Equal(t, []string{"2024-02", "2024-03"}, ids)

	// Away from the boundary the margin changes nothing.
	mid := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)
	ids, err = IDs(mid, mid, 7*24*time.Hour)
	assert.NoError(t, err)
	assert.Equal(t, []string{"2024-03"}, ids)
}

func TestIDsMarginAcrossYearBoundary(t *testing.T) {
	start := time.Date(2024, time.January, 3, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.January, 4, 0, 0, 0, 0, time.UTC)

	ids, err := IDs(start, end, 7*24*time.Hour)
	assert.NoError(t, err)
	assert.Equal(t, []string{"2023-12", "2024-01"}, ids)
}

func TestIDsRejectsInvertedRange(t *testing.T) {
	start := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)

	_, err := IDs(start, end, 0)
	assert.ErrorIs(t, err, ErrInvalidRange)
}
