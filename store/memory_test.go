package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type testDoc struct {
	ID     string            `bson:"_id"`
	Name   string            `bson:"name"`
	Tags   []string          `bson:"tags,omitempty"`
	Nested map[string]string `bson:"nested,omitempty"`
}

func TestMemoryStoreGetNotFound(t *testing.T) {
	s := NewMemoryStore()

	var out testDoc
	err := s.Get(context.Background(), Events, "missing", &out)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreSetGetRoundTrip(t *testing.T) {
	s := NewMemoryStore()

	doc := testDoc{ID: "d1", Name: "hola", Tags: []string{"a", "b"}}
	err := s.RunTransaction(context.Background(), func(tx Tx) error {
		return tx.Set(Events, "d1", doc)
	})
	assert.NoError(t, err)

	var out testDoc
	err = s.Get(context.Background(), Events, "d1", &out)
	assert.NoError(t, err)
	assert.Equal(t, doc, out)
}

func TestMemoryStoreMergeDottedPaths(t *testing.T) {
	s := NewMemoryStore()

	err := s.RunTransaction(context.Background(), func(tx Tx) error {
		return tx.Merge(Months, "2024-03", map[string]interface{}{
			"events.E1": map[string]string{"title": "Foro"},
			"events.E2": map[string]string{"title": "Taller"},
		})
	})
	assert.NoError(t, err)

	var out struct {
		Events map[string]map[string]string `bson:"events"`
	}
	err = s.Get(context.Background(), Months, "2024-03", &out)
	assert.NoError(t, err)
	assert.Len(t, out.Events, 2)
	assert.Equal(t, "Foro", out.Events["E1"]["title"])

	// Merging again only touches the named path.
	err = s.RunTransaction(context.Background(), func(tx Tx) error {
		return tx.Merge(Months, "2024-03", map[string]interface{}{
			"events.E1": map[string]string{"title": "Foro 2024"},
		})
	})
	assert.NoError(t, err)

	err = s.Get(context.Background(), Months, "2024-03", &out)
	assert.NoError(t, err)
	assert.Equal(t, "Foro 2024", out.Events["E1"]["title"])
	assert.Equal(t, "Taller", out.Events["E2"]["title"])
}

func TestMemoryStoreUnsetDottedPaths(t *testing.T) {
	s := NewMemoryStore()

	err := s.Seed(Months, "2024-03", map[string]interface{}{
		"_id": "2024-03",
		"events": map[string]interface{}{
			"E1": map[string]string{"title": "Foro"},
			"E2": map[string]string{"title": "Taller"},
		},
	})
	assert.NoError(t, err)

	err = s.RunTransaction(context.Background(), func(tx Tx) error {
		return tx.Unset(Months, "2024-03", "events.E1")
	})
	assert.NoError(t, err)

	var out struct {
		Events map[string]map[string]string `bson:"events"`
	}
	err = s.Get(context.Background(), Months, "2024-03", &out)
	assert.NoError(t, err)
	assert.NotContains(t, out.Events, "E1")
	assert.Contains(t, out.Events, "E2")

	// Unsetting on a document that does not exist is a no-op, not an error.
	err = s.RunTransaction(context.Background(), func(tx Tx) error {
		return tx.Unset(Months, "2099-01", "events.E9")
	})
	assert.NoError(t, err)

	err = s.Get(context.Background(), Months, "2099-01", &struct{}{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreReadYourWrites(t *testing.T) {
	s := NewMemoryStore()

	err := s.RunTransaction(context.Background(), func(tx Tx) error {
		if err := tx.Set(Users, "u1", testDoc{ID: "u1", Name: "before"}); err != nil {
			return err
		}
		if err := tx.Merge(Users, "u1", map[string]interface{}{"name": "after"}); err != nil {
			return err
		}

		var inside testDoc
		if err := tx.Get(Users, "u1", &inside); err != nil {
			return err
		}
		assert.Equal(t, "after", inside.Name)

		return nil
	})
	assert.NoError(t, err)
}

func TestMemoryStoreDeleteVisibleInTransaction(t *testing.T) {
	s := NewMemoryStore()
	assert.NoError(t, s.Seed(Users, "u1", testDoc{ID: "u1", Name: "gone soon"}))

	err := s.RunTransaction(context.Background(), func(tx Tx) error {
		if err := tx.Delete(Users, "u1"); err != nil {
			return err
		}

		var inside testDoc
		return tx.Get(Users, "u1", &inside)
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreAbortDiscardsWrites(t *testing.T) {
	s := NewMemoryStore()
	assert.NoError(t, s.Seed(Users, "u1", testDoc{ID: "u1", Name: "original"}))

	boom := assert.AnError
	attempts := 0
	err := s.RunTransaction(context.Background(), func(tx Tx) error {
		attempts++
		if err := tx.Set(Users, "u1", testDoc{ID: "u1", Name: "clobbered"}); err != nil {
			return err
		}
		if err := tx.Set(Users, "u2", testDoc{ID: "u2", Name: "new"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, attempts, "a failing transaction function must not be retried")

	var out testDoc
	assert.NoError(t, s.Get(context.Background(), Users, "u1", &out))
	assert.Equal(t, "original", out.Name)

	err = s.Get(context.Background(), Users, "u2", &out)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreConflictRetriesWithFreshReads(t *testing.T) {
	s := NewMemoryStore()
	assert.NoError(t, s.Seed(Users, "u1", testDoc{ID: "u1", Name: "v1"}))

	attempts := 0
	err := s.RunTransaction(context.Background(), func(tx Tx) error {
		attempts++

		var current testDoc
		if err := tx.Get(Users, "u1", &current); err != nil {
			return err
		}

		if attempts == 1 {
			// A concurrent writer lands after our read; the commit must
			// fail and the retry must observe the new state.
			assert.Equal(t, "v1", current.Name)
			assert.NoError(t, s.Seed(Users, "u1", testDoc{ID: "u1", Name: "v2"}))
		} else {
			assert.Equal(t, "v2", current.Name)
		}

		return tx.Merge(Users, "u1", map[string]interface{}{"name": current.Name + "+tx"})
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, attempts)

	var out testDoc
	assert.NoError(t, s.Get(context.Background(), Users, "u1", &out))
	assert.Equal(t, "v2+tx", out.Name)
}

func TestMemoryStoreConflictBudgetExhausted(t *testing.T) {
	s := NewMemoryStore()
	assert.NoError(t, s.Seed(Users, "u1", testDoc{ID: "u1", Name: "hot"}))

	attempts := 0
	err := s.RunTransaction(context.Background(), func(tx Tx) error {
		attempts++

		var current testDoc
		if err := tx.Get(Users, "u1", &current); err != nil {
			return err
		}

		// Invalidate every attempt.
		assert.NoError(t, s.Seed(Users, "u1", testDoc{ID: "u1", Name: "hot"}))

		return tx.Merge(Users, "u1", map[string]interface{}{"name": "never lands"})
	})
	assert.ErrorIs(t, err, ErrTooManyConflicts)
	assert.Equal(t, memoryTxAttempts, attempts)

	var out testDoc
	assert.NoError(t, s.Get(context.Background(), Users, "u1", &out))
	assert.Equal(t, "hot", out.Name)
}

func TestMemoryStoreWriteCountPerCommit(t *testing.T) {
	s := NewMemoryStore()

	err := s.RunTransaction(context.Background(), func(tx Tx) error {
		if err := tx.Set(Events, "e1", testDoc{ID: "e1"}); err != nil {
			return err
		}
		return tx.Merge(Months, "2024-03", map[string]interface{}{"events.e1": "x"})
	})
	assert.NoError(t, err)

	assert.Equal(t, 1, s.WriteCount(Events, "e1"))
	assert.Equal(t, 1, s.WriteCount(Months, "2024-03"))
	assert.Equal(t, 0, s.WriteCount(Months, "2024-04"))
}
