// Package store is the document-store surface the services run on: plain
// gets plus a transaction primitive with read-your-writes semantics. Writes
// inside a transaction are expressed as whole-document sets or dotted-path
// set/unset patches, so the engine is not tied to any one store's array or
// merge primitives.
package store

import (
	"context"
	"errors"
)

// Collection names. Shared single-document indexes live in the Shared
// collection under the SharedGroups and SharedAdmins ids.
const (
	Events = "events"
	Months = "months"
	Groups = "groups"
	Users  = "users"
	Shared = "shared"

	SharedGroups = "groups"
	SharedAdmins = "admins"
)

var (
	ErrNotFound         = errors.New("store: document not found")
	ErrTooManyConflicts = errors.New("store: transaction conflict retry budget exhausted")
)

type Store interface {
	// Get decodes the document at collection/id into out, or ErrNotFound.
	Get(ctx context.Context, collection, id string, out interface{}) error

	// RunTransaction executes fn atomically: either every write staged
	// through the Tx lands or none do. Reads inside fn observe the
	// transaction's own writes. Write conflicts with concurrent
	// transactions are retried with fresh reads until the underlying
	// retry budget runs out, then surface as ErrTooManyConflicts. Any
	// error returned by fn aborts without retrying.
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error
}

type Tx interface {
	Get(collection, id string, out interface{}) error

	// Set replaces (or creates) the whole document.
	Set(collection, id string, doc interface{}) error

	// Merge upserts individual fields; keys may be dotted paths into
	// nested documents ("events.<eid>").
	Merge(collection, id string, fields map[string]interface{}) error

	// Unset removes individual (possibly dotted) fields. Unsetting on an
	// absent document is a no-op.
	Unset(collection, id string, fields ...string) error

	Delete(collection, id string) error
}
