package store

import (
	"context"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
)

// memoryTxAttempts bounds the optimistic retry loop; exhausting it surfaces
// ErrTooManyConflicts, mirroring a real store giving up on a hot document.
const memoryTxAttempts = 5

// MemoryStore is an in-process Store with the same transaction semantics as
// the Mongo implementation: snapshot reads, read-your-writes inside the
// transaction function, optimistic commit with retries on conflict. Documents
// round-trip through BSON so tag handling matches production. It backs the
// service tests and works as a throwaway local-dev backend.
type MemoryStore struct {
	mu       sync.Mutex
	docs     map[string]map[string]bson.M
	versions map[string]int64
	reads    map[string]int
	writes   map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:     map[string]map[string]bson.M{},
		versions: map[string]int64{},
		reads:    map[string]int{},
		writes:   map[string]int{},
	}
}

func docKey(collection, id string) string {
	return collection + "/" + id
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string, out interface{}) error {
	s.mu.Lock()
	s.reads[docKey(collection, id)]++
	doc, ok := s.docs[collection][id]
	var clone bson.M
	if ok {
		clone = cloneDoc(doc)
	}
	s.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	return decodeDoc(clone, out)
}

func (s *MemoryStore) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	for attempt := 0; attempt < memoryTxAttempts; attempt++ {
		tx := &memoryTx{
			store:   s,
			touched: map[string]int64{},
			overlay: map[string]bson.M{},
			removed: map[string]bool{},
		}

		if err := fn(tx); err != nil {
			// The transaction logic failed; nothing was written and
			// retrying would not help.
			return err
		}

		if s.commit(tx) {
			return nil
		}
	}

	return ErrTooManyConflicts
}

// Seed writes a document directly, outside any transaction. Meant for test
// fixtures and local-dev bootstrapping.
func (s *MemoryStore) Seed(collection, id string, doc interface{}) error {
	converted, err := toDoc(doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.docs[collection] == nil {
		s.docs[collection] = map[string]bson.M{}
	}
	s.docs[collection][id] = converted
	s.versions[docKey(collection, id)]++

	return nil
}

// ReadCount and WriteCount report how often a document was fetched and
// committed to. Tests use them to pin down cache behavior and write
// minimization.
func (s *MemoryStore) ReadCount(collection, id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads[docKey(collection, id)]
}

func (s *MemoryStore) WriteCount(collection, id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes[docKey(collection, id)]
}

type txOpKind int

const (
	opSet txOpKind = iota
	opMerge
	opUnset
	opDelete
)

type txOp struct {
	kind       txOpKind
	collection string
	id         string
	doc        bson.M
	fields     map[string]interface{}
	unset      []string
}

type memoryTx struct {
	store *MemoryStore

	// touched maps every accessed document to its committed version at
	// first touch; commit verifies none moved.
	touched map[string]int64
	overlay map[string]bson.M
	removed map[string]bool
	ops     []txOp
}

// snapshot returns the transaction's working view of a document: staged
// state when the transaction already wrote it, the committed state (version
// -recorded) otherwise.
func (tx *memoryTx) snapshot(collection, id string) (bson.M, bool) {
	key := docKey(collection, id)

	if tx.removed[key] {
		return nil, false
	}
	if doc, ok := tx.overlay[key]; ok {
		return doc, true
	}

	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()

	if _, seen := tx.touched[key]; !seen {
		tx.touched[key] = tx.store.versions[key]
	}

	doc, ok := tx.store.docs[collection][id]
	if !ok {
		return nil, false
	}
	return cloneDoc(doc), true
}

func (tx *memoryTx) Get(collection, id string, out interface{}) error {
	tx.store.mu.Lock()
	tx.store.reads[docKey(collection, id)]++
	tx.store.mu.Unlock()

	doc, ok := tx.snapshot(collection, id)
	if !ok {
		return ErrNotFound
	}
	return decodeDoc(doc, out)
}

func (tx *memoryTx) Set(collection, id string, doc interface{}) error {
	converted, err := toDoc(doc)
	if err != nil {
		return err
	}

	tx.snapshot(collection, id) // record the version we overwrite

	key := docKey(collection, id)
	tx.overlay[key] = converted
	tx.removed[key] = false
	tx.ops = append(tx.ops, txOp{kind: opSet, collection: collection, id: id, doc: converted})

	return nil
}

func (tx *memoryTx) Merge(collection, id string, fields map[string]interface{}) error {
	converted := make(map[string]interface{}, len(fields))
	for path, value := range fields {
		v, err := toValue(value)
		if err != nil {
			return err
		}
		converted[path] = v
	}

	working, ok := tx.snapshot(collection, id)
	if !ok {
		working = bson.M{"_id": id}
	}
	for path, value := range converted {
		setPath(working, path, value)
	}

	key := docKey(collection, id)
	tx.overlay[key] = working
	tx.removed[key] = false
	tx.ops = append(tx.ops, txOp{kind: opMerge, collection: collection, id: id, fields: converted})

	return nil
}

func (tx *memoryTx) Unset(collection, id string, fields ...string) error {
	working, ok := tx.snapshot(collection, id)
	if ok {
		for _, path := range fields {
			unsetPath(working, path)
		}
		tx.overlay[docKey(collection, id)] = working
	}

	tx.ops = append(tx.ops, txOp{kind: opUnset, collection: collection, id: id, unset: fields})
	return nil
}

func (tx *memoryTx) Delete(collection, id string) error {
	tx.snapshot(collection, id)

	key := docKey(collection, id)
	tx.removed[key] = true
	delete(tx.overlay, key)
	tx.ops = append(tx.ops, txOp{kind: opDelete, collection: collection, id: id})

	return nil
}

// commit validates that no touched document changed since the transaction
// first saw it, then applies the staged ops. All-or-nothing under one lock.
func (s *MemoryStore) commit(tx *memoryTx) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, version := range tx.touched {
		if s.versions[key] != version {
			return false
		}
	}

	for _, op := range tx.ops {
		s.apply(op)
		s.writes[docKey(op.collection, op.id)]++
		s.versions[docKey(op.collection, op.id)]++
	}

	return true
}

func (s *MemoryStore) apply(op txOp) {
	if s.docs[op.collection] == nil {
		s.docs[op.collection] = map[string]bson.M{}
	}

	switch op.kind {
	case opSet:
		s.docs[op.collection][op.id] = cloneDoc(op.doc)

	case opMerge:
		doc, ok := s.docs[op.collection][op.id]
		if !ok {
			doc = bson.M{"_id": op.id}
			s.docs[op.collection][op.id] = doc
		}
		for path, value := range op.fields {
			setPath(doc, path, value)
		}

	case opUnset:
		doc, ok := s.docs[op.collection][op.id]
		if !ok {
			return
		}
		for _, path := range op.unset {
			unsetPath(doc, path)
		}

	case opDelete:
		delete(s.docs[op.collection], op.id)
	}
}

// toDoc round-trips a value through BSON into a generic document, so the
// in-memory store sees exactly what Mongo would persist.
func toDoc(v interface{}) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}

	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// toValue converts a single field value the same way, via a wrapper document.
func toValue(v interface{}) (interface{}, error) {
	doc, err := toDoc(bson.M{"v": v})
	if err != nil {
		return nil, err
	}
	return doc["v"], nil
}

func decodeDoc(doc bson.M, out interface{}) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, out)
}

func cloneDoc(doc bson.M) bson.M {
	clone, err := toDoc(doc)
	if err != nil {
		// A document that made it into the store always re-marshals.
		panic(err)
	}
	return clone
}

func setPath(doc bson.M, path string, value interface{}) {
	parts := strings.Split(path, ".")
	current := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(bson.M)
		if !ok {
			next = bson.M{}
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

func unsetPath(doc bson.M, path string) {
	parts := strings.Split(path, ".")
	current := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(bson.M)
		if !ok {
			return
		}
		current = next
	}
	delete(current, parts[len(parts)-1])
}
