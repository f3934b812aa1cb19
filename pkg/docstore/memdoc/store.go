// Package memdoc is an in-memory docstore.Store. It backs unit tests and
// local development with the same contract as the mongodb implementation,
// including a usable subset of the filter language and the aggregation
// stages the repositories rely on.
package memdoc

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"lendit/pkg/docstore"
	"lendit/pkg/platform/sentinel"
)

type Store struct {
	mu   sync.RWMutex
	cols map[string]*records

	// txMu serializes transactions; reads outside a transaction still go
	// through mu only.
	txMu sync.Mutex
}

// records holds one collection's documents in insertion order.
type records struct {
	docs  map[string]bson.M
	order []string
}

func NewStore() *Store {
	return &Store{cols: map[string]*records{}}
}

func (s *Store) Collection(name string) docstore.Collection {
	return &collection{store: s, name: name}
}

// WithTransaction snapshots every collection, runs fn and restores the
// snapshot when fn fails. Coarse but faithful to the contract: partial
// progress is never visible after an abort.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snapshot := s.snapshot()
	if err := fn(ctx); err != nil {
		s.restore(snapshot)
		return err
	}
	// a cancelled context aborts instead of committing, even when fn
	// itself succeeded
	if err := ctx.Err(); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

func (s *Store) snapshot() map[string]*records {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*records, len(s.cols))
	for name, recs := range s.cols {
		copied := &records{docs: make(map[string]bson.M, len(recs.docs))}
		copied.order = append(copied.order, recs.order...)
		for id, doc := range recs.docs {
			copied.docs[id] = copyMap(doc)
		}
		out[name] = copied
	}
	return out
}

func (s *Store) restore(snapshot map[string]*records) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cols = snapshot
}

func (s *Store) recordsFor(name string, create bool) *records {
	recs, ok := s.cols[name]
	if !ok && create {
		recs = &records{docs: map[string]bson.M{}}
		s.cols[name] = recs
	}
	return recs
}

type collection struct {
	store *Store
	name  string
}

func (c *collection) Name() string { return c.name }

func (c *collection) Find(ctx context.Context, filter bson.M, opts *docstore.FindOptions) ([]bson.M, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	var out []bson.M
	for _, doc := range c.all() {
		if matchDoc(doc, filter) {
			out = append(out, doc)
		}
	}
	out = applyOptions(out, opts)
	for i, doc := range out {
		out[i] = project(copyMap(doc), opts)
	}
	return out, nil
}

func (c *collection) FindOne(ctx context.Context, filter bson.M, opts *docstore.FindOptions) (bson.M, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	docs := c.all()
	if opts != nil && len(opts.Sort) > 0 {
		sortDocs(docs, opts.Sort)
	}
	for _, doc := range docs {
		if matchDoc(doc, filter) {
			return project(copyMap(doc), opts), nil
		}
	}
	return nil, fmt.Errorf("%s: %w", c.name, sentinel.ErrNotFound)
}

func (c *collection) FindByID(ctx context.Context, id string, opts *docstore.FindOptions) (bson.M, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	recs := c.store.recordsFor(c.name, false)
	if recs != nil {
		if doc, ok := recs.docs[id]; ok {
			return project(copyMap(doc), opts), nil
		}
	}
	return nil, fmt.Errorf("%s %s: %w", c.name, id, sentinel.ErrNotFound)
}

func (c *collection) Count(ctx context.Context, filter bson.M) (int64, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	var n int64
	for _, doc := range c.all() {
		if matchDoc(doc, filter) {
			n++
		}
	}
	return n, nil
}

func (c *collection) InsertOne(ctx context.Context, doc bson.M) (string, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	id := docstore.IDString(doc["_id"])
	if id == "" {
		id = primitive.NewObjectID().Hex()
	}
	recs := c.store.recordsFor(c.name, true)
	if _, exists := recs.docs[id]; exists {
		return "", fmt.Errorf("%s %s: duplicate id", c.name, id)
	}
	stored := copyMap(doc)
	stored["_id"] = id
	recs.docs[id] = stored
	recs.order = append(recs.order, id)
	return id, nil
}

func (c *collection) UpdateByID(ctx context.Context, id string, sets bson.M, unsets []string) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	recs := c.store.recordsFor(c.name, false)
	if recs == nil {
		return fmt.Errorf("%s %s: %w", c.name, id, sentinel.ErrNotFound)
	}
	doc, ok := recs.docs[id]
	if !ok {
		return fmt.Errorf("%s %s: %w", c.name, id, sentinel.ErrNotFound)
	}
	for path, v := range sets {
		setPath(doc, path, copyValue(v))
	}
	for _, path := range unsets {
		unsetPath(doc, path)
	}
	return nil
}

func (c *collection) DeleteByID(ctx context.Context, id string) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	recs := c.store.recordsFor(c.name, false)
	if recs == nil {
		return fmt.Errorf("%s %s: %w", c.name, id, sentinel.ErrNotFound)
	}
	if _, ok := recs.docs[id]; !ok {
		return fmt.Errorf("%s %s: %w", c.name, id, sentinel.ErrNotFound)
	}
	delete(recs.docs, id)
	for i, other := range recs.order {
		if other == id {
			recs.order = append(recs.order[:i], recs.order[i+1:]...)
			break
		}
	}
	return nil
}

// all returns the live documents in insertion order. Callers hold the lock
// and copy before handing documents out.
func (c *collection) all() []bson.M {
	recs := c.store.recordsFor(c.name, false)
	if recs == nil {
		return nil
	}
	out := make([]bson.M, 0, len(recs.order))
	for _, id := range recs.order {
		out = append(out, recs.docs[id])
	}
	return out
}

func applyOptions(docs []bson.M, opts *docstore.FindOptions) []bson.M {
	if opts == nil {
		return docs
	}
	if len(opts.Sort) > 0 {
		sortDocs(docs, opts.Sort)
	}
	if opts.Skip != nil {
		if skip := int(*opts.Skip); skip < len(docs) {
			docs = docs[skip:]
		} else {
			docs = nil
		}
	}
	if opts.Limit != nil && int(*opts.Limit) < len(docs) {
		docs = docs[:*opts.Limit]
	}
	return docs
}
