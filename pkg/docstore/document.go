package docstore

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"lendit/pkg/platform/sentinel"
)

// Document is the live in-memory state of one stored document. Adapters
// mutate it exclusively through Set/EnsureMap/Unset so change tracking stays
// accurate; Save writes only the dirty paths back.
//
// A Document is request-scoped and never shared across concurrent
// operations. It is not safe for concurrent use.
type Document struct {
	col    Collection
	data   bson.M
	dirty  map[string]struct{}
	unsets map[string]struct{}
	isNew  bool
}

// NewDocument returns an empty, unsaved document bound to col. The store
// assigns its identifier on first Save.
func NewDocument(col Collection) *Document {
	return &Document{
		col:    col,
		data:   bson.M{},
		dirty:  map[string]struct{}{},
		unsets: map[string]struct{}{},
		isNew:  true,
	}
}

// Hydrate wraps a raw store document (a fetch result or an aggregation
// pipeline row) in a live Document so it can re-enter the normal adapter and
// conversion path.
func Hydrate(col Collection, raw bson.M) *Document {
	return &Document{
		col:    col,
		data:   raw,
		dirty:  map[string]struct{}{},
		unsets: map[string]struct{}{},
	}
}

// Embedded wraps a sub-document that lives inside another document. It has
// no collection of its own; Save on it fails with ErrInvalidState. Mutations
// made through it are visible to the owning document's data but are not
// change-tracked there, so callers mutate embedded copies through the parent.
func Embedded(raw bson.M) *Document {
	return Hydrate(nil, raw)
}

// ID returns the stable string form of the store identifier, or "" while the
// document is unsaved.
func (d *Document) ID() string {
	v, ok := d.data["_id"]
	if !ok {
		return ""
	}
	return IDString(v)
}

func (d *Document) IsNew() bool { return d.isNew }

// Get returns the value at a dotted path.
func (d *Document) Get(path string) (any, bool) {
	cur := any(d.data)
	for _, seg := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// GetString is Get for the common case of a string field; a missing or
// non-string value reads as "".
func (d *Document) GetString(path string) string {
	v, ok := d.Get(path)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Set writes a value at a dotted path, creating intermediate maps as needed,
// and marks the path dirty for the next Save.
func (d *Document) Set(path string, value any) {
	segs := strings.Split(path, ".")
	m := d.data
	for _, seg := range segs[:len(segs)-1] {
		m = childMap(m, seg)
	}
	m[segs[len(segs)-1]] = value
	d.markDirty(path)
}

// EnsureMap returns the map at path, creating an empty one (and marking it
// dirty so it persists) if absent. Reading a not-yet-created nested
// structure never fails, it allocates.
func (d *Document) EnsureMap(path string) bson.M {
	if v, ok := d.Get(path); ok {
		if m, ok := asMap(v); ok {
			return m
		}
	}
	m := bson.M{}
	d.Set(path, m)
	return m
}

// Unset removes the value at path and schedules a store-level unset.
func (d *Document) Unset(path string) {
	segs := strings.Split(path, ".")
	cur := any(d.data)
	for _, seg := range segs[:len(segs)-1] {
		m, ok := asMap(cur)
		if !ok {
			return
		}
		cur, ok = m[seg]
		if !ok {
			return
		}
	}
	if m, ok := asMap(cur); ok {
		delete(m, segs[len(segs)-1])
	}
	prefix := path + "."
	for p := range d.dirty {
		if p == path || strings.HasPrefix(p, prefix) {
			delete(d.dirty, p)
		}
	}
	for p := range d.unsets {
		if strings.HasPrefix(p, prefix) {
			delete(d.unsets, p)
		}
	}
	if d.coveredByDirty(path) {
		// the in-memory removal above rides along with the dirty ancestor
		return
	}
	d.unsets[path] = struct{}{}
}

// Populate resolves a reference field in place: when the field holds a bare
// foreign identifier, the referenced document is fetched from foreign and
// embedded. Already-embedded fields are left untouched, so calling Populate
// twice performs one fetch. The embedded copy is an in-memory resolution
// only; it is never marked dirty and never written back on Save.
//
// An absent field fails with ErrNotPopulated; a dangling identifier fails
// with ErrNotFound.
func (d *Document) Populate(ctx context.Context, field string, foreign Collection) error {
	v, ok := d.Get(field)
	if !ok || v == nil {
		return fmt.Errorf("populate %s.%s: %w", d.colName(), field, sentinel.ErrNotPopulated)
	}
	if _, ok := asMap(v); ok {
		return nil
	}
	id := IDString(v)
	if id == "" {
		return fmt.Errorf("populate %s.%s: %w", d.colName(), field, sentinel.ErrInvalidPopulation)
	}
	raw, err := foreign.FindByID(ctx, id, nil)
	if err != nil {
		return fmt.Errorf("populate %s.%s (%s): %w", d.colName(), field, id, err)
	}
	// In-memory resolution only: bypass Set so the embedded copy is not
	// written over the foreign key on the next Save.
	d.setRaw(field, raw)
	return nil
}

// setRaw writes a value without touching change tracking.
func (d *Document) setRaw(path string, value any) {
	segs := strings.Split(path, ".")
	m := d.data
	for _, seg := range segs[:len(segs)-1] {
		m = childMap(m, seg)
	}
	m[segs[len(segs)-1]] = value
}

// Save inserts a new document or applies the dirty paths of an existing one.
// A clean existing document is a no-op.
func (d *Document) Save(ctx context.Context) error {
	if d.col == nil {
		return fmt.Errorf("save embedded document: %w", sentinel.ErrInvalidState)
	}
	if d.isNew {
		id, err := d.col.InsertOne(ctx, d.data)
		if err != nil {
			return fmt.Errorf("insert into %s: %w", d.col.Name(), err)
		}
		if _, ok := d.data["_id"]; !ok {
			d.data["_id"] = id
		}
		d.isNew = false
		d.clearDirty()
		return nil
	}
	if len(d.dirty) == 0 && len(d.unsets) == 0 {
		return nil
	}
	sets := bson.M{}
	for path := range d.dirty {
		if v, ok := d.Get(path); ok {
			sets[path] = v
		}
	}
	unsets := make([]string, 0, len(d.unsets))
	for path := range d.unsets {
		unsets = append(unsets, path)
	}
	if err := d.col.UpdateByID(ctx, d.ID(), sets, unsets); err != nil {
		return fmt.Errorf("update %s %s: %w", d.col.Name(), d.ID(), err)
	}
	d.clearDirty()
	return nil
}

// markDirty records a path for the next Save. The dirty set never holds a
// path together with one of its prefixes: the store rejects an update that
// targets both. A path under an already-dirty ancestor is subsumed, since
// the ancestor's value carries the change; a coarse path drops the finer
// entries beneath it.
func (d *Document) markDirty(path string) {
	delete(d.unsets, path)
	if d.coveredByDirty(path) {
		return
	}
	prefix := path + "."
	for p := range d.dirty {
		if strings.HasPrefix(p, prefix) {
			delete(d.dirty, p)
		}
	}
	for p := range d.unsets {
		if strings.HasPrefix(p, prefix) {
			delete(d.unsets, p)
		}
	}
	d.dirty[path] = struct{}{}
}

// coveredByDirty reports whether path or one of its ancestors is dirty.
func (d *Document) coveredByDirty(path string) bool {
	for p := range d.dirty {
		if p == path || strings.HasPrefix(path, p+".") {
			return true
		}
	}
	return false
}

func (d *Document) clearDirty() {
	d.dirty = map[string]struct{}{}
	d.unsets = map[string]struct{}{}
}

func (d *Document) colName() string {
	if d.col == nil {
		return "(embedded)"
	}
	return d.col.Name()
}

// Snapshot returns a deep copy of the document's current state, identifier
// included. Embedded-copy relations persist such snapshots instead of
// foreign keys.
func (d *Document) Snapshot() bson.M {
	return cloneMap(d.data)
}

func cloneMap(m bson.M) bson.M {
	out := make(bson.M, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case bson.M:
		return cloneMap(val)
	case map[string]any:
		return cloneMap(bson.M(val))
	case []any:
		out := make([]any, len(val))
		for i, el := range val {
			out[i] = cloneValue(el)
		}
		return out
	case bson.A:
		out := make(bson.A, len(val))
		for i, el := range val {
			out[i] = cloneValue(el)
		}
		return out
	default:
		return v
	}
}

func childMap(m bson.M, key string) bson.M {
	if v, ok := m[key]; ok {
		if child, ok := asMap(v); ok {
			return child
		}
	}
	child := bson.M{}
	m[key] = child
	return child
}

func asMap(v any) (bson.M, bool) {
	switch m := v.(type) {
	case bson.M:
		return m, true
	case map[string]any:
		return bson.M(m), true
	default:
		return nil, false
	}
}

// IDString renders a store identifier as its stable string form. ObjectIDs
// become their 24-hex encoding; other scalar identifiers pass through.
func IDString(v any) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	case fmt.Stringer:
		return id.String()
	default:
		return ""
	}
}
