package docstore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"lendit/pkg/platform/sentinel"
)

// RefValue is the classified state of a relationship field. A field is in
// exactly one of three states: absent (Ref returns ErrNotPopulated),
// unresolved (ID set, Embedded nil) or resolved (Embedded set).
type RefValue struct {
	ID       string
	Embedded bson.M
}

// Resolved reports whether the field holds a full embedded copy of the
// referenced document.
func (r RefValue) Resolved() bool { return r.Embedded != nil }

// Ref classifies the relationship field at path.
//
// Errors: ErrNotPopulated when the field is absent or nil;
// ErrInvalidPopulation when it holds neither a valid identifier nor an
// embedded document shape.
func (d *Document) Ref(path string) (RefValue, error) {
	v, ok := d.Get(path)
	if !ok || v == nil {
		return RefValue{}, fmt.Errorf("%s.%s: %w", d.colName(), path, sentinel.ErrNotPopulated)
	}
	if m, ok := asMap(v); ok {
		return RefValue{ID: IDString(m["_id"]), Embedded: m}, nil
	}
	if id := IDString(v); id != "" {
		return RefValue{ID: id}, nil
	}
	return RefValue{}, fmt.Errorf("%s.%s holds %T: %w", d.colName(), path, v, sentinel.ErrInvalidPopulation)
}

// LoadRef resolves the relationship field at path, populating it from
// foreign first when it only holds an identifier. Idempotent: an already
// resolved field performs no fetch.
func (d *Document) LoadRef(ctx context.Context, path string, foreign Collection) (RefValue, error) {
	if err := d.Populate(ctx, path, foreign); err != nil {
		return RefValue{}, err
	}
	return d.Ref(path)
}

// SetRef writes a foreign identifier to the relationship field at path and
// marks it dirty. An empty id fails with ErrMissingReferenceID and leaves
// the document untouched.
func (d *Document) SetRef(path, id string) error {
	if id == "" {
		return fmt.Errorf("%s.%s: %w", d.colName(), path, sentinel.ErrMissingReferenceID)
	}
	d.Set(path, id)
	return nil
}

// SetEmbedded writes a full copy of the referenced document to the field at
// path. Used by embedded-copy relations that deliberately persist the
// sub-document instead of a foreign key. The copy must carry its own
// identifier.
func (d *Document) SetEmbedded(path string, sub bson.M) error {
	if sub == nil || IDString(sub["_id"]) == "" {
		return fmt.Errorf("%s.%s: %w", d.colName(), path, sentinel.ErrMissingReferenceID)
	}
	d.Set(path, sub)
	return nil
}
