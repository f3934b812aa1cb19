// Package user models the two user variants sharing one collection:
// personal users (marketplace participants) and admin users. The variant is
// discriminated by the userType field, never by shape.
package user

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"lendit/pkg/docstore"
	"lendit/pkg/domain"
	"lendit/pkg/platform/sentinel"
)

const (
	// CollectionName is the single collection both variants share.
	CollectionName = "users"

	// DiscriminatorField tags each document with its variant.
	DiscriminatorField = "userType"

	KindPersonal = "personal-user"
	KindAdmin    = "admin-user"
)

// User is the resolved variant view. Both *Personal and *Admin implement
// it; which one you hold is decided by the discriminator on the stored
// document, never by probing field presence.
type User interface {
	ID() string
	Kind() string
	Email() string
	DisplayName() string

	// Snapshot exposes a deep copy of the underlying stored document.
	// Embedded-copy relations persist it inline.
	Snapshot() bson.M
}

// Referencer is anything that can stand in for a user when writing a
// reference field: a minimal Reference or a full variant aggregate.
type Referencer interface {
	ID() string
}

// Reference is a relationship value pointing at a user. Unresolved
// references carry only the identifier; resolved ones also carry the
// variant adapter.
type Reference struct {
	id       string
	resolved User
}

func (r Reference) ID() string { return r.id }

// Resolved returns the variant view when the reference was loaded.
func (r Reference) Resolved() (User, bool) {
	return r.resolved, r.resolved != nil
}

// Kind returns the variant discriminator of a resolved reference, or ""
// while unresolved.
func (r Reference) Kind() string {
	if r.resolved == nil {
		return ""
	}
	return r.resolved.Kind()
}

// UnresolvedReference builds a minimal reference from a bare identifier.
func UnresolvedReference(id string) Reference {
	return Reference{id: id}
}

// FromRefValue turns a classified reference field into a user Reference,
// selecting the variant by discriminator when the field is resolved.
func FromRefValue(rv docstore.RefValue, passport domain.Passport) (Reference, error) {
	if !rv.Resolved() {
		return Reference{id: rv.ID}, nil
	}
	resolved, err := FromEmbedded(rv.Embedded, passport)
	if err != nil {
		return Reference{}, err
	}
	return Reference{id: resolved.ID(), resolved: resolved}, nil
}

// FromEmbedded wraps an embedded user document in the adapter matching its
// discriminator. An unrecognized or missing discriminator fails with
// ErrInvalidPopulation: a document that happens to share field names with a
// variant must never silently resolve as one.
func FromEmbedded(raw bson.M, passport domain.Passport) (User, error) {
	doc := docstore.Embedded(raw)
	switch kind := doc.GetString(DiscriminatorField); kind {
	case KindPersonal:
		return &Personal{doc: doc, passport: passport}, nil
	case KindAdmin:
		return &Admin{doc: doc, passport: passport}, nil
	default:
		return nil, fmt.Errorf("user discriminator %q: %w", kind, sentinel.ErrInvalidPopulation)
	}
}

// FromDocument wraps a hydrated top-level user document.
func FromDocument(doc *docstore.Document, passport domain.Passport) (User, error) {
	switch kind := doc.GetString(DiscriminatorField); kind {
	case KindPersonal:
		return &Personal{doc: doc, passport: passport}, nil
	case KindAdmin:
		return &Admin{doc: doc, passport: passport}, nil
	default:
		return nil, fmt.Errorf("user %s discriminator %q: %w", doc.ID(), kind, sentinel.ErrInvalidPopulation)
	}
}
