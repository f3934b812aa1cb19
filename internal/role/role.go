// Package role models roles and their embedded permission grants. The
// permission sub-structure is auto-created empty on first read: reading a
// not-yet-created structure never fails, it allocates.
package role

import (
	"go.mongodb.org/mongo-driver/bson"

	"lendit/pkg/docstore"
	"lendit/pkg/domain"
)

const CollectionName = "roles"

// Referencer is anything that can stand in for a role when writing a
// reference field.
type Referencer interface {
	ID() string
}

// Role adapts one stored role document.
type Role struct {
	doc      *docstore.Document
	passport domain.Passport
	events   []domain.Event
}

func (r *Role) ID() string { return r.doc.ID() }

func (r *Role) Name() string { return r.doc.GetString("name") }

func (r *Role) SetName(v string) { r.doc.Set("name", v) }

func (r *Role) Description() string { return r.doc.GetString("description") }

func (r *Role) SetDescription(v string) { r.doc.Set("description", v) }

// Permissions returns the grant adapter, materializing the embedded
// structure if this role never had one.
func (r *Role) Permissions() *Permissions {
	return &Permissions{grants: r.doc.EnsureMap("permissions"), doc: r.doc}
}

func (r *Role) Snapshot() bson.M { return r.doc.Snapshot() }

func (r *Role) Record(e domain.Event) { r.events = append(r.events, e) }

func (r *Role) DrainEvents() []domain.Event {
	out := r.events
	r.events = nil
	return out
}

// Permissions adapts the embedded permission grants of one role.
type Permissions struct {
	grants bson.M
	doc    *docstore.Document
}

func (p *Permissions) Has(permission string) bool {
	granted, _ := p.grants[permission].(bool)
	return granted
}

// Grant marks the whole structure dirty rather than one dotted path:
// permission names contain dots themselves.
func (p *Permissions) Grant(permission string) {
	p.grants[permission] = true
	p.doc.Set("permissions", p.grants)
}

func (p *Permissions) Revoke(permission string) {
	p.grants[permission] = false
	p.doc.Set("permissions", p.grants)
}

// List returns the granted permission names.
func (p *Permissions) List() []string {
	var out []string
	for name, v := range p.grants {
		if granted, _ := v.(bool); granted {
			out = append(out, name)
		}
	}
	return out
}

// Reference is a relationship value pointing at a role.
type Reference struct {
	id       string
	resolved *Role
}

func (r Reference) ID() string { return r.id }

func (r Reference) Resolved() (*Role, bool) {
	return r.resolved, r.resolved != nil
}

// UnresolvedReference builds a minimal reference from a bare identifier.
func UnresolvedReference(id string) Reference {
	return Reference{id: id}
}

// FromRefValue turns a classified reference field into a role Reference.
func FromRefValue(rv docstore.RefValue, passport domain.Passport) (Reference, error) {
	if !rv.Resolved() {
		return Reference{id: rv.ID}, nil
	}
	r := &Role{doc: docstore.Embedded(rv.Embedded), passport: passport}
	return Reference{id: r.ID(), resolved: r}, nil
}
