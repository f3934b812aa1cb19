package user

import (
	"go.mongodb.org/mongo-driver/bson"

	"lendit/pkg/docstore"
	"lendit/pkg/domain"
)

// Admin adapts one stored admin-user document. Admins manage the
// marketplace; they never appear as sharers or reservers of their own
// listings, but conversations may embed either variant.
type Admin struct {
	doc      *docstore.Document
	passport domain.Passport
	events   []domain.Event
}

func (a *Admin) ID() string { return a.doc.ID() }

func (a *Admin) Kind() string { return KindAdmin }

func (a *Admin) Email() string { return a.doc.GetString("email") }

func (a *Admin) SetEmail(v string) { a.doc.Set("email", v) }

func (a *Admin) DisplayName() string { return a.doc.GetString("displayName") }

func (a *Admin) SetDisplayName(v string) { a.doc.Set("displayName", v) }

// Scope is the admin's operational scope ("support", "billing", ...).
func (a *Admin) Scope() string { return a.doc.GetString("scope") }

func (a *Admin) SetScope(v string) { a.doc.Set("scope", v) }

func (a *Admin) Snapshot() bson.M { return a.doc.Snapshot() }

func (a *Admin) Record(e domain.Event) { a.events = append(a.events, e) }

func (a *Admin) DrainEvents() []domain.Event {
	out := a.events
	a.events = nil
	return out
}
