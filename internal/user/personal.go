package user

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"lendit/internal/role"
	"lendit/pkg/docstore"
	"lendit/pkg/domain"
	"lendit/pkg/platform/sentinel"
)

// Personal adapts one stored personal-user document to the domain view.
// Request-scoped: wraps exactly one live document and is never cached
// across operations.
type Personal struct {
	doc      *docstore.Document
	passport domain.Passport
	events   []domain.Event

	roles docstore.Collection
}

func (p *Personal) ID() string { return p.doc.ID() }

func (p *Personal) Kind() string { return KindPersonal }

func (p *Personal) Email() string { return p.doc.GetString("email") }

func (p *Personal) SetEmail(v string) { p.doc.Set("email", v) }

func (p *Personal) DisplayName() string { return p.doc.GetString("displayName") }

func (p *Personal) SetDisplayName(v string) { p.doc.Set("displayName", v) }

func (p *Personal) Snapshot() bson.M { return p.doc.Snapshot() }

// Profile returns the nested profile adapter, materializing an empty
// profile on first touch so reads never need a nil check.
func (p *Personal) Profile() *Profile {
	p.doc.EnsureMap("profile")
	return &Profile{doc: p.doc}
}

// Role returns the role reference without touching the store: the bare id
// when unresolved, the role adapter when an embedded copy is present.
func (p *Personal) Role() (role.Reference, error) {
	rv, err := p.doc.Ref("role")
	if err != nil {
		return role.Reference{}, err
	}
	return role.FromRefValue(rv, p.passport)
}

// LoadRole resolves the role reference, fetching it first when only the id
// is stored. Idempotent.
func (p *Personal) LoadRole(ctx context.Context) (role.Reference, error) {
	if p.roles == nil {
		return role.Reference{}, fmt.Errorf("load role: collection not wired: %w", sentinel.ErrInvalidState)
	}
	rv, err := p.doc.LoadRef(ctx, "role", p.roles)
	if err != nil {
		return role.Reference{}, err
	}
	return role.FromRefValue(rv, p.passport)
}

// SetRole accepts a minimal reference or a full role aggregate; either way
// only the foreign id is persisted.
func (p *Personal) SetRole(v role.Referencer) error {
	if v == nil {
		return fmt.Errorf("set role: %w", sentinel.ErrMissingReferenceID)
	}
	return p.doc.SetRef("role", v.ID())
}

func (p *Personal) Record(e domain.Event) { p.events = append(p.events, e) }

// DrainEvents hands the recorded events to the repository on save.
func (p *Personal) DrainEvents() []domain.Event {
	out := p.events
	p.events = nil
	return out
}

// Profile is the nested profile adapter: one delegation level deeper than
// Personal, same pattern.
type Profile struct {
	doc *docstore.Document
}

func (p *Profile) Bio() string { return p.doc.GetString("profile.bio") }

func (p *Profile) SetBio(v string) { p.doc.Set("profile.bio", v) }

func (p *Profile) Location() string { return p.doc.GetString("profile.location") }

func (p *Profile) SetLocation(v string) { p.doc.Set("profile.location", v) }

// Billing auto-vivifies the billing sub-structure on first touch.
func (p *Profile) Billing() *Billing {
	p.doc.EnsureMap("profile.billing")
	return &Billing{doc: p.doc}
}

// Billing adapts profile.billing.
type Billing struct {
	doc *docstore.Document
}

func (b *Billing) Plan() string { return b.doc.GetString("profile.billing.plan") }

func (b *Billing) SetPlan(v string) { b.doc.Set("profile.billing.plan", v) }

func (b *Billing) PayoutMethod() string { return b.doc.GetString("profile.billing.payoutMethod") }

func (b *Billing) SetPayoutMethod(v string) { b.doc.Set("profile.billing.payoutMethod", v) }
