// Package listing models items offered on the marketplace. A listing is
// owned by its sharer, a reference into the users collection stored as a
// foreign id and resolved on demand.
package listing

import (
	"context"
	"fmt"
	"time"

	"lendit/internal/user"
	"lendit/pkg/docstore"
	"lendit/pkg/domain"
	"lendit/pkg/platform/sentinel"
)

const CollectionName = "listings"

// Listing statuses, persisted in the "state" field.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusPaused    = "paused"
	StatusRetired   = "retired"
)

// Listing adapts one stored listing document.
type Listing struct {
	doc      *docstore.Document
	passport domain.Passport
	events   []domain.Event

	users docstore.Collection
}

func (l *Listing) ID() string { return l.doc.ID() }

func (l *Listing) Title() string { return l.doc.GetString("title") }

func (l *Listing) SetTitle(v string) { l.doc.Set("title", v) }

func (l *Listing) Description() string { return l.doc.GetString("description") }

func (l *Listing) SetDescription(v string) { l.doc.Set("description", v) }

func (l *Listing) Category() string { return l.doc.GetString("category") }

func (l *Listing) SetCategory(v string) { l.doc.Set("category", v) }

func (l *Listing) Location() string { return l.doc.GetString("location") }

func (l *Listing) SetLocation(v string) { l.doc.Set("location", v) }

func (l *Listing) Status() string { return l.doc.GetString("state") }

func (l *Listing) CreatedAt() time.Time {
	v, _ := l.doc.Get("createdAt")
	t, _ := v.(time.Time)
	return t
}

// Publish moves the listing to published and records the event.
func (l *Listing) Publish() {
	l.doc.Set("state", StatusPublished)
	l.Record(NewPublished(l.ID(), l.Title()))
}

func (l *Listing) Pause() { l.doc.Set("state", StatusPaused) }

func (l *Listing) Retire() { l.doc.Set("state", StatusRetired) }

// Sharer returns the owner reference without touching the store.
func (l *Listing) Sharer() (user.Reference, error) {
	rv, err := l.doc.Ref("sharer")
	if err != nil {
		return user.Reference{}, err
	}
	return user.FromRefValue(rv, l.passport)
}

// LoadSharer resolves the owner, fetching the user document first when only
// the id is stored. Idempotent.
func (l *Listing) LoadSharer(ctx context.Context) (user.Reference, error) {
	if l.users == nil {
		return user.Reference{}, fmt.Errorf("load sharer: collection not wired: %w", sentinel.ErrInvalidState)
	}
	rv, err := l.doc.LoadRef(ctx, "sharer", l.users)
	if err != nil {
		return user.Reference{}, err
	}
	return user.FromRefValue(rv, l.passport)
}

// SetSharer accepts a minimal reference or a full user aggregate; only the
// foreign id is persisted.
func (l *Listing) SetSharer(v user.Referencer) error {
	if v == nil {
		return fmt.Errorf("set sharer: %w", sentinel.ErrMissingReferenceID)
	}
	return l.doc.SetRef("sharer", v.ID())
}

func (l *Listing) Record(e domain.Event) { l.events = append(l.events, e) }

func (l *Listing) DrainEvents() []domain.Event {
	out := l.events
	l.events = nil
	return out
}

// Published is recorded when a listing goes live.
type Published struct {
	domain.BaseEvent
	Title string `json:"title"`
}

func NewPublished(listingID, title string) Published {
	return Published{
		BaseEvent: domain.NewBaseEvent("listing.published", listingID),
		Title:     title,
	}
}
