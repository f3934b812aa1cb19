// Package reservation models requests to reserve a listing. A request
// references both the listing and the reserver by foreign id; queries that
// depend on the listing's owner join across the two collections.
package reservation

import (
	"context"
	"fmt"
	"time"

	"lendit/internal/user"
	"lendit/pkg/docstore"
	"lendit/pkg/domain"
	"lendit/pkg/platform/sentinel"
)

const CollectionName = "reservation_requests"

// Request statuses, persisted in the "state" field.
const (
	StatusPending   = "pending"
	StatusAccepted  = "accepted"
	StatusDeclined  = "declined"
	StatusCancelled = "cancelled"
)

// Request adapts one stored reservation-request document.
type Request struct {
	doc      *docstore.Document
	passport domain.Passport
	events   []domain.Event

	listings docstore.Collection
	users    docstore.Collection
}

func (r *Request) ID() string { return r.doc.ID() }

func (r *Request) Status() string { return r.doc.GetString("state") }

func (r *Request) Message() string { return r.doc.GetString("message") }

func (r *Request) SetMessage(v string) { r.doc.Set("message", v) }

func (r *Request) CreatedAt() time.Time {
	v, _ := r.doc.Get("createdAt")
	t, _ := v.(time.Time)
	return t
}

// Accept transitions a pending request and records the event.
func (r *Request) Accept() error {
	if r.Status() != StatusPending {
		return fmt.Errorf("accept %s request: %w", r.Status(), sentinel.ErrInvalidState)
	}
	r.doc.Set("state", StatusAccepted)
	r.Record(NewAccepted(r.ID()))
	return nil
}

// Decline transitions a pending request and records the event.
func (r *Request) Decline() error {
	if r.Status() != StatusPending {
		return fmt.Errorf("decline %s request: %w", r.Status(), sentinel.ErrInvalidState)
	}
	r.doc.Set("state", StatusDeclined)
	r.Record(NewDeclined(r.ID()))
	return nil
}

// Listing returns the listing reference without touching the store.
// The generic RefValue carries either the bare id or the embedded copy;
// the caller resolves the full aggregate through the listing repository.
func (r *Request) Listing() (docstore.RefValue, error) {
	return r.doc.Ref("listing")
}

// LoadListing resolves the listing reference. Idempotent.
func (r *Request) LoadListing(ctx context.Context) (docstore.RefValue, error) {
	if r.listings == nil {
		return docstore.RefValue{}, fmt.Errorf("load listing: collection not wired: %w", sentinel.ErrInvalidState)
	}
	return r.doc.LoadRef(ctx, "listing", r.listings)
}

// SetListing accepts a minimal reference or a full listing aggregate.
func (r *Request) SetListing(v interface{ ID() string }) error {
	if v == nil {
		return fmt.Errorf("set listing: %w", sentinel.ErrMissingReferenceID)
	}
	return r.doc.SetRef("listing", v.ID())
}

// Reserver returns the requesting user's reference.
func (r *Request) Reserver() (user.Reference, error) {
	rv, err := r.doc.Ref("reserver")
	if err != nil {
		return user.Reference{}, err
	}
	return user.FromRefValue(rv, r.passport)
}

// LoadReserver resolves the reserver. Idempotent.
func (r *Request) LoadReserver(ctx context.Context) (user.Reference, error) {
	if r.users == nil {
		return user.Reference{}, fmt.Errorf("load reserver: collection not wired: %w", sentinel.ErrInvalidState)
	}
	rv, err := r.doc.LoadRef(ctx, "reserver", r.users)
	if err != nil {
		return user.Reference{}, err
	}
	return user.FromRefValue(rv, r.passport)
}

// SetReserver accepts a minimal reference or a full user aggregate.
func (r *Request) SetReserver(v user.Referencer) error {
	if v == nil {
		return fmt.Errorf("set reserver: %w", sentinel.ErrMissingReferenceID)
	}
	return r.doc.SetRef("reserver", v.ID())
}

func (r *Request) Record(e domain.Event) { r.events = append(r.events, e) }

func (r *Request) DrainEvents() []domain.Event {
	out := r.events
	r.events = nil
	return out
}

// Submitted is recorded when a new request is created.
type Submitted struct {
	domain.BaseEvent
	ListingID  string `json:"listingId"`
	ReserverID string `json:"reserverId"`
}

func NewSubmitted(requestID, listingID, reserverID string) Submitted {
	return Submitted{
		BaseEvent:  domain.NewBaseEvent("reservation.submitted", requestID),
		ListingID:  listingID,
		ReserverID: reserverID,
	}
}

// Accepted is recorded when the sharer accepts a request.
type Accepted struct {
	domain.BaseEvent
}

func NewAccepted(requestID string) Accepted {
	return Accepted{BaseEvent: domain.NewBaseEvent("reservation.accepted", requestID)}
}

// Declined is recorded when the sharer declines a request.
type Declined struct {
	domain.BaseEvent
}

func NewDeclined(requestID string) Declined {
	return Declined{BaseEvent: domain.NewBaseEvent("reservation.declined", requestID)}
}
