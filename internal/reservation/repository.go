package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"

	"lendit/internal/listing"
	"lendit/internal/platform/metrics"
	"lendit/internal/user"
	"lendit/pkg/docstore"
	"lendit/pkg/domain"
	"lendit/pkg/platform/sentinel"
)

// Repository reads and writes reservation-request aggregates.
type Repository struct {
	col      docstore.Collection
	listings docstore.Collection
	users    docstore.Collection
	passport domain.Passport
	recorder *domain.Recorder
	log      zerolog.Logger
	metrics  *metrics.Metrics
}

func NewRepository(store docstore.Store, passport domain.Passport, recorder *domain.Recorder, log zerolog.Logger, m *metrics.Metrics) *Repository {
	return &Repository{
		col:      store.Collection(CollectionName),
		listings: store.Collection(listing.CollectionName),
		users:    store.Collection(user.CollectionName),
		passport: passport,
		recorder: recorder,
		log:      log.With().Str("repository", "reservation").Logger(),
		metrics:  m,
	}
}

// GetByID fetches one request. Missing and malformed ids both surface as a
// not-found error carrying the id and entity type.
func (r *Repository) GetByID(ctx context.Context, id string) (*Request, error) {
	raw, err := r.col.FindByID(ctx, id, nil)
	if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrInvalidIdentifier) {
		return nil, fmt.Errorf("reservation request %q not found: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return r.hydrate(raw), nil
}

// GetNewInstance returns an unsaved pending request.
func (r *Repository) GetNewInstance() *Request {
	doc := docstore.NewDocument(r.col)
	doc.Set("state", StatusPending)
	doc.Set("createdAt", time.Now().UTC())
	return &Request{doc: doc, passport: r.passport, listings: r.listings, users: r.users}
}

// FindByReserver returns the requests a user has submitted, newest first.
func (r *Repository) FindByReserver(ctx context.Context, reserverID string) ([]*Request, error) {
	raws, err := r.col.Find(ctx, bson.M{"reserver": reserverID}, &docstore.FindOptions{
		Sort: bson.D{{Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return nil, err
	}
	out := make([]*Request, 0, len(raws))
	for _, raw := range raws {
		out = append(out, r.hydrate(raw))
	}
	return out, nil
}

// FindBySharer returns the requests against listings owned by the given
// sharer. The request document has no sharer field, so the query joins the
// listings collection in a pipeline, then rehydrates each row back into a
// live document so the normal conversion path applies. Rows whose listing
// lookup fails (dangling reference) are excluded and counted.
func (r *Repository) FindBySharer(ctx context.Context, sharerID string) ([]*Request, error) {
	// preserveNullAndEmptyArrays keeps rows whose lookup found nothing so
	// dangling references stay observable instead of vanishing in-store.
	rows, err := r.col.Aggregate(ctx, []bson.M{
		{"$lookup": bson.M{
			"from":         listing.CollectionName,
			"localField":   "listing",
			"foreignField": "_id",
			"as":           "listingDoc",
		}},
		{"$unwind": bson.M{"path": "$listingDoc", "preserveNullAndEmptyArrays": true}},
		{"$match": bson.M{"$or": []bson.M{
			{"listingDoc.sharer": sharerID},
			{"listingDoc": bson.M{"$exists": false}},
		}}},
		{"$sort": bson.M{"createdAt": -1}},
	})
	if err != nil {
		return nil, err
	}

	out := make([]*Request, 0, len(rows))
	for _, row := range rows {
		joined, ok := row["listingDoc"].(bson.M)
		if !ok {
			r.metrics.IncDanglingJoin()
			r.log.Warn().
				Str("requestId", docstore.IDString(row["_id"])).
				Str("listingId", docstore.IDString(row["listing"])).
				Msg("excluding request with dangling listing reference")
			continue
		}
		delete(row, "listingDoc")
		// The joined copy resolves the listing reference in memory so
		// callers read it without another fetch.
		row["listing"] = joined
		out = append(out, r.hydrate(row))
	}
	return out, nil
}

// Save persists the request and moves its recorded events into the unit of
// work's buffer.
func (r *Repository) Save(ctx context.Context, req *Request) error {
	if err := req.doc.Save(ctx); err != nil {
		return err
	}
	r.recorder.Record(req.DrainEvents()...)
	return nil
}

// hydrate is the one conversion path from a raw store document (fetched or
// rehydrated from a pipeline row) to the aggregate.
func (r *Repository) hydrate(raw bson.M) *Request {
	return &Request{
		doc:      docstore.Hydrate(r.col, raw),
		passport: r.passport,
		listings: r.listings,
		users:    r.users,
	}
}
