package listing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"

	"lendit/internal/user"
	"lendit/pkg/docstore"
	"lendit/pkg/domain"
	"lendit/pkg/platform/sentinel"
)

// Repository reads and writes listing aggregates.
type Repository struct {
	col      docstore.Collection
	users    docstore.Collection
	passport domain.Passport
	recorder *domain.Recorder
	log      zerolog.Logger
}

func NewRepository(store docstore.Store, passport domain.Passport, recorder *domain.Recorder, log zerolog.Logger) *Repository {
	return &Repository{
		col:      store.Collection(CollectionName),
		users:    store.Collection(user.CollectionName),
		passport: passport,
		recorder: recorder,
		log:      log.With().Str("repository", "listing").Logger(),
	}
}

// GetByID fetches one listing. Missing and malformed ids both surface as a
// not-found error carrying the id and entity type.
func (r *Repository) GetByID(ctx context.Context, id string) (*Listing, error) {
	raw, err := r.col.FindByID(ctx, id, nil)
	if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrInvalidIdentifier) {
		return nil, fmt.Errorf("listing %q not found: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return r.hydrate(raw), nil
}

// GetNewInstance returns an unsaved draft listing.
func (r *Repository) GetNewInstance() *Listing {
	doc := docstore.NewDocument(r.col)
	doc.Set("state", StatusDraft)
	doc.Set("createdAt", time.Now().UTC())
	return &Listing{doc: doc, passport: r.passport, users: r.users}
}

// FindBySharer returns all listings owned by the given sharer, newest
// first.
func (r *Repository) FindBySharer(ctx context.Context, sharerID string) ([]*Listing, error) {
	raws, err := r.col.Find(ctx, bson.M{"sharer": sharerID}, &docstore.FindOptions{
		Sort: bson.D{{Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return nil, err
	}
	out := make([]*Listing, 0, len(raws))
	for _, raw := range raws {
		out = append(out, r.hydrate(raw))
	}
	return out, nil
}

// Save persists the listing and moves its recorded events into the unit of
// work's buffer.
func (r *Repository) Save(ctx context.Context, l *Listing) error {
	if err := l.doc.Save(ctx); err != nil {
		return err
	}
	r.recorder.Record(l.DrainEvents()...)
	return nil
}

// hydrate is the one conversion path from a raw store document to the
// aggregate; pipeline rows and plain fetches both come through here.
func (r *Repository) hydrate(raw bson.M) *Listing {
	return &Listing{
		doc:      docstore.Hydrate(r.col, raw),
		passport: r.passport,
		users:    r.users,
	}
}
