package role

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"

	"lendit/pkg/docstore"
	"lendit/pkg/domain"
	"lendit/pkg/platform/sentinel"
)

// Repository reads and writes role aggregates. Every operation works on its
// own live document, but saves drain aggregate events into the recorder the
// repository was built with — a repository belongs to one operation's unit
// of work and is not shared across concurrent operations.
type Repository struct {
	col      docstore.Collection
	passport domain.Passport
	recorder *domain.Recorder
	log      zerolog.Logger
}

func NewRepository(store docstore.Store, passport domain.Passport, recorder *domain.Recorder, log zerolog.Logger) *Repository {
	return &Repository{
		col:      store.Collection(CollectionName),
		passport: passport,
		recorder: recorder,
		log:      log.With().Str("repository", "role").Logger(),
	}
}

// GetByID fetches one role. Missing and malformed ids both surface as a
// not-found error carrying the id and entity type.
func (r *Repository) GetByID(ctx context.Context, id string) (*Role, error) {
	raw, err := r.col.FindByID(ctx, id, nil)
	if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrInvalidIdentifier) {
		return nil, fmt.Errorf("role %q not found: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &Role{doc: docstore.Hydrate(r.col, raw), passport: r.passport}, nil
}

// GetByName fetches one role by exact name.
func (r *Repository) GetByName(ctx context.Context, name string) (*Role, error) {
	raw, err := r.col.FindOne(ctx, bson.M{"name": name}, nil)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, fmt.Errorf("role named %q not found: %w", name, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &Role{doc: docstore.Hydrate(r.col, raw), passport: r.passport}, nil
}

// GetNewInstance returns an unsaved role bound to the collection.
func (r *Repository) GetNewInstance() *Role {
	return &Role{doc: docstore.NewDocument(r.col), passport: r.passport}
}

// Save persists the role and moves its recorded events into the unit of
// work's buffer.
func (r *Repository) Save(ctx context.Context, role *Role) error {
	if err := role.doc.Save(ctx); err != nil {
		return err
	}
	r.recorder.Record(role.DrainEvents()...)
	return nil
}
