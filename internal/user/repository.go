package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"

	"lendit/internal/role"
	"lendit/pkg/docstore"
	"lendit/pkg/domain"
	"lendit/pkg/platform/sentinel"
)

// Repository reads and writes both user variants out of the shared
// collection.
type Repository struct {
	col      docstore.Collection
	roles    docstore.Collection
	passport domain.Passport
	recorder *domain.Recorder
	log      zerolog.Logger
}

func NewRepository(store docstore.Store, passport domain.Passport, recorder *domain.Recorder, log zerolog.Logger) *Repository {
	return &Repository{
		col:      store.Collection(CollectionName),
		roles:    store.Collection(role.CollectionName),
		passport: passport,
		recorder: recorder,
		log:      log.With().Str("repository", "user").Logger(),
	}
}

// GetByID fetches one user, selecting the variant by discriminator.
func (r *Repository) GetByID(ctx context.Context, id string) (User, error) {
	raw, err := r.col.FindByID(ctx, id, nil)
	if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrInvalidIdentifier) {
		return nil, fmt.Errorf("user %q not found: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return r.fromRaw(raw)
}

// GetByEmail fetches one user by exact email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (User, error) {
	raw, err := r.col.FindOne(ctx, bson.M{"email": email}, nil)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, fmt.Errorf("user with email %q not found: %w", email, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return r.fromRaw(raw)
}

// GetNewPersonal returns an unsaved personal user.
func (r *Repository) GetNewPersonal() *Personal {
	doc := docstore.NewDocument(r.col)
	doc.Set(DiscriminatorField, KindPersonal)
	doc.Set("createdAt", time.Now().UTC())
	return &Personal{doc: doc, passport: r.passport, roles: r.roles}
}

// GetNewAdmin returns an unsaved admin user.
func (r *Repository) GetNewAdmin() *Admin {
	doc := docstore.NewDocument(r.col)
	doc.Set(DiscriminatorField, KindAdmin)
	doc.Set("createdAt", time.Now().UTC())
	return &Admin{doc: doc, passport: r.passport}
}

// Save persists either variant and moves its recorded events into the unit
// of work's buffer.
func (r *Repository) Save(ctx context.Context, u User) error {
	switch v := u.(type) {
	case *Personal:
		if err := v.doc.Save(ctx); err != nil {
			return err
		}
		r.recorder.Record(v.DrainEvents()...)
		return nil
	case *Admin:
		if err := v.doc.Save(ctx); err != nil {
			return err
		}
		r.recorder.Record(v.DrainEvents()...)
		return nil
	default:
		return fmt.Errorf("save user: unsupported variant %T: %w", u, sentinel.ErrInvalidState)
	}
}

func (r *Repository) fromRaw(raw bson.M) (User, error) {
	doc := docstore.Hydrate(r.col, raw)
	u, err := FromDocument(doc, r.passport)
	if err != nil {
		return nil, err
	}
	if p, ok := u.(*Personal); ok {
		p.roles = r.roles
	}
	return u, nil
}
