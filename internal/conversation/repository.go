package conversation

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

// Repository reads and writes conversation aggregates.
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
		log:      log.With().Str("repository", "conversation").Logger(),
	}
}

// GetByID fetches one conversation. Missing and malformed ids both surface
// as a not-found error carrying the id and entity type.
func (r *Repository) GetByID(ctx context.Context, id string) (*Conversation, error) {
	raw, err := r.col.FindByID(ctx, id, nil)
	if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrInvalidIdentifier) {
		return nil, fmt.Errorf("conversation %q not found: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return r.hydrate(raw), nil
}

// GetNewInstance returns an unsaved conversation.
func (r *Repository) GetNewInstance() *Conversation {
	doc := docstore.NewDocument(r.col)
	doc.Set("createdAt", time.Now().UTC())
	doc.Set("messages", []any{})
	return &Conversation{doc: doc, passport: r.passport, users: r.users}
}

// FindByStarter returns the threads a user opened, newest first.
func (r *Repository) FindByStarter(ctx context.Context, starterID string) ([]*Conversation, error) {
	raws, err := r.col.Find(ctx, bson.M{"starter": starterID}, &docstore.FindOptions{
		Sort: bson.D{{Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return nil, err
	}
	out := make([]*Conversation, 0, len(raws))
	for _, raw := range raws {
		out = append(out, r.hydrate(raw))
	}
	return out, nil
}

// FindBySharer returns the threads held with a given sharer, newest first.
// The sharer is an embedded copy, so this filters on the copy's own id.
func (r *Repository) FindBySharer(ctx context.Context, sharerID string) ([]*Conversation, error) {
	raws, err := r.col.Find(ctx, bson.M{"sharer._id": sharerID}, &docstore.FindOptions{
		Sort: bson.D{{Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return nil, err
	}
	out := make([]*Conversation, 0, len(raws))
	for _, raw := range raws {
		out = append(out, r.hydrate(raw))
	}
	return out, nil
}

// Save persists the thread and moves its recorded events into the unit of
// work's buffer. The first save of a thread records Started, after the
// insert has assigned the conversation its id.
func (r *Repository) Save(ctx context.Context, conv *Conversation) error {
	wasNew := conv.doc.IsNew()
	if err := conv.doc.Save(ctx); err != nil {
		return err
	}
	if wasNew {
		raw, _ := conv.doc.Get("starter")
		r.recorder.Record(NewStarted(conv.ID(), docstore.IDString(raw)))
	}
	r.recorder.Record(conv.DrainEvents()...)
	return nil
}

func (r *Repository) hydrate(raw bson.M) *Conversation {
	return &Conversation{
		doc:      docstore.Hydrate(r.col, raw),
		passport: r.passport,
		users:    r.users,
	}
}
