// Package docstore defines the ports this layer consumes from a document
// store and the live document model the write path mutates through.
//
// Two implementations exist: mongodb (the real driver) and memdoc (an
// in-memory twin used by unit tests and local development). Everything above
// this package talks to the Store/Collection interfaces only.
package docstore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// FindOptions translates paging, sorting and projection into store-native
// options. All fields are optional and independently omittable.
type FindOptions struct {
	// Projection is a store-shaped field selection ({field: 1} includes,
	// {field: 0} excludes). Nil means all fields.
	Projection bson.D
	Sort       bson.D
	Limit      *int64
	Skip       *int64
}

// Collection exposes the primitive operations this layer needs from one
// store collection. Identifiers cross this boundary as strings; the driver
// implementation converts to its native identifier type.
//
// FindOne and FindByID return sentinel.ErrNotFound (wrapped) when nothing
// matches. FindByID returns sentinel.ErrInvalidIdentifier when the id is not
// syntactically valid for the backing store; callers that treat malformed
// ids as "absent" handle that locally.
type Collection interface {
	Name() string

	Find(ctx context.Context, filter bson.M, opts *FindOptions) ([]bson.M, error)
	FindOne(ctx context.Context, filter bson.M, opts *FindOptions) (bson.M, error)
	FindByID(ctx context.Context, id string, opts *FindOptions) (bson.M, error)
	Count(ctx context.Context, filter bson.M) (int64, error)
	Aggregate(ctx context.Context, pipeline []bson.M) ([]bson.M, error)

	InsertOne(ctx context.Context, doc bson.M) (string, error)
	UpdateByID(ctx context.Context, id string, sets bson.M, unsets []string) error
	DeleteByID(ctx context.Context, id string) error
}

// Store hands out collections and runs transactions. Within the callback,
// fn's context carries the store session; any collection operation made with
// that context participates in the transaction. A non-nil error from fn
// aborts the transaction and is returned unchanged.
type Store interface {
	Collection(name string) Collection
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
