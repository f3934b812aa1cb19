// Package mongodb implements the docstore ports over the official mongo
// driver. One Store wraps one database; collections are cheap handles and
// safe for concurrent use.
//
// Identifiers are stored as 24-hex strings rather than native ObjectIDs:
// reference fields written by this layer hold string ids, and $lookup joins
// only match when local and foreign identifier types agree. Inserts without
// an _id get a fresh ObjectID hex assigned client-side.
package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"lendit/pkg/docstore"
	"lendit/pkg/platform/sentinel"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
	tracer trace.Tracer
}

func NewStore(client *mongo.Client, database string) *Store {
	return &Store{
		client: client,
		db:     client.Database(database),
		tracer: otel.Tracer("lendit/docstore"),
	}
}

func (s *Store) Collection(name string) docstore.Collection {
	return &collection{col: s.db.Collection(name), tracer: s.tracer}
}

// WithTransaction runs fn inside one session transaction. fn's context
// carries the session, so every collection call made with it joins the
// transaction. fn's error aborts and is returned unchanged.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	})
	return err
}

type collection struct {
	col    *mongo.Collection
	tracer trace.Tracer
}

func (c *collection) Name() string { return c.col.Name() }

func (c *collection) Find(ctx context.Context, filter bson.M, opts *docstore.FindOptions) ([]bson.M, error) {
	ctx, span := c.tracer.Start(ctx, "docstore.Find")
	defer span.End()

	cursor, err := c.col.Find(ctx, orEmpty(filter), findOptions(opts))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("find %s: %w", c.Name(), err)
	}
	return decodeAll(ctx, cursor, c.Name())
}

func (c *collection) FindOne(ctx context.Context, filter bson.M, opts *docstore.FindOptions) (bson.M, error) {
	ctx, span := c.tracer.Start(ctx, "docstore.FindOne")
	defer span.End()

	var out bson.M
	err := c.col.FindOne(ctx, orEmpty(filter), findOneOptions(opts)).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%s: %w", c.Name(), sentinel.ErrNotFound)
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("find one %s: %w", c.Name(), err)
	}
	return out, nil
}

// FindByID validates the identifier shape before querying; a malformed id
// is reported as ErrInvalidIdentifier without a round trip.
func (c *collection) FindByID(ctx context.Context, id string, opts *docstore.FindOptions) (bson.M, error) {
	if !validID(id) {
		return nil, fmt.Errorf("%s id %q: %w", c.Name(), id, sentinel.ErrInvalidIdentifier)
	}
	return c.FindOne(ctx, bson.M{"_id": idForms(id)}, opts)
}

func (c *collection) Count(ctx context.Context, filter bson.M) (int64, error) {
	ctx, span := c.tracer.Start(ctx, "docstore.Count")
	defer span.End()

	n, err := c.col.CountDocuments(ctx, orEmpty(filter))
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("count %s: %w", c.Name(), err)
	}
	return n, nil
}

func (c *collection) Aggregate(ctx context.Context, pipeline []bson.M) ([]bson.M, error) {
	ctx, span := c.tracer.Start(ctx, "docstore.Aggregate")
	defer span.End()

	stages := make(mongo.Pipeline, 0, len(pipeline))
	for _, stage := range pipeline {
		d := make(bson.D, 0, len(stage))
		for k, v := range stage {
			d = append(d, bson.E{Key: k, Value: v})
		}
		stages = append(stages, d)
	}
	cursor, err := c.col.Aggregate(ctx, stages)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("aggregate %s: %w", c.Name(), err)
	}
	return decodeAll(ctx, cursor, c.Name())
}

func (c *collection) InsertOne(ctx context.Context, doc bson.M) (string, error) {
	ctx, span := c.tracer.Start(ctx, "docstore.InsertOne")
	defer span.End()

	if _, ok := doc["_id"]; !ok {
		doc["_id"] = primitive.NewObjectID().Hex()
	}
	res, err := c.col.InsertOne(ctx, doc)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("insert %s: %w", c.Name(), err)
	}
	return docstore.IDString(res.InsertedID), nil
}

func (c *collection) UpdateByID(ctx context.Context, id string, sets bson.M, unsets []string) error {
	ctx, span := c.tracer.Start(ctx, "docstore.UpdateByID")
	defer span.End()

	update := bson.M{}
	if len(sets) > 0 {
		update["$set"] = sets
	}
	if len(unsets) > 0 {
		u := bson.M{}
		for _, path := range unsets {
			u[path] = ""
		}
		update["$unset"] = u
	}
	if len(update) == 0 {
		return nil
	}
	res, err := c.col.UpdateOne(ctx, bson.M{"_id": idForms(id)}, update)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("update %s %s: %w", c.Name(), id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s %s: %w", c.Name(), id, sentinel.ErrNotFound)
	}
	return nil
}

func (c *collection) DeleteByID(ctx context.Context, id string) error {
	ctx, span := c.tracer.Start(ctx, "docstore.DeleteByID")
	defer span.End()

	res, err := c.col.DeleteOne(ctx, bson.M{"_id": idForms(id)})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("delete %s %s: %w", c.Name(), id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%s %s: %w", c.Name(), id, sentinel.ErrNotFound)
	}
	return nil
}

func decodeAll(ctx context.Context, cursor *mongo.Cursor, name string) ([]bson.M, error) {
	defer cursor.Close(ctx)
	var out []bson.M
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return out, nil
}

func findOptions(opts *docstore.FindOptions) *options.FindOptions {
	fo := options.Find()
	if opts == nil {
		return fo
	}
	if len(opts.Projection) > 0 {
		fo.SetProjection(opts.Projection)
	}
	if len(opts.Sort) > 0 {
		fo.SetSort(opts.Sort)
	}
	if opts.Limit != nil {
		fo.SetLimit(*opts.Limit)
	}
	if opts.Skip != nil {
		fo.SetSkip(*opts.Skip)
	}
	return fo
}

func findOneOptions(opts *docstore.FindOptions) *options.FindOneOptions {
	fo := options.FindOne()
	if opts == nil {
		return fo
	}
	if len(opts.Projection) > 0 {
		fo.SetProjection(opts.Projection)
	}
	if len(opts.Sort) > 0 {
		fo.SetSort(opts.Sort)
	}
	return fo
}

func validID(id string) bool {
	_, err := primitive.ObjectIDFromHex(id)
	return err == nil
}

// idForms matches an identifier in either representation, covering
// collections seeded by external writers that used native ObjectIDs.
func idForms(id string) bson.M {
	forms := []any{id}
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		forms = append(forms, oid)
	}
	return bson.M{"$in": forms}
}

func orEmpty(filter bson.M) bson.M {
	if filter == nil {
		return bson.M{}
	}
	return filter
}
