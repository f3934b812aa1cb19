// Package lean issues non-hydrating queries against one collection and
// returns flattened records with normalized identifiers. It is the read
// path's data source: no live documents, no adapters, no change tracking.
package lean

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"lendit/pkg/docstore"
	"lendit/pkg/platform/sentinel"
)

// Record is a flattened query result. The store identifier is mirrored into
// a stable "id" string on the record and on every embedded object that
// carries its own identifier.
type Record = bson.M

type ProjectionMode int

const (
	Include ProjectionMode = iota
	Exclude
)

// PopulateSpec join-fetches one reference field into the flattened result.
// The output stays a plain record; nothing is adapter-wrapped.
type PopulateSpec struct {
	Field string
	From  docstore.Collection
}

// Options shape one lean query. All fields are optional and independently
// omittable; the zero value means "everything, store order".
type Options struct {
	Fields   []string
	Mode     ProjectionMode
	Limit    *int64
	Skip     *int64
	Sort     bson.D
	Populate []PopulateSpec
}

// Source runs lean queries against one collection. Stateless beyond its
// collection handle; safe to share across concurrent calls.
type Source struct {
	col    docstore.Collection
	log    zerolog.Logger
	tracer trace.Tracer
}

func NewSource(col docstore.Collection, log zerolog.Logger) *Source {
	return &Source{
		col:    col,
		log:    log.With().Str("collection", col.Name()).Logger(),
		tracer: otel.Tracer("lendit/lean"),
	}
}

func (s *Source) Collection() docstore.Collection { return s.col }

func (s *Source) Find(ctx context.Context, filter bson.M, opts *Options) ([]Record, error) {
	ctx, span := s.tracer.Start(ctx, "lean.Find")
	defer span.End()

	records, err := s.col.Find(ctx, SanitizeFilter(filter), findOptions(opts))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := s.populate(ctx, records, opts); err != nil {
		span.RecordError(err)
		return nil, err
	}
	for _, r := range records {
		Normalize(r)
	}
	return records, nil
}

func (s *Source) FindOne(ctx context.Context, filter bson.M, opts *Options) (Record, error) {
	ctx, span := s.tracer.Start(ctx, "lean.FindOne")
	defer span.End()

	record, err := s.col.FindOne(ctx, SanitizeFilter(filter), findOptions(opts))
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := s.populate(ctx, []Record{record}, opts); err != nil {
		span.RecordError(err)
		return nil, err
	}
	Normalize(record)
	return record, nil
}

// FindByID is total: malformed identifiers and absent documents both come
// back as (nil, nil). Client-supplied ids are routinely garbage; that is an
// expected miss, not an error.
func (s *Source) FindByID(ctx context.Context, id string, opts *Options) (Record, error) {
	ctx, span := s.tracer.Start(ctx, "lean.FindByID")
	defer span.End()

	record, err := s.col.FindByID(ctx, id, findOptions(opts))
	if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrInvalidIdentifier) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := s.populate(ctx, []Record{record}, opts); err != nil {
		span.RecordError(err)
		return nil, err
	}
	Normalize(record)
	return record, nil
}

func (s *Source) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.col.Count(ctx, SanitizeFilter(filter))
}

// populate batch-fetches each requested reference field and embeds the
// results into the flattened records. Dangling identifiers are left as bare
// ids; the caller sees the unresolved value rather than a fabricated null.
func (s *Source) populate(ctx context.Context, records []Record, opts *Options) error {
	if opts == nil {
		return nil
	}
	for _, spec := range opts.Populate {
		ids := make([]any, 0, len(records))
		seen := map[string]struct{}{}
		for _, r := range records {
			id := refID(r[spec.Field])
			if id == "" {
				continue
			}
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			continue
		}
		foreign, err := spec.From.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, nil)
		if err != nil {
			return fmt.Errorf("populate %s: %w", spec.Field, err)
		}
		byID := make(map[string]bson.M, len(foreign))
		for _, doc := range foreign {
			byID[docstore.IDString(doc["_id"])] = doc
		}
		for _, r := range records {
			id := refID(r[spec.Field])
			if id == "" {
				continue
			}
			if doc, ok := byID[id]; ok {
				r[spec.Field] = doc
			} else {
				s.log.Debug().Str("field", spec.Field).Str("id", id).Msg("populate target missing")
			}
		}
	}
	return nil
}

// refID extracts the identifier from an unresolved reference value. Embedded
// documents return "" so they are never re-fetched.
func refID(v any) string {
	switch v.(type) {
	case bson.M, map[string]any:
		return ""
	default:
		return docstore.IDString(v)
	}
}

func findOptions(opts *Options) *docstore.FindOptions {
	if opts == nil {
		return nil
	}
	fo := &docstore.FindOptions{
		Sort:  opts.Sort,
		Limit: opts.Limit,
		Skip:  opts.Skip,
	}
	if len(opts.Fields) > 0 {
		flag := 1
		if opts.Mode == Exclude {
			flag = 0
		}
		for _, f := range opts.Fields {
			fo.Projection = append(fo.Projection, bson.E{Key: f, Value: flag})
		}
	}
	return fo
}
