package listing

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/sync/errgroup"

	"lendit/internal/platform/metrics"
	"lendit/internal/readmodel"
	"lendit/pkg/docstore"
	"lendit/pkg/docstore/lean"
	"lendit/pkg/domain"
)

// searchableFields is the fixed set free-text search matches against.
var searchableFields = []string{"title", "description", "category", "location"}

// sortAliases maps caller-facing sort names onto storage fields.
var sortAliases = map[string]string{
	"publishedAt": "createdAt",
	"createdAt":   "createdAt",
	"status":      "state",
	"title":       "title",
}

// Summary is the lightweight domain reference the read path produces; no
// live document, no adapter machinery behind it.
type Summary struct {
	ID          string
	Title       string
	Description string
	Category    string
	Location    string
	Status      string
	SharerID    string
	CreatedAt   time.Time
}

// ReadRepository answers paginated, filtered, sorted listing queries over
// the lean data source, bypassing hydration entirely.
type ReadRepository struct {
	source   *lean.Source
	passport domain.Passport
	log      zerolog.Logger
	metrics  *metrics.Metrics
}

func NewReadRepository(store docstore.Store, passport domain.Passport, log zerolog.Logger, m *metrics.Metrics) *ReadRepository {
	log = log.With().Str("repository", "listing-read").Logger()
	return &ReadRepository{
		source:   lean.NewSource(store.Collection(CollectionName), log),
		passport: passport,
		log:      log,
		metrics:  m,
	}
}

// GetPaged runs the business query: free-text search OR-ed over the
// searchable fields, status set-membership, aliased sort (newest-first by
// default), and paging. The page fetch and the total count run
// concurrently.
func (r *ReadRepository) GetPaged(ctx context.Context, q readmodel.Query) (readmodel.Page[Summary], error) {
	started := time.Now()
	defer func() { r.metrics.ObserveQuery("listing", "GetPaged", time.Since(started)) }()

	q = q.Normalize()
	filter := readmodel.Merge(
		readmodel.SearchFilter(q.SearchText, searchableFields),
		readmodel.StatusFilter("state", q.Statuses),
	)
	limit := int64(q.PageSize)
	skip := q.Skip()

	var (
		records []lean.Record
		total   int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = r.source.Find(gctx, filter, &lean.Options{
			Sort:  readmodel.SortSpec(q.SortBy, sortAliases, "createdAt"),
			Limit: &limit,
			Skip:  &skip,
		})
		return err
	})
	g.Go(func() error {
		var err error
		total, err = r.source.Count(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return readmodel.Page[Summary]{}, err
	}

	items := make([]Summary, 0, len(records))
	for _, rec := range records {
		items = append(items, summaryFrom(rec))
	}
	return readmodel.Page[Summary]{Items: items, Total: total, Page: q.Page, PageSize: q.PageSize}, nil
}

// GetByID returns one summary, or nil for a missing or malformed id.
func (r *ReadRepository) GetByID(ctx context.Context, id string) (*Summary, error) {
	rec, err := r.source.FindByID(ctx, id, nil)
	if err != nil || rec == nil {
		return nil, err
	}
	s := summaryFrom(rec)
	return &s, nil
}

func summaryFrom(rec lean.Record) Summary {
	s := Summary{
		ID:          str(rec["id"]),
		Title:       str(rec["title"]),
		Description: str(rec["description"]),
		Category:    str(rec["category"]),
		Location:    str(rec["location"]),
		Status:      str(rec["state"]),
	}
	if t, ok := rec["createdAt"].(time.Time); ok {
		s.CreatedAt = t
	}
	// sharer may be a bare id or a populated object; both carry the id.
	switch v := rec["sharer"].(type) {
	case bson.M:
		s.SharerID = str(v["id"])
	default:
		s.SharerID = docstore.IDString(v)
	}
	return s
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
