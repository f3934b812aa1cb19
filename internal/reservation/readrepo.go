package reservation

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/sync/errgroup"

	"lendit/internal/listing"
	"lendit/internal/platform/metrics"
	"lendit/internal/readmodel"
	"lendit/internal/user"
	"lendit/pkg/docstore"
	"lendit/pkg/docstore/lean"
	"lendit/pkg/domain"
)

var searchableFields = []string{"message"}

var sortAliases = map[string]string{
	"createdAt": "createdAt",
	"status":    "state",
}

// Summary is the lightweight read-side reference to one request, with the
// joined listing and reserver flattened in when populated.
type Summary struct {
	ID           string
	Status       string
	Message      string
	CreatedAt    time.Time
	ListingID    string
	ListingTitle string
	ReserverID   string
	ReserverName string
}

// ReadRepository answers paginated request queries over the lean data
// source. Cross-aggregate filtering (requests for listings owned by a given
// sharer) fetches candidate foreign keys first, then filters by membership,
// so the join stays store-agnostic at the cost of a second round trip.
type ReadRepository struct {
	source   *lean.Source
	listings *lean.Source
	users    docstore.Collection
	passport domain.Passport
	log      zerolog.Logger
	metrics  *metrics.Metrics
}

func NewReadRepository(store docstore.Store, passport domain.Passport, log zerolog.Logger, m *metrics.Metrics) *ReadRepository {
	log = log.With().Str("repository", "reservation-read").Logger()
	return &ReadRepository{
		source:   lean.NewSource(store.Collection(CollectionName), log),
		listings: lean.NewSource(store.Collection(listing.CollectionName), log),
		users:    store.Collection(user.CollectionName),
		passport: passport,
		log:      log,
		metrics:  m,
	}
}

// GetPaged runs the same-aggregate business query.
func (r *ReadRepository) GetPaged(ctx context.Context, q readmodel.Query) (readmodel.Page[Summary], error) {
	started := time.Now()
	defer func() { r.metrics.ObserveQuery("reservation", "GetPaged", time.Since(started)) }()

	q = q.Normalize()
	filter := readmodel.Merge(
		readmodel.SearchFilter(q.SearchText, searchableFields),
		readmodel.StatusFilter("state", q.Statuses),
	)
	return r.paged(ctx, filter, q)
}

// GetPagedBySharer answers the cross-aggregate query: requests against
// listings owned by sharerID. The request document has no sharer field, so
// candidate listing ids are fetched first and the request collection is
// filtered by membership. Requests whose listing no longer exists are never
// candidates, which excludes dangling references by construction.
func (r *ReadRepository) GetPagedBySharer(ctx context.Context, sharerID string, q readmodel.Query) (readmodel.Page[Summary], error) {
	started := time.Now()
	defer func() { r.metrics.ObserveQuery("reservation", "GetPagedBySharer", time.Since(started)) }()

	q = q.Normalize()
	candidates, err := r.listings.Find(ctx, bson.M{"sharer": sharerID}, &lean.Options{
		Fields: []string{"_id"},
	})
	if err != nil {
		return readmodel.Page[Summary]{}, err
	}
	if len(candidates) == 0 {
		return readmodel.Page[Summary]{Page: q.Page, PageSize: q.PageSize, Items: []Summary{}}, nil
	}
	ids := make([]any, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, docstore.IDString(c["_id"]))
	}

	filter := readmodel.Merge(
		bson.M{"listing": bson.M{"$in": ids}},
		readmodel.SearchFilter(q.SearchText, searchableFields),
		readmodel.StatusFilter("state", q.Statuses),
	)
	return r.paged(ctx, filter, q)
}

func (r *ReadRepository) paged(ctx context.Context, filter bson.M, q readmodel.Query) (readmodel.Page[Summary], error) {
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
			Populate: []lean.PopulateSpec{
				{Field: "listing", From: r.listings.Collection()},
				{Field: "reserver", From: r.users},
			},
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

func summaryFrom(rec lean.Record) Summary {
	s := Summary{
		ID:      str(rec["id"]),
		Status:  str(rec["state"]),
		Message: str(rec["message"]),
	}
	if t, ok := rec["createdAt"].(time.Time); ok {
		s.CreatedAt = t
	}
	switch v := rec["listing"].(type) {
	case bson.M:
		s.ListingID = str(v["id"])
		s.ListingTitle = str(v["title"])
	default:
		s.ListingID = docstore.IDString(v)
	}
	switch v := rec["reserver"].(type) {
	case bson.M:
		s.ReserverID = str(v["id"])
		s.ReserverName = str(v["displayName"])
	default:
		s.ReserverID = docstore.IDString(v)
	}
	return s
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
