package listing

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"

	"lendit/internal/readmodel"
	"lendit/pkg/docstore/memdoc"
)

type ReadRepositorySuite struct {
	suite.Suite
	store *memdoc.Store
	reads *ReadRepository
}

func TestReadRepositorySuite(t *testing.T) {
	suite.Run(t, new(ReadRepositorySuite))
}

func (s *ReadRepositorySuite) SetupTest() {
	s.store = memdoc.NewStore()
	s.reads = NewReadRepository(s.store, nil, zerolog.Nop(), nil)

	ctx := context.Background()
	col := s.store.Collection(CollectionName)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, doc := range []bson.M{
		{"_id": "l1", "title": "City Bike", "description": "light commuter", "category": "bikes", "location": "north", "state": StatusPublished, "sharer": "u1"},
		{"_id": "l2", "title": "Camping Tent", "description": "four seasons", "category": "outdoor", "location": "south", "state": StatusPublished, "sharer": "u1"},
		{"_id": "l3", "title": "Drill", "description": "power tool", "category": "tools", "location": "north", "state": StatusDraft, "sharer": "u2"},
		{"_id": "l4", "title": "Ladder", "description": "aluminium", "category": "tools", "location": "west", "state": StatusPaused, "sharer": "u2"},
	} {
		doc["createdAt"] = base.Add(time.Duration(i) * time.Hour)
		_, err := col.InsertOne(ctx, doc)
		s.Require().NoError(err)
	}
}

func (s *ReadRepositorySuite) ids(page readmodel.Page[Summary]) []string {
	out := make([]string, 0, len(page.Items))
	for _, item := range page.Items {
		out = append(out, item.ID)
	}
	return out
}

func (s *ReadRepositorySuite) TestGetPaged() {
	ctx := context.Background()

	s.Run("empty query returns everything newest first", func() {
		page, err := s.reads.GetPaged(ctx, readmodel.Query{})
		s.NoError(err)
		s.Equal(int64(4), page.Total)
		s.Equal([]string{"l4", "l3", "l2", "l1"}, s.ids(page))
		s.Equal(1, page.Page)
		s.Equal(20, page.PageSize)
	})

	s.Run("free-text search is case-insensitive across fields", func() {
		page, err := s.reads.GetPaged(ctx, readmodel.Query{SearchText: "bike"})
		s.NoError(err)
		s.Equal(int64(1), page.Total)
		s.Require().Len(page.Items, 1)
		s.Equal("City Bike", page.Items[0].Title)

		// matches description and category too
		page, err = s.reads.GetPaged(ctx, readmodel.Query{SearchText: "TOOL"})
		s.NoError(err)
		s.Equal(int64(2), page.Total)
	})

	s.Run("status filter", func() {
		page, err := s.reads.GetPaged(ctx, readmodel.Query{Statuses: []string{StatusPublished}})
		s.NoError(err)
		s.Equal(int64(2), page.Total)
		s.Equal([]string{"l2", "l1"}, s.ids(page))
	})

	s.Run("search and status combine", func() {
		page, err := s.reads.GetPaged(ctx, readmodel.Query{
			SearchText: "north",
			Statuses:   []string{StatusPublished},
		})
		s.NoError(err)
		s.Equal(int64(1), page.Total)
		s.Equal([]string{"l1"}, s.ids(page))
	})

	s.Run("pagination bounds items but not the total", func() {
		first, err := s.reads.GetPaged(ctx, readmodel.Query{Page: 1, PageSize: 3})
		s.NoError(err)
		s.Len(first.Items, 3)
		s.Equal(int64(4), first.Total)

		second, err := s.reads.GetPaged(ctx, readmodel.Query{Page: 2, PageSize: 3})
		s.NoError(err)
		s.Len(second.Items, 1)
		s.Equal(int64(4), second.Total)

		beyond, err := s.reads.GetPaged(ctx, readmodel.Query{Page: 5, PageSize: 3})
		s.NoError(err)
		s.Empty(beyond.Items)
		s.Equal(int64(4), beyond.Total)
	})

	s.Run("sort aliases map to storage fields", func() {
		page, err := s.reads.GetPaged(ctx, readmodel.Query{SortBy: "title"})
		s.NoError(err)
		s.Equal([]string{"l4", "l3", "l1", "l2"}, s.ids(page))

		page, err = s.reads.GetPaged(ctx, readmodel.Query{SortBy: "publishedAt"})
		s.NoError(err)
		s.Equal("l4", page.Items[0].ID)
	})

	s.Run("unknown sort name cannot reach arbitrary fields", func() {
		page, err := s.reads.GetPaged(ctx, readmodel.Query{SortBy: "sharer"})
		s.NoError(err)
		s.Equal([]string{"l4", "l3", "l2", "l1"}, s.ids(page))
	})
}

func (s *ReadRepositorySuite) TestGetByID() {
	ctx := context.Background()

	s.Run("returns a converted summary", func() {
		summary, err := s.reads.GetByID(ctx, "l1")
		s.NoError(err)
		s.Require().NotNil(summary)
		s.Equal("City Bike", summary.Title)
		s.Equal(StatusPublished, summary.Status)
		s.Equal("u1", summary.SharerID)
	})

	s.Run("missing and malformed ids are nil without error", func() {
		summary, err := s.reads.GetByID(ctx, "nonexistent-id")
		s.NoError(err)
		s.Nil(summary)
	})
}
