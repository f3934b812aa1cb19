//go:build integration

package mongodb

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"

	"lendit/pkg/docstore"
	"lendit/pkg/platform/sentinel"
	"lendit/pkg/testutil/containers"
)

type StoreIntegrationSuite struct {
	suite.Suite
	mongo *containers.MongoContainer
	store *Store
}

func TestStoreIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(StoreIntegrationSuite))
}

func (s *StoreIntegrationSuite) SetupSuite() {
	s.mongo = containers.NewMongoContainer(s.T())
}

func (s *StoreIntegrationSuite) SetupTest() {
	s.Require().NoError(s.mongo.DropDatabase(context.Background(), "lendit_test"))
	s.store = NewStore(s.mongo.Client, "lendit_test")
}

func (s *StoreIntegrationSuite) TearDownSuite() {
	ctx := context.Background()
	_ = s.mongo.Client.Disconnect(ctx)
	_ = s.mongo.Container.Terminate(ctx)
}

func (s *StoreIntegrationSuite) TestInsertAndFetch() {
	ctx := context.Background()
	col := s.store.Collection("things")

	id, err := col.InsertOne(ctx, bson.M{"name": "bike"})
	s.Require().NoError(err)
	s.Len(id, 24)

	doc, err := col.FindByID(ctx, id, nil)
	s.Require().NoError(err)
	s.Equal("bike", doc["name"])
	s.Equal(id, docstore.IDString(doc["_id"]))
}

func (s *StoreIntegrationSuite) TestFindByIDValidation() {
	ctx := context.Background()
	col := s.store.Collection("things")

	_, err := col.FindByID(ctx, "not-a-hex-id", nil)
	s.ErrorIs(err, sentinel.ErrInvalidIdentifier)

	_, err = col.FindByID(ctx, "662f00000000000000000000", nil)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreIntegrationSuite) TestUpdateByID() {
	ctx := context.Background()
	col := s.store.Collection("things")

	id, err := col.InsertOne(ctx, bson.M{"name": "old", "tmp": true})
	s.Require().NoError(err)

	s.Require().NoError(col.UpdateByID(ctx, id, bson.M{"name": "new"}, []string{"tmp"}))
	doc, err := col.FindByID(ctx, id, nil)
	s.Require().NoError(err)
	s.Equal("new", doc["name"])
	s.NotContains(doc, "tmp")

	err = col.UpdateByID(ctx, "662f00000000000000000000", bson.M{"x": 1}, nil)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreIntegrationSuite) TestStringIDJoin() {
	ctx := context.Background()
	owners := s.store.Collection("owners")
	things := s.store.Collection("things")

	ownerID, err := owners.InsertOne(ctx, bson.M{"name": "Ada"})
	s.Require().NoError(err)
	_, err = things.InsertOne(ctx, bson.M{"name": "bike", "owner": ownerID})
	s.Require().NoError(err)

	rows, err := things.Aggregate(ctx, []bson.M{
		{"$lookup": bson.M{"from": "owners", "localField": "owner", "foreignField": "_id", "as": "ownerDoc"}},
		{"$unwind": bson.M{"path": "$ownerDoc", "preserveNullAndEmptyArrays": true}},
	})
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	owner, ok := rows[0]["ownerDoc"].(bson.M)
	s.Require().True(ok)
	s.Equal("Ada", owner["name"])
}

func (s *StoreIntegrationSuite) TestWithTransaction() {
	ctx := context.Background()
	col := s.store.Collection("things")

	id, err := col.InsertOne(ctx, bson.M{"n": 1})
	s.Require().NoError(err)

	boom := errors.New("boom")
	err = s.store.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := col.UpdateByID(txCtx, id, bson.M{"n": 2}, nil); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	doc, err := col.FindByID(ctx, id, nil)
	s.Require().NoError(err)
	s.EqualValues(1, doc["n"])
}
