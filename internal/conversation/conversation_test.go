package conversation

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"

	"lendit/internal/user"
	"lendit/pkg/docstore/memdoc"
	"lendit/pkg/domain"
	"lendit/pkg/platform/sentinel"
)

type ConversationSuite struct {
	suite.Suite
	store    *memdoc.Store
	recorder *domain.Recorder
	repo     *Repository
	users    *user.Repository
}

func TestConversationSuite(t *testing.T) {
	suite.Run(t, new(ConversationSuite))
}

func (s *ConversationSuite) SetupTest() {
	s.store = memdoc.NewStore()
	s.recorder = domain.NewRecorder()
	s.repo = NewRepository(s.store, nil, s.recorder, zerolog.Nop())
	s.users = user.NewRepository(s.store, nil, s.recorder, zerolog.Nop())

	ctx := context.Background()
	users := s.store.Collection(user.CollectionName)
	for _, doc := range []bson.M{
		{"_id": "sharer-1", user.DiscriminatorField: user.KindPersonal, "email": "ada@example.com", "displayName": "Ada"},
		{"_id": "admin-1", user.DiscriminatorField: user.KindAdmin, "email": "ops@example.com", "displayName": "Ops"},
		{"_id": "starter-1", user.DiscriminatorField: user.KindPersonal, "email": "rex@example.com", "displayName": "Rex"},
	} {
		_, err := users.InsertOne(ctx, doc)
		s.Require().NoError(err)
	}
}

func (s *ConversationSuite) start(sharerID string) *Conversation {
	ctx := context.Background()
	sharer, err := s.users.GetByID(ctx, sharerID)
	s.Require().NoError(err)

	conv := s.repo.GetNewInstance()
	conv.SetSubject("about the bike")
	s.Require().NoError(conv.SetSharer(sharer))
	s.Require().NoError(conv.SetStarter(user.UnresolvedReference("starter-1")))
	s.Require().NoError(s.repo.Save(ctx, conv))
	return conv
}

func (s *ConversationSuite) TestEmbeddedSharer() {
	ctx := context.Background()

	s.Run("persists a full copy of the sharer document", func() {
		conv := s.start("sharer-1")

		raw, err := s.store.Collection(CollectionName).FindByID(ctx, conv.ID(), nil)
		s.Require().NoError(err)
		embedded, ok := raw["sharer"].(bson.M)
		s.Require().True(ok)
		s.Equal("sharer-1", embedded["_id"])
		s.Equal("Ada", embedded["displayName"])
	})

	s.Run("reads back as the variant matching the discriminator", func() {
		conv := s.start("admin-1")

		reloaded, err := s.repo.GetByID(ctx, conv.ID())
		s.Require().NoError(err)
		ref, err := reloaded.Sharer()
		s.Require().NoError(err)
		s.Equal(user.KindAdmin, ref.Kind())
		resolved, ok := ref.Resolved()
		s.Require().True(ok)
		s.Equal("Ops", resolved.DisplayName())
	})

	s.Run("copy is detached from the live account", func() {
		conv := s.start("sharer-1")

		sharer, err := s.users.GetByID(ctx, "sharer-1")
		s.Require().NoError(err)
		sharer.(*user.Personal).SetDisplayName("Renamed")
		s.Require().NoError(s.users.Save(ctx, sharer))

		reloaded, err := s.repo.GetByID(ctx, conv.ID())
		s.Require().NoError(err)
		ref, err := reloaded.Sharer()
		s.Require().NoError(err)
		resolved, _ := ref.Resolved()
		s.Equal("Ada", resolved.DisplayName())
	})

	s.Run("nil sharer is rejected", func() {
		conv := s.repo.GetNewInstance()
		s.ErrorIs(conv.SetSharer(nil), sentinel.ErrMissingReferenceID)
	})
}

func (s *ConversationSuite) TestStarterReference() {
	ctx := context.Background()
	conv := s.start("sharer-1")

	reloaded, err := s.repo.GetByID(ctx, conv.ID())
	s.Require().NoError(err)

	ref, err := reloaded.Starter()
	s.NoError(err)
	s.Equal("starter-1", ref.ID())
	_, ok := ref.Resolved()
	s.False(ok)

	ref, err = reloaded.LoadStarter(ctx)
	s.Require().NoError(err)
	resolved, ok := ref.Resolved()
	s.Require().True(ok)
	s.Equal("Rex", resolved.DisplayName())
}

func (s *ConversationSuite) TestStartedEvent() {
	ctx := context.Background()

	s.Run("first save records it with the assigned id", func() {
		s.recorder.Drain()
		conv := s.start("sharer-1")

		events := s.recorder.Drain()
		s.Require().Len(events, 1)
		s.Equal("conversation.started", events[0].EventName())
		s.Equal(conv.ID(), events[0].AggregateID())
		s.Equal("starter-1", events[0].(Started).StarterID)
	})

	s.Run("later saves do not repeat it", func() {
		conv := s.start("sharer-1")
		s.recorder.Drain()

		conv.SetSubject("still about the bike")
		s.Require().NoError(s.repo.Save(ctx, conv))
		s.Empty(s.recorder.Drain())
	})
}

func (s *ConversationSuite) TestMessages() {
	ctx := context.Background()

	s.Run("appends in order and persists", func() {
		conv := s.start("sharer-1")
		s.Require().NoError(conv.AddMessage("starter-1", "is it available?"))
		s.Require().NoError(conv.AddMessage("sharer-1", "yes, from friday"))
		s.Require().NoError(s.repo.Save(ctx, conv))

		reloaded, err := s.repo.GetByID(ctx, conv.ID())
		s.Require().NoError(err)
		messages := reloaded.Messages()
		s.Require().Len(messages, 2)
		s.Equal("is it available?", messages[0].Body)
		s.Equal("sharer-1", messages[1].SenderID)
		s.False(messages[0].SentAt.IsZero())
	})

	s.Run("records an event per message", func() {
		conv := s.start("sharer-1")
		s.recorder.Drain()
		s.Require().NoError(conv.AddMessage("starter-1", "hello"))
		s.Require().NoError(s.repo.Save(ctx, conv))

		events := s.recorder.Drain()
		s.Require().Len(events, 1)
		s.Equal("conversation.message_added", events[0].EventName())
	})

	s.Run("empty sender is rejected", func() {
		conv := s.start("sharer-1")
		s.ErrorIs(conv.AddMessage("", "anonymous"), sentinel.ErrMissingReferenceID)
	})
}

func (s *ConversationSuite) TestFinders() {
	ctx := context.Background()
	s.start("sharer-1")
	s.start("sharer-1")
	s.start("admin-1")

	byStarter, err := s.repo.FindByStarter(ctx, "starter-1")
	s.NoError(err)
	s.Len(byStarter, 3)

	bySharer, err := s.repo.FindBySharer(ctx, "sharer-1")
	s.NoError(err)
	s.Len(bySharer, 2)
}
