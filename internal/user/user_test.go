package user

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"

	"lendit/internal/role"
	"lendit/pkg/docstore/memdoc"
	"lendit/pkg/domain"
	"lendit/pkg/platform/sentinel"
)

type UserSuite struct {
	suite.Suite
	store    *memdoc.Store
	recorder *domain.Recorder
	repo     *Repository
}

func TestUserSuite(t *testing.T) {
	suite.Run(t, new(UserSuite))
}

func (s *UserSuite) SetupTest() {
	s.store = memdoc.NewStore()
	s.recorder = domain.NewRecorder()
	s.repo = NewRepository(s.store, nil, s.recorder, zerolog.Nop())

	ctx := context.Background()
	users := s.store.Collection(CollectionName)
	for _, doc := range []bson.M{
		{"_id": "p1", DiscriminatorField: KindPersonal, "email": "ada@example.com", "displayName": "Ada", "role": "plan-1"},
		{"_id": "a1", DiscriminatorField: KindAdmin, "email": "ops@example.com", "displayName": "Ops", "scope": "support"},
		{"_id": "x1", "email": "mystery@example.com"},
	} {
		_, err := users.InsertOne(ctx, doc)
		s.Require().NoError(err)
	}
	_, err := s.store.Collection(role.CollectionName).InsertOne(ctx, bson.M{"_id": "plan-1", "name": "Pro"})
	s.Require().NoError(err)
}

// =============================================================================
// Variant Resolution
// =============================================================================

func (s *UserSuite) TestGetByID() {
	ctx := context.Background()

	s.Run("personal discriminator yields Personal", func() {
		u, err := s.repo.GetByID(ctx, "p1")
		s.Require().NoError(err)
		s.IsType(&Personal{}, u)
		s.Equal(KindPersonal, u.Kind())
		s.Equal("ada@example.com", u.Email())
	})

	s.Run("admin discriminator yields Admin", func() {
		u, err := s.repo.GetByID(ctx, "a1")
		s.Require().NoError(err)
		s.IsType(&Admin{}, u)
		s.Equal("support", u.(*Admin).Scope())
	})

	s.Run("missing discriminator never resolves by shape", func() {
		_, err := s.repo.GetByID(ctx, "x1")
		s.ErrorIs(err, sentinel.ErrInvalidPopulation)
	})

	s.Run("missing user", func() {
		_, err := s.repo.GetByID(ctx, "ghost")
		s.ErrorIs(err, sentinel.ErrNotFound)
		s.Contains(err.Error(), `user "ghost" not found`)
	})
}

func (s *UserSuite) TestGetByEmail() {
	ctx := context.Background()

	u, err := s.repo.GetByEmail(ctx, "ops@example.com")
	s.NoError(err)
	s.Equal("a1", u.ID())

	_, err = s.repo.GetByEmail(ctx, "none@example.com")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *UserSuite) TestFromEmbedded() {
	s.Run("selects by discriminator only", func() {
		u, err := FromEmbedded(bson.M{"_id": "e1", DiscriminatorField: KindAdmin, "displayName": "Emb"}, nil)
		s.NoError(err)
		s.Equal(KindAdmin, u.Kind())
		s.Equal("Emb", u.DisplayName())
	})

	s.Run("shape-compatible document without discriminator fails", func() {
		_, err := FromEmbedded(bson.M{"_id": "e2", "email": "a@b.c", "displayName": "Looks Personal"}, nil)
		s.ErrorIs(err, sentinel.ErrInvalidPopulation)
	})
}

// =============================================================================
// Role Reference (three states)
// =============================================================================

func (s *UserSuite) TestRoleReference() {
	ctx := context.Background()

	s.Run("absent field", func() {
		p := s.repo.GetNewPersonal()
		_, err := p.Role()
		s.ErrorIs(err, sentinel.ErrNotPopulated)
	})

	s.Run("unresolved carries only the id", func() {
		u, err := s.repo.GetByID(ctx, "p1")
		s.Require().NoError(err)
		ref, err := u.(*Personal).Role()
		s.NoError(err)
		s.Equal("plan-1", ref.ID())
		_, ok := ref.Resolved()
		s.False(ok)
	})

	s.Run("load resolves and is idempotent", func() {
		u, err := s.repo.GetByID(ctx, "p1")
		s.Require().NoError(err)
		p := u.(*Personal)

		ref, err := p.LoadRole(ctx)
		s.Require().NoError(err)
		resolved, ok := ref.Resolved()
		s.Require().True(ok)
		s.Equal("Pro", resolved.Name())

		again, err := p.LoadRole(ctx)
		s.NoError(err)
		_, ok = again.Resolved()
		s.True(ok)
	})

	s.Run("set writes the foreign id only", func() {
		u, err := s.repo.GetByID(ctx, "p1")
		s.Require().NoError(err)
		p := u.(*Personal)

		s.Require().NoError(p.SetRole(role.UnresolvedReference("plan-2")))
		s.Require().NoError(s.repo.Save(ctx, p))

		raw, err := s.store.Collection(CollectionName).FindByID(ctx, "p1", nil)
		s.Require().NoError(err)
		s.Equal("plan-2", raw["role"])
	})

	s.Run("empty reference id is rejected", func() {
		p := s.repo.GetNewPersonal()
		err := p.SetRole(role.Reference{})
		s.ErrorIs(err, sentinel.ErrMissingReferenceID)
	})
}

// =============================================================================
// Nested Profile / Billing
// =============================================================================

func (s *UserSuite) TestProfileBilling() {
	ctx := context.Background()

	s.Run("auto-vivifies nested structures on first touch", func() {
		p := s.repo.GetNewPersonal()
		p.SetEmail("new@example.com")

		billing := p.Profile().Billing()
		s.Equal("", billing.Plan())
		billing.SetPlan("pro")
		billing.SetPayoutMethod("iban")

		s.Require().NoError(s.repo.Save(ctx, p))

		reloaded, err := s.repo.GetByID(ctx, p.ID())
		s.Require().NoError(err)
		b := reloaded.(*Personal).Profile().Billing()
		s.Equal("pro", b.Plan())
		s.Equal("iban", b.PayoutMethod())
	})

	s.Run("profile fields round-trip", func() {
		u, err := s.repo.GetByID(ctx, "p1")
		s.Require().NoError(err)
		profile := u.(*Personal).Profile()
		profile.SetBio("tinkerer")
		profile.SetLocation("north")
		s.Require().NoError(s.repo.Save(ctx, u))

		reloaded, err := s.repo.GetByID(ctx, "p1")
		s.Require().NoError(err)
		s.Equal("tinkerer", reloaded.(*Personal).Profile().Bio())
	})
}

// =============================================================================
// Save / Events
// =============================================================================

func (s *UserSuite) TestSave() {
	ctx := context.Background()

	s.Run("drains aggregate events into the recorder", func() {
		p := s.repo.GetNewPersonal()
		p.SetEmail("evt@example.com")
		p.Record(domain.NewBaseEvent("user.registered", "pending"))

		s.Require().NoError(s.repo.Save(ctx, p))
		events := s.recorder.Drain()
		s.Require().Len(events, 1)
		s.Equal("user.registered", events[0].EventName())
	})

	s.Run("admin round-trip", func() {
		a := s.repo.GetNewAdmin()
		a.SetEmail("admin2@example.com")
		a.SetScope("billing")
		s.Require().NoError(s.repo.Save(ctx, a))

		reloaded, err := s.repo.GetByID(ctx, a.ID())
		s.Require().NoError(err)
		s.Equal("billing", reloaded.(*Admin).Scope())
	})
}
