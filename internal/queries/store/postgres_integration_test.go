//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"handover/internal/queries/models"
	"handover/internal/queries/store"
	regmodels "handover/internal/registration/models"
	regstore "handover/internal/registration/store"
	id "handover/pkg/domain"
	"handover/pkg/platform/sentinel"
	"handover/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	builder  id.BuilderID
	reg      *regmodels.Registration
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB.Pool)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "homeowner_queries", "homeowner_registrations"))
	s.builder = id.BuilderID(uuid.New())

	now := time.Now().UTC().Truncate(time.Microsecond)
	s.reg = &regmodels.Registration{
		ID:                id.NewRegistrationID(),
		BuilderID:         s.builder,
		CustomerName:      "Jane Doe",
		CustomerEmail:     "jane@example.com",
		ProjectName:       "Bayview",
		SelectedItems:     map[string][]string{},
		DocumentsUploaded: map[string][]string{},
		ItemDetails:       map[string]regmodels.ItemDetail{},
		Status:            regmodels.StatusSent,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	s.Require().NoError(regstore.NewPostgres(s.postgres.DB.Pool).Create(ctx, s.reg))
}

func (s *PostgresStoreSuite) newQuery(at time.Time) *models.Query {
	q, err := models.NewQuery(id.NewQueryID(), s.builder, s.reg.ID, "Oven", "It will not heat.", at)
	s.Require().NoError(err)
	return q
}

func (s *PostgresStoreSuite) TestListJoinsRegistration() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	older := s.newQuery(now)
	newer := s.newQuery(now.Add(time.Minute))
	s.Require().NoError(s.store.Create(ctx, older))
	s.Require().NoError(s.store.Create(ctx, newer))

	all, err := s.store.List(ctx, s.builder, models.ListFilter{})
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal(newer.ID, all[0].ID)
	s.Require().NotNil(all[0].Registration)
	s.Equal("Jane Doe", all[0].Registration.CustomerName)
	s.Equal("Bayview", all[0].Registration.ProjectName)

	byReg, err := s.store.List(ctx, s.builder, models.ListFilter{RegistrationID: s.reg.ID, Status: models.StatusOpen})
	s.Require().NoError(err)
	s.Len(byReg, 2)

	foreign, err := s.store.List(ctx, id.BuilderID(uuid.New()), models.ListFilter{})
	s.Require().NoError(err)
	s.Empty(foreign)
}

func (s *PostgresStoreSuite) TestRespondRoundTrip() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	q := s.newQuery(now)
	s.Require().NoError(s.store.Create(ctx, q))

	s.Require().NoError(q.Respond("Booked a technician.", now.Add(time.Hour)))
	s.Require().NoError(s.store.Update(ctx, q))

	found, err := s.store.FindByID(ctx, s.builder, q.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusResponded, found.Status)
	s.Equal("Booked a technician.", found.Response)
	s.Require().NotNil(found.RespondedAt)
	s.True(found.RespondedAt.Equal(now.Add(time.Hour)))

	_, err = s.store.FindByID(ctx, id.BuilderID(uuid.New()), q.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestUnknownRegistrationIsNotFound() {
	q, err := models.NewQuery(id.NewQueryID(), s.builder, id.NewRegistrationID(), "Oven", "Broken", time.Now())
	s.Require().NoError(err)
	s.ErrorIs(s.store.Create(context.Background(), q), sentinel.ErrNotFound)
}
