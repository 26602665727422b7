package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"handover/internal/queries/models"
	"handover/internal/queries/service"
	"handover/internal/queries/store"
	regmodels "handover/internal/registration/models"
	regservice "handover/internal/registration/service"
	regstore "handover/internal/registration/store"
	id "handover/pkg/domain"
	"handover/pkg/requestcontext"
	"handover/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	router chi.Router
	regID  id.RegistrationID
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	builder := id.BuilderID(uuid.New())
	registrations := regservice.New(regstore.NewInMemory())
	reg, err := registrations.Create(requestcontext.WithBuilderID(context.Background(), builder),
		regmodels.Payload{CustomerName: regmodels.Ptr("Jane Doe")})
	s.Require().NoError(err)
	s.regID = reg.ID

	s.router = chi.NewRouter()
	s.router.Use(testutil.AsBuilder(builder))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	New(service.New(store.NewInMemory(), registrations), logger).Register(s.router)
}

func (s *HandlerSuite) do(method, target string, body any) *httptest.ResponseRecorder {
	return testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), method, target, body))
}

func (s *HandlerSuite) TestCreateListRespond() {
	rec := s.do(http.MethodPost, "/queries", map[string]any{
		"registration_id": s.regID.String(),
		"subject":         "Oven",
		"message":         "It will not heat.",
	})
	s.Require().Equal(http.StatusCreated, rec.Code)
	created := testutil.UnmarshalResponse[models.Query](s.T(), rec)
	s.Equal(models.StatusOpen, created.Status)

	rec = s.do(http.MethodGet, "/queries", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	list := testutil.UnmarshalResponse[ListResponse](s.T(), rec)
	s.Require().Equal(1, list.Count)
	s.Require().NotNil(list.Queries[0].Registration)
	s.Equal("Jane Doe", list.Queries[0].Registration.CustomerName)

	rec = s.do(http.MethodPost, "/queries/"+created.ID.String()+"/respond", map[string]any{"response": "Booked a technician."})
	s.Require().Equal(http.StatusOK, rec.Code)
	responded := testutil.UnmarshalResponse[models.Query](s.T(), rec)
	s.Equal(models.StatusResponded, responded.Status)
	s.NotNil(responded.RespondedAt)

	rec = s.do(http.MethodGet, "/queries?status=open", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Zero(testutil.UnmarshalResponse[ListResponse](s.T(), rec).Count)

	rec = s.do(http.MethodPost, "/queries/"+created.ID.String()+"/close", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(models.StatusClosed, testutil.UnmarshalResponse[models.Query](s.T(), rec).Status)
}

func (s *HandlerSuite) TestValidation() {
	s.Run("blank response", func() {
		rec := s.do(http.MethodPost, "/queries/"+id.NewQueryID().String()+"/respond", map[string]any{"response": "  "})
		testutil.AssertStatusAndError(s.T(), rec, http.StatusUnprocessableEntity, "validation_error")
	})

	s.Run("bad registration id", func() {
		rec := s.do(http.MethodPost, "/queries", map[string]any{"registration_id": "nope", "subject": "Oven", "message": "Broken"})
		testutil.AssertStatusAndError(s.T(), rec, http.StatusUnprocessableEntity, "validation_error")
	})

	s.Run("unknown query", func() {
		rec := s.do(http.MethodPost, "/queries/"+id.NewQueryID().String()+"/respond", map[string]any{"response": "Hello"})
		s.Equal(http.StatusNotFound, rec.Code)
	})

	s.Run("unknown status filter", func() {
		rec := s.do(http.MethodGet, "/queries?status=pending", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}
