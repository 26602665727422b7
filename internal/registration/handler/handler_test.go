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

	"handover/internal/registration/models"
	"handover/internal/registration/service"
	"handover/internal/registration/store"
	id "handover/pkg/domain"
	"handover/pkg/requestcontext"
	"handover/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	router  chi.Router
	service *service.Service
	builder id.BuilderID
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.builder = id.BuilderID(uuid.New())
	s.service = service.New(store.NewInMemory())
	s.router = chi.NewRouter()
	s.router.Use(testutil.AsBuilder(s.builder))
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
}

func (s *HandlerSuite) ctx() context.Context {
	return requestcontext.WithBuilderID(context.Background(), s.builder)
}

func (s *HandlerSuite) do(method, target string) *httptest.ResponseRecorder {
	return testutil.DoRequest(s.router, httptest.NewRequest(method, target, nil))
}

func (s *HandlerSuite) TestGet() {
	created, err := s.service.Create(s.ctx(), models.Payload{CustomerName: models.Ptr("Jane Doe")})
	s.Require().NoError(err)

	s.Run("returns the registration", func() {
		rec := s.do(http.MethodGet, "/registrations/"+created.ID.String())
		s.Equal(http.StatusOK, rec.Code)

		body := *testutil.UnmarshalResponse[map[string]any](s.T(), rec)
		s.Equal("Jane Doe", body["customer_name"])
		s.Equal("draft", body["status"])
	})

	s.Run("unknown id is 404", func() {
		rec := s.do(http.MethodGet, "/registrations/"+uuid.NewString())
		testutil.AssertStatusAndError(s.T(), rec, http.StatusNotFound, "not_found")
	})

	s.Run("malformed id is 400", func() {
		rec := s.do(http.MethodGet, "/registrations/not-a-uuid")
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestList() {
	for range 2 {
		_, err := s.service.Create(s.ctx(), models.Payload{})
		s.Require().NoError(err)
	}

	s.Run("lists the builder's registrations", func() {
		rec := s.do(http.MethodGet, "/registrations")
		s.Equal(http.StatusOK, rec.Code)
		s.Equal(2, testutil.UnmarshalResponse[ListResponse](s.T(), rec).Count)
	})

	s.Run("status filter", func() {
		rec := s.do(http.MethodGet, "/registrations?status=sent")
		s.Equal(http.StatusOK, rec.Code)
		s.Zero(testutil.UnmarshalResponse[ListResponse](s.T(), rec).Count)
	})

	s.Run("bad paging is a validation error", func() {
		rec := s.do(http.MethodGet, "/registrations?limit=abc&offset=-1")
		testutil.AssertStatusAndError(s.T(), rec, http.StatusUnprocessableEntity, "validation_error")
	})

	s.Run("unknown status is 400", func() {
		rec := s.do(http.MethodGet, "/registrations?status=archived")
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestDelete() {
	created, err := s.service.Create(s.ctx(), models.Payload{})
	s.Require().NoError(err)

	s.Equal(http.StatusNoContent, s.do(http.MethodDelete, "/registrations/"+created.ID.String()).Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodDelete, "/registrations/"+created.ID.String()).Code)
}

func (s *HandlerSuite) TestSearch() {
	_, err := s.service.Create(s.ctx(), models.Payload{CustomerName: models.Ptr("Jane Doe"), PropertyAddress: models.Ptr("12 Harbour St")})
	s.Require().NoError(err)
	_, err = s.service.Create(s.ctx(), models.Payload{CustomerName: models.Ptr("Sam Smith")})
	s.Require().NoError(err)

	rec := s.do(http.MethodGet, "/registrations?q=harbour")
	s.Equal(http.StatusOK, rec.Code)
	body := testutil.UnmarshalResponse[ListResponse](s.T(), rec)
	s.Require().Equal(1, body.Count)
	s.Equal("Jane Doe", body.Registrations[0].CustomerName)
}

func (s *HandlerSuite) TestStats() {
	for _, status := range []models.Status{models.StatusDraft, models.StatusReadyForReview, models.StatusReadyForReview} {
		_, err := s.service.Create(s.ctx(), models.Payload{Status: models.Ptr(status)})
		s.Require().NoError(err)
	}
	ready, err := s.service.Create(s.ctx(), models.Payload{Status: models.Ptr(models.StatusReadyForReview)})
	s.Require().NoError(err)
	_, err = s.service.SendEntitlement(s.ctx(), ready.ID)
	s.Require().NoError(err)

	rec := s.do(http.MethodGet, "/registrations/stats")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(models.Stats{Total: 4, Sent: 1, Pending: 1, Ready: 2}, *testutil.UnmarshalResponse[models.Stats](s.T(), rec))
}
