package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"handover/internal/registration/models"
	id "handover/pkg/domain"
	"handover/pkg/platform/sentinel"
	"handover/pkg/requestcontext"
)

type PostgRESTSuite struct {
	suite.Suite
	server   *httptest.Server
	store    *PostgRESTStore
	ctx      context.Context
	builder  id.BuilderID
	handler  http.HandlerFunc
	lastReq  *http.Request
	lastBody map[string]any
}

func TestPostgRESTSuite(t *testing.T) {
	suite.Run(t, new(PostgRESTSuite))
}

func (s *PostgRESTSuite) SetupTest() {
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.lastReq = r
		s.lastBody = nil
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&s.lastBody)
		}
		s.handler(w, r)
	}))
	s.store = NewPostgREST(s.server.URL+"/rest/v1", "anon-key", 2*time.Second)
	s.builder = id.BuilderID(uuid.New())
	s.ctx = requestcontext.WithAccessToken(context.Background(), "builder-token")
}

func (s *PostgRESTSuite) TearDownTest() {
	s.server.Close()
}

func (s *PostgRESTSuite) respond(status int, body any) {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func (s *PostgRESTSuite) TestFindByIDFiltersByOwner() {
	regID := id.NewRegistrationID()
	s.respond(http.StatusOK, []map[string]any{{
		"id":              regID.String(),
		"builder_id":      s.builder.String(),
		"customer_name":   "Jane Doe",
		"status":          "documents_pending",
		"settlement_date": "2026-08-01",
		"selected_items":  map[string][]string{"Kitchen": {"itemA"}},
	}})

	r, err := s.store.FindByID(s.ctx, s.builder, regID)
	s.Require().NoError(err)

	q := s.lastReq.URL.Query()
	s.Equal("/rest/v1/homeowner_registrations", s.lastReq.URL.Path)
	s.Equal("eq."+regID.String(), q.Get("id"))
	s.Equal("eq."+s.builder.String(), q.Get("builder_id"))
	s.Equal("Bearer builder-token", s.lastReq.Header.Get("Authorization"))
	s.Equal("anon-key", s.lastReq.Header.Get("apikey"))

	s.Equal(models.StatusDocumentsPending, r.Status)
	s.Equal("2026-08-01", r.SettlementDate.String())
	s.NotNil(r.DocumentsUploaded)
}

func (s *PostgRESTSuite) TestEmptyResultIsNotFound() {
	s.respond(http.StatusOK, []any{})

	_, err := s.store.FindByID(s.ctx, s.builder, id.NewRegistrationID())
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.Update(s.ctx, s.builder, id.NewRegistrationID(), models.Payload{Notes: models.Ptr("")}, time.Now())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgRESTSuite) TestUpdateSendsOnlySuppliedColumns() {
	regID := id.NewRegistrationID()
	s.respond(http.StatusOK, []map[string]any{{"id": regID.String(), "builder_id": s.builder.String(), "status": "ready_for_review"}})

	_, err := s.store.Update(s.ctx, s.builder, regID, models.Payload{
		DocumentsUploaded: map[string][]string{"Kitchen-itemA": {"warranty.pdf"}},
		Status:            models.Ptr(models.StatusReadyForReview),
	}, time.Now())
	s.Require().NoError(err)

	s.Equal(http.MethodPatch, s.lastReq.Method)
	s.Equal("return=representation", s.lastReq.Header.Get("Prefer"))
	s.Len(s.lastBody, 3)
	s.Equal("ready_for_review", s.lastBody["status"])
	s.Contains(s.lastBody, "documents_uploaded")
	s.Contains(s.lastBody, "updated_at")
}

func (s *PostgRESTSuite) TestBackendFailureIsUnavailable() {
	s.respond(http.StatusBadGateway, map[string]string{"message": "upstream down"})

	_, err := s.store.List(s.ctx, s.builder, models.ListFilter{})
	s.ErrorIs(err, sentinel.ErrUnavailable)
	s.Contains(err.Error(), "upstream down")
}

func (s *PostgRESTSuite) TestListQuery() {
	s.respond(http.StatusOK, []any{})

	_, err := s.store.List(s.ctx, s.builder, models.ListFilter{Status: models.StatusSent, Limit: 10, Offset: 20})
	s.Require().NoError(err)

	q := s.lastReq.URL.Query()
	s.Equal("eq.sent", q.Get("status"))
	s.Equal("10", q.Get("limit"))
	s.Equal("20", q.Get("offset"))
	s.Equal("created_at.desc,id.asc", q.Get("order"))
}

func (s *PostgRESTSuite) TestCallsWithoutSessionUseServiceKey() {
	regID := id.NewRegistrationID()
	s.respond(http.StatusOK, []map[string]any{{"id": regID.String(), "builder_id": s.builder.String(), "status": "delivered"}})
	s.store = NewPostgREST(s.server.URL+"/rest/v1", "anon-key", 2*time.Second, WithServiceKey("service-key"))

	s.Run("receipt write without a session", func() {
		_, err := s.store.Update(context.Background(), s.builder, regID, models.Payload{Status: models.Ptr(models.StatusDelivered)}, time.Now())
		s.Require().NoError(err)
		s.Equal("Bearer service-key", s.lastReq.Header.Get("Authorization"))
		s.Equal("anon-key", s.lastReq.Header.Get("apikey"))
	})

	s.Run("builder session keeps its own token", func() {
		_, err := s.store.FindByID(s.ctx, s.builder, regID)
		s.Require().NoError(err)
		s.Equal("Bearer builder-token", s.lastReq.Header.Get("Authorization"))
	})

	s.Run("anon key without a service key", func() {
		s.store = NewPostgREST(s.server.URL+"/rest/v1", "anon-key", 2*time.Second)
		_, err := s.store.FindByID(context.Background(), s.builder, regID)
		s.Require().NoError(err)
		s.Equal("Bearer anon-key", s.lastReq.Header.Get("Authorization"))
	})
}

func (s *PostgRESTSuite) TestListSearchQuotesUserText() {
	s.respond(http.StatusOK, []any{})

	_, err := s.store.List(s.ctx, s.builder, models.ListFilter{Query: ` Smith, "Jr" `})
	s.Require().NoError(err)

	p := `"*Smith, \"Jr\"*"`
	s.Equal("(customer_name.ilike."+p+",customer_email.ilike."+p+
		",property_address.ilike."+p+",project_name.ilike."+p+")", s.lastReq.URL.Query().Get("or"))
}

func (s *PostgRESTSuite) TestCountByStatusTalliesRows() {
	s.respond(http.StatusOK, []map[string]string{
		{"status": "sent"}, {"status": "delivered"}, {"status": "sent"}, {"status": "draft"},
	})

	counts, err := s.store.CountByStatus(s.ctx, s.builder)
	s.Require().NoError(err)

	s.Equal("status", s.lastReq.URL.Query().Get("select"))
	s.Equal("eq."+s.builder.String(), s.lastReq.URL.Query().Get("builder_id"))
	s.Equal(map[models.Status]int{models.StatusSent: 2, models.StatusDelivered: 1, models.StatusDraft: 1}, counts)
}
