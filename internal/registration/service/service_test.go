package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,AuditPublisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"handover/internal/audit"
	"handover/internal/registration/models"
	"handover/internal/registration/service/mocks"
	"handover/internal/registration/store"
	id "handover/pkg/domain"
	dErrors "handover/pkg/domain-errors"
	"handover/pkg/platform/sentinel"
	"handover/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	mockStore *mocks.MockStore
	publisher *mocks.MockAuditPublisher
	service   *Service
	builder   id.BuilderID
	now       time.Time
	ctx       context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockStore = mocks.NewMockStore(s.ctrl)
	s.publisher = mocks.NewMockAuditPublisher(s.ctrl)
	s.service = New(s.mockStore, WithAuditPublisher(s.publisher))
	s.builder = id.BuilderID(uuid.New())
	s.now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(requestcontext.WithBuilderID(context.Background(), s.builder), s.now)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) TestCreate() {
	s.Run("stamps caller's builder and defaults to draft", func() {
		foreign := id.BuilderID(uuid.New())
		s.mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, r *models.Registration) error {
				s.Equal(s.builder, r.BuilderID)
				s.Equal(models.StatusDraft, r.Status)
				s.Equal("Jane Doe", r.CustomerName)
				s.Equal(s.now, r.CreatedAt)
				s.False(r.ID.IsNil())
				return nil
			})
		s.publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, e audit.Event) error {
				s.Equal(audit.ActionRegistrationCreated, e.Action)
				return nil
			})

		r, err := s.service.Create(s.ctx, models.Payload{
			BuilderID:    &foreign,
			CustomerName: models.Ptr("Jane Doe"),
		})
		s.Require().NoError(err)
		s.Equal(s.builder, r.BuilderID)
	})

	s.Run("requires a builder identity", func() {
		_, err := s.service.Create(context.Background(), models.Payload{})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("store failure surfaces as unavailable", func() {
		s.mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("connection refused"))

		_, err := s.service.Create(s.ctx, models.Payload{})
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
		s.True(dErrors.Retryable(dErrors.CodeOf(err)))
	})
}

func (s *ServiceSuite) TestUpdate() {
	regID := id.NewRegistrationID()

	s.Run("passes the payload through scoped to the builder", func() {
		p := models.Payload{Status: models.Ptr(models.StatusDocumentsPending)}
		s.mockStore.EXPECT().Update(gomock.Any(), s.builder, regID, p, s.now).
			Return(&models.Registration{ID: regID, Status: models.StatusDocumentsPending}, nil)
		s.publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

		r, err := s.service.Update(s.ctx, regID, p)
		s.Require().NoError(err)
		s.Equal(models.StatusDocumentsPending, r.Status)
	})

	s.Run("missing record is not found", func() {
		s.mockStore.EXPECT().Update(gomock.Any(), s.builder, regID, gomock.Any(), gomock.Any()).
			Return(nil, sentinel.ErrNotFound)

		_, err := s.service.Update(s.ctx, regID, models.Payload{Notes: models.Ptr("")})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("unknown status is rejected before the store", func() {
		_, err := s.service.Update(s.ctx, regID, models.Payload{Status: models.Ptr(models.Status("archived"))})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("audit publisher failure does not fail the update", func() {
		s.mockStore.EXPECT().Update(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&models.Registration{ID: regID}, nil)
		s.publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(audit.ErrBufferFull)

		_, err := s.service.Update(s.ctx, regID, models.Payload{Notes: models.Ptr("x")})
		s.NoError(err)
	})
}

func (s *ServiceSuite) TestFetchByID() {
	regID := id.NewRegistrationID()

	s.Run("timeout maps to timeout", func() {
		s.mockStore.EXPECT().FindByID(gomock.Any(), s.builder, regID).Return(nil, context.DeadlineExceeded)

		_, err := s.service.FetchByID(s.ctx, regID)
		s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
	})

	s.Run("wrapped not found maps to not found", func() {
		s.mockStore.EXPECT().FindByID(gomock.Any(), s.builder, regID).
			Return(nil, errors.Join(errors.New("find registration"), sentinel.ErrNotFound))

		_, err := s.service.FetchByID(s.ctx, regID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// The remaining tests run against the in-memory store so state flows through.
func (s *ServiceSuite) newMemoryService() *Service {
	return New(store.NewInMemory())
}

func (s *ServiceSuite) TestSendEntitlement() {
	svc := s.newMemoryService()
	created, err := svc.Create(s.ctx, models.Payload{Status: models.Ptr(models.StatusReadyForReview)})
	s.Require().NoError(err)

	sent, err := svc.SendEntitlement(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusSent, sent.Status)
	s.Require().NotNil(sent.EntitlementSentAt)
	s.Equal(s.now, *sent.EntitlementSentAt)

	_, err = svc.SendEntitlement(s.ctx, created.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestMarkDelivered() {
	svc := s.newMemoryService()
	created, err := svc.Create(s.ctx, models.Payload{})
	s.Require().NoError(err)
	at := s.now.Add(4 * time.Second)

	s.Run("receipt ahead of the send is retryable", func() {
		err := svc.MarkDelivered(context.Background(), s.builder, created.ID, at)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
		s.True(dErrors.Retryable(dErrors.CodeOf(err)))
		s.ErrorIs(err, sentinel.ErrInvalidState)

		r, err := svc.FetchByID(s.ctx, created.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusDraft, r.Status)
	})

	s.Run("advances sent to delivered", func() {
		_, err := svc.SendEntitlement(s.ctx, created.ID)
		s.Require().NoError(err)
		s.Require().NoError(svc.MarkDelivered(context.Background(), s.builder, created.ID, at))

		r, err := svc.FetchByID(s.ctx, created.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusDelivered, r.Status)
		s.Require().NotNil(r.DeliveredAt)
		s.Equal(at, *r.DeliveredAt)
	})

	s.Run("duplicate receipt is ignored", func() {
		s.Require().NoError(svc.MarkDelivered(context.Background(), s.builder, created.ID, at.Add(time.Minute)))
		r, err := svc.FetchByID(s.ctx, created.ID)
		s.Require().NoError(err)
		s.Equal(at, *r.DeliveredAt)
	})

	s.Run("other builder's receipt is not found", func() {
		err := svc.MarkDelivered(context.Background(), id.BuilderID(uuid.New()), created.ID, at)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestReceiptBeforeSendIsAppliedOnRetry() {
	svc := s.newMemoryService()
	created, err := svc.Create(s.ctx, models.Payload{Status: models.Ptr(models.StatusReadyForReview)})
	s.Require().NoError(err)
	at := s.now.Add(time.Second)

	err = svc.MarkDelivered(context.Background(), s.builder, created.ID, at)
	s.Require().Error(err)

	_, err = svc.SendEntitlement(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Require().NoError(svc.MarkDelivered(context.Background(), s.builder, created.ID, at))

	r, err := svc.FetchByID(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusDelivered, r.Status)
	s.Require().NotNil(r.DeliveredAt)
}

func (s *ServiceSuite) TestListAndDelete() {
	svc := s.newMemoryService()
	for range 3 {
		_, err := svc.Create(s.ctx, models.Payload{})
		s.Require().NoError(err)
	}
	all, err := svc.List(s.ctx, models.ListFilter{})
	s.Require().NoError(err)
	s.Len(all, 3)

	s.Require().NoError(svc.Delete(s.ctx, all[0].ID))
	err = svc.Delete(s.ctx, all[0].ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = svc.List(s.ctx, models.ListFilter{Status: "archived"})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestStats() {
	s.Run("folds store counts into dashboard buckets", func() {
		s.mockStore.EXPECT().CountByStatus(gomock.Any(), s.builder).Return(map[models.Status]int{
			models.StatusDraft:          1,
			models.StatusReadyForReview: 2,
			models.StatusSent:           3,
			models.StatusDelivered:      1,
		}, nil)

		st, err := s.service.Stats(s.ctx)
		s.Require().NoError(err)
		s.Equal(models.Stats{Total: 7, Sent: 4, Pending: 1, Ready: 2}, *st)
	})

	s.Run("store outage is unavailable", func() {
		s.mockStore.EXPECT().CountByStatus(gomock.Any(), s.builder).
			Return(nil, errors.Join(errors.New("count registrations"), sentinel.ErrUnavailable))

		_, err := s.service.Stats(s.ctx)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})

	s.Run("requires a builder", func() {
		_, err := s.service.Stats(context.Background())
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *ServiceSuite) TestListSearch() {
	svc := s.newMemoryService()
	_, err := svc.Create(s.ctx, models.Payload{CustomerName: models.Ptr("Jane Doe"), ProjectName: models.Ptr("Bayview")})
	s.Require().NoError(err)
	_, err = svc.Create(s.ctx, models.Payload{CustomerName: models.Ptr("Sam Smith")})
	s.Require().NoError(err)

	found, err := svc.List(s.ctx, models.ListFilter{Query: "  bay "})
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal("Jane Doe", found[0].CustomerName)
}
