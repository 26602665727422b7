package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"handover/internal/audit"
	"handover/internal/registration/metrics"
	"handover/internal/registration/models"
	id "handover/pkg/domain"
	dErrors "handover/pkg/domain-errors"
	"handover/pkg/platform/sentinel"
	"handover/pkg/requestcontext"
)

// Store is the persistence contract every registration backend satisfies.
// Reads and writes are scoped by builder: a record owned by someone else is absent.
type Store interface {
	Create(ctx context.Context, r *models.Registration) error
	Update(ctx context.Context, builderID id.BuilderID, regID id.RegistrationID, p models.Payload, now time.Time) (*models.Registration, error)
	FindByID(ctx context.Context, builderID id.BuilderID, regID id.RegistrationID) (*models.Registration, error)
	List(ctx context.Context, builderID id.BuilderID, filter models.ListFilter) ([]*models.Registration, error)
	CountByStatus(ctx context.Context, builderID id.BuilderID) (map[models.Status]int, error)
	Delete(ctx context.Context, builderID id.BuilderID, regID id.RegistrationID) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Service is the persistence gateway the wizard talks to.
type Service struct {
	store          Store
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// New constructs a Service.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
		tracer: otel.Tracer("handover/registration"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create persists a new registration owned by the calling builder. Any builder
// id in the payload is ignored. Status defaults to draft.
func (s *Service) Create(ctx context.Context, p models.Payload) (*models.Registration, error) {
	ctx, span := s.tracer.Start(ctx, "registration.create")
	defer span.End()
	start := time.Now()
	defer s.metrics.ObserveCreate(start)

	builderID := requestcontext.BuilderID(ctx)
	if builderID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "builder identity required")
	}
	if p.Status != nil && !p.Status.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown status "+p.Status.String())
	}

	now := requestcontext.Now(ctx)
	r := &models.Registration{
		ID:                id.NewRegistrationID(),
		BuilderID:         builderID,
		SelectedItems:     map[string][]string{},
		DocumentsUploaded: map[string][]string{},
		ItemDetails:       map[string]models.ItemDetail{},
		Status:            models.StatusDraft,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	p.Apply(r)
	span.SetAttributes(attribute.String("registration.id", r.ID.String()))

	if err := s.store.Create(ctx, r); err != nil {
		return nil, s.storeError(ctx, span, "create", err)
	}

	s.metrics.IncrementCreated()
	s.emit(ctx, audit.Event{
		Action:         audit.ActionRegistrationCreated,
		BuilderID:      builderID,
		RegistrationID: r.ID,
		Status:         r.Status.String(),
	})
	s.logger.InfoContext(ctx, "registration created",
		"request_id", requestcontext.RequestID(ctx),
		"registration_id", r.ID,
		"status", r.Status,
	)
	return r, nil
}

// Update writes only the supplied fields of p. Concurrent writers are not
// detected: the last update wins.
func (s *Service) Update(ctx context.Context, regID id.RegistrationID, p models.Payload) (*models.Registration, error) {
	ctx, span := s.tracer.Start(ctx, "registration.update",
		trace.WithAttributes(attribute.String("registration.id", regID.String())))
	defer span.End()
	start := time.Now()
	defer s.metrics.ObserveUpdate(start)

	builderID := requestcontext.BuilderID(ctx)
	if builderID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "builder identity required")
	}
	if p.Status != nil && !p.Status.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown status "+p.Status.String())
	}

	updated, err := s.store.Update(ctx, builderID, regID, p, requestcontext.Now(ctx))
	if err != nil {
		return nil, s.storeError(ctx, span, "update", err)
	}

	s.emit(ctx, audit.Event{
		Action:         audit.ActionRegistrationUpdated,
		BuilderID:      builderID,
		RegistrationID: regID,
		Status:         updated.Status.String(),
	})
	return updated, nil
}

// FetchByID loads a registration owned by the calling builder.
func (s *Service) FetchByID(ctx context.Context, regID id.RegistrationID) (*models.Registration, error) {
	ctx, span := s.tracer.Start(ctx, "registration.fetch",
		trace.WithAttributes(attribute.String("registration.id", regID.String())))
	defer span.End()
	start := time.Now()
	defer s.metrics.ObserveFetch(start)

	builderID := requestcontext.BuilderID(ctx)
	if builderID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "builder identity required")
	}
	r, err := s.store.FindByID(ctx, builderID, regID)
	if err != nil {
		return nil, s.storeError(ctx, span, "fetch", err)
	}
	return r, nil
}

// List returns the calling builder's registrations, newest first.
func (s *Service) List(ctx context.Context, filter models.ListFilter) ([]*models.Registration, error) {
	ctx, span := s.tracer.Start(ctx, "registration.list")
	defer span.End()

	builderID := requestcontext.BuilderID(ctx)
	if builderID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "builder identity required")
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown status "+filter.Status.String())
	}
	out, err := s.store.List(ctx, builderID, filter.Normalize())
	if err != nil {
		return nil, s.storeError(ctx, span, "list", err)
	}
	return out, nil
}

// Stats returns the dashboard counters for the caller's registrations.
func (s *Service) Stats(ctx context.Context) (*models.Stats, error) {
	ctx, span := s.tracer.Start(ctx, "registration.stats")
	defer span.End()

	builderID := requestcontext.BuilderID(ctx)
	if builderID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "builder identity required")
	}
	counts, err := s.store.CountByStatus(ctx, builderID)
	if err != nil {
		return nil, s.storeError(ctx, span, "stats", err)
	}
	st := models.NewStats(counts)
	return &st, nil
}

// SendEntitlement marks the registration sent and stamps entitlement_sent_at.
// A registration that has already been sent is a conflict.
func (s *Service) SendEntitlement(ctx context.Context, regID id.RegistrationID) (*models.Registration, error) {
	ctx, span := s.tracer.Start(ctx, "registration.send_entitlement",
		trace.WithAttributes(attribute.String("registration.id", regID.String())))
	defer span.End()

	builderID := requestcontext.BuilderID(ctx)
	if builderID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "builder identity required")
	}
	current, err := s.store.FindByID(ctx, builderID, regID)
	if err != nil {
		return nil, s.storeError(ctx, span, "send_entitlement", err)
	}
	if current.Status.IsSent() {
		return nil, dErrors.New(dErrors.CodeConflict, "entitlement already sent")
	}

	now := requestcontext.Now(ctx)
	updated, err := s.store.Update(ctx, builderID, regID, models.Payload{
		Status:            models.Ptr(models.StatusSent),
		EntitlementSentAt: &now,
	}, now)
	if err != nil {
		return nil, s.storeError(ctx, span, "send_entitlement", err)
	}

	s.metrics.IncrementEntitlementsSent()
	s.emit(ctx, audit.Event{
		Action:         audit.ActionEntitlementSent,
		BuilderID:      builderID,
		RegistrationID: regID,
		Status:         updated.Status.String(),
	})
	s.logger.InfoContext(ctx, "entitlement sent",
		"request_id", requestcontext.RequestID(ctx),
		"registration_id", regID,
	)
	return updated, nil
}

// MarkDelivered applies a delivery receipt. It runs outside any request, so the
// builder comes from the receipt rather than the context. A receipt for an
// already delivered record is ignored. A receipt that overtakes SendEntitlement
// fails as unavailable so the caller retries it once the send commits.
func (s *Service) MarkDelivered(ctx context.Context, builderID id.BuilderID, regID id.RegistrationID, at time.Time) error {
	ctx, span := s.tracer.Start(ctx, "registration.mark_delivered",
		trace.WithAttributes(attribute.String("registration.id", regID.String())))
	defer span.End()

	current, err := s.store.FindByID(ctx, builderID, regID)
	if err != nil {
		return s.storeError(ctx, span, "mark_delivered", err)
	}
	switch current.Status {
	case models.StatusSent:
	case models.StatusDelivered:
		s.logger.InfoContext(ctx, "duplicate delivery receipt ignored",
			"registration_id", regID,
		)
		return nil
	default:
		s.logger.InfoContext(ctx, "delivery receipt arrived before send committed",
			"registration_id", regID,
			"status", current.Status,
		)
		return dErrors.Wrap(
			fmt.Errorf("registration %s is %s: %w", regID, current.Status, sentinel.ErrInvalidState),
			dErrors.CodeUnavailable, "registration not yet marked sent")
	}

	if _, err := s.store.Update(ctx, builderID, regID, models.Payload{
		Status:      models.Ptr(models.StatusDelivered),
		DeliveredAt: &at,
	}, at); err != nil {
		return s.storeError(ctx, span, "mark_delivered", err)
	}

	s.metrics.IncrementDelivered()
	s.emit(ctx, audit.Event{
		Action:         audit.ActionEntitlementDelivered,
		BuilderID:      builderID,
		RegistrationID: regID,
		Status:         models.StatusDelivered.String(),
		Timestamp:      at,
	})
	return nil
}

// Delete removes a registration. Administrative only; the wizard never deletes.
func (s *Service) Delete(ctx context.Context, regID id.RegistrationID) error {
	ctx, span := s.tracer.Start(ctx, "registration.delete",
		trace.WithAttributes(attribute.String("registration.id", regID.String())))
	defer span.End()

	builderID := requestcontext.BuilderID(ctx)
	if builderID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "builder identity required")
	}
	if err := s.store.Delete(ctx, builderID, regID); err != nil {
		return s.storeError(ctx, span, "delete", err)
	}
	s.emit(ctx, audit.Event{
		Action:         audit.ActionRegistrationDeleted,
		BuilderID:      builderID,
		RegistrationID: regID,
	})
	return nil
}

// storeError maps persistence failures onto domain codes.
func (s *Service) storeError(ctx context.Context, span trace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, op+" failed")

	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "registration not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "registration already exists")
	case errors.Is(err, context.DeadlineExceeded):
		s.metrics.IncrementStoreFailure(op)
		return dErrors.Wrap(err, dErrors.CodeTimeout, "registration store timed out")
	default:
		s.metrics.IncrementStoreFailure(op)
		s.logger.ErrorContext(ctx, "registration store failed",
			"request_id", requestcontext.RequestID(ctx),
			"operation", op,
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "registration store unavailable")
	}
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}
