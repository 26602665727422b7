package service

import (
	"context"
	"errors"
	"log/slog"

	"handover/internal/audit"
	"handover/internal/queries/models"
	regmodels "handover/internal/registration/models"
	id "handover/pkg/domain"
	dErrors "handover/pkg/domain-errors"
	"handover/pkg/platform/sentinel"
	"handover/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, q *models.Query) error
	Update(ctx context.Context, q *models.Query) error
	FindByID(ctx context.Context, builderID id.BuilderID, queryID id.QueryID) (*models.Query, error)
	List(ctx context.Context, builderID id.BuilderID, filter models.ListFilter) ([]*models.Query, error)
}

// Registrations resolves the registration a query is about, scoped to the
// caller's builder.
type Registrations interface {
	FetchByID(ctx context.Context, regID id.RegistrationID) (*regmodels.Registration, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Service manages the builder's inbox of homeowner queries.
type Service struct {
	store          Store
	registrations  Registrations
	logger         *slog.Logger
	auditPublisher AuditPublisher
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = p
	}
}

func New(store Store, registrations Registrations, opts ...Option) *Service {
	s := &Service{store: store, registrations: registrations, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create files a new open query against one of the builder's registrations.
func (s *Service) Create(ctx context.Context, regID id.RegistrationID, subject, message string) (*models.Query, error) {
	builderID, err := builderFrom(ctx)
	if err != nil {
		return nil, err
	}
	reg, err := s.registrations.FetchByID(ctx, regID)
	if err != nil {
		return nil, err
	}
	q, err := models.NewQuery(id.NewQueryID(), builderID, regID, subject, message, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}
	if err := s.store.Create(ctx, q); err != nil {
		return nil, s.storeError(ctx, err, "failed to create query")
	}
	q.Registration = summarize(reg)
	s.logger.InfoContext(ctx, "query created",
		"request_id", requestcontext.RequestID(ctx),
		"query_id", q.ID,
		"registration_id", regID,
	)
	return q, nil
}

func (s *Service) Get(ctx context.Context, queryID id.QueryID) (*models.Query, error) {
	builderID, err := builderFrom(ctx)
	if err != nil {
		return nil, err
	}
	q, err := s.store.FindByID(ctx, builderID, queryID)
	if err != nil {
		return nil, s.storeError(ctx, err, "failed to load query")
	}
	s.attachSummaries(ctx, []*models.Query{q})
	return q, nil
}

// List returns the inbox newest first, each query carrying its registration summary.
func (s *Service) List(ctx context.Context, filter models.ListFilter) ([]*models.Query, error) {
	builderID, err := builderFrom(ctx)
	if err != nil {
		return nil, err
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown query status "+string(filter.Status))
	}
	out, err := s.store.List(ctx, builderID, filter)
	if err != nil {
		return nil, s.storeError(ctx, err, "failed to list queries")
	}
	s.attachSummaries(ctx, out)
	return out, nil
}

// Respond records the builder's answer and marks the query responded.
func (s *Service) Respond(ctx context.Context, queryID id.QueryID, response string) (*models.Query, error) {
	q, err := s.Get(ctx, queryID)
	if err != nil {
		return nil, err
	}
	if err := q.Respond(response, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, q); err != nil {
		return nil, s.storeError(ctx, err, "failed to save response")
	}
	s.emit(ctx, audit.Event{
		Action:         audit.ActionQueryResponded,
		BuilderID:      q.BuilderID,
		RegistrationID: q.RegistrationID,
		Status:         string(q.Status),
	})
	s.logger.InfoContext(ctx, "query responded",
		"request_id", requestcontext.RequestID(ctx),
		"query_id", q.ID,
	)
	return q, nil
}

func (s *Service) Close(ctx context.Context, queryID id.QueryID) (*models.Query, error) {
	q, err := s.Get(ctx, queryID)
	if err != nil {
		return nil, err
	}
	if q.Status == models.StatusClosed {
		return q, nil
	}
	q.Close(requestcontext.Now(ctx))
	if err := s.store.Update(ctx, q); err != nil {
		return nil, s.storeError(ctx, err, "failed to close query")
	}
	return q, nil
}

// attachSummaries fills in registration summaries the store could not join.
// A registration that no longer resolves leaves the summary empty.
func (s *Service) attachSummaries(ctx context.Context, queries []*models.Query) {
	seen := make(map[id.RegistrationID]*models.RegistrationSummary)
	for _, q := range queries {
		if q.Registration != nil {
			continue
		}
		summary, ok := seen[q.RegistrationID]
		if !ok {
			if reg, err := s.registrations.FetchByID(ctx, q.RegistrationID); err == nil {
				summary = summarize(reg)
			} else if !dErrors.HasCode(err, dErrors.CodeNotFound) {
				s.logger.WarnContext(ctx, "query registration lookup failed",
					"request_id", requestcontext.RequestID(ctx),
					"registration_id", q.RegistrationID,
					"error", err,
				)
			}
			seen[q.RegistrationID] = summary
		}
		q.Registration = summary
	}
}

func (s *Service) storeError(ctx context.Context, err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "query not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "query already exists")
	default:
		s.logger.ErrorContext(ctx, msg, "request_id", requestcontext.RequestID(ctx), "error", err)
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
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

func builderFrom(ctx context.Context) (id.BuilderID, error) {
	builderID := requestcontext.BuilderID(ctx)
	if builderID.IsNil() {
		return builderID, dErrors.New(dErrors.CodeUnauthorized, "builder identity required")
	}
	return builderID, nil
}

func summarize(r *regmodels.Registration) *models.RegistrationSummary {
	return &models.RegistrationSummary{
		CustomerName:  r.CustomerName,
		CustomerEmail: r.CustomerEmail,
		ProjectName:   r.ProjectName,
	}
}
