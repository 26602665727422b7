package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"handover/internal/audit"
	"handover/internal/dispatch"
	"handover/internal/wizard"
	"handover/internal/wizard/metrics"
	id "handover/pkg/domain"
	dErrors "handover/pkg/domain-errors"
	"handover/pkg/platform/sentinel"
	"handover/pkg/requestcontext"
)

// SessionStore persists wizard snapshots so a session survives a restart.
type SessionStore interface {
	Save(ctx context.Context, snap wizard.Snapshot) error
	Load(ctx context.Context, wizardID id.WizardID) (*wizard.Snapshot, error)
	Delete(ctx context.Context, wizardID id.WizardID) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Session is a wizard as shown to its builder: where it is and what the
// current step displays.
type Session struct {
	Snapshot wizard.Snapshot
	Busy     bool
	View     any
}

var errSessionNotFound = dErrors.New(dErrors.CodeNotFound, "wizard session not found")

// Service is the registry of live wizard sessions. Every lookup is scoped by
// the calling builder; another builder's session reads as absent.
type Service struct {
	gateway        wizard.Gateway
	dispatcher     dispatch.Dispatcher
	renderers      map[wizard.Step]wizard.Renderer
	sessions       SessionStore
	bus            *wizard.Bus
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	idleTTL        time.Duration

	mu   sync.Mutex
	live map[id.WizardID]*wizard.Controller
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

// WithIdleTTL sets how long an untouched session stays in memory.
func WithIdleTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.idleTTL = ttl
	}
}

func New(gateway wizard.Gateway, dispatcher dispatch.Dispatcher, catalog wizard.Catalog, sessions SessionStore, opts ...Option) *Service {
	s := &Service{
		gateway:    gateway,
		dispatcher: dispatcher,
		renderers:  wizard.Renderers(catalog),
		sessions:   sessions,
		logger:     slog.Default(),
		idleTTL:    2 * time.Hour,
		live:       make(map[id.WizardID]*wizard.Controller),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.bus = wizard.NewBus(s.logger)
	return s
}

// Start opens a wizard. With regID nil it starts blank on the customer step;
// otherwise the registration is fetched and the wizard resumes on the inferred step.
func (s *Service) Start(ctx context.Context, regID *id.RegistrationID) (*Session, error) {
	builderID := requestcontext.BuilderID(ctx)
	if builderID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "builder identity required")
	}

	opts := []wizard.ControllerOption{wizard.WithBus(s.bus), wizard.WithControllerLogger(s.logger)}
	now := requestcontext.Now(ctx)
	var c *wizard.Controller
	if regID == nil {
		c = wizard.NewController(id.NewWizardID(), builderID, now, s.gateway, s.dispatcher, opts...)
	} else {
		reg, err := s.gateway.FetchByID(ctx, *regID)
		if err != nil {
			return nil, err
		}
		c = wizard.ResumeController(id.NewWizardID(), builderID, now, reg, s.gateway, s.dispatcher, opts...)
	}

	s.mu.Lock()
	s.live[c.ID()] = c
	s.mu.Unlock()
	s.metrics.IncrementSessionStarted(regID != nil)
	s.persist(ctx, c)
	c.Announce(ctx)

	snap := c.Snapshot()
	s.logger.InfoContext(ctx, "wizard started",
		"request_id", requestcontext.RequestID(ctx),
		"wizard_id", c.ID(),
		"registration_id", snap.State.RegistrationID,
		"step", snap.Step,
	)
	return s.session(ctx, c)
}

// Get returns the session and the current step's view.
func (s *Service) Get(ctx context.Context, wizardID id.WizardID) (*Session, error) {
	c, err := s.controller(ctx, wizardID)
	if err != nil {
		return nil, err
	}
	return s.session(ctx, c)
}

// Submit validates raw input for step and, when valid, completes it.
func (s *Service) Submit(ctx context.Context, wizardID id.WizardID, step wizard.Step, raw json.RawMessage) (*Session, error) {
	c, err := s.controller(ctx, wizardID)
	if err != nil {
		return nil, err
	}
	renderer, ok := s.renderers[step]
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown wizard step "+step.String())
	}

	start := time.Now()
	c, err = s.retryEvicted(ctx, wizardID, c, func(c *wizard.Controller) error {
		return renderer.Submit(ctx, c.Snapshot().State, raw, func(out wizard.Output) error {
			return c.Complete(ctx, out)
		})
	})
	s.metrics.ObserveTransition(step.String(), outcome(err), start)
	if err != nil {
		return nil, err
	}

	s.persist(ctx, c)
	after := c.Snapshot()
	s.emit(ctx, audit.Event{
		Action:         audit.ActionWizardStepCompleted,
		BuilderID:      after.BuilderID,
		RegistrationID: after.State.RegistrationID,
		Status:         after.State.Status.String(),
		Step:           step.String(),
	})
	return s.session(ctx, c)
}

// Navigate moves the session back to an earlier step.
func (s *Service) Navigate(ctx context.Context, wizardID id.WizardID, target wizard.Step) (*Session, error) {
	c, err := s.controller(ctx, wizardID)
	if err != nil {
		return nil, err
	}
	c, err = s.retryEvicted(ctx, wizardID, c, func(c *wizard.Controller) error {
		return c.Navigate(ctx, target)
	})
	if err != nil {
		return nil, err
	}
	s.persist(ctx, c)
	return s.session(ctx, c)
}

// Close ends the session and forgets it. The registration is untouched.
func (s *Service) Close(ctx context.Context, wizardID id.WizardID) error {
	c, err := s.controller(ctx, wizardID)
	if err != nil {
		return err
	}
	c.Close(ctx)
	s.forget(ctx, wizardID)
	s.logger.InfoContext(ctx, "wizard closed",
		"request_id", requestcontext.RequestID(ctx),
		"wizard_id", wizardID,
	)
	return nil
}

// Subscribe registers handler for the session's notifications. The returned
// function cancels the subscription.
func (s *Service) Subscribe(ctx context.Context, wizardID id.WizardID, handler wizard.Handler) (func(), error) {
	if _, err := s.controller(ctx, wizardID); err != nil {
		return nil, err
	}
	return s.bus.Subscribe("*", func(e wizard.Event) {
		if e.Wizard() == wizardID {
			handler(e)
		}
	}), nil
}

// Sweep drops in-memory sessions idle for longer than the TTL. Snapshots in
// the session store expire on their own.
func (s *Service) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for wizardID, c := range s.live {
		if c.Evict(now, s.idleTTL) {
			delete(s.live, wizardID)
			s.metrics.DecrementActiveSessions()
			evicted++
		}
	}
	return evicted
}

// retryEvicted runs fn against c. When c was evicted between lookup and use,
// the session is reloaded from the store and fn runs once more.
func (s *Service) retryEvicted(ctx context.Context, wizardID id.WizardID, c *wizard.Controller, fn func(*wizard.Controller) error) (*wizard.Controller, error) {
	err := fn(c)
	if !errors.Is(err, wizard.ErrEvicted) {
		return c, err
	}
	c, err = s.controller(ctx, wizardID)
	if err != nil {
		return nil, err
	}
	return c, fn(c)
}

// Run sweeps idle sessions every interval until ctx is done.
func (s *Service) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if n := s.Sweep(now); n > 0 {
				s.logger.Info("evicted idle wizard sessions", "count", n)
			}
		}
	}
}

// controller finds the caller's live session, restoring it from the session
// store when this process has not seen it.
func (s *Service) controller(ctx context.Context, wizardID id.WizardID) (*wizard.Controller, error) {
	builderID := requestcontext.BuilderID(ctx)
	if builderID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "builder identity required")
	}

	s.mu.Lock()
	c, ok := s.live[wizardID]
	s.mu.Unlock()
	if ok {
		if c.BuilderID() != builderID {
			return nil, errSessionNotFound
		}
		return c, nil
	}

	snap, err := s.sessions.Load(ctx, wizardID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrExpired) {
			return nil, errSessionNotFound
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "wizard session store unavailable")
	}
	if snap.BuilderID != builderID || snap.Closed {
		return nil, errSessionNotFound
	}

	restored := wizard.RestoreController(*snap, s.gateway, s.dispatcher,
		wizard.WithBus(s.bus), wizard.WithControllerLogger(s.logger))
	s.mu.Lock()
	if existing, ok := s.live[wizardID]; ok {
		restored = existing
	} else {
		s.live[wizardID] = restored
		s.metrics.IncrementSessionStarted(true)
	}
	s.mu.Unlock()
	return restored, nil
}

func (s *Service) session(ctx context.Context, c *wizard.Controller) (*Session, error) {
	snap := c.Snapshot()
	view, err := s.renderers[snap.Step].View(ctx, snap.State)
	if err != nil {
		return nil, err
	}
	return &Session{Snapshot: snap, Busy: c.Busy(), View: view}, nil
}

// persist saves the snapshot. A failure is logged; the in-memory session
// stays authoritative for this process.
func (s *Service) persist(ctx context.Context, c *wizard.Controller) {
	ctx = requestcontext.Detach(ctx)
	if err := s.sessions.Save(ctx, c.Snapshot()); err != nil {
		s.logger.WarnContext(ctx, "failed to save wizard session",
			"request_id", requestcontext.RequestID(ctx),
			"wizard_id", c.ID(),
			"error", err,
		)
	}
}

func (s *Service) forget(ctx context.Context, wizardID id.WizardID) {
	s.mu.Lock()
	if _, ok := s.live[wizardID]; ok {
		delete(s.live, wizardID)
		s.metrics.DecrementActiveSessions()
	}
	s.mu.Unlock()
	if err := s.sessions.Delete(ctx, wizardID); err != nil {
		s.logger.WarnContext(ctx, "failed to delete wizard session",
			"wizard_id", wizardID,
			"error", err,
		)
	}
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"request_id", requestcontext.RequestID(ctx),
			"action", event.Action,
			"error", err,
		)
	}
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(dErrors.CodeOf(err))
}
