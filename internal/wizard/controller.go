package wizard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"handover/internal/dispatch"
	"handover/internal/registration/models"
	id "handover/pkg/domain"
	dErrors "handover/pkg/domain-errors"
	"handover/pkg/requestcontext"
)

// Gateway is the registration persistence contract the controller drives.
type Gateway interface {
	Create(ctx context.Context, p models.Payload) (*models.Registration, error)
	Update(ctx context.Context, regID id.RegistrationID, p models.Payload) (*models.Registration, error)
	FetchByID(ctx context.Context, regID id.RegistrationID) (*models.Registration, error)
	SendEntitlement(ctx context.Context, regID id.RegistrationID) (*models.Registration, error)
}

var (
	ErrBusy     = dErrors.New(dErrors.CodeConflict, "a step transition is already in progress")
	ErrClosed   = dErrors.New(dErrors.CodeConflict, "wizard session is closed")
	ErrTerminal = dErrors.New(dErrors.CodeConflict, "wizard is complete")
	ErrSent     = dErrors.New(dErrors.CodeConflict, "entitlement already sent")
	// ErrEvicted is returned by a controller that was dropped from memory; the
	// caller reloads the session and retries.
	ErrEvicted = dErrors.New(dErrors.CodeConflict, "wizard session was evicted")
)

// Snapshot is the serializable form of a controller.
type Snapshot struct {
	WizardID  id.WizardID  `json:"wizard_id"`
	BuilderID id.BuilderID `json:"builder_id"`
	Step      Step         `json:"step"`
	State     State        `json:"state"`
	Closed    bool         `json:"closed"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Controller is the single owner of one wizard session's state. At most one
// transition runs at a time; a transition either commits entirely or leaves
// the step and state exactly as they were.
type Controller struct {
	wizardID   id.WizardID
	builderID  id.BuilderID
	gateway    Gateway
	dispatcher dispatch.Dispatcher
	bus        *Bus
	logger     *slog.Logger
	tracer     trace.Tracer

	busy atomic.Bool

	mu         sync.Mutex
	step       Step
	state      State
	generation uint64
	closed     bool
	evicted    bool
	createdAt  time.Time
	updatedAt  time.Time
}

type ControllerOption func(c *Controller)

func WithBus(bus *Bus) ControllerOption {
	return func(c *Controller) {
		c.bus = bus
	}
}

func WithControllerLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

func newController(snap Snapshot, gateway Gateway, dispatcher dispatch.Dispatcher, opts ...ControllerOption) *Controller {
	c := &Controller{
		wizardID:   snap.WizardID,
		builderID:  snap.BuilderID,
		gateway:    gateway,
		dispatcher: dispatcher,
		logger:     slog.Default(),
		tracer:     otel.Tracer("handover/wizard"),
		step:       snap.Step,
		state:      snap.State.Clone(),
		closed:     snap.Closed,
		createdAt:  snap.CreatedAt,
		updatedAt:  snap.UpdatedAt,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.bus == nil {
		c.bus = NewBus(c.logger)
	}
	return c
}

// NewController starts a fresh wizard on the customer step.
func NewController(wizardID id.WizardID, builderID id.BuilderID, now time.Time, gateway Gateway, dispatcher dispatch.Dispatcher, opts ...ControllerOption) *Controller {
	return newController(Snapshot{
		WizardID:  wizardID,
		BuilderID: builderID,
		Step:      StepCustomer,
		State:     State{Status: models.StatusDraft},
		CreatedAt: now,
		UpdatedAt: now,
	}, gateway, dispatcher, opts...)
}

// ResumeController opens an existing registration on the inferred step.
func ResumeController(wizardID id.WizardID, builderID id.BuilderID, now time.Time, reg *models.Registration, gateway Gateway, dispatcher dispatch.Dispatcher, opts ...ControllerOption) *Controller {
	return newController(Snapshot{
		WizardID:  wizardID,
		BuilderID: builderID,
		Step:      InferStep(reg),
		State:     StateFromRegistration(reg),
		CreatedAt: now,
		UpdatedAt: now,
	}, gateway, dispatcher, opts...)
}

// RestoreController rebuilds a controller from a stored snapshot.
func RestoreController(snap Snapshot, gateway Gateway, dispatcher dispatch.Dispatcher, opts ...ControllerOption) *Controller {
	return newController(snap, gateway, dispatcher, opts...)
}

func (c *Controller) ID() id.WizardID         { return c.wizardID }
func (c *Controller) BuilderID() id.BuilderID { return c.builderID }
func (c *Controller) Busy() bool              { return c.busy.Load() }

// Snapshot returns a copy of the controller's current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		WizardID:  c.wizardID,
		BuilderID: c.builderID,
		Step:      c.step,
		State:     c.state.Clone(),
		Closed:    c.closed,
		CreatedAt: c.createdAt,
		UpdatedAt: c.updatedAt,
	}
}

// Announce publishes the current step, used when a session starts.
func (c *Controller) Announce(ctx context.Context) {
	snap := c.Snapshot()
	c.bus.Publish(StepChanged{
		WizardID:       c.wizardID,
		RegistrationID: snap.State.RegistrationID,
		To:             snap.Step,
		Reason:         ReasonStarted,
		At:             requestcontext.Now(ctx),
	})
}

// Complete applies a step's validated output: it persists through the gateway
// and, on success only, commits the new state and advances one step.
func (c *Controller) Complete(ctx context.Context, out Output) error {
	if !c.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer c.busy.Store(false)

	step := out.Step()
	ctx, span := c.tracer.Start(ctx, "wizard.complete", trace.WithAttributes(
		attribute.String("wizard.id", c.wizardID.String()),
		attribute.String("wizard.step", step.String()),
	))
	defer span.End()

	c.mu.Lock()
	if err := c.checkOpen(); err != nil {
		c.mu.Unlock()
		return err
	}
	if step != c.step {
		current := c.step
		c.mu.Unlock()
		return dErrors.New(dErrors.CodeConflict, fmt.Sprintf("cannot complete %s while on %s", step, current))
	}
	gen := c.generation
	next := c.state.With(out)
	c.mu.Unlock()

	// Gateway calls outlive a disconnected client; their results are then
	// discarded by the generation check below.
	gctx := requestcontext.Detach(ctx)
	reg, err := c.persist(gctx, step, out, next)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition failed")
		c.logger.WarnContext(ctx, "wizard transition failed",
			"request_id", requestcontext.RequestID(ctx),
			"wizard_id", c.wizardID,
			"step", step,
			"error", err,
		)
		return err
	}

	next.RegistrationID = reg.ID
	next.Status = reg.Status
	to, _ := step.Next()

	c.mu.Lock()
	if c.closed || c.generation != gen {
		c.mu.Unlock()
		c.logger.InfoContext(ctx, "discarding transition result for closed wizard",
			"wizard_id", c.wizardID,
			"registration_id", reg.ID,
			"step", step,
		)
		return ErrClosed
	}
	c.state = next
	c.step = to
	c.updatedAt = requestcontext.Now(ctx)
	c.mu.Unlock()

	c.bus.Publish(StepChanged{
		WizardID:       c.wizardID,
		RegistrationID: reg.ID,
		From:           step,
		To:             to,
		Reason:         ReasonCompleted,
		At:             requestcontext.Now(ctx),
	})
	return nil
}

func (c *Controller) persist(ctx context.Context, step Step, out Output, next State) (*models.Registration, error) {
	if step == StepReview {
		return c.send(ctx, out, next)
	}

	payload := ToRegistrationPayload(next, step)
	if next.RegistrationID.IsNil() {
		if step != StepCustomer {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "registration must exist before "+step.String())
		}
		return c.gateway.Create(ctx, payload)
	}
	return c.gateway.Update(ctx, next.RegistrationID, payload)
}

// send is the review to send transition: approval gate, dispatch, then mark sent.
// Dispatch goes first so a failed hand-off leaves the record untouched.
func (c *Controller) send(ctx context.Context, out Output, next State) (*models.Registration, error) {
	approval, ok := out.(ReviewApproval)
	if !ok || !approval.Approved {
		return nil, dErrors.NewValidation(map[string]string{"approved": "must be confirmed before sending"})
	}
	if next.RegistrationID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "registration must exist before send")
	}
	if next.Status.IsSent() {
		return nil, ErrSent
	}

	entitlement := dispatch.Entitlement{
		RegistrationID:  next.RegistrationID,
		BuilderID:       c.builderID,
		CustomerName:    joinName(next.Customer.FirstName, next.Customer.LastName),
		CustomerEmail:   next.Customer.Email,
		PropertyAddress: next.Customer.PropertyAddress,
		SelectedItems:   groupByCategory(next.Items),
		Documents:       cloneDocuments(next.Documents.Documents),
		RequestedAt:     requestcontext.Now(ctx),
	}
	if err := c.dispatcher.Dispatch(ctx, entitlement); err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "entitlement dispatch failed")
		}
		return nil, err
	}
	return c.gateway.SendEntitlement(ctx, next.RegistrationID)
}

// Navigate moves back to an earlier step. Accumulated state is kept and
// nothing is fetched or persisted.
func (c *Controller) Navigate(ctx context.Context, target Step) error {
	if !target.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown wizard step "+target.String())
	}
	if !c.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer c.busy.Store(false)

	c.mu.Lock()
	if err := c.checkOpen(); err != nil {
		c.mu.Unlock()
		return err
	}
	from := c.step
	if target.Index() > from.Index() {
		c.mu.Unlock()
		return dErrors.New(dErrors.CodeInvalidInput, "complete "+from.String()+" to move forward")
	}
	if target == from {
		c.mu.Unlock()
		return nil
	}
	c.step = target
	c.updatedAt = requestcontext.Now(ctx)
	regID := c.state.RegistrationID
	c.mu.Unlock()

	c.bus.Publish(StepChanged{
		WizardID:       c.wizardID,
		RegistrationID: regID,
		From:           from,
		To:             target,
		Reason:         ReasonNavigated,
		At:             requestcontext.Now(ctx),
	})
	return nil
}

// Close ends the session. Results of transitions still in flight are discarded.
func (c *Controller) Close(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.generation++
	c.mu.Unlock()

	c.bus.Publish(Closed{WizardID: c.wizardID, At: requestcontext.Now(ctx)})
}

// Evict retires a controller that has been idle for longer than idle and has
// no transition in flight. Once evicted it refuses every transition, so a
// request still holding it cannot race a controller restored from the store.
func (c *Controller) Evict(now time.Time, idle time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.evicted {
		return true
	}
	if c.busy.Load() || now.Sub(c.updatedAt) <= idle {
		return false
	}
	c.evicted = true
	return true
}

// checkOpen must be called with c.mu held.
func (c *Controller) checkOpen() error {
	if c.evicted {
		return ErrEvicted
	}
	if c.closed {
		return ErrClosed
	}
	if c.step.IsTerminal() {
		return ErrTerminal
	}
	return nil
}
