package audit

import (
	"context"
	"errors"
	"log/slog"

	"handover/internal/platform/device"
	"handover/pkg/requestcontext"
)

// ErrBufferFull is returned when the worker has fallen behind.
var ErrBufferFull = errors.New("audit buffer full")

// Publisher captures structured audit events. Emit never blocks the request path:
// events go onto a buffered channel that a Worker drains into the Store.
type Publisher struct {
	events chan Event
	logger *slog.Logger
}

func NewPublisher(buffer int, logger *slog.Logger) *Publisher {
	if buffer <= 0 {
		buffer = 1
	}
	return &Publisher{events: make(chan Event, buffer), logger: logger}
}

// Emit enriches base with request metadata and queues it.
func (p *Publisher) Emit(ctx context.Context, base Event) error {
	if base.Timestamp.IsZero() {
		base.Timestamp = requestcontext.Now(ctx)
	}
	if base.Category == "" {
		base.Category = base.Action.Category()
	}
	if base.RequestID == "" {
		base.RequestID = requestcontext.RequestID(ctx)
	}
	if base.BuilderID.IsNil() {
		base.BuilderID = requestcontext.BuilderID(ctx)
	}
	if base.UserID.IsNil() {
		base.UserID = requestcontext.UserID(ctx)
	}
	if base.ClientIP == "" {
		base.ClientIP = requestcontext.ClientIP(ctx)
	}
	if base.Device == "" {
		if ua := requestcontext.UserAgent(ctx); ua != "" {
			base.Device = device.ParseUserAgent(ua)
		}
	}

	select {
	case p.events <- base:
		return nil
	default:
		p.logger.WarnContext(ctx, "audit event dropped",
			"action", base.Action,
			"registration_id", base.RegistrationID,
			"request_id", base.RequestID,
		)
		return ErrBufferFull
	}
}

// Events is the channel a Worker drains.
func (p *Publisher) Events() <-chan Event {
	return p.events
}
