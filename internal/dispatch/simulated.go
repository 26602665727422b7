package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	dErrors "handover/pkg/domain-errors"
)

// maxDeliveryAttempts bounds how often a simulated receipt is retried.
const maxDeliveryAttempts = 5

// Simulated stands in for a real delivery channel in local development. Each
// dispatch is recorded and reported delivered after a fixed delay. A receipt
// the recorder cannot apply yet is retried after another delay.
type Simulated struct {
	delay    time.Duration
	recorder DeliveryRecorder
	logger   *slog.Logger

	mu      sync.Mutex
	sent    map[string]Entitlement
	timers  []*time.Timer
	closed  bool
	pending sync.WaitGroup
}

func NewSimulated(delay time.Duration, logger *slog.Logger) *Simulated {
	return &Simulated{delay: delay, logger: logger, sent: make(map[string]Entitlement)}
}

// SetRecorder wires the receipt target; without one, deliveries are only logged.
func (s *Simulated) SetRecorder(r DeliveryRecorder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorder = r
}

func (s *Simulated) Dispatch(ctx context.Context, e Entitlement) error {
	key := e.RegistrationID.String()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.sent[key]; dup {
		return nil
	}
	s.sent[key] = e
	s.logger.InfoContext(ctx, "entitlement dispatched (simulated)",
		"registration_id", e.RegistrationID,
		"delay", s.delay,
	)

	s.schedule(e, 1)
	return nil
}

// schedule must be called with s.mu held.
func (s *Simulated) schedule(e Entitlement, attempt int) {
	if s.closed {
		return
	}
	s.pending.Add(1)
	s.timers = append(s.timers, time.AfterFunc(s.delay, func() {
		defer s.pending.Done()
		s.deliver(e, attempt)
	}))
}

func (s *Simulated) deliver(e Entitlement, attempt int) {
	s.mu.Lock()
	recorder := s.recorder
	s.mu.Unlock()
	if recorder == nil {
		return
	}
	err := recorder.MarkDelivered(context.Background(), e.BuilderID, e.RegistrationID, time.Now().UTC())
	if err == nil {
		return
	}
	if dErrors.Retryable(dErrors.CodeOf(err)) && attempt < maxDeliveryAttempts {
		s.logger.Warn("simulated delivery deferred",
			"registration_id", e.RegistrationID,
			"attempt", attempt,
			"error", err,
		)
		s.mu.Lock()
		s.schedule(e, attempt+1)
		s.mu.Unlock()
		return
	}
	s.logger.Error("simulated delivery failed", "registration_id", e.RegistrationID, "error", err)
}

// Dispatched returns what has been sent so far.
func (s *Simulated) Dispatched() []Entitlement {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entitlement, 0, len(s.sent))
	for _, e := range s.sent {
		out = append(out, e)
	}
	return out
}

// Wait blocks until every scheduled delivery has run.
func (s *Simulated) Wait() {
	s.pending.Wait()
}

// Close cancels deliveries that have not fired yet.
func (s *Simulated) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, t := range s.timers {
		if t.Stop() {
			s.pending.Done()
		}
	}
	s.timers = nil
}
