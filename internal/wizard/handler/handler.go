package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"handover/internal/wizard"
	"handover/internal/wizard/service"
	id "handover/pkg/domain"
	dErrors "handover/pkg/domain-errors"
	"handover/pkg/platform/httputil"
	"handover/pkg/requestcontext"
)

const (
	maxStepBody = 1 << 20
	// registrationsLocation is where a builder lands when a resumed
	// registration cannot be loaded.
	registrationsLocation = "/registrations"
	eventBuffer           = 16
)

type Service interface {
	Start(ctx context.Context, regID *id.RegistrationID) (*service.Session, error)
	Get(ctx context.Context, wizardID id.WizardID) (*service.Session, error)
	Submit(ctx context.Context, wizardID id.WizardID, step wizard.Step, raw json.RawMessage) (*service.Session, error)
	Navigate(ctx context.Context, wizardID id.WizardID, target wizard.Step) (*service.Session, error)
	Close(ctx context.Context, wizardID id.WizardID) error
	Subscribe(ctx context.Context, wizardID id.WizardID, handler wizard.Handler) (func(), error)
}

// Handler exposes wizard sessions over HTTP.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the request/response wizard endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Post("/wizards", h.HandleStart)
	r.Get("/wizards/{id}", h.HandleGet)
	r.Post("/wizards/{id}/steps/{step}", h.HandleSubmit)
	r.Post("/wizards/{id}/navigate", h.HandleNavigate)
	r.Delete("/wizards/{id}", h.HandleClose)
}

// RegisterStream mounts the event stream. It must sit outside any request
// timeout middleware.
func (h *Handler) RegisterStream(r chi.Router) {
	r.Get("/wizards/{id}/events", h.HandleEvents)
}

// HandleStart handles POST /wizards.
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var regID *id.RegistrationID
	if r.ContentLength != 0 {
		req, ok := httputil.DecodeAndPrepare[StartRequest](w, r, h.logger, ctx, requestID)
		if !ok {
			return
		}
		regID = req.parsed
	}

	sess, err := h.service.Start(ctx, regID)
	if err != nil {
		if regID != nil && dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.WarnContext(ctx, "registration to resume not found",
				"request_id", requestID,
				"registration_id", *regID,
			)
			httputil.WriteError(w, err, httputil.WithRedirect(registrationsLocation))
			return
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(sess))
}

// HandleGet handles GET /wizards/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	wizardID, err := id.ParseWizardID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	sess, err := h.service.Get(r.Context(), wizardID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(sess))
}

// HandleSubmit handles POST /wizards/{id}/steps/{step}. The body is handed to
// the step's renderer as is.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wizardID, err := id.ParseWizardID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	step, err := wizard.ParseStep(chi.URLParam(r, "step"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxStepBody))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	sess, err := h.service.Submit(ctx, wizardID, step, raw)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeValidation) {
			h.logger.WarnContext(ctx, "wizard step failed",
				"request_id", requestcontext.RequestID(ctx),
				"wizard_id", wizardID,
				"step", step,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(sess))
}

// HandleNavigate handles POST /wizards/{id}/navigate.
func (h *Handler) HandleNavigate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wizardID, err := id.ParseWizardID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[NavigateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	sess, err := h.service.Navigate(ctx, wizardID, req.target)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(sess))
}

// HandleClose handles DELETE /wizards/{id}.
func (h *Handler) HandleClose(w http.ResponseWriter, r *http.Request) {
	wizardID, err := id.ParseWizardID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.Close(r.Context(), wizardID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleEvents handles GET /wizards/{id}/events as a Server-Sent Events
// stream. The current step is sent first; the stream ends when the session
// closes or the client goes away. Slow clients lose events rather than
// blocking the publisher.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wizardID, err := id.ParseWizardID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	sess, err := h.service.Get(ctx, wizardID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	events := make(chan wizard.Event, eventBuffer)
	unsubscribe, err := h.service.Subscribe(ctx, wizardID, func(e wizard.Event) {
		select {
		case events <- e:
		default:
			h.logger.Warn("dropping wizard event for slow stream", "wizard_id", wizardID, "event", e.EventType())
		}
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	defer unsubscribe()

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	current := wizard.StepChanged{
		WizardID:       wizardID,
		RegistrationID: sess.Snapshot.State.RegistrationID,
		To:             sess.Snapshot.Step,
		Reason:         wizard.ReasonCurrent,
		At:             requestcontext.Now(ctx),
	}
	if err := writeEvent(w, rc, current); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case e := <-events:
			if err := writeEvent(w, rc, e); err != nil {
				h.logger.DebugContext(ctx, "event stream write failed", "wizard_id", wizardID, "error", err)
				return
			}
			if e.EventType() == wizard.EventClosed {
				return
			}
		}
	}
}

func writeEvent(w io.Writer, rc *http.ResponseController, e wizard.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.EventType(), data); err != nil {
		return err
	}
	return rc.Flush()
}
