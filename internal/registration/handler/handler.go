package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"handover/internal/registration/models"
	id "handover/pkg/domain"
	dErrors "handover/pkg/domain-errors"
	"handover/pkg/platform/httputil"
	"handover/pkg/requestcontext"
)

// Service is the subset of the registration gateway the handler needs.
type Service interface {
	FetchByID(ctx context.Context, regID id.RegistrationID) (*models.Registration, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.Registration, error)
	Stats(ctx context.Context) (*models.Stats, error)
	Delete(ctx context.Context, regID id.RegistrationID) error
}

// Handler exposes read access to a builder's registrations.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts registration endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/registrations", h.HandleList)
	r.Get("/registrations/stats", h.HandleStats)
	r.Get("/registrations/{id}", h.HandleGet)
	r.Delete("/registrations/{id}", h.HandleDelete)
}

// HandleList handles GET /registrations?status=&q=&limit=&offset=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, err := parseListFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	regs, err := h.service.List(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "list registrations failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &ListResponse{Registrations: regs, Count: len(regs)})
}

// HandleStats handles GET /registrations/stats.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st, err := h.service.Stats(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "registration stats failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, st)
}

// HandleGet handles GET /registrations/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	regID, err := id.ParseRegistrationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	reg, err := h.service.FetchByID(ctx, regID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, reg)
}

// HandleDelete handles DELETE /registrations/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	regID, err := id.ParseRegistrationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.Delete(ctx, regID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "registration deleted",
		"request_id", requestcontext.RequestID(ctx),
		"registration_id", regID,
	)
	w.WriteHeader(http.StatusNoContent)
}

// ListResponse is the body of GET /registrations.
type ListResponse struct {
	Registrations []*models.Registration `json:"registrations"`
	Count         int                    `json:"count"`
}

func parseListFilter(r *http.Request) (models.ListFilter, error) {
	q := r.URL.Query()
	var filter models.ListFilter
	if raw := q.Get("status"); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			return filter, err
		}
		filter.Status = status
	}
	filter.Query = q.Get("q")
	fields := map[string]string{}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			fields["limit"] = "must be a positive integer"
		}
		filter.Limit = n
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			fields["offset"] = "must be a non-negative integer"
		}
		filter.Offset = n
	}
	if len(fields) > 0 {
		return filter, dErrors.NewValidation(fields)
	}
	return filter.Normalize(), nil
}
