package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"handover/internal/queries/models"
	id "handover/pkg/domain"
	"handover/pkg/platform/httputil"
	"handover/pkg/requestcontext"
)

type Service interface {
	Create(ctx context.Context, regID id.RegistrationID, subject, message string) (*models.Query, error)
	Get(ctx context.Context, queryID id.QueryID) (*models.Query, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.Query, error)
	Respond(ctx context.Context, queryID id.QueryID, response string) (*models.Query, error)
	Close(ctx context.Context, queryID id.QueryID) (*models.Query, error)
}

// Handler exposes the builder's homeowner query inbox.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/queries", h.HandleList)
	r.Post("/queries", h.HandleCreate)
	r.Get("/queries/{id}", h.HandleGet)
	r.Post("/queries/{id}/respond", h.HandleRespond)
	r.Post("/queries/{id}/close", h.HandleClose)
}

// HandleList handles GET /queries?status=&registration_id=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter models.ListFilter
	if raw := q.Get("status"); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filter.Status = status
	}
	if raw := q.Get("registration_id"); raw != "" {
		regID, err := id.ParseRegistrationID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filter.RegistrationID = regID
	}
	queries, err := h.service.List(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &ListResponse{Queries: queries, Count: len(queries)})
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[CreateQueryRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	created, err := h.service.Create(ctx, req.regID, req.Subject, req.Message)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	queryID, err := id.ParseQueryID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	q, err := h.service.Get(r.Context(), queryID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, q)
}

// HandleRespond handles POST /queries/{id}/respond.
func (h *Handler) HandleRespond(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	queryID, err := id.ParseQueryID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[RespondRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	q, err := h.service.Respond(ctx, queryID, req.Response)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, q)
}

func (h *Handler) HandleClose(w http.ResponseWriter, r *http.Request) {
	queryID, err := id.ParseQueryID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	q, err := h.service.Close(r.Context(), queryID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, q)
}

// ListResponse is the body of GET /queries.
type ListResponse struct {
	Queries []*models.Query `json:"queries"`
	Count   int             `json:"count"`
}
