package bulk

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/catsync/catsync/internal/importer"
	"github.com/catsync/catsync/internal/platform/httpx"
	"github.com/catsync/catsync/internal/shared"
)

// Handler wires the bulk endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the bulk routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/bulk/{ref}", h.handleEnqueue)
	r.Get("/bulk/{ref}", h.handleStatus)
}

type enqueueRequest struct {
	Store    string          `json:"store"`
	Products json.RawMessage `json:"products"`
}

func (h *Handler) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	op, err := importer.ParseOperation(chi.URLParam(r, "ref"))
	if err != nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		return
	}

	var req enqueueRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	// Shape check only; full decoding happens on the worker.
	var probe []json.RawMessage
	if err := json.Unmarshal(req.Products, &probe); err != nil || len(probe) == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "products must be a non-empty array")
		return
	}

	job, err := h.service.Enqueue(r.Context(), op, req.Store, req.Products)
	if err != nil {
		h.logger.Error("enqueue bulk batch", "operation", op, "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, job)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.Job(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("load bulk status", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, job)
}
