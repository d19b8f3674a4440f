package importer

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/catsync/catsync/internal/eav"
	"github.com/catsync/catsync/internal/platform/httpx"
	"github.com/catsync/catsync/internal/shared"
	"github.com/catsync/catsync/internal/stock"
)

// Handler wires the import endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers the import routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/products/{operation}", h.handleImport)
	r.Get("/attributes", h.handleAttributes)
}

type importRequest struct {
	Store    string   `json:"store"`
	Products []Record `json:"products" validate:"required,min=1,max=5000"`
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	op, err := ParseOperation(chi.URLParam(r, "operation"))
	if err != nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		return
	}

	var req importRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	batch, err := h.service.Import(r.Context(), op, req.Store, req.Products)
	if err != nil {
		h.logger.Error("import batch failed", "operation", op, "error", err)
		respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, batch)
}

// AttributeInfo is the read model of GET /attributes.
type AttributeInfo struct {
	Code    string   `json:"code"`
	Backend string   `json:"backend"`
	Input   string   `json:"input"`
	Scope   string   `json:"scope"`
	ApplyTo []string `json:"apply_to,omitempty"`
}

type attributesResponse struct {
	Attributes   []AttributeInfo `json:"attributes"`
	StockColumns []string        `json:"stock_columns"`
}

func (h *Handler) handleAttributes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	schema, err := DetectSchema(ctx, h.service.pool)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	attrs, err := eav.NewRepository(h.service.pool, schema).LoadAttributes(ctx)
	if err != nil {
		h.logger.Error("load attributes", "error", err)
		respondDomainError(w, err)
		return
	}

	infos := make([]AttributeInfo, 0, len(attrs))
	for _, a := range attrs {
		infos = append(infos, AttributeInfo{
			Code:    a.Code,
			Backend: string(a.Backend),
			Input:   a.Input,
			Scope:   a.Scope.String(),
			ApplyTo: a.ApplyTo,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Code < infos[j].Code })
	httpx.JSON(w, http.StatusOK, attributesResponse{Attributes: infos, StockColumns: stock.Columns()})
}

// respondDomainError maps the shared error kinds onto problem responses.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrInput), errors.Is(err, shared.ErrIllegalValue):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrState):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}
