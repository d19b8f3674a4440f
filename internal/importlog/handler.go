package importlog

import (
	"context"
	"encoding/csv"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/catsync/catsync/internal/platform/httpx"
)

// Port is the read side the handler consumes.
type Port interface {
	List(ctx context.Context, f Filter) ([]Entry, error)
}

// Handler serves the batch log.
type Handler struct {
	logger *slog.Logger
	logs   Port
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, logs Port) *Handler {
	return &Handler{logger: logger, logs: logs}
}

// MountRoutes registers the log routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/logs", h.handleList)
	r.Get("/logs/export", h.handleExport)
}

func filterFromQuery(r *http.Request) Filter {
	q := r.URL.Query()
	f := Filter{
		BatchID: q.Get("batch_id"),
		SKU:     q.Get("sku"),
		Outcome: q.Get("outcome"),
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		f.Limit = n
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n > 0 {
		f.Offset = n
	}
	return f
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	entries, err := h.logs.List(r.Context(), filterFromQuery(r))
	if err != nil {
		h.logger.Error("list import log", "error", err)
		httpx.RespondError(w, err)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	entries, err := h.logs.List(r.Context(), filterFromQuery(r))
	if err != nil {
		h.logger.Error("export import log", "error", err)
		httpx.RespondError(w, err)
		return
	}
	filename := "import-log-" + time.Now().UTC().Format("20060102-150405") + ".csv"
	err = httpx.CSV(w, filename, func(cw *csv.Writer) error {
		if err := cw.Write([]string{"id", "batch_id", "sku", "operation", "store_id", "outcome", "warning", "error", "created_at"}); err != nil {
			return err
		}
		for _, e := range entries {
			row := []string{
				strconv.FormatInt(e.ID, 10),
				e.BatchID,
				e.SKU,
				e.Operation,
				strconv.FormatInt(e.StoreID, 10),
				e.Outcome,
				e.Warning,
				e.Error,
				e.CreatedAt.UTC().Format(time.RFC3339),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		h.logger.Error("write csv", "error", err)
	}
}
