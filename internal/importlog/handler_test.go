package importlog

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type memoryLogs struct {
	entries []Entry
	lastF   Filter
}

func (m *memoryLogs) List(_ context.Context, f Filter) ([]Entry, error) {
	m.lastF = f
	var out []Entry
	for _, e := range m.entries {
		if f.BatchID != "" && e.BatchID != f.BatchID {
			continue
		}
		if f.Outcome != "" && e.Outcome != f.Outcome {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func newLogRouter(logs Port) *chi.Mux {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), logs)
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func TestHandleListFilters(t *testing.T) {
	mem := &memoryLogs{entries: []Entry{
		{ID: 1, BatchID: "b1", SKU: "A", Outcome: "created", CreatedAt: time.Now()},
		{ID: 2, BatchID: "b2", SKU: "B", Outcome: "failed", Error: "boom", CreatedAt: time.Now()},
	}}
	r := newLogRouter(mem)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/logs?batch_id=b2&limit=50&offset=10", nil))

	require.Equal(t, 200, rec.Code)
	require.Equal(t, Filter{BatchID: "b2", Limit: 50, Offset: 10}, mem.lastF)

	var body struct {
		Entries []Entry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Entries, 1)
	require.Equal(t, "boom", body.Entries[0].Error)
}

func TestHandleListEmptyIsArray(t *testing.T) {
	r := newLogRouter(&memoryLogs{})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/logs", nil))
	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), `"entries":[]`)
}

func TestHandleExportCSV(t *testing.T) {
	mem := &memoryLogs{entries: []Entry{
		{ID: 7, BatchID: "b1", SKU: "A", Operation: "upsert", Outcome: "created", CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
	}}
	r := newLogRouter(mem)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/logs/export", nil))

	require.Equal(t, 200, rec.Code)
	require.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "batch_id")
	require.Contains(t, lines[1], "7,b1,A,upsert,0,created,,,2025-03-01T12:00:00Z")
}
