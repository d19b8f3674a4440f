package importlog

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/catsync/catsync/internal/importer"
	jobmetrics "github.com/catsync/catsync/internal/jobs"
)

// Recorder adapts the Store to the sync service's log sink.
type Recorder struct {
	store *Store
}

// NewRecorder constructs a Recorder.
func NewRecorder(store *Store) *Recorder {
	return &Recorder{store: store}
}

// Record persists batch outcomes.
func (r *Recorder) Record(ctx context.Context, entries []importer.LogEntry) error {
	rows := make([]Entry, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, Entry{
			BatchID:   e.BatchID,
			SKU:       e.SKU,
			Operation: e.Operation,
			StoreID:   e.StoreID,
			Outcome:   e.Outcome,
			Warning:   e.Warning,
			Error:     e.Error,
		})
	}
	return r.store.Insert(ctx, rows)
}

// PruneHandler returns an asynq handler that removes entries older than the
// retention window.
func PruneHandler(logger *slog.Logger, store *Store, retention time.Duration, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		tracker := metrics.Track("log_prune")
		cutoff := time.Now().Add(-retention)
		removed, err := store.Prune(ctx, cutoff)
		if err != nil {
			logger.Error("prune import log", slog.Any("error", err))
			return tracker.End(err)
		}
		logger.Info("pruned import log",
			slog.Int64("removed", removed),
			slog.Time("cutoff", cutoff))
		return tracker.End(nil)
	}
}
