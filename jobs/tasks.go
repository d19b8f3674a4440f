package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeBulkImport runs one asynchronous product import batch.
	TaskTypeBulkImport = "import:bulk"
	// TaskTypeLogPrune removes expired batch log entries.
	TaskTypeLogPrune = "log:prune"
)

// BulkImportPayload carries a deferred import batch to the worker. The
// product list stays raw until the worker decodes it.
type BulkImportPayload struct {
	ID        string          `json:"id"`
	Operation string          `json:"operation"`
	Store     string          `json:"store"`
	Products  json.RawMessage `json:"products"`
}

// NewBulkImportTask constructs an Asynq task for a bulk batch.
func NewBulkImportTask(payload BulkImportPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeBulkImport, data, asynq.MaxRetry(0)), nil
}

// NewLogPruneTask constructs the scheduled log pruning task.
func NewLogPruneTask() *asynq.Task {
	return asynq.NewTask(TaskTypeLogPrune, nil)
}
