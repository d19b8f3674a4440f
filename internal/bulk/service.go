// Package bulk defers import batches to the background worker and
// tracks their status in Redis.
package bulk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/catsync/catsync/internal/importer"
	"github.com/catsync/catsync/internal/shared"
	"github.com/catsync/catsync/jobs"
)

// Status is the lifecycle state of a deferred batch.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Summary condenses a finished batch for status polling.
type Summary struct {
	Created int  `json:"created"`
	Updated int  `json:"updated"`
	Failed  int  `json:"failed"`
	Aborted bool `json:"aborted,omitempty"`
}

// Job is the tracked state of one deferred batch.
type Job struct {
	ID          string     `json:"id"`
	Operation   string     `json:"operation"`
	Store       string     `json:"store,omitempty"`
	Status      Status     `json:"status"`
	SubmittedAt time.Time  `json:"submitted_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	Summary     *Summary   `json:"summary,omitempty"`
}

// Queue submits batches to the background worker.
type Queue interface {
	EnqueueBulkImport(ctx context.Context, payload jobs.BulkImportPayload) (*asynq.TaskInfo, error)
}

// Runner executes an import batch. Satisfied by importer.Service.
type Runner interface {
	Import(ctx context.Context, op importer.Operation, storeRef string, records []importer.Record) (*importer.BatchResult, error)
}

const statusTTL = 24 * time.Hour

// Service enqueues batches and tracks their status.
type Service struct {
	logger *slog.Logger
	rdb    *redis.Client
	queue  Queue
	runner Runner
}

// NewService constructs a Service. runner is only needed on the worker
// side; the API side may pass nil.
func NewService(logger *slog.Logger, rdb *redis.Client, queue Queue, runner Runner) *Service {
	return &Service{logger: logger, rdb: rdb, queue: queue, runner: runner}
}

func statusKey(id string) string { return "bulk:op:" + id }

// Enqueue registers a pending job and hands the batch to the queue.
func (s *Service) Enqueue(ctx context.Context, op importer.Operation, storeRef string, products json.RawMessage) (Job, error) {
	job := Job{
		ID:          uuid.NewString(),
		Operation:   string(op),
		Store:       storeRef,
		Status:      StatusPending,
		SubmittedAt: time.Now().UTC(),
	}
	if err := s.save(ctx, job); err != nil {
		return Job{}, err
	}
	_, err := s.queue.EnqueueBulkImport(ctx, jobs.BulkImportPayload{
		ID:        job.ID,
		Operation: job.Operation,
		Store:     storeRef,
		Products:  products,
	})
	if err != nil {
		job.Status = StatusFailed
		job.Error = "enqueue failed"
		_ = s.save(ctx, job)
		return Job{}, fmt.Errorf("bulk: enqueue: %w", err)
	}
	return job, nil
}

// Job fetches the tracked state of a deferred batch.
func (s *Service) Job(ctx context.Context, id string) (Job, error) {
	data, err := s.rdb.Get(ctx, statusKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Job{}, fmt.Errorf("%w: bulk job %s", shared.ErrNotFound, id)
	}
	if err != nil {
		return Job{}, fmt.Errorf("bulk: load job: %w", err)
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return Job{}, fmt.Errorf("bulk: decode job: %w", err)
	}
	return job, nil
}

func (s *Service) save(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("bulk: encode job: %w", err)
	}
	if err := s.rdb.Set(ctx, statusKey(job.ID), data, statusTTL).Err(); err != nil {
		return fmt.Errorf("bulk: save job: %w", err)
	}
	return nil
}

// HandleTask processes a queued batch on the worker.
func (s *Service) HandleTask(ctx context.Context, t *asynq.Task) error {
	var payload jobs.BulkImportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		s.logger.Error("bulk task payload", "error", err)
		return asynq.SkipRetry
	}

	job, err := s.Job(ctx, payload.ID)
	if err != nil {
		// Status record expired or was never written; run anyway under a
		// fresh record so the batch is not lost.
		job = Job{ID: payload.ID, Operation: payload.Operation, Store: payload.Store, SubmittedAt: time.Now().UTC()}
	}
	now := time.Now().UTC()
	job.Status = StatusRunning
	job.StartedAt = &now
	if err := s.save(ctx, job); err != nil {
		s.logger.Warn("bulk: mark running", "id", job.ID, "error", err)
	}

	var records []importer.Record
	if err := json.Unmarshal(payload.Products, &records); err != nil {
		return s.finish(ctx, job, nil, fmt.Errorf("%w: products: %v", shared.ErrInput, err))
	}

	op, err := importer.ParseOperation(payload.Operation)
	if err != nil {
		return s.finish(ctx, job, nil, err)
	}

	batch, err := s.runner.Import(ctx, op, payload.Store, records)
	return s.finish(ctx, job, batch, err)
}

func (s *Service) finish(ctx context.Context, job Job, batch *importer.BatchResult, runErr error) error {
	now := time.Now().UTC()
	job.FinishedAt = &now
	if runErr != nil {
		job.Status = StatusFailed
		job.Error = runErr.Error()
	} else {
		job.Status = StatusDone
		job.Summary = &Summary{
			Created: batch.Created,
			Updated: batch.Updated,
			Failed:  batch.Failed,
			Aborted: batch.Aborted,
		}
	}
	if err := s.save(ctx, job); err != nil {
		s.logger.Error("bulk: save final status", "id", job.ID, "error", err)
	}
	if runErr != nil {
		s.logger.Error("bulk batch failed", "id", job.ID, "error", runErr)
		return asynq.SkipRetry
	}
	return nil
}
