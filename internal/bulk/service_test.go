package bulk

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/catsync/catsync/internal/importer"
	"github.com/catsync/catsync/internal/shared"
	_ "github.com/catsync/catsync/internal/testing/guard"
	"github.com/catsync/catsync/jobs"
)

type memoryQueue struct {
	payloads []jobs.BulkImportPayload
	fail     bool
}

func (m *memoryQueue) EnqueueBulkImport(_ context.Context, payload jobs.BulkImportPayload) (*asynq.TaskInfo, error) {
	if m.fail {
		return nil, context.DeadlineExceeded
	}
	m.payloads = append(m.payloads, payload)
	return &asynq.TaskInfo{ID: payload.ID}, nil
}

type memoryRunner struct {
	batch *importer.BatchResult
	err   error
	got   []importer.Record
}

func (m *memoryRunner) Import(_ context.Context, _ importer.Operation, _ string, records []importer.Record) (*importer.BatchResult, error) {
	m.got = records
	return m.batch, m.err
}

func newTestBulk(t *testing.T, queue Queue, runner Runner) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(logger, rdb, queue, runner)
}

func TestEnqueueTracksPendingJob(t *testing.T) {
	queue := &memoryQueue{}
	s := newTestBulk(t, queue, nil)

	products := json.RawMessage(`[{"sku":"A"}]`)
	job, err := s.Enqueue(context.Background(), importer.OpUpsert, "default", products)
	require.NoError(t, err)
	require.Equal(t, StatusPending, job.Status)
	require.NotEmpty(t, job.ID)

	require.Len(t, queue.payloads, 1)
	require.Equal(t, job.ID, queue.payloads[0].ID)
	require.JSONEq(t, string(products), string(queue.payloads[0].Products))

	got, err := s.Job(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, got.Status)
	require.Equal(t, "upsert", got.Operation)
}

func TestEnqueueFailureMarksFailed(t *testing.T) {
	s := newTestBulk(t, &memoryQueue{fail: true}, nil)
	_, err := s.Enqueue(context.Background(), importer.OpAdd, "", json.RawMessage(`[]`))
	require.Error(t, err)
}

func TestJobUnknownID(t *testing.T) {
	s := newTestBulk(t, &memoryQueue{}, nil)
	_, err := s.Job(context.Background(), "nope")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestHandleTaskRunsBatchAndRecordsSummary(t *testing.T) {
	runner := &memoryRunner{batch: &importer.BatchResult{Created: 2, Failed: 1}}
	queue := &memoryQueue{}
	s := newTestBulk(t, queue, runner)

	job, err := s.Enqueue(context.Background(), importer.OpAdd, "default", json.RawMessage(`[{"sku":"A"},{"sku":"B"},{"sku":"C"}]`))
	require.NoError(t, err)

	task, err := jobs.NewBulkImportTask(queue.payloads[0])
	require.NoError(t, err)
	require.NoError(t, s.HandleTask(context.Background(), task))

	require.Len(t, runner.got, 3)
	got, err := s.Job(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDone, got.Status)
	require.NotNil(t, got.Summary)
	require.Equal(t, 2, got.Summary.Created)
	require.Equal(t, 1, got.Summary.Failed)
	require.NotNil(t, got.FinishedAt)
}

func TestHandleTaskFailureMarksFailed(t *testing.T) {
	runner := &memoryRunner{err: shared.ErrState}
	queue := &memoryQueue{}
	s := newTestBulk(t, queue, runner)

	_, err := s.Enqueue(context.Background(), importer.OpUpdate, "", json.RawMessage(`[{"sku":"A"}]`))
	require.NoError(t, err)

	task, err := jobs.NewBulkImportTask(queue.payloads[0])
	require.NoError(t, err)
	require.Equal(t, asynq.SkipRetry, s.HandleTask(context.Background(), task))

	got, err := s.Job(context.Background(), queue.payloads[0].ID)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, got.Status)
	require.NotEmpty(t, got.Error)
}

func TestHandleTaskBadPayloadSkipsRetry(t *testing.T) {
	s := newTestBulk(t, &memoryQueue{}, &memoryRunner{})
	task := asynq.NewTask(jobs.TaskTypeBulkImport, []byte("not json"))
	require.Equal(t, asynq.SkipRetry, s.HandleTask(context.Background(), task))
}
