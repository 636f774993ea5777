package queue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privata/internal/rights/models"
	"privata/pkg/domain"
	dErrors "privata/pkg/domain-errors"
)

type stubExecutor struct {
	calls []domain.RightsRequestID
	req   *models.Request
	err   error
}

func (e *stubExecutor) Execute(_ context.Context, id domain.RightsRequestID) (*models.Request, error) {
	e.calls = append(e.calls, id)
	return e.req, e.err
}

func newHandler(exec *stubExecutor) *Handler {
	return NewHandler(exec, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestNewExecuteTask(t *testing.T) {
	id := domain.NewRightsRequestID()
	task, err := NewExecuteTask(id)
	require.NoError(t, err)
	assert.Equal(t, TaskExecute, task.Type())

	var payload ExecutePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, id.String(), payload.RequestID)
}

func TestProcessTask(t *testing.T) {
	id := domain.NewRightsRequestID()
	task, err := NewExecuteTask(id)
	require.NoError(t, err)

	t.Run("runs the request", func(t *testing.T) {
		exec := &stubExecutor{req: &models.Request{ID: id, Status: models.StatusCompleted}}
		require.NoError(t, newHandler(exec).ProcessTask(context.Background(), task))
		assert.Equal(t, []domain.RightsRequestID{id}, exec.calls)
	})

	t.Run("step failure is retried by the queue", func(t *testing.T) {
		cause := dErrors.New(dErrors.CodeRightsStepFailed, "step erase:patient failed")
		exec := &stubExecutor{req: &models.Request{ID: id, Status: models.StatusPartiallyCompleted}, err: cause}
		err := newHandler(exec).ProcessTask(context.Background(), task)
		require.Error(t, err)
		assert.False(t, errors.Is(err, asynq.SkipRetry))
	})

	t.Run("unknown request skips retry", func(t *testing.T) {
		exec := &stubExecutor{err: dErrors.New(dErrors.CodeNotFound, "rights request not found")}
		err := newHandler(exec).ProcessTask(context.Background(), task)
		assert.ErrorIs(t, err, asynq.SkipRetry)
	})

	t.Run("failed verification skips retry", func(t *testing.T) {
		exec := &stubExecutor{
			req: &models.Request{ID: id, Status: models.StatusFailed},
			err: dErrors.New(dErrors.CodeUnauthorized, "identity verification method sms is not accepted"),
		}
		err := newHandler(exec).ProcessTask(context.Background(), task)
		assert.ErrorIs(t, err, asynq.SkipRetry)
	})

	t.Run("malformed payloads skip retry", func(t *testing.T) {
		exec := &stubExecutor{}
		h := newHandler(exec)
		assert.ErrorIs(t, h.ProcessTask(context.Background(), asynq.NewTask(TaskExecute, []byte("{"))), asynq.SkipRetry)
		assert.ErrorIs(t, h.ProcessTask(context.Background(), asynq.NewTask(TaskExecute, []byte(`{"request_id":"nope"}`))), asynq.SkipRetry)
		assert.Empty(t, exec.calls)
	})
}

func TestNewWorkerRequiresHandler(t *testing.T) {
	_, err := NewWorker(WorkerConfig{RedisOpts: asynq.RedisClientOpt{Addr: "localhost:0"}})
	assert.Error(t, err)
}
