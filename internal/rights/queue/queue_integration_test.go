//go:build integration

package queue

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privata/internal/rights/models"
	"privata/pkg/domain"
	"privata/pkg/testutil/containers"
)

type signallingExecutor struct {
	done chan domain.RightsRequestID
}

func (e *signallingExecutor) Execute(_ context.Context, id domain.RightsRequestID) (*models.Request, error) {
	e.done <- id
	return &models.Request{ID: id, Status: models.StatusCompleted}, nil
}

func TestEnqueuedRequestIsExecuted(t *testing.T) {
	redisContainer := containers.GetManager().GetRedis(t)
	require.NoError(t, redisContainer.Flush(context.Background()))
	opts := asynq.RedisClientOpt{Addr: redisContainer.Addr}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	exec := &signallingExecutor{done: make(chan domain.RightsRequestID, 1)}
	worker, err := NewWorker(WorkerConfig{RedisOpts: opts, Concurrency: 1, Logger: logger, Handler: NewHandler(exec, logger)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- worker.Run(ctx) }()

	client := NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	id := domain.NewRightsRequestID()
	require.NoError(t, client.EnqueueExecute(ctx, id))

	select {
	case got := <-exec.done:
		assert.Equal(t, id, got)
	case <-time.After(30 * time.Second):
		t.Fatal("task was not processed")
	}

	cancel()
	assert.ErrorIs(t, <-runErr, context.Canceled)
}

func TestDuplicateEnqueueIsIgnored(t *testing.T) {
	redisContainer := containers.GetManager().GetRedis(t)
	require.NoError(t, redisContainer.Flush(context.Background()))
	opts := asynq.RedisClientOpt{Addr: redisContainer.Addr}

	client := NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	id := domain.NewRightsRequestID()
	require.NoError(t, client.EnqueueExecute(context.Background(), id))
	require.NoError(t, client.EnqueueExecute(context.Background(), id))

	inspector := asynq.NewInspector(opts)
	t.Cleanup(func() { _ = inspector.Close() })
	info, err := inspector.GetQueueInfo(QueueRights)
	require.NoError(t, err)
	assert.Equal(t, 1, info.Pending)
}
