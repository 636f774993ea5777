package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"privata/pkg/domain"
)

const (
	defaultMaxRetry = 10
	defaultTimeout  = 10 * time.Minute
)

// Client submits rights requests to the queue.
type Client struct {
	client   *asynq.Client
	maxRetry int
	timeout  time.Duration
}

// NewClient constructs an asynq client for the rights queue.
func NewClient(redisOpts asynq.RedisConnOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts), maxRetry: defaultMaxRetry, timeout: defaultTimeout}
}

// EnqueueExecute schedules execution of request id. A request already
// waiting in the queue is not enqueued twice.
func (c *Client) EnqueueExecute(ctx context.Context, id domain.RightsRequestID) error {
	task, err := NewExecuteTask(id)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueRights),
		asynq.TaskID(id.String()),
		asynq.MaxRetry(c.maxRetry),
		asynq.Timeout(c.timeout),
	)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("enqueue rights request %s: %w", id, err)
	}
	return nil
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
