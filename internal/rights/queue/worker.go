package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"privata/internal/rights/models"
	"privata/pkg/domain"
	dErrors "privata/pkg/domain-errors"
)

// Executor runs a rights request; *service.Service satisfies it.
type Executor interface {
	Execute(ctx context.Context, id domain.RightsRequestID) (*models.Request, error)
}

// Handler processes TaskExecute tasks.
type Handler struct {
	executor Executor
	logger   *slog.Logger
}

func NewHandler(executor Executor, logger *slog.Logger) *Handler {
	if executor == nil {
		panic("rights executor is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{executor: executor, logger: logger}
}

// ProcessTask runs the request named in the payload. Failed requests are
// returned to asynq so a later retry resumes them from the failed step;
// requests that can never succeed skip retry.
func (h *Handler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ExecutePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.ErrorContext(ctx, "malformed rights task", "error", err)
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	id, err := domain.ParseRightsRequestID(payload.RequestID)
	if err != nil {
		h.logger.ErrorContext(ctx, "malformed rights task", "request_id", payload.RequestID, "error", err)
		return fmt.Errorf("parse request id: %v: %w", err, asynq.SkipRetry)
	}

	req, err := h.executor.Execute(ctx, id)
	if err == nil {
		return nil
	}
	if !retryable(req, err) {
		h.logger.WarnContext(ctx, "rights request will not be retried",
			"request_id", id,
			"error", err,
		)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

func retryable(req *models.Request, err error) bool {
	switch {
	case dErrors.HasCode(err, dErrors.CodeNotFound),
		dErrors.HasCode(err, dErrors.CodeUnauthorized):
		return false
	case req != nil && req.Status == models.StatusCompleted:
		return false
	}
	return true
}

// WorkerConfig collects what the worker needs to start.
type WorkerConfig struct {
	RedisOpts   asynq.RedisConnOpt
	Concurrency int
	Logger      *slog.Logger
	Handler     *Handler
}

// Worker wraps the asynq server processing the rights queue.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *slog.Logger
}

func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Handler == nil {
		return nil, errors.New("rights worker: handler is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues: map[string]int{
			QueueRights: 1,
		},
		Logger: &asynqLogger{logger: cfg.Logger},
	})
	mux := asynq.NewServeMux()
	mux.Handle(TaskExecute, cfg.Handler)
	return &Worker{server: srv, mux: mux, logger: cfg.Logger}, nil
}

// Run processes tasks until ctx is cancelled, then waits for in-flight tasks
// to finish.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start rights worker: %w", err)
	}
	w.logger.InfoContext(ctx, "rights worker started", "queue", QueueRights)
	<-ctx.Done()
	w.server.Shutdown()
	w.logger.Info("rights worker stopped")
	return ctx.Err()
}

type asynqLogger struct {
	logger *slog.Logger
}

func (l *asynqLogger) Debug(args ...any) { l.logger.Debug(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...any)  { l.logger.Info(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...any)  { l.logger.Warn(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...any) { l.logger.Error(fmt.Sprint(args...)) }
func (l *asynqLogger) Fatal(args ...any) { l.logger.Error(fmt.Sprint(args...)) }
