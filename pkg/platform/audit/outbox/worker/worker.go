// Package worker streams committed audit events from the outbox table to Kafka
// so downstream SIEM and archival consumers receive the same trail the sink
// persisted.
package worker

import (
	"context"
	"log/slog"
	"time"

	"privata/internal/platform/kafka/producer"
	"privata/pkg/platform/audit/outbox"
	"privata/pkg/platform/audit/outbox/metrics"
)

// Producer publishes one message synchronously.
type Producer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// Worker polls the outbox table and publishes entries.
type Worker struct {
	store        outbox.Store
	producer     Producer
	topic        string
	batchSize    int
	pollInterval time.Duration
	keep         time.Duration
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// Option configures the Worker.
type Option func(*Worker)

// WithTopic sets the Kafka topic for publishing.
func WithTopic(topic string) Option {
	return func(w *Worker) {
		if topic != "" {
			w.topic = topic
		}
	}
}

// WithBatchSize sets the maximum number of entries to fetch per poll.
func WithBatchSize(size int) Option {
	return func(w *Worker) {
		if size > 0 {
			w.batchSize = size
		}
	}
}

// WithPollInterval sets the interval between polls.
func WithPollInterval(interval time.Duration) Option {
	return func(w *Worker) {
		if interval > 0 {
			w.pollInterval = interval
		}
	}
}

// WithProcessedRetention sets how long published entries are kept before pruning.
func WithProcessedRetention(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.keep = d
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// New creates a new outbox worker.
func New(store outbox.Store, prod Producer, opts ...Option) *Worker {
	w := &Worker{
		store:        store,
		producer:     prod,
		topic:        "privata.audit.events",
		batchSize:    100,
		pollInterval: 250 * time.Millisecond,
		keep:         24 * time.Hour,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls until ctx is cancelled, then makes a final drain pass with a
// short detached deadline.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	maintenance := time.NewTicker(time.Minute)
	defer maintenance.Stop()

	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			w.drain(drainCtx)
			cancel()
			return nil
		case <-ticker.C:
			w.PollOnce(ctx)
		case <-maintenance.C:
			if err := w.UpdateMetrics(ctx); err != nil {
				w.logger.WarnContext(ctx, "failed to count pending outbox entries", "error", err)
			}
			if _, err := w.Prune(ctx); err != nil {
				w.logger.WarnContext(ctx, "failed to prune outbox", "error", err)
			}
		}
	}
}

// PollOnce fetches one batch and publishes it. It returns how many entries
// were published.
func (w *Worker) PollOnce(ctx context.Context) int {
	start := time.Now()
	defer func() { w.metrics.ObservePollDuration(time.Since(start).Seconds()) }()

	entries, err := w.store.FetchUnprocessed(ctx, w.batchSize)
	if err != nil {
		w.logger.ErrorContext(ctx, "failed to fetch outbox entries", "error", err)
		w.metrics.IncPublishFailures()
		return 0
	}
	if len(entries) == 0 {
		return 0
	}
	w.metrics.ObserveBatchSize(len(entries))

	published := 0
	for _, entry := range entries {
		if err := w.publishEntry(ctx, entry); err != nil {
			w.logger.ErrorContext(ctx, "failed to publish outbox entry",
				"id", entry.ID,
				"event_type", entry.EventType,
				"error", err,
			)
			w.metrics.IncPublishFailures()
			continue
		}
		// A publish without a mark is re-sent on the next poll; consumers
		// dedupe on the record key.
		if err := w.store.MarkProcessed(ctx, entry.ID, time.Now()); err != nil {
			w.logger.ErrorContext(ctx, "failed to mark entry as processed", "id", entry.ID, "error", err)
			continue
		}
		w.metrics.IncPublished()
		published++
	}
	return published
}

func (w *Worker) publishEntry(ctx context.Context, entry *outbox.Entry) error {
	start := time.Now()
	msg := &producer.Message{
		Topic: w.topic,
		Key:   []byte(entry.ID.String()),
		Value: entry.Payload,
		Headers: map[string]string{
			"aggregate_type": entry.AggregateType,
			"aggregate_id":   entry.AggregateID,
			"event_type":     entry.EventType,
		},
	}
	if err := w.producer.Produce(ctx, msg); err != nil {
		return err
	}
	w.metrics.ObservePublishDuration(time.Since(start).Seconds())
	return nil
}

// drain keeps polling while batches make progress.
func (w *Worker) drain(ctx context.Context) {
	w.logger.Info("draining audit outbox")
	for ctx.Err() == nil {
		if w.PollOnce(ctx) == 0 {
			return
		}
	}
}

// UpdateMetrics refreshes the pending depth gauge.
func (w *Worker) UpdateMetrics(ctx context.Context) error {
	count, err := w.store.CountPending(ctx)
	if err != nil {
		return err
	}
	w.metrics.SetPendingDepth(count)
	return nil
}

// Prune deletes published entries older than the processed retention window.
func (w *Worker) Prune(ctx context.Context) (int64, error) {
	return w.store.DeleteProcessedBefore(ctx, time.Now().Add(-w.keep))
}
