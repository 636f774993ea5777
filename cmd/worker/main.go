package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"privata/internal/app"
	"privata/internal/platform/config"
	"privata/internal/platform/logger"
	"privata/internal/rights/queue"
)

// main runs queued rights requests and relays the audit outbox.
func main() {
	if err := run(); err != nil {
		slog.Default().Error("worker exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("close infrastructure", "error", err)
		}
	}()
	if a.RedisOpts == nil {
		return errors.New("REDIS_URL is required to run the rights worker")
	}

	worker, err := queue.NewWorker(queue.WorkerConfig{
		RedisOpts:   a.RedisOpts,
		Concurrency: cfg.Rights.QueueConcurrency,
		Logger:      log,
		Handler:     queue.NewHandler(a.Rights, log),
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting rights worker", "concurrency", cfg.Rights.QueueConcurrency)
		if err := worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	if a.Outbox != nil {
		g.Go(func() error {
			return a.Outbox.Run(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("worker stopped")
	return nil
}
