package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	accesshandler "privata/internal/access/handler"
	"privata/internal/app"
	audithandler "privata/internal/audit/handler"
	consenthandler "privata/internal/consent/handler"
	"privata/internal/platform/config"
	"privata/internal/platform/logger"
	restrictionhandler "privata/internal/restriction/handler"
	rightshandler "privata/internal/rights/handler"
	httptransport "privata/internal/transport/http"
	"privata/pkg/platform/middleware/metadata"
)

// main wires the service graph, serves the HTTP API and relays the audit
// outbox until SIGINT or SIGTERM.
func main() {
	if err := run(); err != nil {
		slog.Default().Error("server exited", "error", err)
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
	log.Info("initializing privata",
		"env", cfg.Server.Env,
		"addr", cfg.Server.Addr,
		"compliance_mode", cfg.Compliance.Mode,
	)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("close infrastructure", "error", err)
		}
	}()

	proxies, err := trustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return err
	}
	router := httptransport.NewRouter(httptransport.RouterParams{
		Logger:    log,
		Server:    cfg.Server,
		Metadata:  &metadata.Config{TrustedProxies: proxies},
		Operators: a.Tokens,
		Health:    a.Health,
		Handlers: []httptransport.Registrar{
			consenthandler.New(a.Consent, log),
			restrictionhandler.New(a.Restrictions, log),
			accesshandler.New(a.Engine, a.Query, log),
			rightshandler.New(a.Rights, log),
			audithandler.New(a.Auditor, log),
		},
	})
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if a.Outbox != nil {
		g.Go(func() error {
			return a.Outbox.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

func trustedProxies(cidrs []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(cidrs))
	for _, c := range cidrs {
		p, err := netip.ParsePrefix(c)
		if err != nil {
			return nil, fmt.Errorf("PRIVATA_TRUSTED_PROXIES: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}
