// Package httptransport assembles the public HTTP surface: the middleware
// stack, operator authentication and every module's routes.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/unrolled/secure"

	"privata/internal/platform/config"
	dErrors "privata/pkg/domain-errors"
	"privata/pkg/platform/httputil"
	"privata/pkg/platform/middleware/auth"
	"privata/pkg/platform/middleware/metadata"
	"privata/pkg/platform/middleware/request"
)

const defaultRequestTimeout = 30 * time.Second

// Registrar is a module handler that mounts its routes.
type Registrar interface {
	Register(r chi.Router)
}

// PublicRegistrar mounts routes that do not take an operator token.
type PublicRegistrar interface {
	RegisterPublic(r chi.Router)
}

// RouterParams carries the handlers and settings the router mounts.
type RouterParams struct {
	Logger    *slog.Logger
	Server    config.Server
	Metadata  *metadata.Config
	Operators auth.Validator
	Health    Registrar
	// Handlers are mounted behind operator authentication. Handlers that
	// also implement PublicRegistrar get their public routes mounted
	// without it.
	Handlers []Registrar
}

// NewRouter wires the middleware stack and all routes.
func NewRouter(p RouterParams) http.Handler {
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'",
		SSLRedirect:           !p.Server.IsDevelopment(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         p.Server.IsDevelopment(),
	})

	r := chi.NewRouter()
	r.Use(request.Recovery(p.Logger))
	r.Use(request.RequestID)
	r.Use(request.RequestTime)
	r.Use(metadata.NewMiddleware(p.Metadata).Handler)
	r.Use(request.Logger(p.Logger))
	r.Use(request.LatencyMiddleware(request.NewMetrics()))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := secureMiddleware.Process(w, r); err != nil {
				p.Logger.WarnContext(r.Context(), "secure headers blocked request", "error", err)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	if p.Health != nil {
		p.Health.Register(r)
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if p.Server.RateLimit > 0 {
			r.Use(httprate.Limit(p.Server.RateLimit, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
					httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "rate limit exceeded"))
				}),
			))
		}
		if p.Server.MaxBodyBytes > 0 {
			r.Use(request.BodyLimit(p.Server.MaxBodyBytes))
		}
		r.Use(request.Timeout(defaultRequestTimeout))
		r.Use(request.ContentTypeJSON)

		for _, h := range p.Handlers {
			if pub, ok := h.(PublicRegistrar); ok {
				pub.RegisterPublic(r)
			}
		}
		r.Group(func(r chi.Router) {
			if p.Operators != nil {
				r.Use(auth.RequireOperator(p.Operators, p.Logger))
			}
			for _, h := range p.Handlers {
				h.Register(r)
			}
		})
	})
	return r
}
