// Package handler serves the audit trail to operators and regulators.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	dErrors "privata/pkg/domain-errors"
	"privata/pkg/platform/audit"
	"privata/pkg/platform/audit/export"
	"privata/pkg/platform/httputil"
	"privata/pkg/requestcontext"
)

// Service is the read side of the compliance audit sink.
type Service interface {
	Query(ctx context.Context, filter audit.Filter) ([]audit.Event, error)
	Export(ctx context.Context, filter audit.Filter, format export.Format) (string, error)
}

// Handler serves audit query and export endpoints.
type Handler struct {
	logger *slog.Logger
	audit  Service
}

// New creates an audit Handler.
func New(audit Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, audit: audit}
}

// Register registers the audit routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/audit/events", h.handleQuery)
	r.Get("/audit/export", h.handleExport)
}

// EventsResponse lists matching events oldest first.
type EventsResponse struct {
	Events []audit.Event `json:"events"`
	Count  int           `json:"count"`
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	events, err := h.audit.Query(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit query failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	httputil.WriteJSON(w, http.StatusOK, EventsResponse{Events: events, Count: len(events)})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	raw := r.URL.Query().Get("format")
	if raw == "" {
		raw = string(export.FormatJSON)
	}
	format, err := export.ParseFormat(raw)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, err.Error()))
		return
	}

	out, err := h.audit.Export(ctx, filter, format)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit export failed",
			"request_id", requestcontext.RequestID(ctx),
			"format", format,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "audit exported",
		"request_id", requestcontext.RequestID(ctx),
		"actor", requestcontext.Actor(ctx),
		"format", format,
	)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="audit.`+strings.ToLower(string(format))+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(out))
}

func parseFilter(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	f := audit.Filter{
		UserID:     strings.TrimSpace(q.Get("user_id")),
		SubjectID:  strings.TrimSpace(q.Get("subject_id")),
		Action:     audit.Action(strings.ToUpper(strings.TrimSpace(q.Get("action")))),
		EntityType: strings.TrimSpace(q.Get("entity_type")),
		EntityID:   strings.TrimSpace(q.Get("entity_id")),
	}
	var err error
	if f.From, err = parseTime(q.Get("from")); err != nil {
		return audit.Filter{}, err
	}
	if f.To, err = parseTime(q.Get("to")); err != nil {
		return audit.Filter{}, err
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return audit.Filter{}, dErrors.New(dErrors.CodeInvalidInput, "to is before from")
	}
	return f, nil
}

func parseTime(s string) (*time.Time, error) {
	if s = strings.TrimSpace(s); s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "timestamps must be RFC 3339")
	}
	return &t, nil
}
