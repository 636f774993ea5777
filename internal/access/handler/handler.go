// Package handler exposes the data access engine over HTTP. Every call names
// the data subject and processing purpose in headers; the engine decides
// region, compliance and audit.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"privata/internal/access"
	"privata/internal/gate"
	"privata/internal/query"
	regionmodels "privata/internal/region/models"
	"privata/internal/storage"
	"privata/pkg/domain"
	"privata/pkg/platform/fieldset"
	"privata/pkg/platform/httputil"
	"privata/pkg/requestcontext"
)

// Engine is the part of the access engine the handler drives.
type Engine interface {
	Create(ctx context.Context, op access.Operation) (storage.Record, *gate.Decision, error)
	FindByID(ctx context.Context, op access.Operation, id string) (storage.Record, *gate.Decision, error)
	Update(ctx context.Context, op access.Operation, id string) (storage.Record, *gate.Decision, error)
	SoftDelete(ctx context.Context, op access.Operation, id string) error
}

// Querier runs built queries.
type Querier interface {
	Execute(ctx context.Context, b query.Builder, subject query.Subject) (query.Result, error)
}

// Handler serves the data API.
type Handler struct {
	logger  *slog.Logger
	engine  Engine
	querier Querier
}

// New creates a data Handler.
func New(engine Engine, querier Querier, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, engine: engine, querier: querier}
}

// Register registers the data routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/data/{model}", h.handleCreate)
	r.Post("/data/{model}/query", h.handleQuery)
	r.Get("/data/{model}/{id}", h.handleFind)
	r.Patch("/data/{model}/{id}", h.handleUpdate)
	r.Delete("/data/{model}/{id}", h.handleDelete)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	op, ok := h.operation(w, r)
	if !ok {
		return
	}
	body, ok := httputil.DecodeAndValidate[WriteRequest](ctx, w, r, h.logger)
	if !ok {
		return
	}
	op.Data = body.Data
	op.RequireConsent = body.RequireConsent

	rec, decision, err := h.engine.Create(ctx, op)
	if err != nil {
		h.fail(ctx, w, "create failed", op, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, RecordResponse{Record: rec, Decision: decision})
}

func (h *Handler) handleFind(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	op, ok := h.operation(w, r)
	if !ok {
		return
	}
	if fields := r.URL.Query().Get("fields"); fields != "" {
		op.Fields = fieldset.DedupeAndTrim(strings.Split(fields, ","))
	}
	op.AllowStale = r.URL.Query().Get("consistency") == "eventual"

	rec, decision, err := h.engine.FindByID(ctx, op, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, "read failed", op, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, RecordResponse{Record: rec, Decision: decision})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	op, ok := h.operation(w, r)
	if !ok {
		return
	}
	body, ok := httputil.DecodeAndValidate[WriteRequest](ctx, w, r, h.logger)
	if !ok {
		return
	}
	op.Data = body.Data
	op.RequireConsent = body.RequireConsent

	rec, decision, err := h.engine.Update(ctx, op, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, "update failed", op, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, RecordResponse{Record: rec, Decision: decision})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	op, ok := h.operation(w, r)
	if !ok {
		return
	}
	if err := h.engine.SoftDelete(ctx, op, chi.URLParam(r, "id")); err != nil {
		h.fail(ctx, w, "delete failed", op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	op, ok := h.operation(w, r)
	if !ok {
		return
	}
	body, ok := httputil.DecodeAndValidate[QueryRequest](ctx, w, r, h.logger)
	if !ok {
		return
	}

	b := query.From(op.Model).
		Select(body.Select...).
		And(body.Where).
		Limit(body.Limit).
		Offset(body.Offset).
		Purpose(op.Purpose).
		LegalBasis(op.LegalBasis)
	if len(body.AnyOf) > 0 {
		b = b.Or(body.AnyOf...)
	}
	for _, s := range body.Sort {
		b = b.OrderBy(s.Field, s.Desc)
	}
	if body.RequireConsent {
		b = b.RequireConsent()
	}

	res, err := h.querier.Execute(ctx, b, query.Subject{ID: op.SubjectID, Request: op.Request})
	if err != nil {
		h.fail(ctx, w, "query failed", op, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// operation reads the model, subject and processing context of a call.
func (h *Handler) operation(w http.ResponseWriter, r *http.Request) (access.Operation, bool) {
	ctx := r.Context()
	subjectID, err := domain.ParseSubjectID(r.Header.Get(HeaderSubject))
	if err != nil {
		httputil.WriteError(w, err)
		return access.Operation{}, false
	}
	basis, err := gate.ParseLegalBasis(r.Header.Get(HeaderLegalBasis))
	if err != nil {
		httputil.WriteError(w, err)
		return access.Operation{}, false
	}
	return access.Operation{
		Model:      chi.URLParam(r, "model"),
		SubjectID:  subjectID,
		Purpose:    strings.TrimSpace(r.Header.Get(HeaderPurpose)),
		LegalBasis: basis,
		Request: regionmodels.RequestMeta{
			IP:             requestcontext.ClientIP(ctx),
			AcceptLanguage: requestcontext.AcceptLanguage(ctx),
		},
	}, true
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, op access.Operation, err error) {
	h.logger.WarnContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"model", op.Model,
		"subject_id", op.SubjectID,
		"error", err,
	)
	httputil.WriteError(w, err)
}
