package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"privata/internal/consent/models"
	"privata/internal/consent/service"
	"privata/pkg/domain"
	"privata/pkg/platform/httputil"
	"privata/pkg/requestcontext"
)

// Service defines the consent operations the handler exposes.
type Service interface {
	Grant(ctx context.Context, subjectID domain.SubjectID, purpose models.Purpose, details map[string]any, ttl time.Duration) (*models.Record, error)
	Check(ctx context.Context, subjectID domain.SubjectID, purpose models.Purpose, opts ...service.CheckOption) (bool, error)
	Withdraw(ctx context.Context, subjectID domain.SubjectID, purpose models.Purpose) error
	History(ctx context.Context, subjectID domain.SubjectID) ([]*models.Record, error)
}

// Handler handles consent ledger endpoints.
type Handler struct {
	logger  *slog.Logger
	consent Service
}

// New creates a new consent Handler.
func New(consent Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		consent: consent,
	}
}

// Register registers the consent routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/consents/{subjectID}", h.handleGrant)
	r.Get("/consents/{subjectID}", h.handleHistory)
	r.Get("/consents/{subjectID}/{purpose}", h.handleCheck)
	r.Delete("/consents/{subjectID}/{purpose}", h.handleWithdraw)
}

func (h *Handler) handleGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	subjectID, ok := h.subject(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndValidate[GrantRequest](ctx, w, r, h.logger)
	if !ok {
		return
	}
	purpose, err := models.ParsePurpose(req.Purpose)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	record, err := h.consent.Grant(ctx, subjectID, purpose, req.Details, req.TTL())
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to grant consent",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(record, requestcontext.Now(ctx)))
}

func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectID, purpose, ok := h.subjectAndPurpose(w, r)
	if !ok {
		return
	}

	if err := h.consent.Withdraw(ctx, subjectID, purpose); err != nil {
		h.logger.ErrorContext(ctx, "failed to withdraw consent",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectID, ok := h.subject(w, r)
	if !ok {
		return
	}

	records, err := h.consent.History(ctx, subjectID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list consents",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	now := requestcontext.Now(ctx)
	res := HistoryResponse{Consents: make([]ConsentResponse, 0, len(records))}
	for _, rec := range records {
		res.Consents = append(res.Consents, toResponse(rec, now))
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectID, purpose, ok := h.subjectAndPurpose(w, r)
	if !ok {
		return
	}

	active, err := h.consent.Check(ctx, subjectID, purpose)
	if err != nil {
		h.logger.ErrorContext(ctx, "consent check failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CheckResponse{
		SubjectID: subjectID.String(),
		Purpose:   purpose.String(),
		Active:    active,
	})
}

func (h *Handler) subject(w http.ResponseWriter, r *http.Request) (domain.SubjectID, bool) {
	subjectID, err := domain.ParseSubjectID(chi.URLParam(r, "subjectID"))
	if err != nil {
		httputil.WriteError(w, err)
		return "", false
	}
	return subjectID, true
}

func (h *Handler) subjectAndPurpose(w http.ResponseWriter, r *http.Request) (domain.SubjectID, models.Purpose, bool) {
	subjectID, ok := h.subject(w, r)
	if !ok {
		return "", "", false
	}
	purpose, err := models.ParsePurpose(chi.URLParam(r, "purpose"))
	if err != nil {
		httputil.WriteError(w, err)
		return "", "", false
	}
	return subjectID, purpose, true
}
