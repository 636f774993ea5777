package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"privata/internal/restriction/models"
	"privata/internal/restriction/service"
	"privata/pkg/domain"
	"privata/pkg/platform/fieldset"
	"privata/pkg/platform/httputil"
	"privata/pkg/requestcontext"
)

// Service defines the restriction operations the handler exposes.
type Service interface {
	Restrict(ctx context.Context, in service.RestrictInput) (*models.Restriction, error)
	Lift(ctx context.Context, subjectID domain.SubjectID, id domain.RestrictionID) (*models.Restriction, error)
	List(ctx context.Context, subjectID domain.SubjectID) ([]*models.Restriction, error)
}

// Handler serves restriction management endpoints.
type Handler struct {
	logger       *slog.Logger
	restrictions Service
}

// New creates a restriction Handler.
func New(restrictions Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, restrictions: restrictions}
}

// Register registers the restriction routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/restrictions/{subjectID}", h.handleRestrict)
	r.Get("/restrictions/{subjectID}", h.handleList)
	r.Delete("/restrictions/{subjectID}/{restrictionID}", h.handleLift)
}

// RestrictRequest is the body of a restriction request.
type RestrictRequest struct {
	Scope          string   `json:"scope" validate:"required,oneof=all_personal_data specific_categories"`
	DataCategories []string `json:"data_categories,omitempty"`
	Exceptions     []string `json:"exceptions,omitempty"`
	Reason         string   `json:"reason,omitempty"`
}

// Normalize trims the scope and drops blank or repeated list entries.
func (r *RestrictRequest) Normalize() {
	r.Scope = strings.TrimSpace(r.Scope)
	r.DataCategories = fieldset.DedupeAndTrim(r.DataCategories)
	r.Exceptions = fieldset.DedupeAndTrim(r.Exceptions)
}

// ListResponse wraps a subject's restrictions.
type ListResponse struct {
	Restrictions []*models.Restriction `json:"restrictions"`
}

func (h *Handler) handleRestrict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectID, err := domain.ParseSubjectID(chi.URLParam(r, "subjectID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndValidate[RestrictRequest](ctx, w, r, h.logger)
	if !ok {
		return
	}

	restriction, err := h.restrictions.Restrict(ctx, service.RestrictInput{
		SubjectID:      subjectID,
		Scope:          models.Scope(req.Scope),
		DataCategories: req.DataCategories,
		Exceptions:     req.Exceptions,
		Reason:         req.Reason,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to apply restriction",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, restriction)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectID, err := domain.ParseSubjectID(chi.URLParam(r, "subjectID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rs, err := h.restrictions.List(ctx, subjectID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list restrictions",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if rs == nil {
		rs = []*models.Restriction{}
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Restrictions: rs})
}

func (h *Handler) handleLift(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectID, err := domain.ParseSubjectID(chi.URLParam(r, "subjectID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	id, err := domain.ParseRestrictionID(chi.URLParam(r, "restrictionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	lifted, err := h.restrictions.Lift(ctx, subjectID, id)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to lift restriction",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, lifted)
}
