package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"privata/internal/rights/models"
	"privata/internal/rights/service"
	"privata/pkg/domain"
	dErrors "privata/pkg/domain-errors"
	"privata/pkg/platform/httputil"
	"privata/pkg/requestcontext"
)

// Service defines the rights operations the handler exposes.
type Service interface {
	Submit(ctx context.Context, in service.SubmitInput) (*models.Request, error)
	Execute(ctx context.Context, id domain.RightsRequestID) (*models.Request, error)
	Get(ctx context.Context, id domain.RightsRequestID) (*models.Request, error)
	ListBySubject(ctx context.Context, subjectID domain.SubjectID) ([]*models.Request, error)
	Download(ctx context.Context, token string) ([]byte, error)
}

// Handler serves data subject rights endpoints.
type Handler struct {
	logger *slog.Logger
	rights Service
}

// New creates a rights Handler.
func New(rights Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, rights: rights}
}

// Register registers the operator rights routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/subjects/{subjectID}/rights", h.handleSubmit)
	r.Get("/subjects/{subjectID}/rights", h.handleList)
	r.Get("/rights/{requestID}", h.handleGet)
	r.Post("/rights/{requestID}/execute", h.handleExecute)
}

// RegisterPublic registers the routes a data subject calls directly. The
// download token is the only credential.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/rights/download", h.handleDownload)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectID, err := domain.ParseSubjectID(chi.URLParam(r, "subjectID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	body, ok := httputil.DecodeAndValidate[SubmitRequest](ctx, w, r, h.logger)
	if !ok {
		return
	}

	req, err := h.rights.Submit(ctx, service.SubmitInput{
		SubjectID:          subjectID,
		Kind:               models.Kind(body.Kind),
		VerificationMethod: body.VerificationMethod,
		Params:             body.Params,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to submit rights request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, toResponse(req))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectID, err := domain.ParseSubjectID(chi.URLParam(r, "subjectID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	reqs, err := h.rights.ListBySubject(ctx, subjectID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	res := ListResponse{Requests: make([]RequestResponse, 0, len(reqs))}
	for _, req := range reqs {
		res.Requests = append(res.Requests, toResponse(req))
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}
	req, err := h.rights.Get(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(req))
}

// handleExecute runs the request synchronously. A request that ends failed or
// partially completed is still reported with 200; its status and step errors
// carry the outcome.
func (h *Handler) handleExecute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}
	req, err := h.rights.Execute(ctx, id)
	if err != nil {
		h.logger.WarnContext(ctx, "rights request did not complete",
			"request_id", requestcontext.RequestID(ctx),
			"rights_request_id", id,
			"error", err,
		)
		if req == nil {
			httputil.WriteError(w, err)
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(req))
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		token = strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	}
	if token == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "download token required"))
		return
	}
	pkg, err := h.rights.Download(ctx, token)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="personal-data.json"`)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pkg)
}

func (h *Handler) requestID(w http.ResponseWriter, r *http.Request) (domain.RightsRequestID, bool) {
	id, err := domain.ParseRightsRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid rights request id"))
		return domain.RightsRequestID{}, false
	}
	return id, true
}
