package handler

import (
	"strings"
	"time"

	"privata/internal/rights/models"
	"privata/pkg/platform/fieldset"
)

// SubmitRequest opens a rights request for the subject in the path.
type SubmitRequest struct {
	Kind               string        `json:"kind" validate:"required,oneof=access erasure rectification restriction portability objection"`
	VerificationMethod string        `json:"verification_method" validate:"required,max=64"`
	Params             models.Params `json:"params"`
}

// Normalize trims free-text fields.
func (r *SubmitRequest) Normalize() {
	if r == nil {
		return
	}
	r.Kind = strings.ToLower(strings.TrimSpace(r.Kind))
	r.VerificationMethod = strings.TrimSpace(r.VerificationMethod)
	r.Params.Models = fieldset.DedupeAndTrim(r.Params.Models)
	r.Params.Purposes = fieldset.DedupeAndTrim(r.Params.Purposes)
}

// ResultResponse is the wire form of a request result. The portability
// package itself is only served through the download endpoint.
type ResultResponse struct {
	Records        map[string][]map[string]any `json:"records,omitempty"`
	Erased         map[string]int              `json:"erased,omitempty"`
	Withdrawn      int                         `json:"withdrawn,omitempty"`
	RestrictionID  string                      `json:"restriction_id,omitempty"`
	DownloadToken  string                      `json:"download_token,omitempty"`
	TokenExpiresAt *time.Time                  `json:"token_expires_at,omitempty"`
	Error          string                      `json:"error,omitempty"`
}

// RequestResponse is the wire form of a rights request.
type RequestResponse struct {
	ID                 string          `json:"id"`
	SubjectID          string          `json:"subject_id"`
	Kind               models.Kind     `json:"kind"`
	Status             models.Status   `json:"status"`
	VerificationMethod string          `json:"verification_method"`
	Steps              []models.Step   `json:"steps"`
	Result             *ResultResponse `json:"result,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// ListResponse lists a subject's requests newest first.
type ListResponse struct {
	Requests []RequestResponse `json:"requests"`
}

func toResponse(r *models.Request) RequestResponse {
	res := RequestResponse{
		ID:                 r.ID.String(),
		SubjectID:          r.SubjectID.String(),
		Kind:               r.Kind,
		Status:             r.Status,
		VerificationMethod: r.VerificationMethod,
		Steps:              r.Steps,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
	if r.Result != nil {
		res.Result = &ResultResponse{
			Records:        r.Result.Records,
			Erased:         r.Result.Erased,
			Withdrawn:      r.Result.Withdrawn,
			RestrictionID:  r.Result.RestrictionID,
			DownloadToken:  r.Result.DownloadToken,
			TokenExpiresAt: r.Result.TokenExpiresAt,
			Error:          r.Result.Error,
		}
	}
	return res
}
