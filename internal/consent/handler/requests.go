package handler

import (
	"strings"
	"time"

	"privata/internal/consent/models"
)

// GrantRequest records consent for one purpose.
type GrantRequest struct {
	Purpose    string         `json:"purpose" validate:"required,max=100"`
	TTLSeconds int64          `json:"ttl_seconds,omitempty" validate:"gte=0"`
	Details    map[string]any `json:"details,omitempty" validate:"max=50"`
}

// Normalize trims the purpose.
func (r *GrantRequest) Normalize() {
	if r == nil {
		return
	}
	r.Purpose = strings.TrimSpace(r.Purpose)
}

// TTL converts the requested lifetime; zero selects the service default.
func (r *GrantRequest) TTL() time.Duration {
	return time.Duration(r.TTLSeconds) * time.Second
}

// ConsentResponse is the wire form of a consent record.
type ConsentResponse struct {
	ID          string         `json:"id"`
	SubjectID   string         `json:"subject_id"`
	Purpose     string         `json:"purpose"`
	Status      models.Status  `json:"status"`
	GrantedAt   time.Time      `json:"granted_at"`
	ExpiresAt   time.Time      `json:"expires_at"`
	WithdrawnAt *time.Time     `json:"withdrawn_at,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
}

// HistoryResponse lists a subject's consent records newest first.
type HistoryResponse struct {
	Consents []ConsentResponse `json:"consents"`
}

// CheckResponse reports whether a purpose is currently consented.
type CheckResponse struct {
	SubjectID string `json:"subject_id"`
	Purpose   string `json:"purpose"`
	Active    bool   `json:"active"`
}

func toResponse(r *models.Record, now time.Time) ConsentResponse {
	return ConsentResponse{
		ID:          r.ID.String(),
		SubjectID:   r.SubjectID.String(),
		Purpose:     r.Purpose.String(),
		Status:      r.Status(now),
		GrantedAt:   r.GrantedAt,
		ExpiresAt:   r.ExpiresAt,
		WithdrawnAt: r.WithdrawnAt,
		Details:     r.Details,
	}
}
