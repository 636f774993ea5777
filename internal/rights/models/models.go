package models

import (
	"encoding/json"
	"maps"
	"slices"
	"time"

	"privata/pkg/domain"
	dErrors "privata/pkg/domain-errors"
)

// Kind is the data subject right being exercised.
type Kind string

const (
	KindAccess        Kind = "access"
	KindErasure       Kind = "erasure"
	KindRectification Kind = "rectification"
	KindRestriction   Kind = "restriction"
	KindPortability   Kind = "portability"
	KindObjection     Kind = "objection"
)

// ParseKind validates a kind taken from an API boundary.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindAccess, KindErasure, KindRectification, KindRestriction, KindPortability, KindObjection:
		return k, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "unknown rights request kind "+s)
}

// Status is the lifecycle state of a request.
type Status string

const (
	StatusPending            Status = "pending"
	StatusVerifying          Status = "verifying"
	StatusExecuting          Status = "executing"
	StatusCompleted          Status = "completed"
	StatusFailed             Status = "failed"
	StatusPartiallyCompleted Status = "partially_completed"
)

// Terminal reports whether no further execution happens without a resume.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusPartiallyCompleted
}

// StepStatus is the state of one workflow step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// Step is one unit of work. Name encodes the action and its target, for
// example "erase:patient" or "withdraw_consent:marketing".
type Step struct {
	Name      string     `json:"name"`
	Status    StepStatus `json:"status"`
	Attempts  int        `json:"attempts"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Correction is one rectification target.
type Correction struct {
	Model    string         `json:"model" validate:"required,max=100"`
	RecordID string         `json:"record_id" validate:"required,max=128"`
	Fields   map[string]any `json:"fields" validate:"required,min=1,max=200"`
}

// RestrictionParams describe the restriction a restriction request applies.
type RestrictionParams struct {
	Scope          string   `json:"scope" validate:"required,oneof=all_personal_data specific_categories"`
	DataCategories []string `json:"data_categories,omitempty" validate:"max=200,dive,required,max=100"`
	Exceptions     []string `json:"exceptions,omitempty" validate:"max=6"`
	Reason         string   `json:"reason,omitempty" validate:"max=500"`
}

// Params carry kind-specific input.
type Params struct {
	// Models limits access, erasure and portability to these models. Empty
	// means every registered model.
	Models      []string           `json:"models,omitempty" validate:"max=100,dive,required,max=100"`
	Purposes    []string           `json:"purposes,omitempty" validate:"max=50,dive,required,max=100"`
	Corrections []Correction       `json:"corrections,omitempty" validate:"max=100,dive"`
	Restriction *RestrictionParams `json:"restriction,omitempty"`
}

// Result is what a request produced. Records holds the exported data of
// access requests; Package holds the portability archive handed out with a
// signed download token.
type Result struct {
	Records        map[string][]map[string]any `json:"records,omitempty"`
	Erased         map[string]int              `json:"erased,omitempty"`
	Withdrawn      int                         `json:"withdrawn,omitempty"`
	RestrictionID  string                      `json:"restriction_id,omitempty"`
	Package        json.RawMessage             `json:"package,omitempty"`
	DownloadToken  string                      `json:"download_token,omitempty"`
	TokenExpiresAt *time.Time                  `json:"token_expires_at,omitempty"`
	Error          string                      `json:"error,omitempty"`
}

// Request is a data subject rights request and its workflow state.
type Request struct {
	ID                 domain.RightsRequestID `json:"id"`
	SubjectID          domain.SubjectID       `json:"subject_id"`
	Kind               Kind                   `json:"kind"`
	Status             Status                 `json:"status"`
	VerificationMethod string                 `json:"verification_method"`
	Params             Params                 `json:"params"`
	Steps              []Step                 `json:"steps"`
	Result             *Result                `json:"result,omitempty"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
}

// Completed counts completed steps.
func (r *Request) Completed() int {
	n := 0
	for _, s := range r.Steps {
		if s.Status == StepCompleted {
			n++
		}
	}
	return n
}

// ResultOrInit returns r.Result, creating it first if needed.
func (r *Request) ResultOrInit() *Result {
	if r.Result == nil {
		r.Result = &Result{}
	}
	return r.Result
}

// Clone returns a deep copy so stores never hand out shared state.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	out := *r
	out.Params = r.Params.clone()
	out.Steps = slices.Clone(r.Steps)
	for i, s := range out.Steps {
		if s.Timestamp != nil {
			t := *s.Timestamp
			out.Steps[i].Timestamp = &t
		}
	}
	if r.Result != nil {
		res := *r.Result
		res.Records = maps.Clone(r.Result.Records)
		res.Erased = maps.Clone(r.Result.Erased)
		res.Package = slices.Clone(r.Result.Package)
		out.Result = &res
	}
	return &out
}

func (p Params) clone() Params {
	out := p
	out.Models = slices.Clone(p.Models)
	out.Purposes = slices.Clone(p.Purposes)
	out.Corrections = slices.Clone(p.Corrections)
	for i, c := range out.Corrections {
		out.Corrections[i].Fields = maps.Clone(c.Fields)
	}
	if p.Restriction != nil {
		r := *p.Restriction
		r.DataCategories = slices.Clone(p.Restriction.DataCategories)
		r.Exceptions = slices.Clone(p.Restriction.Exceptions)
		out.Restriction = &r
	}
	return out
}
