package service

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	consentmodels "privata/internal/consent/models"
	restrictionmodels "privata/internal/restriction/models"
	restrictionservice "privata/internal/restriction/service"
	"privata/internal/rights/models"
	"privata/internal/storage"
	"privata/pkg/domain"
	dErrors "privata/pkg/domain-errors"
	"privata/pkg/platform/audit"
	"privata/pkg/requestcontext"
)

// Step actions. A step name is "<action>" or "<action>:<target>".
const (
	actionExport          = "export"
	actionPackage         = "package"
	actionWithdrawAll     = "withdraw_consents"
	actionWithdraw        = "withdraw_consent"
	actionErase           = "erase"
	actionRectify         = "rectify"
	actionRestrict        = "apply_restriction"
	actionRecordObjection = "record_objection"
)

func stepName(action string, target ...string) string {
	return strings.Join(append([]string{action}, target...), ":")
}

func splitStep(name string) (action, target string) {
	action, target, _ = strings.Cut(name, ":")
	return action, target
}

// plan lays out the steps of a new request.
func (s *Service) plan(in SubmitInput) ([]models.Step, error) {
	var names []string
	switch in.Kind {
	case models.KindAccess, models.KindPortability:
		scope, err := s.scope(in.Params.Models)
		if err != nil {
			return nil, err
		}
		for _, m := range scope {
			names = append(names, stepName(actionExport, m))
		}
		if in.Kind == models.KindPortability {
			names = append(names, actionPackage)
		}
	case models.KindErasure:
		scope, err := s.scope(in.Params.Models)
		if err != nil {
			return nil, err
		}
		names = append(names, actionWithdrawAll)
		for _, m := range scope {
			names = append(names, stepName(actionErase, m))
		}
	case models.KindRectification:
		if len(in.Params.Corrections) == 0 {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "rectification needs at least one correction")
		}
		for _, c := range in.Params.Corrections {
			if _, err := s.scope([]string{c.Model}); err != nil {
				return nil, err
			}
			name := stepName(actionRectify, c.Model, c.RecordID)
			if slices.Contains(names, name) {
				return nil, dErrors.New(dErrors.CodeInvalidInput, "duplicate correction for "+c.Model+" "+c.RecordID)
			}
			names = append(names, name)
		}
	case models.KindRestriction:
		if in.Params.Restriction == nil {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "restriction parameters are required")
		}
		names = append(names, actionRestrict)
	case models.KindObjection:
		if len(in.Params.Purposes) == 0 {
			names = append(names, actionWithdrawAll)
		}
		for _, p := range in.Params.Purposes {
			name := stepName(actionWithdraw, strings.TrimSpace(p))
			if !slices.Contains(names, name) {
				names = append(names, name)
			}
		}
		names = append(names, actionRecordObjection)
	default:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown rights request kind "+string(in.Kind))
	}

	steps := make([]models.Step, 0, len(names))
	for _, n := range names {
		steps = append(steps, models.Step{Name: n, Status: models.StepPending})
	}
	return steps, nil
}

// perform runs one attempt of a step against the collaborating services.
// Steps are safe to repeat: a retried or resumed step converges on the same
// state.
func (s *Service) perform(ctx context.Context, req *models.Request, action, target string) error {
	result := req.ResultOrInit()
	switch action {
	case actionExport:
		recs, err := s.data.SubjectRecords(ctx, req.SubjectID, target)
		if noData(err) {
			recs, err = nil, nil
		}
		if err != nil {
			return err
		}
		if result.Records == nil {
			result.Records = make(map[string][]map[string]any)
		}
		rows := make([]map[string]any, 0, len(recs))
		for _, r := range recs {
			rows = append(rows, r)
		}
		result.Records[target] = rows
		return nil

	case actionPackage:
		return s.pack(ctx, req)

	case actionWithdrawAll:
		n, err := s.consent.WithdrawAll(ctx, req.SubjectID)
		if err != nil {
			return err
		}
		result.Withdrawn += n
		return nil

	case actionWithdraw:
		purpose, err := consentmodels.ParsePurpose(target)
		if err != nil {
			return err
		}
		return s.consent.Withdraw(ctx, req.SubjectID, purpose)

	case actionErase:
		n, err := s.data.EraseSubject(ctx, req.SubjectID, target)
		if noData(err) {
			n, err = 0, nil
		}
		if err != nil {
			return err
		}
		if result.Erased == nil {
			result.Erased = make(map[string]int)
		}
		result.Erased[target] += n
		return nil

	case actionRectify:
		model, id, _ := strings.Cut(target, ":")
		for _, c := range req.Params.Corrections {
			if c.Model == model && c.RecordID == id {
				_, err := s.data.Rectify(ctx, req.SubjectID, model, id, storage.Record(c.Fields))
				return err
			}
		}
		return dErrors.New(dErrors.CodeInvalidInput, "no correction for "+target)

	case actionRestrict:
		p := req.Params.Restriction
		if p == nil {
			return dErrors.New(dErrors.CodeInvalidInput, "restriction parameters are required")
		}
		r, err := s.restrictor.Restrict(ctx, restrictionservice.RestrictInput{
			SubjectID:      req.SubjectID,
			Scope:          restrictionmodels.Scope(p.Scope),
			DataCategories: p.DataCategories,
			Exceptions:     p.Exceptions,
			Reason:         p.Reason,
		})
		if err != nil {
			return err
		}
		result.RestrictionID = r.ID.String()
		return nil

	case actionRecordObjection:
		return s.emit(ctx, audit.ActionObjection, req, map[string]any{
			"purposes": req.Params.Purposes,
		})
	}
	return dErrors.New(dErrors.CodeInvalidInput, "unknown rights step "+action)
}

// portabilityPackage is the machine-readable export handed to the subject.
type portabilityPackage struct {
	SubjectID   string                      `json:"subject_id"`
	RequestID   string                      `json:"request_id"`
	GeneratedAt string                      `json:"generated_at"`
	Format      string                      `json:"format"`
	Data        map[string][]map[string]any `json:"data"`
}

func (s *Service) pack(ctx context.Context, req *models.Request) error {
	if s.tokens == nil {
		return dErrors.Wrap(errNotConfigured, dErrors.CodeInternal, "portability requires a token signer")
	}
	result := req.ResultOrInit()
	data := result.Records
	if data == nil {
		data = map[string][]map[string]any{}
	}
	raw, err := json.Marshal(portabilityPackage{
		SubjectID:   req.SubjectID.String(),
		RequestID:   req.ID.String(),
		GeneratedAt: requestcontext.Now(ctx).UTC().Format(time.RFC3339),
		Format:      "json",
		Data:        data,
	})
	if err != nil {
		return fmt.Errorf("marshal portability package: %w", err)
	}
	token, expires, err := s.tokens.GenerateDownloadToken(req.ID.String(), req.SubjectID.String(), s.downloadTTL)
	if err != nil {
		return err
	}
	result.Package = raw
	result.Records = nil
	result.DownloadToken = token
	result.TokenExpiresAt = &expires
	return nil
}

// Download returns the portability package a download token grants and
// records the export.
func (s *Service) Download(ctx context.Context, token string) ([]byte, error) {
	if s.tokens == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "downloads are not enabled")
	}
	requestID, subjectID, err := s.tokens.ValidateDownloadToken(token)
	if err != nil {
		return nil, err
	}
	id, err := domain.ParseRightsRequestID(requestID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	req, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.SubjectID.String() != subjectID || req.Kind != models.KindPortability ||
		req.Result == nil || len(req.Result.Package) == 0 {
		return nil, dErrors.New(dErrors.CodeNotFound, "no package for this token")
	}
	if err := s.emit(ctx, audit.ActionExport, req, map[string]any{
		"kind":       string(req.Kind),
		"size_bytes": len(req.Result.Package),
	}); err != nil {
		return nil, err
	}
	return req.Result.Package, nil
}

// noData reports errors meaning the subject has no stored data to act on.
func noData(err error) bool {
	return dErrors.HasCode(err, dErrors.CodeRegionUndetermined)
}
