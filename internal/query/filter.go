package query

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"privata/internal/access"
	"privata/internal/gate"
	regionmodels "privata/internal/region/models"
	"privata/internal/storage"
	"privata/pkg/domain"
)

var complianceScore = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "privata_query_compliance_score",
	Help:    "Compliance score of executed queries",
	Buckets: []float64{0, 25, 50, 60, 70, 80, 90, 100},
}, []string{"model"})

// Runner executes subject-scoped queries. The access engine implements it.
type Runner interface {
	FindMany(ctx context.Context, op access.Operation, q storage.Query) ([]storage.Record, *gate.Decision, error)
}

// Subject identifies whose data a query reads, with the request signals used
// for region inference.
type Subject struct {
	ID      domain.SubjectID
	Request regionmodels.RequestMeta
}

// Result is what Execute returns. Decision and Score are set whenever the gate
// was reached, including for denied queries.
type Result struct {
	Records  []storage.Record `json:"records"`
	Decision *gate.Decision   `json:"decision,omitempty"`
	Score    int              `json:"compliance_score"`
}

// Filter runs builders through the access engine.
type Filter struct {
	runner Runner
	logger *slog.Logger
}

func NewFilter(runner Runner, logger *slog.Logger) *Filter {
	if runner == nil {
		panic("query.NewFilter: runner is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Filter{runner: runner, logger: logger}
}

// Execute validates b and runs it for subject.
func (f *Filter) Execute(ctx context.Context, b Builder, subject Subject) (Result, error) {
	if err := b.Validate(); err != nil {
		return Result{}, err
	}
	recs, decision, err := f.runner.FindMany(ctx, access.Operation{
		Model:          b.model,
		SubjectID:      subject.ID,
		Purpose:        b.purpose,
		LegalBasis:     b.legalBasis,
		Request:        subject.Request,
		RequireConsent: b.requireConsent,
	}, b.Query())

	res := Result{Records: recs, Decision: decision}
	if decision != nil {
		res.Score = Score(decision.Mode, decision.Classes, b.requireConsent)
		complianceScore.WithLabelValues(b.model).Observe(float64(res.Score))
	}
	if err != nil {
		return res, err
	}
	if res.Records == nil {
		res.Records = []storage.Record{}
	}
	f.logger.DebugContext(ctx, "query executed",
		"model", b.model,
		"records", len(res.Records),
		"outcome", decision.Outcome,
		"compliance_score", res.Score,
	)
	return res, nil
}
