package seeder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privata/internal/access"
	consentmodels "privata/internal/consent/models"
	"privata/internal/gate"
	"privata/internal/storage"
	"privata/pkg/domain"
	"privata/pkg/requestcontext"
)

type fakeConsent struct {
	grants map[domain.SubjectID][]consentmodels.Purpose
}

func (f *fakeConsent) Grant(_ context.Context, id domain.SubjectID, p consentmodels.Purpose, _ map[string]any, _ time.Duration) (*consentmodels.Record, error) {
	f.grants[id] = append(f.grants[id], p)
	return &consentmodels.Record{}, nil
}

type fakeRegions struct {
	pins map[domain.SubjectID]domain.Region
	err  error
}

func (f *fakeRegions) Pin(_ context.Context, id domain.SubjectID, r domain.Region) error {
	if f.err != nil {
		return f.err
	}
	f.pins[id] = r
	return nil
}

type fakeRecords struct {
	models []string
	ops    []access.Operation
	actors []string
}

func (f *fakeRecords) Create(ctx context.Context, op access.Operation) (storage.Record, *gate.Decision, error) {
	f.ops = append(f.ops, op)
	f.actors = append(f.actors, requestcontext.Actor(ctx))
	return op.Data, nil, nil
}

func (f *fakeRecords) Models() []string { return f.models }

func newFakes(models ...string) (*fakeConsent, *fakeRegions, *fakeRecords) {
	return &fakeConsent{grants: map[domain.SubjectID][]consentmodels.Purpose{}},
		&fakeRegions{pins: map[domain.SubjectID]domain.Region{}},
		&fakeRecords{models: models}
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestSeedAll(t *testing.T) {
	consent, regions, records := newFakes(DemoModel)
	require.NoError(t, New(consent, regions, records, quiet).SeedAll(context.Background()))

	assert.Len(t, regions.pins, len(demoSubjects))
	assert.Equal(t, domain.RegionUS, regions.pins["charlie"])
	assert.Equal(t, []consentmodels.Purpose{"care", "analytics"}, consent.grants["alice"])
	assert.Empty(t, consent.grants["diana"])

	require.Len(t, records.ops, len(demoSubjects))
	for i, op := range records.ops {
		assert.Equal(t, DemoModel, op.Model)
		assert.Equal(t, gate.BasisConsent, op.LegalBasis)
		assert.Equal(t, "seeder", records.actors[i])
	}
}

func TestSeedAllSkipsRecordsWithoutDemoModel(t *testing.T) {
	consent, regions, records := newFakes("invoice")
	require.NoError(t, New(consent, regions, records, quiet).SeedAll(context.Background()))

	assert.Empty(t, records.ops)
	assert.NotEmpty(t, consent.grants)
}

func TestSeedAllStopsOnPinFailure(t *testing.T) {
	consent, regions, records := newFakes(DemoModel)
	regions.err = errors.New("store down")

	err := New(consent, regions, records, quiet).SeedAll(context.Background())
	require.ErrorContains(t, err, "pin alice")
	assert.Empty(t, consent.grants)
}
