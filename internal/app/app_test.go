package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privata/internal/platform/config"
	"privata/internal/rights/models"
	rightsservice "privata/internal/rights/service"
	"privata/pkg/domain"
)

const testSchema = `models:
  - name: patient
    subject_field: patient_id
    fields:
      name: PII
      diagnosis: PHI
      status: METADATA
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testSchema), 0o600))
	return &config.Config{
		Server:  config.Server{Env: "test"},
		Storage: config.Storage{Regions: config.RegionStores{"US": "memory", "EU": "memory"}, CacheTTL: time.Minute},
		Compliance: config.Compliance{
			Mode:          "strict",
			SchemaFile:    path,
			RetentionDays: map[string]int{"gdpr": 365},
		},
		Rights: config.Rights{
			TokenSigningKey: "app-test-key",
			TokenTTL:        time.Hour,
			PseudonymKey:    "app-test-pseudonym",
			MaxAttempts:     1,
		},
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewInMemory(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t), discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Nil(t, a.Outbox, "no database means no outbox")
	assert.Nil(t, a.Queue, "no redis means no queue")
	assert.Equal(t, []string{"patient"}, a.Engine.Models())

	subject, err := domain.ParseSubjectID("user-1")
	require.NoError(t, err)
	req, err := a.Rights.Submit(ctx, rightsservice.SubmitInput{
		SubjectID:          subject,
		Kind:               models.KindAccess,
		VerificationMethod: "operator",
	})
	require.NoError(t, err)

	done, err := a.Rights.Execute(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, done.Status)
}

func TestNewSeedsDemoData(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Server.SeedDemo = true
	a, err := New(ctx, cfg, discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	history, err := a.Consent.History(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, history, 2)

	region, found, err := a.Regions.Lookup(ctx, "charlie")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, domain.RegionUS, region)

	recs, err := a.Engine.SubjectRecords(ctx, "bob", "patient")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Bob Brown", recs[0]["name"])
}

func TestNewRejectsBadConfig(t *testing.T) {
	ctx := context.Background()

	cfg := testConfig(t)
	cfg.Storage.Regions = config.RegionStores{"EU": "cassandra://db"}
	_, err := New(ctx, cfg, discard())
	assert.ErrorContains(t, err, "unsupported DSN scheme")

	cfg = testConfig(t)
	cfg.Compliance.Mode = "lenient"
	_, err = New(ctx, cfg, discard())
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.Compliance.SchemaFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = New(ctx, cfg, discard())
	assert.ErrorContains(t, err, "load schemas")

	cfg = testConfig(t)
	cfg.Compliance.GeoPrefixes = map[string]string{"not-a-cidr": "DE"}
	_, err = New(ctx, cfg, discard())
	assert.ErrorContains(t, err, "geo prefixes")
}

func TestRetentionOverridesNormalizeFramework(t *testing.T) {
	got := retentionOverrides(map[string]int{"gdpr": 30, "HIPAA": 60})
	assert.Equal(t, 30, got["GDPR"])
	assert.Equal(t, 60, got["HIPAA"])
}
