// Package seeder fills an in-memory deployment with demo subjects so the
// API can be tried without a database.
package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"privata/internal/access"
	consentmodels "privata/internal/consent/models"
	"privata/internal/gate"
	"privata/internal/storage"
	"privata/pkg/domain"
	"privata/pkg/requestcontext"
)

// DemoModel is the model demo records are written to. Seeding skips records
// when the schema does not register it.
const DemoModel = "patient"

// ConsentGranter records consent grants.
type ConsentGranter interface {
	Grant(ctx context.Context, subjectID domain.SubjectID, purpose consentmodels.Purpose, details map[string]any, ttl time.Duration) (*consentmodels.Record, error)
}

// RegionPinner records a subject's data region.
type RegionPinner interface {
	Pin(ctx context.Context, subjectID domain.SubjectID, region domain.Region) error
}

// RecordWriter writes records through the data access engine.
type RecordWriter interface {
	Create(ctx context.Context, op access.Operation) (storage.Record, *gate.Decision, error)
	Models() []string
}

// Seeder populates in-memory stores with demo data.
type Seeder struct {
	consent ConsentGranter
	regions RegionPinner
	records RecordWriter
	logger  *slog.Logger
}

// New creates a seeder.
func New(consent ConsentGranter, regions RegionPinner, records RecordWriter, logger *slog.Logger) *Seeder {
	return &Seeder{
		consent: consent,
		regions: regions,
		records: records,
		logger:  logger,
	}
}

type demoSubject struct {
	id       domain.SubjectID
	name     string
	country  string
	region   domain.Region
	purposes []consentmodels.Purpose
}

var demoSubjects = []demoSubject{
	{"alice", "Alice Anderson", "DE", domain.RegionEU, []consentmodels.Purpose{"care", "analytics"}},
	{"bob", "Bob Brown", "FR", domain.RegionEU, []consentmodels.Purpose{"care"}},
	{"charlie", "Charlie Chen", "US", domain.RegionUS, []consentmodels.Purpose{"care", "marketing"}},
	{"diana", "Diana Davis", "US", domain.RegionUS, nil},
	{"eve", "Eve Evans", "IE", domain.RegionEU, []consentmodels.Purpose{"analytics"}},
}

// SeedAll pins, grants and writes demo data for every demo subject.
func (s *Seeder) SeedAll(ctx context.Context) error {
	s.logger.Info("seeding demo data...")
	ctx = requestcontext.WithActor(ctx, "seeder")

	writeRecords := slices.Contains(s.records.Models(), DemoModel)
	if !writeRecords {
		s.logger.Warn("demo model not registered, skipping records", "model", DemoModel)
	}

	var grants, records int
	for _, subj := range demoSubjects {
		if err := s.regions.Pin(ctx, subj.id, subj.region); err != nil {
			return fmt.Errorf("pin %s: %w", subj.id, err)
		}
		for _, p := range subj.purposes {
			if _, err := s.consent.Grant(ctx, subj.id, p, map[string]any{"source": "demo"}, 0); err != nil {
				return fmt.Errorf("grant %s for %s: %w", p, subj.id, err)
			}
			grants++
		}
		if !writeRecords {
			continue
		}
		// Subjects without care consent still get their metadata stored.
		_, _, err := s.records.Create(ctx, access.Operation{
			Model:      DemoModel,
			SubjectID:  subj.id,
			Purpose:    "care",
			LegalBasis: gate.BasisConsent,
			Data: storage.Record{
				"name":    subj.name,
				"country": subj.country,
				"status":  "active",
			},
		})
		if err != nil {
			return fmt.Errorf("write record for %s: %w", subj.id, err)
		}
		records++
	}

	s.logger.Info("demo data seeded successfully",
		"subjects", len(demoSubjects),
		"grants", grants,
		"records", records,
	)
	return nil
}
