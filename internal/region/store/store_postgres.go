package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"privata/internal/region/models"
	"privata/pkg/domain"
	"privata/pkg/platform/sentinel"
)

// PostgresStore persists region mappings in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed mapping store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, subjectID domain.SubjectID) (*models.Mapping, error) {
	var (
		m      models.Mapping
		region string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT subject_id, region, recorded_at FROM region_mappings WHERE subject_id = $1
	`, string(subjectID)).Scan(&m.SubjectID, &region, &m.RecordedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get region mapping: %w", err)
	}
	m.Region = domain.Region(region)
	return &m, nil
}

func (s *PostgresStore) Put(ctx context.Context, m *models.Mapping) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO region_mappings (subject_id, region, recorded_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (subject_id) DO UPDATE SET region = EXCLUDED.region, recorded_at = EXCLUDED.recorded_at
	`, string(m.SubjectID), string(m.Region), m.RecordedAt)
	if err != nil {
		return fmt.Errorf("put region mapping: %w", err)
	}
	return nil
}
