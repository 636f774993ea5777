package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"privata/internal/rights/models"
	"privata/pkg/domain"
	"privata/pkg/platform/sentinel"
)

// PostgresStore persists rights requests in the rights_requests table.
// Params, steps and result are JSONB documents.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed rights request store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const requestColumns = `id, subject_id, kind, status, verification_method, params, steps, result, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, r *models.Request) error {
	params, steps, result, err := encode(r)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO rights_requests (`+requestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`,
		uuid.UUID(r.ID),
		string(r.SubjectID),
		string(r.Kind),
		string(r.Status),
		r.VerificationMethod,
		params,
		steps,
		result,
		r.CreatedAt,
		r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert rights request: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, r *models.Request) error {
	params, steps, result, err := encode(r)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE rights_requests
		SET status = $2, params = $3, steps = $4, result = $5, updated_at = $6
		WHERE id = $1
	`,
		uuid.UUID(r.ID),
		string(r.Status),
		params,
		steps,
		result,
		r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update rights request: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update rights request rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id domain.RightsRequestID) (*models.Request, error) {
	r, err := scanRequest(s.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM rights_requests WHERE id = $1`, uuid.UUID(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get rights request: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) ListBySubject(ctx context.Context, subjectID domain.SubjectID) ([]*models.Request, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+requestColumns+` FROM rights_requests WHERE subject_id = $1 ORDER BY created_at DESC`,
		string(subjectID),
	)
	if err != nil {
		return nil, fmt.Errorf("list rights requests: %w", err)
	}
	defer rows.Close()

	var out []*models.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rights request: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rights requests: %w", err)
	}
	return out, nil
}

func encode(r *models.Request) (params, steps, result []byte, err error) {
	if params, err = json.Marshal(r.Params); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal rights params: %w", err)
	}
	if steps, err = json.Marshal(nonNilSteps(r.Steps)); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal rights steps: %w", err)
	}
	if r.Result != nil {
		if result, err = json.Marshal(r.Result); err != nil {
			return nil, nil, nil, fmt.Errorf("marshal rights result: %w", err)
		}
	}
	return params, steps, result, nil
}

type requestRow interface {
	Scan(dest ...any) error
}

func scanRequest(row requestRow) (*models.Request, error) {
	var (
		r                     models.Request
		id                    uuid.UUID
		subjectID, kind, stat string
		params, steps, result []byte
	)
	if err := row.Scan(&id, &subjectID, &kind, &stat, &r.VerificationMethod, &params, &steps, &result, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.ID = domain.RightsRequestID(id)
	r.SubjectID = domain.SubjectID(subjectID)
	r.Kind = models.Kind(kind)
	r.Status = models.Status(stat)
	if err := json.Unmarshal(params, &r.Params); err != nil {
		return nil, fmt.Errorf("decode rights params: %w", err)
	}
	if err := json.Unmarshal(steps, &r.Steps); err != nil {
		return nil, fmt.Errorf("decode rights steps: %w", err)
	}
	if len(result) > 0 {
		r.Result = &models.Result{}
		if err := json.Unmarshal(result, r.Result); err != nil {
			return nil, fmt.Errorf("decode rights result: %w", err)
		}
	}
	return &r, nil
}

func nonNilSteps(s []models.Step) []models.Step {
	if s == nil {
		return []models.Step{}
	}
	return s
}
