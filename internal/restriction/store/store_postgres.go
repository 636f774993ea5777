package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"privata/internal/restriction/models"
	"privata/pkg/domain"
	"privata/pkg/platform/sentinel"
)

// PostgresStore persists restrictions in PostgreSQL. Category and exception
// lists are TEXT[] columns bound through pq.Array.
type PostgresStore struct {
	db *sql.DB
	tx *sql.Tx
}

// NewPostgres constructs a PostgreSQL-backed restriction store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer() dbExecutor {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

const restrictionColumns = `id, subject_id, scope, data_categories, exceptions, reason, active, created_at, lifted_at`

func (s *PostgresStore) Insert(ctx context.Context, r *models.Restriction) error {
	_, err := s.execer().ExecContext(ctx, `
		INSERT INTO restrictions (`+restrictionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		uuid.UUID(r.ID),
		string(r.SubjectID),
		string(r.Scope),
		pq.Array(nonNil(r.DataCategories)),
		pq.Array(nonNil(r.Exceptions)),
		r.Reason,
		r.Active,
		r.CreatedAt,
		r.LiftedAt,
	)
	if err != nil {
		return fmt.Errorf("insert restriction: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, r *models.Restriction) error {
	res, err := s.execer().ExecContext(ctx, `
		UPDATE restrictions
		SET scope = $2, data_categories = $3, exceptions = $4, reason = $5, active = $6, lifted_at = $7
		WHERE id = $1
	`,
		uuid.UUID(r.ID),
		string(r.Scope),
		pq.Array(nonNil(r.DataCategories)),
		pq.Array(nonNil(r.Exceptions)),
		r.Reason,
		r.Active,
		r.LiftedAt,
	)
	if err != nil {
		return fmt.Errorf("update restriction: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update restriction rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id domain.RestrictionID) (*models.Restriction, error) {
	query := `SELECT ` + restrictionColumns + ` FROM restrictions WHERE id = $1`
	if s.tx != nil {
		query += " FOR UPDATE"
	}
	r, err := scanRestriction(s.execer().QueryRowContext(ctx, query, uuid.UUID(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get restriction: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) ActiveBySubject(ctx context.Context, subjectID domain.SubjectID) ([]*models.Restriction, error) {
	return s.list(ctx, `SELECT `+restrictionColumns+` FROM restrictions WHERE subject_id = $1 AND active ORDER BY created_at DESC`, subjectID)
}

func (s *PostgresStore) ListBySubject(ctx context.Context, subjectID domain.SubjectID) ([]*models.Restriction, error) {
	return s.list(ctx, `SELECT `+restrictionColumns+` FROM restrictions WHERE subject_id = $1 ORDER BY created_at DESC`, subjectID)
}

func (s *PostgresStore) list(ctx context.Context, query string, subjectID domain.SubjectID) ([]*models.Restriction, error) {
	rows, err := s.execer().QueryContext(ctx, query, string(subjectID))
	if err != nil {
		return nil, fmt.Errorf("list restrictions: %w", err)
	}
	defer rows.Close()

	var out []*models.Restriction
	for rows.Next() {
		r, err := scanRestriction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan restriction: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate restrictions: %w", err)
	}
	return out, nil
}

// RunInTx runs fn inside a database transaction.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(tx Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin restriction tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if err := fn(&PostgresStore{db: s.db, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit restriction tx: %w", err)
	}
	return nil
}

type restrictionRow interface {
	Scan(dest ...any) error
}

func scanRestriction(row restrictionRow) (*models.Restriction, error) {
	var (
		r         models.Restriction
		id        uuid.UUID
		subjectID string
		scope     string
		liftedAt  sql.NullTime
	)
	if err := row.Scan(&id, &subjectID, &scope, pq.Array(&r.DataCategories), pq.Array(&r.Exceptions), &r.Reason, &r.Active, &r.CreatedAt, &liftedAt); err != nil {
		return nil, err
	}
	r.ID = domain.RestrictionID(id)
	r.SubjectID = domain.SubjectID(subjectID)
	r.Scope = models.Scope(scope)
	if liftedAt.Valid {
		t := liftedAt.Time
		r.LiftedAt = &t
	}
	return &r, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
