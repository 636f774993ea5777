package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"privata/internal/consent/models"
	"privata/internal/storage"
	"privata/pkg/domain"
	"privata/pkg/platform/sentinel"
)

// PostgresStore persists consent records in PostgreSQL. Eventual reads may
// be served by a replica; strong reads and all writes use the primary.
type PostgresStore struct {
	db      *sql.DB
	replica *sql.DB
	tx      *sql.Tx
}

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithReplica routes eventually consistent reads to replica.
func WithReplica(replica *sql.DB) PostgresOption {
	return func(s *PostgresStore) {
		s.replica = replica
	}
}

// NewPostgres constructs a PostgreSQL-backed consent store.
func NewPostgres(db *sql.DB, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
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

func (s *PostgresStore) reader(consistency storage.Consistency) dbExecutor {
	if s.tx == nil && s.replica != nil && consistency != storage.ConsistencyStrong {
		return s.replica
	}
	return s.execer()
}

const consentColumns = `id, subject_id, purpose, granted, granted_at, expires_at, withdrawn_at, details`

func (s *PostgresStore) Insert(ctx context.Context, record *models.Record) error {
	if record == nil {
		return fmt.Errorf("consent record is required")
	}
	details, err := marshalDetails(record.Details)
	if err != nil {
		return err
	}
	_, err = s.execer().ExecContext(ctx, `
		INSERT INTO consents (`+consentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		uuid.UUID(record.ID),
		string(record.SubjectID),
		string(record.Purpose),
		record.Granted,
		record.GrantedAt,
		record.ExpiresAt,
		record.WithdrawnAt,
		details,
	)
	if err != nil {
		return fmt.Errorf("insert consent: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, record *models.Record) error {
	if record == nil {
		return fmt.Errorf("consent record is required")
	}
	details, err := marshalDetails(record.Details)
	if err != nil {
		return err
	}
	res, err := s.execer().ExecContext(ctx, `
		UPDATE consents
		SET granted = $2, granted_at = $3, expires_at = $4, withdrawn_at = $5, details = $6
		WHERE id = $1
	`,
		uuid.UUID(record.ID),
		record.Granted,
		record.GrantedAt,
		record.ExpiresAt,
		record.WithdrawnAt,
		details,
	)
	if err != nil {
		return fmt.Errorf("update consent: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update consent rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// Latest locks the returned row when called inside RunInTx so concurrent
// grants and withdrawals for the same purpose serialize.
func (s *PostgresStore) Latest(ctx context.Context, subjectID domain.SubjectID, purpose models.Purpose, consistency storage.Consistency) (*models.Record, error) {
	query := `
		SELECT ` + consentColumns + `
		FROM consents
		WHERE subject_id = $1 AND purpose = $2
		ORDER BY granted_at DESC
		LIMIT 1
	`
	if s.tx != nil {
		query += " FOR UPDATE"
	}
	record, err := scanConsent(s.reader(consistency).QueryRowContext(ctx, query, string(subjectID), string(purpose)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find latest consent: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) ListBySubject(ctx context.Context, subjectID domain.SubjectID) ([]*models.Record, error) {
	rows, err := s.execer().QueryContext(ctx, `
		SELECT `+consentColumns+`
		FROM consents
		WHERE subject_id = $1
		ORDER BY granted_at DESC
	`, string(subjectID))
	if err != nil {
		return nil, fmt.Errorf("list consents: %w", err)
	}
	defer rows.Close()

	var records []*models.Record
	for rows.Next() {
		record, err := scanConsent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan consent: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consents: %w", err)
	}
	return records, nil
}

// RunInTx runs fn inside a database transaction on the primary.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(tx Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin consent tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(&PostgresStore{db: s.db, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit consent tx: %w", err)
	}
	return nil
}

type consentRow interface {
	Scan(dest ...any) error
}

func scanConsent(row consentRow) (*models.Record, error) {
	var (
		record      models.Record
		id          uuid.UUID
		subjectID   string
		purpose     string
		withdrawnAt sql.NullTime
		details     []byte
	)
	if err := row.Scan(&id, &subjectID, &purpose, &record.Granted, &record.GrantedAt, &record.ExpiresAt, &withdrawnAt, &details); err != nil {
		return nil, err
	}
	record.ID = domain.ConsentID(id)
	record.SubjectID = domain.SubjectID(subjectID)
	record.Purpose = models.Purpose(purpose)
	if withdrawnAt.Valid {
		t := withdrawnAt.Time
		record.WithdrawnAt = &t
	}
	if len(details) > 0 && string(details) != "{}" {
		if err := json.Unmarshal(details, &record.Details); err != nil {
			return nil, fmt.Errorf("decode consent details: %w", err)
		}
	}
	return &record, nil
}

func marshalDetails(details map[string]any) ([]byte, error) {
	if details == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("encode consent details: %w", err)
	}
	return b, nil
}
