// Package postgres stores records as JSONB rows in the records table.
// One database may hold several regions; every statement is scoped to the
// adapter's region.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"privata/internal/storage"
	"privata/pkg/domain"
	"privata/pkg/platform/sentinel"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Adapter is the relational storage adapter.
type Adapter struct {
	primary *pgxpool.Pool
	replica *pgxpool.Pool
	region  domain.Region
	now     func() time.Time
}

// Option configures the Adapter.
type Option func(*Adapter)

// WithReplica routes eventual-consistency reads to a read replica.
func WithReplica(pool *pgxpool.Pool) Option {
	return func(a *Adapter) {
		a.replica = pool
	}
}

// New creates an adapter for region.
func New(pool *pgxpool.Pool, region domain.Region, opts ...Option) *Adapter {
	if pool == nil {
		panic("postgres adapter: pool is required")
	}
	a := &Adapter{primary: pool, region: region, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) reader(c storage.Consistency) querier {
	if c == storage.ConsistencyEventual && a.replica != nil {
		return a.replica
	}
	return a.primary
}

func (a *Adapter) FindByID(ctx context.Context, model, id string, opts storage.Options) (storage.Record, error) {
	return findByID(ctx, a.reader(opts.Consistency), a.region, model, id, opts)
}

func (a *Adapter) FindMany(ctx context.Context, q storage.Query, opts storage.Options) ([]storage.Record, error) {
	return findMany(ctx, a.reader(opts.Consistency), a.region, q, opts)
}

func (a *Adapter) Create(ctx context.Context, model string, data storage.Record, _ storage.Options) (storage.Record, error) {
	return create(ctx, a.primary, a.region, model, data, a.now())
}

func (a *Adapter) Update(ctx context.Context, model, id string, data storage.Record, _ storage.Options) (storage.Record, error) {
	return update(ctx, a.primary, a.region, model, id, data, a.now())
}

func (a *Adapter) Delete(ctx context.Context, model, id string, _ storage.Options) error {
	return remove(ctx, a.primary, a.region, model, id)
}

// Begin opens a repeatable-read transaction on the primary.
func (a *Adapter) Begin(ctx context.Context, _ storage.Options) (storage.Tx, error) {
	tx, err := a.primary.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return nil, wrap("begin transaction", err)
	}
	return &Tx{tx: tx, region: a.region, now: a.now}, nil
}

// Tx is a transaction bound to the adapter's region.
type Tx struct {
	tx     pgx.Tx
	region domain.Region
	now    func() time.Time
}

func (t *Tx) FindByID(ctx context.Context, model, id string, opts storage.Options) (storage.Record, error) {
	return findByID(ctx, t.tx, t.region, model, id, opts)
}

func (t *Tx) FindMany(ctx context.Context, q storage.Query, opts storage.Options) ([]storage.Record, error) {
	return findMany(ctx, t.tx, t.region, q, opts)
}

func (t *Tx) Create(ctx context.Context, model string, data storage.Record, _ storage.Options) (storage.Record, error) {
	return create(ctx, t.tx, t.region, model, data, t.now())
}

func (t *Tx) Update(ctx context.Context, model, id string, data storage.Record, _ storage.Options) (storage.Record, error) {
	return update(ctx, t.tx, t.region, model, id, data, t.now())
}

func (t *Tx) Delete(ctx context.Context, model, id string, _ storage.Options) error {
	return remove(ctx, t.tx, t.region, model, id)
}

func (t *Tx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return wrap("commit", err)
	}
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return wrap("rollback", err)
	}
	return nil
}

func findByID(ctx context.Context, q querier, region domain.Region, model, id string, opts storage.Options) (storage.Record, error) {
	var raw []byte
	err := q.QueryRow(ctx,
		`SELECT data FROM records WHERE model = $1 AND id = $2 AND region = $3`,
		model, id, string(region),
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", model, id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, wrap("find record", err)
	}
	r, err := decode(raw, id)
	if err != nil {
		return nil, err
	}
	return r.Project(opts.Fields), nil
}

func findMany(ctx context.Context, q querier, region domain.Region, query storage.Query, opts storage.Options) ([]storage.Record, error) {
	if err := query.Where.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", sentinel.ErrInvalidInput, err)
	}
	sql, args, err := buildSelect(region, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sentinel.ErrInvalidInput, err)
	}
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrap("query records", err)
	}
	defer rows.Close()

	sel := query.Select
	if len(sel) == 0 {
		sel = opts.Fields
	}
	var out []storage.Record
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, wrap("scan record", err)
		}
		r, err := decode(raw, id)
		if err != nil {
			return nil, err
		}
		out = append(out, r.Project(sel))
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate records", err)
	}
	return out, nil
}

func create(ctx context.Context, q querier, region domain.Region, model string, data storage.Record, now time.Time) (storage.Record, error) {
	r := data.Clone()
	id := r.ID()
	if id == "" {
		id = uuid.NewString()
		r[storage.FieldID] = id
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("%w: encode record: %v", sentinel.ErrInvalidInput, err)
	}
	tag, err := q.Exec(ctx, `
		INSERT INTO records (model, id, region, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (model, id) DO NOTHING`,
		model, id, string(region), raw, now,
	)
	if err != nil {
		return nil, wrap("insert record", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%s %s: %w", model, id, sentinel.ErrConflict)
	}
	return decode(raw, id)
}

// update merges data into the stored document with jsonb concatenation, so
// a nil value stores JSON null rather than removing the key.
func update(ctx context.Context, q querier, region domain.Region, model, id string, data storage.Record, now time.Time) (storage.Record, error) {
	patch := data.Clone()
	delete(patch, storage.FieldID)
	raw, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("%w: encode patch: %v", sentinel.ErrInvalidInput, err)
	}
	var merged []byte
	err = q.QueryRow(ctx, `
		UPDATE records SET data = data || $4::jsonb, updated_at = $5
		WHERE model = $1 AND id = $2 AND region = $3
		RETURNING data`,
		model, id, string(region), raw, now,
	).Scan(&merged)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", model, id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, wrap("update record", err)
	}
	return decode(merged, id)
}

func remove(ctx context.Context, q querier, region domain.Region, model, id string) error {
	tag, err := q.Exec(ctx,
		`DELETE FROM records WHERE model = $1 AND id = $2 AND region = $3`,
		model, id, string(region),
	)
	if err != nil {
		return wrap("delete record", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", model, id, sentinel.ErrNotFound)
	}
	return nil
}

func decode(raw []byte, id string) (storage.Record, error) {
	var r storage.Record
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", id, err)
	}
	if r == nil {
		r = storage.Record{}
	}
	r[storage.FieldID] = id
	return r, nil
}

// wrap marks connection-level failures as unavailable so callers can retry.
func wrap(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "40001" || pgErr.Code == "40P01" {
			return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
}
