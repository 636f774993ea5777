//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"privata/migrations"
)

const (
	postgresImage = "postgres:18-alpine"
	postgresDB    = "privata_test"
)

// PostgresContainer is a migrated Postgres instance shared by the suites of
// one test binary. Ryuk removes it when the binary exits.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts Postgres and applies every up migration.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, postgresImage,
		postgres.WithDatabase(postgresDB),
		postgres.WithUsername("privata"),
		postgres.WithPassword("privata"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	fail := func(format string, args ...any) {
		_ = ctr.Terminate(ctx)
		t.Fatalf(format, args...)
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fail("postgres connection string: %v", err)
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		fail("open postgres: %v", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		fail("migrate postgres: %v", err)
	}
	return &PostgresContainer{Container: ctr, DSN: dsn, DB: db}
}

// migrate applies the embedded up migrations in name order inside one
// transaction.
func migrate(ctx context.Context, db *sql.DB) error {
	ups, err := fs.Glob(migrations.FS, "*.up.sql")
	if err != nil {
		return err
	}
	slices.Sort(ups)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit
	for _, name := range ups {
		body, err := fs.ReadFile(migrations.FS, name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}
	return tx.Commit()
}

// TruncateTables empties the named tables in one statement. TRUNCATE skips
// row triggers, so the append-only guard on audit_events does not fire.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	_, err := p.DB.ExecContext(ctx, "TRUNCATE TABLE "+strings.Join(tables, ", ")+" CASCADE")
	if err != nil {
		return fmt.Errorf("truncate %v: %w", tables, err)
	}
	return nil
}

// TruncateAll empties every table in the public schema.
func (p *PostgresContainer) TruncateAll(ctx context.Context) error {
	rows, err := p.DB.QueryContext(ctx, `SELECT tablename FROM pg_tables WHERE schemaname = 'public'`)
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return p.TruncateTables(ctx, tables...)
}

func (p *PostgresContainer) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return p.DB.ExecContext(ctx, query, args...)
}

func (p *PostgresContainer) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return p.DB.QueryRowContext(ctx, query, args...)
}
