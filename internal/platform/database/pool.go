// Package database opens the PostgreSQL connections used by the stores.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"privata/internal/platform/config"
)

// Pool wraps the primary *sql.DB and an optional read replica.
type Pool struct {
	primary *sql.DB
	replica *sql.DB
}

// New opens the primary pool and, when configured, the replica.
// Returns nil if no URL is configured.
func New(ctx context.Context, cfg config.Database) (*Pool, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	primary, err := open(ctx, cfg.URL, cfg)
	if err != nil {
		return nil, err
	}
	p := &Pool{primary: primary}
	if cfg.ReplicaURL != "" {
		replica, err := open(ctx, cfg.ReplicaURL, cfg)
		if err != nil {
			_ = primary.Close()
			return nil, fmt.Errorf("replica: %w", err)
		}
		p.replica = replica
	}
	return p, nil
}

func open(ctx context.Context, url string, cfg config.Database) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// DB returns the primary handle.
func (p *Pool) DB() *sql.DB {
	return p.primary
}

// Replica returns the read replica, or the primary when none is configured.
func (p *Pool) Replica() *sql.DB {
	if p.replica != nil {
		return p.replica
	}
	return p.primary
}

// Health checks if the primary is reachable.
func (p *Pool) Health(ctx context.Context) error {
	if p == nil || p.primary == nil {
		return fmt.Errorf("database not configured")
	}
	return p.primary.PingContext(ctx)
}

// Close closes every pool.
func (p *Pool) Close() error {
	if p == nil {
		return nil
	}
	if p.replica != nil {
		_ = p.replica.Close()
	}
	return p.primary.Close()
}

// NewPgxPool opens a native pgx pool for a regional record store.
func NewPgxPool(ctx context.Context, url string, maxConns int32) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	if maxConns > 0 {
		pcfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("open pgx pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pgx pool: %w", err)
	}
	return pool, nil
}
