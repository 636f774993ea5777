//go:generate mockgen -source=storage.go -destination=mocks/mocks.go -package=mocks Adapter,Tx

// Package storage defines the contract the compliance engine requires from a
// regional record store, and the registry that maps regions to stores.
package storage

import (
	"context"
	"maps"
	"slices"

	"privata/pkg/domain"
)

// Consistency is the read consistency a caller requests.
type Consistency int

const (
	// ConsistencyEventual allows replica or secondary reads.
	ConsistencyEventual Consistency = iota
	// ConsistencyStrong requires reads from the primary.
	ConsistencyStrong
)

func (c Consistency) String() string {
	if c == ConsistencyStrong {
		return "strong"
	}
	return "eventual"
}

// Options carry per-call hints. Fields limits the returned fields when set.
type Options struct {
	Region      domain.Region
	Consistency Consistency
	Fields      []string
}

// Well-known record fields.
const (
	FieldID        = "id"
	FieldDeleted   = "deleted"
	FieldDeletedAt = "deleted_at"
)

// Live matches records that have not been soft-deleted.
func Live() Filter {
	return Cond(FieldDeleted, OpNe, true)
}

// IsDeleted reports whether r carries the soft-delete marker.
func (r Record) IsDeleted() bool {
	deleted, _ := r[FieldDeleted].(bool)
	return deleted
}

// Record is one stored entity. The "id" key holds its identifier.
type Record map[string]any

// ID returns the record identifier.
func (r Record) ID() string {
	id, _ := r[FieldID].(string)
	return id
}

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	return maps.Clone(r)
}

// Project returns a copy keeping only fields (and the id). A nil fields list
// keeps everything.
func (r Record) Project(fields []string) Record {
	if fields == nil {
		return r.Clone()
	}
	out := make(Record, len(fields)+1)
	if id, ok := r[FieldID]; ok {
		out[FieldID] = id
	}
	for _, f := range fields {
		if v, ok := r[f]; ok {
			out[f] = v
		}
	}
	return out
}

// Without returns a copy with fields removed.
func (r Record) Without(fields []string) Record {
	out := r.Clone()
	for _, f := range fields {
		if f != FieldID {
			delete(out, f)
		}
	}
	return out
}

// Fields returns the record's field names, sorted, excluding the id.
func (r Record) Fields() []string {
	out := make([]string, 0, len(r))
	for k := range r {
		if k != FieldID {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}

// Reader is the read side of a store. Missing records return sentinel.ErrNotFound.
type Reader interface {
	FindByID(ctx context.Context, model, id string, opts Options) (Record, error)
	FindMany(ctx context.Context, q Query, opts Options) ([]Record, error)
}

// Writer is the write side of a store. Update merges the given fields into the
// stored record and returns the result.
type Writer interface {
	Create(ctx context.Context, model string, data Record, opts Options) (Record, error)
	Update(ctx context.Context, model, id string, data Record, opts Options) (Record, error)
	Delete(ctx context.Context, model, id string, opts Options) error
}

// Tx is a unit of work. Neither Commit nor Rollback may be called twice;
// Rollback after Commit is a no-op.
type Tx interface {
	Reader
	Writer
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Adapter is a regional record store.
type Adapter interface {
	Reader
	Writer
	Begin(ctx context.Context, opts Options) (Tx, error)
}

// RunInTx runs fn inside a transaction on a, committing on success and
// rolling back on error or panic.
func RunInTx(ctx context.Context, a Adapter, opts Options, fn func(tx Tx) error) (err error) {
	tx, err := a.Begin(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return tx.Commit(ctx)
}
