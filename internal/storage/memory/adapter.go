// Package memory is an in-process storage adapter for tests and development.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"privata/internal/storage"
	"privata/pkg/platform/sentinel"
)

type table map[string]storage.Record

// Adapter keeps records per model in maps.
type Adapter struct {
	mu     sync.RWMutex
	tables map[string]table
}

// New creates an empty adapter.
func New() *Adapter {
	return &Adapter{tables: make(map[string]table)}
}

func (a *Adapter) FindByID(ctx context.Context, model, id string, opts storage.Options) (storage.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return findByID(a.tables[model], model, id, opts)
}

func (a *Adapter) FindMany(ctx context.Context, q storage.Query, opts storage.Options) ([]storage.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return findMany(a.tables[q.Model], q, opts)
}

func (a *Adapter) Create(ctx context.Context, model string, data storage.Record, _ storage.Options) (storage.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return create(a.table(model), model, data)
}

func (a *Adapter) Update(ctx context.Context, model, id string, data storage.Record, _ storage.Options) (storage.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return update(a.tables[model], model, id, data)
}

func (a *Adapter) Delete(ctx context.Context, model, id string, _ storage.Options) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	t := a.tables[model]
	if _, ok := t[id]; !ok {
		return fmt.Errorf("%s %s: %w", model, id, sentinel.ErrNotFound)
	}
	delete(t, id)
	return nil
}

// Begin starts a transaction. Writes are staged on copies of the touched
// tables and swapped in on Commit; the last commit wins per table.
func (a *Adapter) Begin(ctx context.Context, _ storage.Options) (storage.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &tx{parent: a, staged: make(map[string]table)}, nil
}

// Len returns the number of records stored for model.
func (a *Adapter) Len(model string) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.tables[model])
}

func (a *Adapter) table(model string) table {
	t, ok := a.tables[model]
	if !ok {
		t = make(table)
		a.tables[model] = t
	}
	return t
}

type tx struct {
	parent *Adapter
	mu     sync.Mutex
	staged map[string]table
	done   bool
}

func (t *tx) view(model string) (table, error) {
	if t.done {
		return nil, fmt.Errorf("transaction finished: %w", sentinel.ErrInvalidState)
	}
	if s, ok := t.staged[model]; ok {
		return s, nil
	}
	t.parent.mu.RLock()
	src := t.parent.tables[model]
	cp := make(table, len(src))
	for id, r := range src {
		cp[id] = r.Clone()
	}
	t.parent.mu.RUnlock()
	t.staged[model] = cp
	return cp, nil
}

func (t *tx) FindByID(ctx context.Context, model, id string, opts storage.Options) (storage.Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, err := t.view(model)
	if err != nil {
		return nil, err
	}
	return findByID(v, model, id, opts)
}

func (t *tx) FindMany(ctx context.Context, q storage.Query, opts storage.Options) ([]storage.Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, err := t.view(q.Model)
	if err != nil {
		return nil, err
	}
	return findMany(v, q, opts)
}

func (t *tx) Create(ctx context.Context, model string, data storage.Record, _ storage.Options) (storage.Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, err := t.view(model)
	if err != nil {
		return nil, err
	}
	return create(v, model, data)
}

func (t *tx) Update(ctx context.Context, model, id string, data storage.Record, _ storage.Options) (storage.Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, err := t.view(model)
	if err != nil {
		return nil, err
	}
	return update(v, model, id, data)
}

func (t *tx) Delete(ctx context.Context, model, id string, _ storage.Options) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, err := t.view(model)
	if err != nil {
		return err
	}
	if _, ok := v[id]; !ok {
		return fmt.Errorf("%s %s: %w", model, id, sentinel.ErrNotFound)
	}
	delete(v, id)
	return nil
}

func (t *tx) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return fmt.Errorf("transaction finished: %w", sentinel.ErrInvalidState)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	t.done = true
	t.parent.mu.Lock()
	defer t.parent.mu.Unlock()
	for model, staged := range t.staged {
		t.parent.tables[model] = staged
	}
	return nil
}

func (t *tx) Rollback(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done = true
	t.staged = nil
	return nil
}

func findByID(t table, model, id string, opts storage.Options) (storage.Record, error) {
	r, ok := t[id]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", model, id, sentinel.ErrNotFound)
	}
	return r.Project(opts.Fields), nil
}

func findMany(t table, q storage.Query, opts storage.Options) ([]storage.Record, error) {
	if err := q.Where.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", sentinel.ErrInvalidInput, err)
	}
	all := make([]storage.Record, 0, len(t))
	for _, r := range t {
		all = append(all, r)
	}
	if len(q.Select) == 0 && opts.Fields != nil {
		q.Select = opts.Fields
	}
	return q.Apply(all), nil
}

func create(t table, model string, data storage.Record) (storage.Record, error) {
	r := data.Clone()
	id := r.ID()
	if id == "" {
		id = uuid.NewString()
		r[storage.FieldID] = id
	}
	if _, exists := t[id]; exists {
		return nil, fmt.Errorf("%s %s: %w", model, id, sentinel.ErrConflict)
	}
	t[id] = r
	return r.Clone(), nil
}

func update(t table, model, id string, data storage.Record) (storage.Record, error) {
	r, ok := t[id]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", model, id, sentinel.ErrNotFound)
	}
	merged := r.Clone()
	for k, v := range data {
		if k == storage.FieldID {
			continue
		}
		merged[k] = v
	}
	t[id] = merged
	return merged.Clone(), nil
}
