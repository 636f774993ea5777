// Package memory provides an in-process audit store for tests and local runs.
package memory

import (
	"context"
	"slices"
	"sync"

	audit "privata/pkg/platform/audit"
)

// Store keeps events sorted in scroll order. It never mutates or removes an
// appended event.
type Store struct {
	mu     sync.RWMutex
	events []audit.Event
}

// New creates an empty in-memory audit store.
func New() *Store {
	return &Store{}
}

// Append inserts one event at its scroll position.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	return s.AppendBatch(ctx, []audit.Event{event})
}

// AppendBatch inserts all events or none.
func (s *Store) AppendBatch(ctx context.Context, events []audit.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		e.Details = cloneDetails(e.Details)
		idx, _ := slices.BinarySearchFunc(s.events, e, compare)
		s.events = slices.Insert(s.events, idx, e)
	}
	return nil
}

// Scan returns up to page.Size() matching events after page.Cursor.
func (s *Store) Scan(ctx context.Context, filter audit.Filter, page audit.Page) ([]audit.Event, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	var after *audit.Cursor
	if page.Cursor != "" {
		c, err := audit.DecodeCursor(page.Cursor)
		if err != nil {
			return nil, "", err
		}
		after = &c
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := page.Size()
	out := make([]audit.Event, 0, min(limit, len(s.events)))
	for _, e := range s.events {
		if after != nil && !after.After(e) {
			continue
		}
		if !filter.Matches(e) {
			continue
		}
		if len(out) == limit {
			return out, audit.CursorAfter(out[len(out)-1]).Encode(), nil
		}
		e.Details = cloneDetails(e.Details)
		out = append(out, e)
	}
	return out, "", nil
}

// Len returns the number of stored events.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func compare(a, b audit.Event) int {
	if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
		return c
	}
	switch as, bs := a.ID.String(), b.ID.String(); {
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}

func cloneDetails(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
