// Package postgres persists the audit trail in PostgreSQL. Rows are
// append-only; the audit_events guard trigger rejects UPDATE and any DELETE
// before retention_date.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	audit "privata/pkg/platform/audit"
	"privata/pkg/platform/audit/outbox"
	outboxpostgres "privata/pkg/platform/audit/outbox/store/postgres"
)

// Store implements audit.Store using PostgreSQL.
type Store struct {
	db         *sql.DB
	withOutbox bool
}

// Option configures the Store.
type Option func(*Store)

// WithOutbox also writes every appended event to the outbox table in the
// same transaction so the outbox worker can stream it to Kafka.
func WithOutbox() Option {
	return func(s *Store) {
		s.withOutbox = true
	}
}

// New creates a PostgreSQL audit store.
func New(db *sql.DB, opts ...Option) *Store {
	if db == nil {
		panic("audit postgres store requires a database")
	}
	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const insertEvent = `
	INSERT INTO audit_events (
		id, occurred_at, action, entity_type, entity_id, subject_id, user_id,
		details, region, framework, retention_date, request_id
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`

// Append inserts one event.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	return s.AppendBatch(ctx, []audit.Event{event})
}

// AppendBatch inserts all events in one transaction.
func (s *Store) AppendBatch(ctx context.Context, events []audit.Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, e := range events {
		details, err := json.Marshal(detailsOrEmpty(e.Details))
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
		_, err = tx.ExecContext(ctx, insertEvent,
			e.ID, e.Timestamp, string(e.Action), e.EntityType, e.EntityID, e.SubjectID, e.UserID,
			details, e.Region, string(e.Framework), e.RetentionDate, e.RequestID,
		)
		if err != nil {
			return fmt.Errorf("insert audit event: %w", err)
		}
		if s.withOutbox {
			entry, err := outbox.FromAuditEvent(e)
			if err != nil {
				return err
			}
			if err := outboxpostgres.Insert(ctx, tx, entry); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit audit tx: %w", err)
	}
	return nil
}

func detailsOrEmpty(d map[string]any) map[string]any {
	if d == nil {
		return map[string]any{}
	}
	return d
}

// Scan returns up to page.Size() matching events after the cursor in
// (occurred_at, id) order.
func (s *Store) Scan(ctx context.Context, filter audit.Filter, page audit.Page) ([]audit.Event, string, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(args))))
	}

	if filter.UserID != "" {
		add("user_id = ?", filter.UserID)
	}
	if filter.SubjectID != "" {
		add("subject_id = ?", filter.SubjectID)
	}
	if filter.Action != "" {
		add("action = ?", string(filter.Action))
	}
	if filter.EntityType != "" {
		add("entity_type = ?", filter.EntityType)
	}
	if filter.EntityID != "" {
		add("entity_id = ?", filter.EntityID)
	}
	if filter.From != nil {
		add("occurred_at >= ?", *filter.From)
	}
	if filter.To != nil {
		add("occurred_at <= ?", *filter.To)
	}
	if page.Cursor != "" {
		c, err := audit.DecodeCursor(page.Cursor)
		if err != nil {
			return nil, "", err
		}
		args = append(args, c.Timestamp, c.ID)
		where = append(where, fmt.Sprintf("(occurred_at, id) > ($%d, $%d)", len(args)-1, len(args)))
	}

	limit := page.Size()
	query := `
		SELECT id, occurred_at, action, entity_type, entity_id, subject_id, user_id,
			details, region, framework, retention_date, request_id
		FROM audit_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limit+1)
	query += fmt.Sprintf(" ORDER BY occurred_at, id LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	events := make([]audit.Event, 0, limit)
	for rows.Next() {
		var (
			e          audit.Event
			action, fw string
			detailsRaw []byte
		)
		err := rows.Scan(&e.ID, &e.Timestamp, &action, &e.EntityType, &e.EntityID, &e.SubjectID, &e.UserID,
			&detailsRaw, &e.Region, &fw, &e.RetentionDate, &e.RequestID)
		if err != nil {
			return nil, "", fmt.Errorf("scan audit event: %w", err)
		}
		e.Action = audit.Action(action)
		e.Framework = audit.Framework(fw)
		e.Timestamp = e.Timestamp.UTC()
		e.RetentionDate = e.RetentionDate.UTC()
		if len(detailsRaw) > 0 {
			if err := json.Unmarshal(detailsRaw, &e.Details); err != nil {
				return nil, "", fmt.Errorf("decode audit details: %w", err)
			}
			if len(e.Details) == 0 {
				e.Details = nil
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("iterate audit events: %w", err)
	}

	if len(events) > limit {
		events = events[:limit]
		return events, audit.CursorAfter(events[limit-1]).Encode(), nil
	}
	return events, "", nil
}
