package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store defines the outbox persistence operations.
// Implementations must be safe for concurrent use.
type Store interface {
	// FetchUnprocessed returns up to limit unpublished entries, oldest first.
	// Implementations lock the returned rows so concurrent workers skip them.
	FetchUnprocessed(ctx context.Context, limit int) ([]*Entry, error)

	// MarkProcessed records that an entry was published.
	MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error

	// CountPending returns the number of unpublished entries.
	CountPending(ctx context.Context) (int64, error)

	// DeleteProcessedBefore removes published entries older than before.
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}
