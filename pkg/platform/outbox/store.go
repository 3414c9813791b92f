package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Appender is the write side of the outbox, bound to a ledger transaction.
type Appender interface {
	Append(ctx context.Context, entry *Entry) error
}

// Store defines the outbox persistence operations used by the publisher.
// Implementations must be safe for concurrent use.
type Store interface {
	Appender

	// FetchUnprocessed returns up to limit pending entries, oldest first.
	FetchUnprocessed(ctx context.Context, limit int) ([]*Entry, error)

	// MarkProcessed records that an entry was published.
	MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error

	// CountPending returns the number of unpublished entries.
	CountPending(ctx context.Context) (int64, error)

	// DeleteProcessedBefore removes published entries older than before.
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}
