package outbox

import (
	"time"

	"github.com/google/uuid"
)

// Entry is a committed ledger event waiting to be published.
// Entries are written in the same transaction as the state change they describe.
type Entry struct {
	ID            uuid.UUID
	AggregateType string // ledger, account, connection
	AggregateID   string
	EventType     string
	Payload       []byte // JSON-encoded event
	CreatedAt     time.Time
	ProcessedAt   *time.Time // nil until published
}

// IsPending returns true if this entry has not been published yet.
func (e *Entry) IsPending() bool {
	return e.ProcessedAt == nil
}

// NewEntry creates an entry with a fresh UUID stamped at createdAt.
func NewEntry(aggregateType, aggregateID, eventType string, payload []byte, createdAt time.Time) *Entry {
	return &Entry{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     createdAt,
	}
}
