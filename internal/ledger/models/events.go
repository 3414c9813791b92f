package models

import "time"

// Aggregate types for outbox entries.
const (
	AggregateLedger     = "ledger"
	AggregateAccount    = "account"
	AggregateConnection = "connection"
)

// EventType names a committed ledger transition.
type EventType string

const (
	EventLedgerInitialized   EventType = "ledger_initialized"
	EventAccountRegistered   EventType = "account_registered"
	EventDailyMinted         EventType = "daily_minted"
	EventTokensLocked        EventType = "tokens_locked"
	EventConnectionCreated   EventType = "connection_created"
	EventConnectionUnlocked  EventType = "connection_unlocked"
	EventConnectionCompleted EventType = "connection_completed"
)

// Event is the payload published for each committed transition.
// Amounts are whole token units.
type Event struct {
	Type         EventType `json:"type"`
	OccurredAt   time.Time `json:"occurred_at"`
	RequestID    string    `json:"request_id,omitempty"`
	Identity     string    `json:"identity,omitempty"`
	AccountKey   string    `json:"account_key,omitempty"`
	ConnectionID string    `json:"connection_id,omitempty"`
	Side         string    `json:"side,omitempty"`
	Beneficiary  string    `json:"beneficiary,omitempty"`
	Amount       uint64    `json:"amount,omitempty"`
}
