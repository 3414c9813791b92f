// Package tracer is a small tracing port for the ledger service. The service
// starts spans through Tracer; production wires the OpenTelemetry adapter and
// tests use the no-op.
package tracer

import (
	"context"
)

// Span is an active trace span. End must be called exactly once.
type Span interface {
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute is a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute { return Attribute{Key: key, Value: value} }

func Bool(key string, value bool) Attribute { return Attribute{Key: key, Value: value} }

func Int64(key string, value int64) Attribute { return Attribute{Key: key, Value: value} }

// Uint64 records value as int64 when it fits and as a decimal string otherwise.
func Uint64(key string, value uint64) Attribute { return Attribute{Key: key, Value: value} }

// Span names used by the ledger service.
const (
	SpanInitialize       = "ledger.initialize"
	SpanRegister         = "ledger.register"
	SpanMintDaily        = "ledger.mint_daily"
	SpanLockForReward    = "ledger.lock_for_reward"
	SpanCreateConnection = "ledger.create_connection"
	SpanUnlock           = "ledger.unlock"
)

// Attribute keys used by the ledger service.
const (
	AttrAccountKey   = "ledger.account_key"
	AttrConnectionID = "ledger.connection_id"
	AttrAmount       = "ledger.amount"
	AttrSide         = "ledger.side"
	AttrCompleted    = "ledger.completed"
)
