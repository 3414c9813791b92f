package service

import (
	"context"
	"encoding/json"
	"time"

	"memoledger/internal/ledger/models"
	"memoledger/internal/ledger/ports"
	dErrors "memoledger/pkg/domain-errors"
	"memoledger/pkg/platform/outbox"
	"memoledger/pkg/requestcontext"
)

// appendEvent writes ev to the outbox inside the caller's transaction, so the
// event commits exactly when the transition does.
func appendEvent(ctx context.Context, stores ports.Stores, aggregateType, aggregateID string, now time.Time, ev models.Event) error {
	ev.OccurredAt = now
	ev.RequestID = requestcontext.RequestID(ctx)
	payload, err := json.Marshal(ev)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode event")
	}
	entry := outbox.NewEntry(aggregateType, aggregateID, string(ev.Type), payload, now)
	if err := stores.Outbox.Append(ctx, entry); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append event")
	}
	return nil
}
