package producer

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memoledger/pkg/platform/outbox/worker"
)

func TestNewRequiresBrokers(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.Error(t, err)
}

func TestLogPublisherWritesEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	err := NewLogPublisher(logger).Publish(context.Background(), &worker.Message{
		Topic:   "memoledger.ledger.events",
		Key:     []byte("alice"),
		Value:   []byte(`{"type":"daily_minted"}`),
		Headers: map[string]string{"event_type": "daily_minted"},
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"event_type":"daily_minted"`)
	assert.Contains(t, buf.String(), `"key":"alice"`)
}
