//go:build integration

package containers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// LedgerEventsTopic is the topic the outbox worker publishes ledger events to.
const LedgerEventsTopic = "memoledger.ledger.events"

// ledgerEventPartitions matches a keyed topic: records for one aggregate
// share a key and therefore a partition.
const ledgerEventPartitions = 3

// KafkaContainer is a single-broker Redpanda instance speaking the Kafka protocol.
type KafkaContainer struct {
	Container testcontainers.Container
	Brokers   string
}

// NewKafkaContainer starts the broker and terminates it when t ends.
func NewKafkaContainer(t *testing.T) *KafkaContainer {
	t.Helper()
	ctx := context.Background()

	container, err := kafka.Run(ctx,
		"redpandadata/redpanda:latest",
		kafka.WithClusterID("memoledger-test"),
	)
	if err != nil {
		t.Fatalf("failed to start kafka container: %v", err)
	}

	brokers, err := container.Brokers(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get kafka brokers: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = container.Terminate(ctx)
	})
	return &KafkaContainer{Container: container, Brokers: brokers[0]}
}

// EnsureTopic creates topic on the single broker. An existing topic is fine.
func (k *KafkaContainer) EnsureTopic(ctx context.Context, topic string, partitions int32) error {
	client, err := kgo.NewClient(kgo.SeedBrokers(k.Brokers))
	if err != nil {
		return err
	}
	defer client.Close()

	resp, err := kadm.NewClient(client).CreateTopic(ctx, partitions, 1, nil, topic)
	if err != nil {
		return err
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return resp.Err
	}
	return nil
}

// EnsureLedgerTopic creates LedgerEventsTopic.
func (k *KafkaContainer) EnsureLedgerTopic(ctx context.Context) error {
	return k.EnsureTopic(ctx, LedgerEventsTopic, ledgerEventPartitions)
}

// NewLedgerConsumer reads topics from the start in a fresh consumer group, so
// every test sees every record. With no topics it reads LedgerEventsTopic.
func (k *KafkaContainer) NewLedgerConsumer(topics ...string) (*kgo.Client, error) {
	if len(topics) == 0 {
		topics = []string{LedgerEventsTopic}
	}
	return kgo.NewClient(
		kgo.SeedBrokers(k.Brokers),
		kgo.ConsumerGroup("memoledger-test-"+uuid.NewString()),
		kgo.ConsumeTopics(topics...),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
	)
}

// WaitForEvent polls until a record keyed by aggregateID carries the
// event_type header eventType, or timeout passes. It returns nil on timeout.
func (k *KafkaContainer) WaitForEvent(ctx context.Context, client *kgo.Client, timeout time.Duration, aggregateID, eventType string) *kgo.Record {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for ctx.Err() == nil {
		fetches := client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		var found *kgo.Record
		fetches.EachRecord(func(r *kgo.Record) {
			if found == nil && string(r.Key) == aggregateID && RecordHeaders(r)["event_type"] == eventType {
				found = r
			}
		})
		if found != nil {
			return found
		}
	}
	return nil
}

// RecordHeaders flattens r's headers into a map.
func RecordHeaders(r *kgo.Record) map[string]string {
	headers := make(map[string]string, len(r.Headers))
	for _, h := range r.Headers {
		headers[h.Key] = string(h.Value)
	}
	return headers
}
