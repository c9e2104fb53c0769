package testutil

import (
	"context"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
)

// KafkaContainer wraps a testcontainers Kafka instance.
type KafkaContainer struct {
	Container *kafka.KafkaContainer
	Brokers   []string
}

// NewKafkaContainer starts a single-node Kafka for testing and registers its
// teardown with t.Cleanup.
func NewKafkaContainer(ctx context.Context, t *testing.T) *KafkaContainer {
	t.Helper()

	kafkaContainer, err := kafka.Run(ctx,
		"confluentinc/confluent-local:7.6.1",
		kafka.WithClusterID("loan-servicing-test"),
	)
	require.NoError(t, err, "start kafka container")

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "kafka brokers")

	kc := &KafkaContainer{
		Container: kafkaContainer,
		Brokers:   brokers,
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := kc.Container.Terminate(ctx); err != nil {
			t.Logf("warning: failed to terminate kafka container: %v", err)
		}
	})
	return kc
}

// CreateTopics creates single-partition topics on the test broker.
func (kc *KafkaContainer) CreateTopics(t *testing.T, topics ...string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", kc.Brokers[0])
	require.NoError(t, err, "dial kafka")
	defer conn.Close()

	configs := make([]kafkago.TopicConfig, 0, len(topics))
	for _, topic := range topics {
		configs = append(configs, kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
	}
	require.NoError(t, conn.CreateTopics(configs...), "create topics")
}

// ReadMessages reads n messages from the beginning of topic, failing the test
// if they do not arrive within the timeout.
func (kc *KafkaContainer) ReadMessages(t *testing.T, topic string, n int, timeout time.Duration) []kafkago.Message {
	t.Helper()

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   kc.Brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  1 << 20,
	})
	defer reader.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	out := make([]kafkago.Message, 0, n)
	for len(out) < n {
		m, err := reader.ReadMessage(ctx)
		require.NoError(t, err, "read message %d from %s", len(out)+1, topic)
		out = append(out, m)
	}
	return out
}
