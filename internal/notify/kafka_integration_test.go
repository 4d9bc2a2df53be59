//go:build integration

package notify

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/i474232898/eojeboda/internal/observability"
)

const testPushTopic = "test-push"

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("eojeboda-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cconn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cconn.Close()

	require.NoError(t, cconn.CreateTopics(kafkago.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1}))
}

func TestKafkaPublisherRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testPushTopic)

	pub := NewKafkaPublisher([]string{broker}, testPushTopic, observability.DiscardLogger())
	t.Cleanup(func() { _ = pub.Close() })

	msg := PushMessage{
		ID:        "m-1",
		DeviceUID: "dev-1",
		Token:     "tok-1",
		Title:     MessageTitle,
		Body:      "오늘은(28.0°C), 어제보다 살짝더 덥네요.(+3.0°C)",
		CreatedAt: time.Date(2024, 5, 1, 22, 0, 0, 0, time.UTC),
	}
	require.NoError(t, pub.Publish(ctx, []PushMessage{msg}))

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers: []string{broker},
		Topic:   testPushTopic,
	})
	t.Cleanup(func() { _ = reader.Close() })

	readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
	defer readCancel()
	got, err := reader.ReadMessage(readCtx)
	require.NoError(t, err)

	assert.Equal(t, "dev-1", string(got.Key))
	var decoded PushMessage
	require.NoError(t, json.Unmarshal(got.Value, &decoded))
	assert.Equal(t, msg, decoded)
}
