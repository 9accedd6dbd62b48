//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kafkaadapter "github.com/celulas/locator/internal/adapter/kafka"
	"github.com/celulas/locator/internal/domain"
	"github.com/celulas/locator/internal/observability"
)

const testChangesTopic = "test-changes"

// TestPublisher_ChangeEvent verifies an admin change event reaches the topic
// with its partitioning key and headers.
func TestPublisher_ChangeEvent(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testChangesTopic)

	pub := kafkaadapter.NewPublisher([]string{broker}, testChangesTopic, observability.NewMetricsForTesting(), discardLogger())
	t.Cleanup(func() { _ = pub.Close() })

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	event := domain.ChangeEvent{Entity: domain.EntityGroup, Op: domain.OpUpdate, ID: "42", Actor: "admin@example.com", At: at}
	require.NoError(t, pub.Publish(ctx, event))

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   []string{broker},
		Topic:     testChangesTopic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  1e6,
	})
	t.Cleanup(func() { _ = reader.Close() })

	readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
	defer readCancel()
	msg, err := reader.ReadMessage(readCtx)
	require.NoError(t, err, "read change event")

	assert.Equal(t, "group:42", string(msg.Key))

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "group", headers["entity"])
	assert.Equal(t, "update", headers["op"])
	assert.Equal(t, at.Format(time.RFC3339), headers["occurred_at"])

	var got domain.ChangeEvent
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, event, got)
}
