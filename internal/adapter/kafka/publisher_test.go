package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celulas/locator/internal/domain"
	"github.com/celulas/locator/internal/observability"
)

type mockWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

func testPublisher(w messageWriter) *Publisher {
	return &Publisher{
		writer:  w,
		metrics: observability.NewMetricsForTesting(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestSerializeToMessage(t *testing.T) {
	at := time.Date(2025, 3, 4, 19, 30, 0, 0, time.UTC)
	event := domain.ChangeEvent{Entity: domain.EntityGroup, Op: domain.OpUpdate, ID: "12", Actor: "admin@example.com", At: at}

	msg, err := serializeToMessage(event)
	require.NoError(t, err)

	assert.Equal(t, []byte("group:12"), msg.Key)
	assert.JSONEq(t, `{"entity":"group","op":"update","id":"12","actor":"admin@example.com","at":"2025-03-04T19:30:00Z"}`, string(msg.Value))
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "entity", msg.Headers[0].Key)
	assert.Equal(t, []byte("group"), msg.Headers[0].Value)
	assert.Equal(t, "op", msg.Headers[1].Key)
	assert.Equal(t, []byte("update"), msg.Headers[1].Value)
	assert.Equal(t, []byte(at.Format(time.RFC3339)), msg.Headers[2].Value)
}

func TestPublisher_Publish(t *testing.T) {
	w := &mockWriter{}
	p := testPublisher(w)

	err := p.Publish(context.Background(), domain.ChangeEvent{Entity: domain.EntitySupervisor, Op: domain.OpDelete, ID: "3"})
	require.NoError(t, err)

	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("supervisor:3"), w.msgs[0].Key)
	assert.InDelta(t, 1, testutil.ToFloat64(p.metrics.ChangeEvents.WithLabelValues("success")), 0)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublisher_PublishError(t *testing.T) {
	p := testPublisher(&mockWriter{err: errors.New("broker unavailable")})

	err := p.Publish(context.Background(), domain.ChangeEvent{Entity: domain.EntityGroup, Op: domain.OpCreate, ID: "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "group:1")
	assert.InDelta(t, 1, testutil.ToFloat64(p.metrics.ChangeEvents.WithLabelValues("error")), 0)
}
