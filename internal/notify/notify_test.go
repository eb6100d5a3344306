package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"firebase.google.com/go/v4/messaging"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleChange() Change {
	start := time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
	return Change{
		ID:         "change-1",
		Kind:       EventCreated,
		EventID:    "event-1",
		Title:      "Database Systems",
		Start:      start,
		End:        start.Add(2 * time.Hour),
		Location:   "Room B202",
		Actor:      "prof1",
		OccurredAt: start.Add(-time.Hour),
	}
}

type stubChannel struct {
	mu        sync.Mutex
	published []amqp.Publishing
	keys      []string
	exchanges []string
	err       error
	closed    bool
}

func (s *stubChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.exchanges = append(s.exchanges, exchange)
	s.keys = append(s.keys, key)
	s.published = append(s.published, msg)
	return nil
}

func (s *stubChannel) Close() error {
	s.closed = true
	return nil
}

func TestAMQPPublisherPublishesPersistentJSON(t *testing.T) {
	t.Parallel()

	ch := &stubChannel{}
	publisher := newAMQPPublisher(ch, "portal.calendar", discardLogger())

	require.NoError(t, publisher.Publish(context.Background(), sampleChange()))
	require.Len(t, ch.published, 1)

	msg := ch.published[0]
	assert.Equal(t, "portal.calendar", ch.exchanges[0])
	assert.Equal(t, string(EventCreated), ch.keys[0])
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "change-1", msg.MessageId)

	var decoded Change
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, "event-1", decoded.EventID)
	assert.True(t, decoded.Start.Equal(sampleChange().Start))

	require.NoError(t, publisher.Close())
	assert.True(t, ch.closed)
}

func TestAMQPPublisherOpensBreaker(t *testing.T) {
	t.Parallel()

	ch := &stubChannel{err: errors.New("channel/connection is not open")}
	publisher := newAMQPPublisher(ch, "portal.calendar", discardLogger())

	for i := 0; i < 3; i++ {
		require.Error(t, publisher.Publish(context.Background(), sampleChange()))
	}

	ch.err = nil
	err := publisher.Publish(context.Background(), sampleChange())
	require.Error(t, err, "breaker should reject calls while open")
	assert.Empty(t, ch.published)
}

func TestAMQPPublisherHonoursCancelledContext(t *testing.T) {
	t.Parallel()

	ch := &stubChannel{}
	publisher := newAMQPPublisher(ch, "portal.calendar", discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, publisher.Publish(ctx, sampleChange()), context.Canceled)
	assert.Empty(t, ch.published)
}

func TestPubSubMessageAttributes(t *testing.T) {
	t.Parallel()

	msg, err := pubsubMessage(sampleChange())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"change_id": "change-1",
		"kind":      "event.created",
		"event_id":  "event-1",
	}, msg.Attributes)
	assert.Contains(t, string(msg.Data), `"title":"Database Systems"`)
}

func TestDeletedChangeOmitsTimes(t *testing.T) {
	t.Parallel()

	data, err := Change{ID: "c", Kind: EventDeleted, EventID: "e", OccurredAt: time.Unix(0, 0).UTC()}.encode()
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"start"`)
	assert.NotContains(t, string(data), `"end"`)
}

func TestNewPublisherSelectsProvider(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	for _, provider := range []string{"", "none", "FCM"} {
		publisher, err := NewPublisher(ctx, FeedConfig{Provider: provider}, discardLogger())
		require.NoError(t, err)
		assert.IsType(t, &NoopPublisher{}, publisher)
	}

	_, err := NewPublisher(ctx, FeedConfig{Provider: ProviderPubSub}, discardLogger())
	assert.Error(t, err)
	_, err = NewPublisher(ctx, FeedConfig{Provider: ProviderAMQP, AMQPURL: "amqp://localhost"}, discardLogger())
	assert.Error(t, err)
	_, err = NewPublisher(ctx, FeedConfig{Provider: "kafka"}, discardLogger())
	assert.Error(t, err)
}

type stubMessaging struct {
	sent []*messaging.Message
	err  error
}

func (s *stubMessaging) Send(_ context.Context, message *messaging.Message) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.sent = append(s.sent, message)
	return "projects/test/messages/1", nil
}

func TestFCMBroadcasterUsesRoleTopic(t *testing.T) {
	t.Parallel()

	client := &stubMessaging{}
	broadcaster := newFCMBroadcaster(client, discardLogger())

	err := broadcaster.Broadcast(context.Background(), Notification{
		ID:        "n1",
		Content:   "Exam moved to Friday",
		SentBy:    "admin",
		Role:      "STUDENT",
		CreatedAt: time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, client.sent, 1)

	msg := client.sent[0]
	assert.Equal(t, "role-STUDENT", msg.Topic)
	assert.Equal(t, "Exam moved to Friday", msg.Notification.Body)
	assert.Equal(t, "admin", msg.Data["sent_by"])
	assert.Equal(t, "2025-03-03T09:00:00Z", msg.Data["created_at"])
}

func TestFCMBroadcasterWrapsErrors(t *testing.T) {
	t.Parallel()

	sendErr := errors.New("quota exceeded")
	broadcaster := newFCMBroadcaster(&stubMessaging{err: sendErr}, discardLogger())

	err := broadcaster.Broadcast(context.Background(), Notification{ID: "n1", Role: "professor"})
	assert.ErrorIs(t, err, sendErr)
	assert.Contains(t, err.Error(), "role-PROFESSOR")
}
