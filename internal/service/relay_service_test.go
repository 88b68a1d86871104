package service

import (
	"context"
	"errors"
	"testing"

	"member-core/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type publishedMessage struct {
	topic   string
	key     string
	payload []byte
}

type fakeProducer struct {
	published []publishedMessage
	failTopic string
}

func (f *fakeProducer) Publish(ctx context.Context, topic string, key string, payload []byte) error {
	if topic == f.failTopic {
		return errors.New("broker unavailable")
	}
	f.published = append(f.published, publishedMessage{topic: topic, key: key, payload: payload})
	return nil
}

func TestRelayPublishesWithPartitionKey(t *testing.T) {
	db := newTestDB(t)
	producer := &fakeProducer{}
	relay := NewRelayService(db, producer)

	require.NoError(t, model.CreateOutboxMessage(db, "member.payment.applied", "7", map[string]interface{}{
		"payment_id": 42,
	}))

	relay.relayPending(context.Background())

	require.Len(t, producer.published, 1)
	assert.Equal(t, "member.payment.applied", producer.published[0].topic)
	assert.Equal(t, "7", producer.published[0].key)

	var msg model.OutboxMessage
	require.NoError(t, db.First(&msg).Error)
	assert.Equal(t, "SENT", msg.Status)
}

func TestRelayKeepsFailedMessagesPending(t *testing.T) {
	db := newTestDB(t)
	producer := &fakeProducer{failTopic: "member.payment.applied"}
	relay := NewRelayService(db, producer)

	require.NoError(t, model.CreateOutboxMessage(db, "member.payment.applied", "7", map[string]interface{}{
		"payment_id": 42,
	}))

	relay.relayPending(context.Background())

	var msg model.OutboxMessage
	require.NoError(t, db.First(&msg).Error)
	assert.Equal(t, "PENDING", msg.Status)

	// The next tick, with the broker back, delivers it.
	producer.failTopic = ""
	relay.relayPending(context.Background())

	require.NoError(t, db.First(&msg).Error)
	assert.Equal(t, "SENT", msg.Status)
}
