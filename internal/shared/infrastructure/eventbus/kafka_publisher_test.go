package eventbus

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafkaPublisher_Publish(t *testing.T) {
	producer := mocks.NewSyncProducer(t, sarama.NewConfig())
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != `{"id":1}` {
			return errors.New("unexpected payload")
		}
		return nil
	})

	pub := newKafkaPublisher(producer, "studiobook.events", discardLogger())

	err := pub.Publish(context.Background(), "booking.reservation.created", []byte(`{"id":1}`))
	require.NoError(t, err)
	assert.NoError(t, pub.Close())
}

func TestKafkaPublisher_PublishError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, sarama.NewConfig())
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	pub := newKafkaPublisher(producer, "studiobook.events", discardLogger())

	err := pub.Publish(context.Background(), "booking.reservation.created", []byte(`{}`))
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	assert.NoError(t, pub.Close())
}

func TestKafkaPublisher_CancelledContext(t *testing.T) {
	producer := mocks.NewSyncProducer(t, sarama.NewConfig())
	pub := newKafkaPublisher(producer, "studiobook.events", discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := pub.Publish(ctx, "booking.reservation.created", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, pub.Close())
}

func TestNoopPublisher(t *testing.T) {
	pub := NewNoopPublisher(nil)
	assert.NoError(t, pub.Publish(context.Background(), "x", nil))
	assert.NoError(t, pub.Close())
}
