package kafka

import (
	"context"
	"errors"
	"testing"

	"ArtSeek/internal/modules/catalog/infrastructure/mq"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSendsKeyValueAndHeaders(t *testing.T) {
	sc := newSaramaConfig("")
	sc.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, sc)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(m *sarama.ProducerMessage) error {
		key, _ := m.Key.Encode()
		if string(key) != "met" {
			return errors.New("unexpected key " + string(key))
		}
		if len(m.Headers) != 1 || string(m.Headers[0].Key) != "event_type" {
			return errors.New("missing event_type header")
		}
		return nil
	})

	pub := &saramaPublisher{p: producer}
	_, err := pub.Publish(context.Background(), mq.Message{
		Topic:   "artseek.crawl",
		Key:     []byte("met"),
		Value:   []byte(`{"type":"crawl_cycle"}`),
		Headers: map[string]string{"event_type": "crawl_cycle", " ": "dropped"},
	})
	require.NoError(t, err)
	require.NoError(t, pub.Close())
}

func TestPublishValidation(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	pub := &saramaPublisher{p: producer}

	_, err := pub.Publish(context.Background(), mq.Message{Value: []byte("x")})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = pub.Publish(ctx, mq.Message{Topic: "t", Value: []byte("x")})
	assert.ErrorIs(t, err, context.Canceled)
	require.NoError(t, pub.Close())
}

func TestNewPublisherRequiresBrokers(t *testing.T) {
	_, err := NewPublisher(PublisherConfig{})
	assert.Error(t, err)
	assert.Equal(t, "artseek", newSaramaConfig("  ").ClientID)
}
