package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSendsKeyValueAndHeaders(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "noe.notifications" {
			return errors.New("unexpected topic " + msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != "c42" {
			return errors.New("unexpected key " + string(key))
		}
		if len(msg.Headers) != 1 || string(msg.Headers[0].Key) != "kind" {
			return errors.New("missing kind header")
		}
		return nil
	})
	p := NewProducerFromSync(sp)

	require.NoError(t, p.Publish(context.Background(), "noe.notifications", "c42", []byte(`{}`), map[string]string{"kind": "message"}))
	require.NoError(t, p.Close())
}

func TestPublishPropagatesFailure(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	p := NewProducerFromSync(sp)
	defer p.Close()

	err := p.Publish(context.Background(), "t", "k", nil, nil)
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
}

func TestPublishCancelledContext(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	p := NewProducerFromSync(sp)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, p.Publish(ctx, "t", "k", nil, nil), context.Canceled)
}

func TestRecordHeadersSorted(t *testing.T) {
	hs := recordHeaders(map[string]string{"notification-id": "n1", "kind": "message"})
	require.Len(t, hs, 2)
	assert.Equal(t, "kind", string(hs[0].Key))
	assert.Equal(t, "n1", string(hs[1].Value))
	assert.Empty(t, recordHeaders(nil))
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer(nil, nil)
	require.Error(t, err)
}
