package mq

import (
	"context"
	"testing"

	"github.com/phrasebook-app/apiserver/config"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_NoneReturnsNilBackend(t *testing.T) {
	for _, name := range []string{"", "none", " NONE "} {
		backend, err := Open(context.Background(), config.BrokerConfig{Backend: name}, "id")
		require.NoError(t, err)
		assert.Nil(t, backend)
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.BrokerConfig{Backend: "kafka"}, "id")
	assert.ErrorContains(t, err, `unknown broker backend "kafka"`)
}

func TestOpen_RequiredSettings(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, config.BrokerConfig{Backend: BackendRabbitMQ}, "id")
	assert.ErrorContains(t, err, "rabbitmq url is required")

	_, err = Open(ctx, config.BrokerConfig{Backend: BackendPubSub}, "id")
	assert.ErrorContains(t, err, "pubsub project id is required")

	_, err = Open(ctx, config.BrokerConfig{Backend: BackendRedis}, "id")
	assert.ErrorContains(t, err, "redis addr is required")
}

func TestHeadersToAttributes(t *testing.T) {
	assert.Nil(t, headersToAttributes(nil))

	attrs := headersToAttributes(amqp.Table{
		"origin": "abc",
		"raw":    []byte("bytes"),
		"n":      int32(7),
	})
	assert.Equal(t, map[string]string{"origin": "abc", "raw": "bytes", "n": "7"}, attrs)
}

func TestNewMessageID_Unique(t *testing.T) {
	a, b := newMessageID(), newMessageID()
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

func TestPubSubSubscriptionName_PerInstance(t *testing.T) {
	p := &PubSubClient{subscriptionSuffix: "-sub", instanceID: "i-1"}
	assert.Equal(t, "MESSAGE_CREATED-sub-i-1", p.subscriptionName("MESSAGE_CREATED"))

	p.instanceID = ""
	assert.Equal(t, "MESSAGE_CREATED-sub", p.subscriptionName("MESSAGE_CREATED"))
}
