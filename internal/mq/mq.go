package mq

import (
	"context"
	"fmt"
	"strings"

	"github.com/phrasebook-app/apiserver/config"
)

// Backend names accepted by Open.
const (
	BackendNone     = "none"
	BackendRabbitMQ = "rabbitmq"
	BackendPubSub   = "pubsub"
	BackendRedis    = "redis"
)

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
//
// Every subscriber on a channel receives every message published to it,
// so each server instance sees all events.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// Open constructs the backend selected by cfg.Backend. It returns a nil
// Backend when brokering is disabled.
func Open(ctx context.Context, cfg config.BrokerConfig, instanceID string) (Backend, error) {
	var (
		backend Backend
		err     error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendNone:
		return nil, nil
	case BackendRabbitMQ:
		backend, err = NewRabbitMQClient(cfg.RabbitMQ, instanceID)
	case BackendPubSub:
		backend, err = NewPubSubClient(ctx, cfg.PubSub, instanceID)
	case BackendRedis:
		backend, err = NewRedisClient(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown broker backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return backend, nil
}
