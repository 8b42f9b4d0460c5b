package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/phrasebook-app/apiserver/config"
	"github.com/redis/go-redis/v9"
)

const redisPingTimeout = 2 * time.Second

// RedisClient publishes over Redis pub/sub. Redis carries no message
// headers, so payloads travel inside a JSON envelope.
type RedisClient struct {
	client *redis.Client
}

type redisEnvelope struct {
	ID         string            `json:"id"`
	Data       []byte            `json:"data"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*RedisClient, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("redis addr is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisClient{client: client}, nil
}

// NewRedisClientFrom wraps an existing client.
func NewRedisClientFrom(client *redis.Client) *RedisClient {
	return &RedisClient{client: client}
}

// Publish sends a message to the named Redis channel.
func (r *RedisClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("redis channel is required")
	}

	envelope := redisEnvelope{ID: newMessageID(), Data: data, Attributes: attrs}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return "", err
	}
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		return "", err
	}
	return envelope.ID, nil
}

// Subscribe consumes the named Redis channel until ctx ends. Redis pub/sub
// does not redeliver, so handler errors are dropped.
func (r *RedisClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("redis channel is required")
	}

	sub := r.client.Subscribe(ctx, channel)
	defer func() {
		_ = sub.Close()
	}()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return errors.New("redis subscription closed")
			}
			var envelope redisEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
				continue
			}
			_ = handler(ctx, Message{
				ID:         envelope.ID,
				Data:       envelope.Data,
				Attributes: envelope.Attributes,
			})
		}
	}
}

// Close closes the underlying Redis client.
func (r *RedisClient) Close() error {
	return r.client.Close()
}
