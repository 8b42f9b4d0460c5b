package pubsub

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/phrasebook-app/apiserver/internal/logging"
	"github.com/phrasebook-app/apiserver/internal/mq"
	"golang.org/x/sync/errgroup"
)

const (
	attrOrigin = "origin"
	attrEvent  = "event"
)

// Bridge mirrors a local Bus onto a message broker so every server
// instance notifies its own subscribers.
type Bridge[T any] struct {
	bus        *Bus[T]
	backend    mq.Backend
	instanceID string
	logger     logging.Logger
}

// NewBridge connects bus to backend. instanceID must match the id the
// backend was opened with; an empty id generates one.
func NewBridge[T any](bus *Bus[T], backend mq.Backend, instanceID string, logger logging.Logger) *Bridge[T] {
	if logger == nil {
		logger = logging.Nop()
	}
	id := instanceID
	if id == "" {
		id = uuid.NewString()
	}
	return &Bridge[T]{
		bus:        bus,
		backend:    backend,
		instanceID: id,
		logger:     logger.With("module", "pubsub.bridge", "instance", id),
	}
}

// Publish delivers locally and then forwards to the broker. Broker
// failures are logged and never reach the caller.
func (b *Bridge[T]) Publish(ctx context.Context, event Event, payload T) {
	b.bus.Publish(ctx, event, payload)

	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error(ctx, "encode event failed", "event", string(event), "error", err)
		return
	}
	attrs := map[string]string{
		attrOrigin: b.instanceID,
		attrEvent:  string(event),
	}
	if _, err := b.backend.Publish(ctx, string(event), data, attrs); err != nil {
		b.logger.Error(ctx, "forward event failed", "event", string(event), "error", err)
	}
}

// Run consumes the given events from the broker and republishes those
// that originated elsewhere. It blocks until ctx ends or a subscription fails.
func (b *Bridge[T]) Run(ctx context.Context, events ...Event) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, event := range events {
		g.Go(func() error {
			err := b.backend.Subscribe(ctx, string(event), b.relay(event))
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

func (b *Bridge[T]) relay(event Event) mq.Handler {
	return func(ctx context.Context, msg mq.Message) error {
		if msg.Attributes[attrOrigin] == b.instanceID {
			return nil
		}
		var payload T
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			// Redelivery cannot fix a malformed payload.
			b.logger.Warn(ctx, "discarding undecodable event", "event", string(event), "id", msg.ID, "error", err)
			return nil
		}
		b.bus.Publish(ctx, event, payload)
		return nil
	}
}
