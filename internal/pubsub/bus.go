// Package pubsub fans events out to live subscribers.
//
// Delivery is best-effort and in-process: there is no replay, and a
// subscriber whose buffer is full is dropped rather than allowed to block
// publishers.
package pubsub

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/phrasebook-app/apiserver/internal/logging"
)

// Event names a topic.
type Event string

// MessageCreated is published after a message is stored.
const MessageCreated Event = "MESSAGE_CREATED"

const defaultBuffer = 16

// Publisher is implemented by Bus and Bridge.
type Publisher[T any] interface {
	Publish(ctx context.Context, event Event, payload T)
}

// Bus is a concurrency-safe topic registry.
type Bus[T any] struct {
	buffer int
	logger logging.Logger

	mu   sync.RWMutex
	subs map[Event]map[string]*Subscription[T]
}

// Option configures a Bus.
type Option func(*options)

type options struct {
	buffer int
	logger logging.Logger
}

// WithBuffer sets the per-subscriber channel capacity.
func WithBuffer(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.buffer = n
		}
	}
}

// WithLogger sets the logger used to report dropped subscribers.
func WithLogger(l logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func NewBus[T any](opts ...Option) *Bus[T] {
	o := options{buffer: defaultBuffer, logger: logging.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Bus[T]{
		buffer: o.buffer,
		logger: o.logger.With("module", "pubsub"),
		subs:   make(map[Event]map[string]*Subscription[T]),
	}
}

// Subscription is one subscriber's stream of events.
type Subscription[T any] struct {
	ID    string
	Event Event

	ch   chan T
	stop chan struct{}
	once sync.Once
	bus  *Bus[T]
}

// Events returns the delivery channel. It is closed when the subscription ends.
func (s *Subscription[T]) Events() <-chan T {
	return s.ch
}

// Close ends the subscription. It is safe to call more than once.
func (s *Subscription[T]) Close() {
	s.bus.remove(s)
}

// Subscribe registers a subscriber for event. The subscription ends when
// ctx is done or Close is called.
func (b *Bus[T]) Subscribe(ctx context.Context, event Event) *Subscription[T] {
	s := &Subscription[T]{
		ID:    uuid.NewString(),
		Event: event,
		ch:    make(chan T, b.buffer),
		stop:  make(chan struct{}),
		bus:   b,
	}

	b.mu.Lock()
	topic, ok := b.subs[event]
	if !ok {
		topic = make(map[string]*Subscription[T])
		b.subs[event] = topic
	}
	topic[s.ID] = s
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			b.remove(s)
		case <-s.stop:
		}
	}()
	return s
}

// Publish delivers payload to every current subscriber of event without
// blocking. Subscribers that cannot accept it are dropped.
func (b *Bus[T]) Publish(ctx context.Context, event Event, payload T) {
	var slow []*Subscription[T]

	b.mu.RLock()
	for _, s := range b.subs[event] {
		select {
		case s.ch <- payload:
		default:
			slow = append(slow, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range slow {
		b.logger.Warn(ctx, "dropping slow subscriber", "event", string(event), "subscriber", s.ID)
		b.remove(s)
	}
}

// Close ends every subscription.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for event, topic := range b.subs {
		for _, s := range topic {
			s.shutdown()
		}
		delete(b.subs, event)
	}
}

func (b *Bus[T]) remove(s *Subscription[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if topic, ok := b.subs[s.Event]; ok {
		delete(topic, s.ID)
		if len(topic) == 0 {
			delete(b.subs, s.Event)
		}
	}
	s.shutdown()
}

// shutdown closes the subscription channels once. Callers hold b.mu.
func (s *Subscription[T]) shutdown() {
	s.once.Do(func() {
		close(s.ch)
		close(s.stop)
	})
}
