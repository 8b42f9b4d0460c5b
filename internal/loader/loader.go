// Package loader coalesces concurrent lookups by key into batched fetches.
//
// A Loader belongs to one inbound operation. Every key gets a slot the
// first time it is requested; later requests for the same key share the
// slot, so each unique key is fetched at most once per Loader.
package loader

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const defaultWait = 2 * time.Millisecond

// BatchFunc fetches values for keys. Keys absent from the returned map
// resolve as not found.
type BatchFunc[K comparable, V any] func(ctx context.Context, keys []K) (map[K]V, error)

// Loader batches and deduplicates lookups.
type Loader[K comparable, V any] struct {
	fetch    BatchFunc[K, V]
	wait     time.Duration
	maxBatch int

	mu      sync.Mutex
	slots   map[K]*slot[V]
	pending *batch[K, V]
}

type slot[V any] struct {
	done  chan struct{}
	value V
	found bool
	err   error
}

type batch[K comparable, V any] struct {
	ctx   context.Context
	keys  []K
	slots []*slot[V]
	timer *time.Timer
}

// Option configures a Loader.
type Option func(*options)

type options struct {
	wait     time.Duration
	maxBatch int
}

// WithWait sets how long a batch collects keys before it is fetched.
func WithWait(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.wait = d
		}
	}
}

// WithMaxBatch fetches a batch as soon as it holds n keys.
func WithMaxBatch(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBatch = n
		}
	}
}

func New[K comparable, V any](fetch BatchFunc[K, V], opts ...Option) *Loader[K, V] {
	o := options{wait: defaultWait}
	for _, opt := range opts {
		opt(&o)
	}
	return &Loader[K, V]{
		fetch:    fetch,
		wait:     o.wait,
		maxBatch: o.maxBatch,
		slots:    make(map[K]*slot[V]),
	}
}

// Load returns the value for key. The bool is false when the key does
// not exist.
func (l *Loader[K, V]) Load(ctx context.Context, key K) (V, bool, error) {
	return l.enqueue(ctx, key).await(ctx)
}

// LoadMany resolves every key in a single batch and returns the found
// values keyed by their key.
func (l *Loader[K, V]) LoadMany(ctx context.Context, keys []K) (map[K]V, error) {
	slots := make([]*slot[V], len(keys))
	for i, key := range keys {
		slots[i] = l.enqueue(ctx, key)
	}
	out := make(map[K]V, len(keys))
	for i, s := range slots {
		value, found, err := s.await(ctx)
		if err != nil {
			return nil, err
		}
		if found {
			out[keys[i]] = value
		}
	}
	return out, nil
}

// Prime stores a value that is already at hand. Existing slots win.
func (l *Loader[K, V]) Prime(key K, value V) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.slots[key]; ok {
		return
	}
	s := &slot[V]{done: make(chan struct{}), value: value, found: true}
	close(s.done)
	l.slots[key] = s
}

// Clear forgets key so the next Load fetches it again.
func (l *Loader[K, V]) Clear(key K) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.slots, key)
}

func (l *Loader[K, V]) enqueue(ctx context.Context, key K) *slot[V] {
	l.mu.Lock()
	if s, ok := l.slots[key]; ok {
		l.mu.Unlock()
		return s
	}

	s := &slot[V]{done: make(chan struct{})}
	l.slots[key] = s

	b := l.pending
	if b == nil {
		// Waiters that join later must not fail because the first caller
		// went away.
		b = &batch[K, V]{ctx: context.WithoutCancel(ctx)}
		l.pending = b
		b.timer = time.AfterFunc(l.wait, func() { l.dispatch(b) })
	}
	b.keys = append(b.keys, key)
	b.slots = append(b.slots, s)

	var full *batch[K, V]
	if l.maxBatch > 0 && len(b.keys) >= l.maxBatch {
		b.timer.Stop()
		l.pending = nil
		full = b
	}
	l.mu.Unlock()

	if full != nil {
		go l.run(full)
	}
	return s
}

func (l *Loader[K, V]) dispatch(b *batch[K, V]) {
	l.mu.Lock()
	if l.pending != b {
		l.mu.Unlock()
		return
	}
	l.pending = nil
	l.mu.Unlock()

	l.run(b)
}

func (l *Loader[K, V]) run(b *batch[K, V]) {
	values, err := l.safeFetch(b)
	for i, s := range b.slots {
		if err != nil {
			s.err = err
		} else {
			s.value, s.found = values[b.keys[i]]
		}
		close(s.done)
	}
}

func (l *Loader[K, V]) safeFetch(b *batch[K, V]) (values map[K]V, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("loader: batch fetch panicked: %v", p)
		}
	}()
	return l.fetch(b.ctx, b.keys)
}

func (s *slot[V]) await(ctx context.Context) (V, bool, error) {
	select {
	case <-s.done:
		return s.value, s.found, s.err
	case <-ctx.Done():
		var zero V
		return zero, false, ctx.Err()
	}
}
