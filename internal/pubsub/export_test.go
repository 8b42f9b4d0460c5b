package pubsub

// Subscribers returns the number of live subscribers for event.
func (b *Bus[T]) Subscribers(event Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[event])
}

// InstanceID identifies this process on the broker.
func (b *Bridge[T]) InstanceID() string {
	return b.instanceID
}
