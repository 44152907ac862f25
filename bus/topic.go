package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Subscription receives the envelopes published on one topic.
type Subscription[T any] struct {
	ID      string
	Name    string
	channel *Channel[Envelope[T]]
}

// Receive blocks for the next envelope. It returns ErrClosed once the
// subscription has been removed and its buffer drained.
func (s *Subscription[T]) Receive(ctx context.Context) (Envelope[T], error) {
	return s.channel.Receive(ctx)
}

func (s *Subscription[T]) TryReceive() (Envelope[T], bool) {
	return s.channel.TryReceive()
}

func (s *Subscription[T]) Pending() int {
	return s.channel.QueueLength()
}

// Topic is a named, typed publish/subscribe channel.
type Topic[T any] struct {
	name       string
	bufferSize int
	logger     *slog.Logger
	metrics    *Metrics

	subscriptions map[string]*Subscription[T]
	mu            sync.RWMutex
	closed        bool
}

// NewTopic creates a topic attached to b. The topic shares b's metrics and
// is closed together with b.
func NewTopic[T any](b *Bus, name string) *Topic[T] {
	t := &Topic[T]{
		name:          name,
		bufferSize:    b.bufferSize,
		logger:        b.logger,
		metrics:       b.metrics,
		subscriptions: make(map[string]*Subscription[T]),
	}
	b.track(t)
	return t
}

func (t *Topic[T]) Name() string {
	return t.name
}

// Subscribe registers a new subscription. Subscribing on a closed topic
// returns a subscription that is already closed.
func (t *Topic[T]) Subscribe(name string) *Subscription[T] {
	sub := &Subscription[T]{
		ID:      generateID(),
		Name:    name,
		channel: NewChannel[Envelope[T]](t.bufferSize),
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		sub.channel.Close()
		return sub
	}
	t.subscriptions[sub.ID] = sub
	t.mu.Unlock()

	t.metrics.RecordSubscriber(1)
	t.logger.Debug(
		"subscribed to topic",
		slog.String("topic", t.name),
		slog.String("subscriber", name),
		slog.String("subscription_id", sub.ID),
	)

	return sub
}

// Unsubscribe removes and closes a subscription. Envelopes already buffered
// can still be received.
func (t *Topic[T]) Unsubscribe(id string) error {
	t.mu.Lock()
	sub, exists := t.subscriptions[id]
	if exists {
		delete(t.subscriptions, id)
	}
	t.mu.Unlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrSubscriptionNotFound, id)
	}

	sub.channel.Close()
	t.metrics.RecordSubscriber(-1)
	return nil
}

// Publish delivers data to every subscriber except those named from. It
// returns the number of subscribers that received the envelope.
func (t *Topic[T]) Publish(ctx context.Context, from string, data T) int {
	t.mu.RLock()
	subscribers := make([]*Subscription[T], 0, len(t.subscriptions))
	for _, sub := range t.subscriptions {
		if sub.Name != from {
			subscribers = append(subscribers, sub)
		}
	}
	t.mu.RUnlock()

	t.metrics.RecordPublished(1)
	envelope := newEnvelope(t.name, from, data)

	delivered := 0
	for _, sub := range subscribers {
		if sub.channel.TrySend(envelope) {
			delivered++
			continue
		}
		t.metrics.RecordDropped(1)
		t.logger.WarnContext(
			ctx,
			"dropped envelope for subscriber",
			slog.String("topic", t.name),
			slog.String("subscriber", sub.Name),
			slog.String("envelope_id", envelope.ID),
		)
	}
	t.metrics.RecordDelivered(delivered)

	t.logger.DebugContext(
		ctx,
		"envelope published",
		slog.String("topic", t.name),
		slog.String("from", from),
		slog.Int("subscribers", len(subscribers)),
		slog.Int("delivered", delivered),
	)

	return delivered
}

func (t *Topic[T]) Subscribers() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subscriptions)
}

func (t *Topic[T]) close() {
	t.mu.Lock()
	subs := t.subscriptions
	t.subscriptions = make(map[string]*Subscription[T])
	t.closed = true
	t.mu.Unlock()

	for _, sub := range subs {
		sub.channel.Close()
		t.metrics.RecordSubscriber(-1)
	}
}
