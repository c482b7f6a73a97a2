// Package memory provides an in-process implementation of events.Publisher.
package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Moriyan1307/misprint-demo/events"
	"github.com/Moriyan1307/misprint-demo/models"
)

// Ensure Broker implements events.Publisher
var _ events.Publisher = (*Broker)(nil)

// Broker implements events.Publisher using buffered Go channels. Each
// subscriber owns a bounded queue; a subscriber that cannot keep up is
// evicted so the publisher never blocks.
type Broker struct {
	mu         sync.RWMutex
	subs       map[*events.Subscription]struct{}
	closed     bool
	bufferSize int
	logger     *slog.Logger
}

// NewBroker creates a new in-memory event broker. bufferSize is the queue
// capacity granted to each subscription.
func NewBroker(bufferSize int, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		subs:       make(map[*events.Subscription]struct{}),
		bufferSize: bufferSize,
		logger:     logger,
	}
}

// Publish sends an update to all subscribers. Subscribers whose queue is
// full are evicted rather than blocking the caller.
func (b *Broker) Publish(ctx context.Context, update *models.StateUpdate) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	var evicted []*events.Subscription

	b.mu.RLock()
	for sub := range b.subs {
		if !sub.TrySend(update) {
			evicted = append(evicted, sub)
		}
	}
	b.mu.RUnlock()

	if len(evicted) == 0 {
		return nil
	}

	b.mu.Lock()
	for _, sub := range evicted {
		if _, ok := b.subs[sub]; !ok {
			continue
		}
		delete(b.subs, sub)
		sub.Close()
		b.logger.Warn("evicting slow subscriber", slog.Int("queue_size", b.bufferSize))
	}
	b.mu.Unlock()

	return nil
}

// Subscribe registers a new subscription.
func (b *Broker) Subscribe(_ context.Context) (*events.Subscription, error) {
	sub := events.NewSubscription(b.bufferSize)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, events.ErrPublisherClosed
	}
	b.subs[sub] = struct{}{}

	return sub, nil
}

// Unsubscribe removes a subscription and closes its channel. Idempotent.
func (b *Broker) Unsubscribe(sub *events.Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	sub.Close()
}

// Close closes the broker and all subscriptions.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for sub := range b.subs {
		sub.Close()
	}
	b.subs = make(map[*events.Subscription]struct{})

	return nil
}
