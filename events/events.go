// Package events provides the broadcast contract for item state updates.
package events

import (
	"context"
	"errors"
	"sync"

	"github.com/Moriyan1307/misprint-demo/models"
)

// ErrPublisherClosed is returned by Subscribe after the publisher shut down.
var ErrPublisherClosed = errors.New("events: publisher is closed")

// Publisher fans out state updates to subscribers.
//
// Publishing is best-effort and must never block on a slow consumer:
// implementations evict any subscription whose queue is full instead of
// delaying the caller. The purchase path's correctness never depends on
// delivery.
type Publisher interface {
	// Publish delivers an update to every live subscription, preserving the
	// order in which updates are published.
	Publish(ctx context.Context, update *models.StateUpdate) error

	// Subscribe registers a new subscription.
	Subscribe(ctx context.Context) (*Subscription, error)

	// Unsubscribe removes a subscription and closes its channel. Idempotent;
	// shared by the client-disconnect path and the slow-consumer eviction
	// path.
	Unsubscribe(sub *Subscription)

	// Close shuts down the publisher and all subscriptions.
	Close() error
}

// Subscription is a live consumer of the update stream. Updates arrive on C
// in publish order. C is closed on Unsubscribe, on publisher Close, or when
// the subscriber is evicted for falling behind.
type Subscription struct {
	C <-chan *models.StateUpdate

	ch   chan *models.StateUpdate
	once sync.Once
}

// NewSubscription creates a subscription with the given queue capacity.
func NewSubscription(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan *models.StateUpdate, buffer)
	return &Subscription{C: ch, ch: ch}
}

// TrySend enqueues an update without blocking. It reports false when the
// queue is full. Callers must not invoke TrySend concurrently with Close;
// publishers synchronize the two through their subscriber registry.
func (s *Subscription) TrySend(update *models.StateUpdate) bool {
	select {
	case s.ch <- update:
		return true
	default:
		return false
	}
}

// Close closes the subscription channel. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() { close(s.ch) })
}
