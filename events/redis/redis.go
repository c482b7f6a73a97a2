// Package redis provides a Redis pub/sub implementation of events.Publisher,
// letting multiple server instances share one update stream.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/Moriyan1307/misprint-demo/events"
	"github.com/Moriyan1307/misprint-demo/models"
)

const stateUpdateChannel = "misprint:state_updates"

// Ensure Broker implements events.Publisher
var _ events.Publisher = (*Broker)(nil)

// Broker implements events.Publisher via Redis Pub/Sub. Each subscription
// owns its own Redis subscription and a bounded local queue; a subscriber
// that falls behind is dropped, matching the in-memory broker's policy.
type Broker struct {
	client     *redis.Client
	bufferSize int
	logger     *slog.Logger

	mu   sync.Mutex
	subs map[*events.Subscription]*redis.PubSub
}

// NewBroker creates a Redis-backed event broker.
func NewBroker(redisURL string, bufferSize int, logger *slog.Logger) (*Broker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Broker{
		client:     client,
		bufferSize: bufferSize,
		logger:     logger,
		subs:       make(map[*events.Subscription]*redis.PubSub),
	}, nil
}

// Publish publishes a state update to the shared Redis channel.
func (b *Broker) Publish(ctx context.Context, update *models.StateUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to marshal state update: %w", err)
	}

	if err := b.client.Publish(ctx, stateUpdateChannel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to Redis: %w", err)
	}

	return nil
}

// Subscribe registers a new subscription fed from the Redis channel.
func (b *Broker) Subscribe(ctx context.Context) (*events.Subscription, error) {
	pubsub := b.client.Subscribe(ctx, stateUpdateChannel)
	sub := events.NewSubscription(b.bufferSize)

	b.mu.Lock()
	b.subs[sub] = pubsub
	b.mu.Unlock()

	go func() {
		defer sub.Close()

		for msg := range pubsub.Channel() {
			var update models.StateUpdate
			if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
				b.logger.Warn("discarding malformed state update", slog.String("error", err.Error()))
				continue
			}

			if !sub.TrySend(&update) {
				b.logger.Warn("evicting slow subscriber", slog.Int("queue_size", b.bufferSize))
				b.detach(sub)
				return
			}
		}
	}()

	return sub, nil
}

// Unsubscribe removes a subscription. Idempotent. The subscription channel
// closes once the relay goroutine drains.
func (b *Broker) Unsubscribe(sub *events.Subscription) {
	if sub == nil {
		return
	}
	b.detach(sub)
}

// detach removes the subscription's Redis feed; closing the pubsub ends the
// relay goroutine, which closes the subscription channel.
func (b *Broker) detach(sub *events.Subscription) {
	b.mu.Lock()
	pubsub, ok := b.subs[sub]
	delete(b.subs, sub)
	b.mu.Unlock()

	if ok {
		_ = pubsub.Close()
	}
}

// Close closes the broker, all subscriptions, and the Redis connection.
func (b *Broker) Close() error {
	b.mu.Lock()
	for sub, pubsub := range b.subs {
		_ = pubsub.Close()
		delete(b.subs, sub)
	}
	b.mu.Unlock()

	return b.client.Close()
}
