// Package misprint coordinates concurrent purchases of limited-stock items.
package misprint

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Moriyan1307/misprint-demo/errors"
	"github.com/Moriyan1307/misprint-demo/events"
	"github.com/Moriyan1307/misprint-demo/locks"
	"github.com/Moriyan1307/misprint-demo/models"
	"github.com/Moriyan1307/misprint-demo/store"
)

// Config holds dependencies for the Coordinator.
type Config struct {
	// Store persists items and orders (required).
	Store store.Store

	// Publisher broadcasts state updates to subscribers (required).
	Publisher events.Publisher

	// Locks serializes mutations per item. Created if nil.
	Locks *locks.Manager

	// Logger for structured logging
	Logger *slog.Logger
}

// Coordinator serializes check-then-decrement purchases per item so that
// stock is never oversold, and broadcasts every committed mutation.
//
// Concurrency model: every mutation of an item happens while holding that
// item's lock. The state update is published before the lock is released,
// which makes broadcast order identical to commit order.
type Coordinator struct {
	store     store.Store
	publisher events.Publisher
	locks     *locks.Manager
	logger    *slog.Logger
}

// New creates a Coordinator.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if cfg.Locks == nil {
		cfg.Locks = locks.NewManager()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Coordinator{
		store:     cfg.Store,
		publisher: cfg.Publisher,
		locks:     cfg.Locks,
		logger:    cfg.Logger,
	}, nil
}

// Status returns the current state of an item.
func (c *Coordinator) Status(ctx context.Context, itemID string) (*models.Item, error) {
	item, err := c.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, errors.NewShopError(fmt.Errorf("failed to load item: %w", err), errors.StatusInternal)
	}
	if item == nil {
		return nil, errors.NewShopError(fmt.Errorf("%w: %s", errors.ErrItemNotFound, itemID), errors.StatusNotFound)
	}

	return item, nil
}

// Items returns all items.
func (c *Coordinator) Items(ctx context.Context) ([]*models.Item, error) {
	items, err := c.store.ListItems(ctx)
	if err != nil {
		return nil, errors.NewShopError(fmt.Errorf("failed to list items: %w", err), errors.StatusInternal)
	}

	return items, nil
}

// Purchase attempts to buy one unit of an item. At most Quantity purchases
// ever succeed for an item, regardless of how many run concurrently.
func (c *Coordinator) Purchase(ctx context.Context, itemID string) (*models.Order, error) {
	// Fast fail before taking the lock: unknown items never contend.
	existing, err := c.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, errors.NewShopError(fmt.Errorf("failed to load item: %w", err), errors.StatusInternal)
	}
	if existing == nil {
		return nil, errors.NewShopError(fmt.Errorf("%w: %s", errors.ErrItemNotFound, itemID), errors.StatusNotFound)
	}

	guard := c.locks.Acquire(itemID)
	defer guard.Release()

	// Re-read under the lock; the snapshot above may be stale.
	item, err := c.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, errors.NewShopError(fmt.Errorf("failed to load item: %w", err), errors.StatusInternal)
	}
	if item == nil {
		return nil, errors.NewShopError(fmt.Errorf("%w: %s", errors.ErrItemNotFound, itemID), errors.StatusNotFound)
	}

	// A negative quantity means the atomicity contract was broken somewhere;
	// it must never pass as an ordinary sold-out.
	if item.Quantity < 0 {
		return nil, errors.NewShopError(fmt.Errorf("%w: item %s has quantity %d", errors.ErrInvariantViolation, item.ID, item.Quantity), errors.StatusInternal)
	}
	if item.Quantity == 0 {
		return nil, errors.NewShopError(fmt.Errorf("%w: %s", errors.ErrOutOfStock, itemID), errors.StatusConflict)
	}

	item.Quantity--
	item.Seq++

	order := &models.Order{
		OrderID:   uuid.NewString(),
		ItemID:    item.ID,
		CreatedAt: time.Now().UTC(),
	}

	if err := c.store.ApplyPurchase(ctx, item, order); err != nil {
		return nil, errors.NewShopError(fmt.Errorf("failed to commit purchase: %w", err), errors.StatusInternal)
	}

	c.logger.Info("purchase committed",
		slog.String("itemID", item.ID),
		slog.String("orderID", order.OrderID),
		slog.Int64("remaining", item.Quantity))

	c.publish(ctx, item)

	return order, nil
}

// Reset restores every item to its initial quantity and clears the order
// log. It is idempotent: resetting an already-reset item still commits and
// still broadcasts.
func (c *Coordinator) Reset(ctx context.Context) ([]*models.Item, error) {
	items, err := c.store.ListItems(ctx)
	if err != nil {
		return nil, errors.NewShopError(fmt.Errorf("failed to list items: %w", err), errors.StatusInternal)
	}

	reset := make([]*models.Item, 0, len(items))
	for _, item := range items {
		restored, err := c.resetItem(ctx, item.ID)
		if err != nil {
			return nil, err
		}
		reset = append(reset, restored)
	}

	c.logger.Info("demo reset", slog.Int("items", len(reset)))

	return reset, nil
}

func (c *Coordinator) resetItem(ctx context.Context, itemID string) (*models.Item, error) {
	guard := c.locks.Acquire(itemID)
	defer guard.Release()

	item, err := c.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, errors.NewShopError(fmt.Errorf("failed to load item: %w", err), errors.StatusInternal)
	}
	if item == nil {
		return nil, errors.NewShopError(fmt.Errorf("%w: %s", errors.ErrItemNotFound, itemID), errors.StatusNotFound)
	}

	item.Quantity = item.InitialQuantity
	item.Seq++

	if err := c.store.ResetItem(ctx, item.ID, item.Quantity, item.Seq); err != nil {
		return nil, errors.NewShopError(fmt.Errorf("failed to commit reset: %w", err), errors.StatusInternal)
	}

	c.publish(ctx, item)

	return item, nil
}

// Subscribe registers a subscriber and returns it together with a snapshot
// of all items. Registration happens before the snapshot is read, so every
// update committed after the snapshot is guaranteed to reach the channel;
// consumers drop updates whose seq is not newer than the snapshot's.
func (c *Coordinator) Subscribe(ctx context.Context) (*events.Subscription, []*models.Item, error) {
	sub, err := c.publisher.Subscribe(ctx)
	if err != nil {
		return nil, nil, errors.NewShopError(fmt.Errorf("failed to subscribe: %w", err), errors.StatusUnavailable)
	}

	items, err := c.store.ListItems(ctx)
	if err != nil {
		c.publisher.Unsubscribe(sub)
		return nil, nil, errors.NewShopError(fmt.Errorf("failed to list items: %w", err), errors.StatusInternal)
	}

	return sub, items, nil
}

// Unsubscribe removes a subscriber. Safe to call more than once.
func (c *Coordinator) Unsubscribe(sub *events.Subscription) {
	c.publisher.Unsubscribe(sub)
}

// Close releases the coordinator's publisher.
func (c *Coordinator) Close() error {
	return c.publisher.Close()
}

// publish broadcasts a committed mutation. The mutation is already durable,
// so a cancelled request context must not suppress the event.
func (c *Coordinator) publish(ctx context.Context, item *models.Item) {
	update := &models.StateUpdate{
		Item:      *item.Clone(),
		Timestamp: time.Now().UTC(),
	}

	if err := c.publisher.Publish(context.WithoutCancel(ctx), update); err != nil {
		c.logger.Error("failed to publish state update",
			slog.String("itemID", item.ID),
			slog.String("error", err.Error()))
	}
}
