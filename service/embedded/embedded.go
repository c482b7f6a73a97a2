// Package embedded provides an in-process implementation of the ShopService interface.
package embedded

import (
	"context"
	"errors"

	misprint "github.com/Moriyan1307/misprint-demo"
	"github.com/Moriyan1307/misprint-demo/events"
	"github.com/Moriyan1307/misprint-demo/models"
	"github.com/Moriyan1307/misprint-demo/service"
)

// Ensure Embedded implements service.ShopService
var _ service.ShopService = (*Embedded)(nil)

var errCoordinatorRequired = errors.New("coordinator is required")

// Embedded is an in-process implementation of ShopService that delegates
// to a Coordinator.
type Embedded struct {
	coordinator *misprint.Coordinator
}

// New creates a new Embedded service instance.
func New(coordinator *misprint.Coordinator) (*Embedded, error) {
	if coordinator == nil {
		return nil, errCoordinatorRequired
	}

	return &Embedded{coordinator: coordinator}, nil
}

// Purchase attempts to buy one unit of an item.
func (e *Embedded) Purchase(ctx context.Context, itemID string) (*models.Order, error) {
	return e.coordinator.Purchase(ctx, itemID)
}

// Status retrieves the current state of an item.
func (e *Embedded) Status(ctx context.Context, itemID string) (*models.Item, error) {
	return e.coordinator.Status(ctx, itemID)
}

// Items retrieves all items.
func (e *Embedded) Items(ctx context.Context) ([]*models.Item, error) {
	return e.coordinator.Items(ctx)
}

// Reset restores every item and clears the order log.
func (e *Embedded) Reset(ctx context.Context) ([]*models.Item, error) {
	return e.coordinator.Reset(ctx)
}

// Subscribe registers for state updates with an immediate snapshot.
func (e *Embedded) Subscribe(ctx context.Context) (*events.Subscription, []*models.Item, error) {
	return e.coordinator.Subscribe(ctx)
}

// Unsubscribe removes a subscription.
func (e *Embedded) Unsubscribe(sub *events.Subscription) {
	e.coordinator.Unsubscribe(sub)
}

// Close releases the underlying coordinator.
func (e *Embedded) Close() error {
	return e.coordinator.Close()
}
