// Package service defines the core shop service interface.
package service

import (
	"context"

	"github.com/Moriyan1307/misprint-demo/events"
	"github.com/Moriyan1307/misprint-demo/models"
)

// ShopService defines the interface for interacting with the shop.
// This interface can be satisfied by:
//   - Embedded implementation: direct access to the coordinator (in-process use)
//   - REST client: HTTP client for remote shop servers
type ShopService interface {
	// Purchase attempts to buy one unit of an item. Returns the order on
	// success; a conflict error when the item is sold out.
	Purchase(ctx context.Context, itemID string) (*models.Order, error)

	// Status retrieves the current state of an item.
	Status(ctx context.Context, itemID string) (*models.Item, error)

	// Items retrieves all items.
	Items(ctx context.Context) ([]*models.Item, error)

	// Reset restores every item to its initial quantity and clears orders.
	Reset(ctx context.Context) ([]*models.Item, error)

	// Subscribe registers for state updates and returns the subscription
	// together with a snapshot of all items taken after registration.
	// Consumers must drop updates whose seq is not newer than the
	// snapshot's seq for that item.
	Subscribe(ctx context.Context) (*events.Subscription, []*models.Item, error)

	// Unsubscribe removes a subscription. Safe to call more than once.
	Unsubscribe(sub *events.Subscription)

	// Close releases the service's resources.
	Close() error
}
