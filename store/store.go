// Package store defines persistence for items and the order log.
package store

import (
	"context"

	"github.com/Moriyan1307/misprint-demo/models"
)

// Store persists item records and orders.
//
// GetItem and ListItems return copies; callers never share memory with the
// store. A missing item is reported as (nil, nil), not as an error.
// ApplyPurchase and ResetItem are only called while the item's guard is
// held, so they never race with each other for the same item.
type Store interface {
	// SeedItem inserts the item if no record with its id exists. Idempotent.
	SeedItem(ctx context.Context, item *models.Item) error

	// GetItem retrieves the current record for an item, or nil if unknown.
	GetItem(ctx context.Context, id string) (*models.Item, error)

	// ListItems retrieves all item records.
	ListItems(ctx context.Context) ([]*models.Item, error)

	// ApplyPurchase persists the decremented item state and appends the
	// order atomically: either both land or neither does.
	ApplyPurchase(ctx context.Context, item *models.Item, order *models.Order) error

	// ResetItem restores the item's quantity, bumps its sequence, and clears
	// its order log atomically.
	ResetItem(ctx context.Context, id string, quantity int64, seq uint64) error

	// CountOrders reports how many orders exist for an item.
	CountOrders(ctx context.Context, itemID string) (int64, error)

	// Close closes the store.
	Close() error
}
