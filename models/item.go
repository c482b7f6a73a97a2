// Package models defines the core data types for the misprint demo.
package models

import "time"

// Item is the contended inventory record. Quantity and Seq are only ever
// mutated by the Coordinator while holding the item's guard; every other
// field is immutable after seeding.
type Item struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	ImageURL        string `json:"image_url"`
	Quantity        int64  `json:"quantity"`
	InitialQuantity int64  `json:"-"`

	// Seq increments on every committed mutation. Snapshots and events both
	// carry it, so a subscriber can tell whether an event is already folded
	// into the snapshot it received at connect time.
	Seq uint64 `json:"seq"`
}

// Clone returns a copy safe to hand to another goroutine.
func (i *Item) Clone() *Item {
	c := *i
	return &c
}

// StateUpdate is an immutable snapshot of an item, published after each
// successful mutation.
type StateUpdate struct {
	Item      Item      `json:"item"`
	Timestamp time.Time `json:"timestamp"`
}

// Order records one successful purchase of one unit.
type Order struct {
	OrderID   string    `json:"order_id"`
	ItemID    string    `json:"item_id"`
	CreatedAt time.Time `json:"created_at"`
}
