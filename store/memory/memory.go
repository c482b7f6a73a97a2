// Package memory implements store.Store in process memory, for tests and
// single-node demo runs without a database file.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Moriyan1307/misprint-demo/models"
	"github.com/Moriyan1307/misprint-demo/store"
)

// Ensure Store implements store.Store
var _ store.Store = (*Store)(nil)

// Store is a map-backed store. All items are stored and returned as clones,
// so callers can never mutate shared state.
type Store struct {
	mu     sync.RWMutex
	items  map[string]*models.Item
	orders map[string][]*models.Order
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		items:  make(map[string]*models.Item),
		orders: make(map[string][]*models.Order),
	}
}

func (s *Store) SeedItem(_ context.Context, item *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[item.ID]; ok {
		return nil
	}
	s.items[item.ID] = item.Clone()

	return nil
}

func (s *Store) GetItem(_ context.Context, id string) (*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, nil
	}

	return item.Clone(), nil
}

func (s *Store) ListItems(_ context.Context) ([]*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]*models.Item, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, item.Clone())
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].ID < items[j].ID
	})

	return items, nil
}

func (s *Store) ApplyPurchase(_ context.Context, item *models.Item, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[item.ID]; !ok {
		return fmt.Errorf("item %q not found", item.ID)
	}
	if item.Quantity < 0 {
		return fmt.Errorf("quantity for item %q would go negative", item.ID)
	}

	s.items[item.ID] = item.Clone()
	s.orders[item.ID] = append(s.orders[item.ID], &models.Order{
		OrderID:   order.OrderID,
		ItemID:    order.ItemID,
		CreatedAt: order.CreatedAt,
	})

	return nil
}

func (s *Store) ResetItem(_ context.Context, id string, quantity int64, seq uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return fmt.Errorf("item %q not found", id)
	}

	item.Quantity = quantity
	item.Seq = seq
	delete(s.orders, id)

	return nil
}

func (s *Store) CountOrders(_ context.Context, itemID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.orders[itemID])), nil
}

func (s *Store) Close() error {
	return nil
}
