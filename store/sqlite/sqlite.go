// Package sqlite implements store.Store on SQLite via modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/Moriyan1307/misprint-demo/models"
	"github.com/Moriyan1307/misprint-demo/store"
)

const (
	// SQLite pragmas for better concurrency
	sqlitePragmas = `
PRAGMA journal_mode=WAL;
PRAGMA busy_timeout=5000;
PRAGMA synchronous=NORMAL;
PRAGMA foreign_keys=ON;
`

	createItemsTable = `
CREATE TABLE IF NOT EXISTS items (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	image_url TEXT,
	quantity INTEGER NOT NULL CHECK (quantity >= 0),
	initial_quantity INTEGER NOT NULL,
	seq INTEGER NOT NULL DEFAULT 0
);
`

	createOrdersTable = `
CREATE TABLE IF NOT EXISTS orders (
	order_id TEXT PRIMARY KEY,
	item_id TEXT NOT NULL REFERENCES items(id),
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_item_id ON orders(item_id);
`
)

// Ensure Store implements store.Store
var _ store.Store = (*Store)(nil)

// Store implements store.Store using SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the database at dbPath and initializes the
// schema.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(sqlitePragmas); err != nil {
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initializeSchema(db, createItemsTable); err != nil {
		return nil, fmt.Errorf("failed to initialize items schema: %w", err)
	}

	if err := initializeSchema(db, createOrdersTable); err != nil {
		return nil, fmt.Errorf("failed to initialize orders schema: %w", err)
	}

	return &Store{db: db}, nil
}

// SeedItem inserts the item if absent.
func (s *Store) SeedItem(ctx context.Context, item *models.Item) error {
	query := `
INSERT INTO items (id, name, description, image_url, quantity, initial_quantity, seq)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO NOTHING
`
	_, err := s.db.ExecContext(ctx, query,
		item.ID,
		item.Name,
		item.Description,
		item.ImageURL,
		item.Quantity,
		item.InitialQuantity,
		item.Seq,
	)
	if err != nil {
		return fmt.Errorf("failed to seed item: %w", err)
	}

	return nil
}

// GetItem retrieves an item by id, or nil if unknown.
func (s *Store) GetItem(ctx context.Context, id string) (*models.Item, error) {
	query := `
SELECT id, name, description, image_url, quantity, initial_quantity, seq
FROM items
WHERE id = ?
`
	row := s.db.QueryRowContext(ctx, query, id)

	item, err := scanItem(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	return item, nil
}

// ListItems retrieves all items ordered by id.
func (s *Store) ListItems(ctx context.Context) ([]*models.Item, error) {
	query := `
SELECT id, name, description, image_url, quantity, initial_quantity, seq
FROM items
ORDER BY id ASC
`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []*models.Item
	for rows.Next() {
		item, err := scanItem(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return items, nil
}

// ApplyPurchase persists the decremented quantity and the order in one
// transaction. The CHECK constraint on quantity backstops the coordinator:
// a negative value can never be committed.
func (s *Store) ApplyPurchase(ctx context.Context, item *models.Item, order *models.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE items SET quantity = ?, seq = ? WHERE id = ?`,
		item.Quantity, item.Seq, item.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update quantity: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("item %q not found", item.ID)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO orders (order_id, item_id, created_at) VALUES (?, ?, ?)`,
		order.OrderID, order.ItemID, order.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit purchase: %w", err)
	}

	return nil
}

// ResetItem restores the quantity and clears the item's orders in one
// transaction.
func (s *Store) ResetItem(ctx context.Context, id string, quantity int64, seq uint64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE items SET quantity = ?, seq = ? WHERE id = ?`,
		quantity, seq, id,
	)
	if err != nil {
		return fmt.Errorf("failed to reset quantity: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("item %q not found", id)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE item_id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear orders: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reset: %w", err)
	}

	return nil
}

// CountOrders reports how many orders exist for an item.
func (s *Store) CountOrders(ctx context.Context, itemID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE item_id = ?`, itemID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return count, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Helper functions

func initializeSchema(db *sql.DB, schema string) error {
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

func scanItem(scan func(dest ...any) error) (*models.Item, error) {
	var item models.Item
	var description, imageURL sql.NullString

	err := scan(
		&item.ID,
		&item.Name,
		&description,
		&imageURL,
		&item.Quantity,
		&item.InitialQuantity,
		&item.Seq,
	)
	if err != nil {
		return nil, err
	}

	item.Description = description.String
	item.ImageURL = imageURL.String

	return &item, nil
}
