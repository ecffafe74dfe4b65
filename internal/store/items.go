package store

import (
	"context"
	"fmt"

	"storefront/internal/models"
)

const itemColumns = "id, title, description, price, image_url, quantity, created_at, updated_at"

// CreateItem inserts a new catalog item
func (s *Store) CreateItem(ctx context.Context, item *models.Item) error {
	query := `
		INSERT INTO items (title, description, price, image_url, quantity)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		item.Title, item.Description, item.Price, item.ImageURL, item.Quantity).
		Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	return nil
}

// UpdateItem overwrites the editable fields of an item
func (s *Store) UpdateItem(ctx context.Context, item *models.Item) error {
	query := `
		UPDATE items
		SET title = $1, description = $2, price = $3, image_url = $4, quantity = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		item.Title, item.Description, item.Price, item.ImageURL, item.Quantity, item.ID).
		Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return notFound(err, models.ErrItemNotFound)
	}
	return nil
}

// GetItemByID retrieves an item by ID
func (s *Store) GetItemByID(ctx context.Context, id int64) (*models.Item, error) {
	var item models.Item
	err := s.db.GetContext(ctx, &item, "SELECT "+itemColumns+" FROM items WHERE id = $1", id)
	if err != nil {
		return nil, notFound(err, models.ErrItemNotFound)
	}
	return &item, nil
}

// ListItems returns one page of items ordered by ID
func (s *Store) ListItems(ctx context.Context, limit, offset int) ([]models.Item, error) {
	items := []models.Item{}
	err := s.db.SelectContext(ctx, &items,
		"SELECT "+itemColumns+" FROM items ORDER BY id LIMIT $1 OFFSET $2", limit, offset)
	return items, err
}

// CountItems returns the catalog size for pagination
func (s *Store) CountItems(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM items")
	return count, err
}

// GetItemQuantities returns item ID to stock for every item
func (s *Store) GetItemQuantities(ctx context.Context) (map[int64]int, error) {
	var rows []struct {
		ID       int64 `db:"id"`
		Quantity int   `db:"quantity"`
	}
	if err := s.db.SelectContext(ctx, &rows, "SELECT id, quantity FROM items"); err != nil {
		return nil, err
	}

	quantities := make(map[int64]int, len(rows))
	for _, r := range rows {
		quantities[r.ID] = r.Quantity
	}
	return quantities, nil
}
