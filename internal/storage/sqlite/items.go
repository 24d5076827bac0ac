package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Kale254/final/internal/models"
	"github.com/Kale254/final/internal/storage"
)

// CreateItem persists a new budget item.
func (s *SQLiteStore) CreateItem(ctx context.Context, item *models.BudgetItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM budget_items WHERE id = ?", item.ID).Scan(&exists)
	if err == nil {
		return fmt.Errorf("%w: %s", storage.ErrDuplicateID, item.ID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check item id: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO budget_items (id, item, budget, user_id) VALUES (?, ?, ?, ?)",
		item.ID, item.Item, item.Budget, item.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetItem retrieves a budget item by ID.
func (s *SQLiteStore) GetItem(ctx context.Context, id string) (*models.BudgetItem, error) {
	item := &models.BudgetItem{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, item, budget, user_id FROM budget_items WHERE id = ?",
		id,
	).Scan(&item.ID, &item.Item, &item.Budget, &item.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: item %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	return item, nil
}

// ListItems returns items in insertion order, optionally for one owner.
func (s *SQLiteStore) ListItems(ctx context.Context, filter storage.ItemFilter) ([]models.BudgetItem, error) {
	query := "SELECT id, item, budget, user_id FROM budget_items"
	var args []any
	if filter.UserID != "" {
		query += " WHERE user_id = ?"
		args = append(args, filter.UserID)
	}
	query += " ORDER BY seq"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items := make([]models.BudgetItem, 0)
	for rows.Next() {
		var item models.BudgetItem
		if err := rows.Scan(&item.ID, &item.Item, &item.Budget, &item.UserID); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}

	return items, nil
}

// DeleteItem removes a budget item by ID.
func (s *SQLiteStore) DeleteItem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM budget_items WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: item %s", storage.ErrNotFound, id)
	}

	return nil
}
