// Package postgres provides a PostgreSQL-backed implementation of the
// storage.Store interface using pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Kale254/final/internal/models"
	"github.com/Kale254/final/internal/storage"
)

var _ storage.Store = (*PostgresStore)(nil)

// uniqueViolation is the SQLSTATE for unique constraint failures.
const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS budget_items (
    seq BIGSERIAL PRIMARY KEY,
    id TEXT NOT NULL UNIQUE,
    item TEXT NOT NULL,
    budget DOUBLE PRECISION NOT NULL,
    user_id TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_budget_items_user_id ON budget_items(user_id);
`

// PostgresStore implements storage.Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// New connects to databaseURL and ensures the schema exists.
func New(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the pool. It always returns nil.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks that a connection can be acquired.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// CreateItem persists a new budget item.
func (s *PostgresStore) CreateItem(ctx context.Context, item *models.BudgetItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}

	_, err := s.pool.Exec(ctx,
		"INSERT INTO budget_items (id, item, budget, user_id) VALUES ($1, $2, $3, $4)",
		item.ID, item.Item, item.Budget, item.UserID,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", storage.ErrDuplicateID, item.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}

	return nil
}

// GetItem retrieves a budget item by ID.
func (s *PostgresStore) GetItem(ctx context.Context, id string) (*models.BudgetItem, error) {
	item := &models.BudgetItem{}
	err := s.pool.QueryRow(ctx,
		"SELECT id, item, budget, user_id FROM budget_items WHERE id = $1",
		id,
	).Scan(&item.ID, &item.Item, &item.Budget, &item.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: item %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	return item, nil
}

// ListItems returns items in insertion order, optionally for one owner.
func (s *PostgresStore) ListItems(ctx context.Context, filter storage.ItemFilter) ([]models.BudgetItem, error) {
	query := "SELECT id, item, budget, user_id FROM budget_items"
	var args []any
	if filter.UserID != "" {
		query += " WHERE user_id = $1"
		args = append(args, filter.UserID)
	}
	query += " ORDER BY seq"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.BudgetItem, error) {
		var item models.BudgetItem
		err := row.Scan(&item.ID, &item.Item, &item.Budget, &item.UserID)
		return item, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan items: %w", err)
	}
	if items == nil {
		items = make([]models.BudgetItem, 0)
	}

	return items, nil
}

// DeleteItem removes a budget item by ID.
func (s *PostgresStore) DeleteItem(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM budget_items WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: item %s", storage.ErrNotFound, id)
	}

	return nil
}

// CreateUser inserts a new user.
func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, display_name, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Email, user.DisplayName, user.PasswordHash, user.CreatedAt, user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return storage.ErrEmailExists
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByEmail retrieves a user by email address.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "email", email)
}

// GetUserByID retrieves a user by ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, "id", id)
}

func (s *PostgresStore) getUser(ctx context.Context, column, value string) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, display_name, password_hash, created_at, updated_at
		 FROM users WHERE `+column+` = $1`,
		value,
	).Scan(&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by %s: %w", column, err)
	}

	return user, nil
}
