// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/Kale254/final/internal/models"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrDuplicateID = errors.New("duplicate id")
	ErrEmailExists = errors.New("email already registered")
)

// ItemFilter narrows ListItems. The zero value lists everything.
type ItemFilter struct {
	UserID string
}

// ItemStore is the flat budget item collection behind the record store API.
// It does not partition by owner; callers pass a filter when they want one.
type ItemStore interface {
	// CreateItem persists a new item. An empty item.ID is replaced by a UUID.
	// Returns ErrDuplicateID when the ID is already taken.
	CreateItem(ctx context.Context, item *models.BudgetItem) error

	// GetItem returns ErrNotFound when no item has the ID.
	GetItem(ctx context.Context, id string) (*models.BudgetItem, error)

	// ListItems returns items in insertion order.
	ListItems(ctx context.Context, filter ItemFilter) ([]models.BudgetItem, error)

	// DeleteItem returns ErrNotFound when no item has the ID.
	DeleteItem(ctx context.Context, id string) error
}

// UserStore persists identity provider accounts.
type UserStore interface {
	// CreateUser returns ErrEmailExists when the email is taken.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByEmail and GetUserByID return (nil, nil) when the user does not exist.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Store defines the full storage surface of the server.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL)
// without changing the service layer.
type Store interface {
	ItemStore
	UserStore

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
