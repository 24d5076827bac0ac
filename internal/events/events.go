// Package events publishes record store changes for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Kale254/final/internal/models"
)

// Type names a change. It doubles as the AMQP routing key.
type Type string

const (
	ItemCreated Type = "budget_item.created"
	ItemDeleted Type = "budget_item.deleted"
)

// Event describes one write against the record store.
// Deleted events carry only the item ID.
type Event struct {
	Type       Type              `json:"type"`
	Item       models.BudgetItem `json:"item"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// NewEvent stamps an event with the current time.
func NewEvent(t Type, item models.BudgetItem) Event {
	return Event{Type: t, Item: item, OccurredAt: time.Now().UTC()}
}

// ToJSON converts the event to JSON bytes.
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Nop discards events. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                          { return nil }
