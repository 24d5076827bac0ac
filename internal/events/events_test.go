package events

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/Kale254/final/internal/models"
)

func TestEventJSONShape(t *testing.T) {
	event := NewEvent(ItemCreated, models.BudgetItem{ID: "1", Item: "Rent", Budget: 1200, UserID: "u1"})

	data, err := event.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}

	for _, key := range []string{`"type":"budget_item.created"`, `"item":{`, `"occurredAt":`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("payload %s missing %s", data, key)
		}
	}

	var decoded Event
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded.Type != ItemCreated || decoded.Item != event.Item {
		t.Errorf("decoded = %+v, want %+v", decoded, event)
	}
	if decoded.OccurredAt.IsZero() {
		t.Error("expected OccurredAt to be set")
	}
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = Nop{}
	if err := p.Publish(context.Background(), NewEvent(ItemDeleted, models.BudgetItem{ID: "1"})); err != nil {
		t.Errorf("Publish returned %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close returned %v", err)
	}
}
