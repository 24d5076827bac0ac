package models

// BudgetItem represents one allocated expense line.
type BudgetItem struct {
	// ID is unique within the store. Clients assign the decimal epoch-millisecond
	// timestamp of creation; the server falls back to a UUID when it is empty.
	ID string `json:"id" validate:"required"`

	// Item is the display label (e.g., "Rent", "Groceries").
	Item string `json:"item" validate:"required"`

	// Budget is the allocated amount.
	// Positivity is checked by the client at creation time only.
	Budget float64 `json:"budget"`

	// UserID is the owning User.ID.
	UserID string `json:"userId" validate:"required"`
}
