package calculator

import "github.com/Kale254/final/internal/models"

// Total sums Budget over the items owned by userID.
// Plain float64 addition in collection order; returns 0 when nothing matches.
func Total(items []models.BudgetItem, userID string) float64 {
	total := 0.0
	for _, item := range items {
		if item.UserID == userID {
			total += item.Budget
		}
	}
	return total
}

// Filter returns the items owned by userID, preserving order.
// The result never aliases the input.
func Filter(items []models.BudgetItem, userID string) []models.BudgetItem {
	owned := make([]models.BudgetItem, 0, len(items))
	for _, item := range items {
		if item.UserID == userID {
			owned = append(owned, item)
		}
	}
	return owned
}
