// Package models defines the domain models shared by the budget client and the
// record store server.
//
// # Models
//
//   - BudgetItem: one allocated expense line owned by a user
//   - User: an authenticated identity issued by the identity provider
//   - Credentials / TokenPair: the identity exchange payloads
//
// # Ownership
//
// BudgetItem.UserID references User.ID. The record store does not enforce that
// relationship; readers filter by owner themselves.
//
// # Wire format
//
// Models carry their JSON field names so the same structs are used by the HTTP
// handlers and the HTTP clients. Validation tags are evaluated with
// go-playground/validator at the process boundaries (request bodies on the
// server, response bodies on the client).
package models
