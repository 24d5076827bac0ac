package service

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Kale254/final/internal/events"
	"github.com/Kale254/final/internal/metrics"
	"github.com/Kale254/final/internal/middleware"
	"github.com/Kale254/final/internal/models"
	"github.com/Kale254/final/internal/storage"
)

// ItemService serves the record store endpoints.
//
// The collection is flat: the {userId} path segment scopes reads and fills in
// the owner on writes, but nothing stops a caller from reading or deleting
// another user's records.
type ItemService struct {
	store     storage.ItemStore
	publisher events.Publisher
	metrics   *metrics.Collector
	logger    *slog.Logger
}

// NewItemService creates an ItemService. publisher may be events.Nop{}.
func NewItemService(store storage.ItemStore, publisher events.Publisher, collector *metrics.Collector, logger *slog.Logger) *ItemService {
	return &ItemService{
		store:     store,
		publisher: publisher,
		metrics:   collector,
		logger:    logger,
	}
}

// ListByUser handles GET /users/{userId}/budgetItems.
func (s *ItemService) ListByUser(w http.ResponseWriter, r *http.Request) {
	s.list(w, r, chi.URLParam(r, "userId"))
}

// ListAll handles GET /budgetItems, honouring an optional ?userId= filter.
func (s *ItemService) ListAll(w http.ResponseWriter, r *http.Request) {
	s.list(w, r, r.URL.Query().Get("userId"))
}

func (s *ItemService) list(w http.ResponseWriter, r *http.Request, userID string) {
	items, err := s.store.ListItems(r.Context(), storage.ItemFilter{UserID: userID})
	if err != nil {
		s.logger.ErrorContext(r.Context(), "ListItems failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list budget items")
		return
	}

	writeJSON(w, http.StatusOK, items)
}

// Get handles GET /budgetItems/{id}.
func (s *ItemService) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	item, err := s.store.GetItem(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "budget item not found")
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "GetItem failed", "item_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get budget item")
		return
	}

	writeJSON(w, http.StatusOK, item)
}

// Create handles POST /users/{userId}/budgetItems.
// An empty userId in the body takes the path value; an empty id gets a UUID.
func (s *ItemService) Create(w http.ResponseWriter, r *http.Request) {
	scope := chi.URLParam(r, "userId")

	var item models.BudgetItem
	if err := decodeJSON(w, r, &item); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if item.UserID == "" {
		item.UserID = scope
	}
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if err := validate.Struct(item); err != nil {
		writeError(w, http.StatusBadRequest, formatValidationError(err))
		return
	}

	if err := s.store.CreateItem(r.Context(), &item); err != nil {
		if errors.Is(err, storage.ErrDuplicateID) {
			writeError(w, http.StatusConflict, "duplicate id: "+item.ID)
			return
		}
		s.logger.ErrorContext(r.Context(), "CreateItem failed", "item_id", item.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create budget item")
		return
	}

	s.metrics.ItemsCreated.Inc()
	s.logger.InfoContext(r.Context(), "Budget item created",
		"item_id", item.ID,
		"owner", item.UserID,
		"scope", scope,
		"caller", middleware.GetUserID(r.Context()),
	)
	s.publish(r, events.ItemCreated, item)

	writeJSON(w, http.StatusCreated, item)
}

// Delete handles DELETE /budgetItems/{id}.
func (s *ItemService) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.store.DeleteItem(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "budget item not found")
			return
		}
		s.logger.ErrorContext(r.Context(), "DeleteItem failed", "item_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete budget item")
		return
	}

	s.metrics.ItemsDeleted.Inc()
	s.logger.InfoContext(r.Context(), "Budget item deleted",
		"item_id", id,
		"caller", middleware.GetUserID(r.Context()),
	)
	s.publish(r, events.ItemDeleted, models.BudgetItem{ID: id})

	writeJSON(w, http.StatusOK, struct{}{})
}

// publish is best effort; the write has already committed.
func (s *ItemService) publish(r *http.Request, t events.Type, item models.BudgetItem) {
	if err := s.publisher.Publish(r.Context(), events.NewEvent(t, item)); err != nil {
		s.logger.WarnContext(r.Context(), "Failed to publish event", "type", t, "item_id", item.ID, "error", err)
	}
}
