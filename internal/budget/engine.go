// Package budget keeps a session's budget items in memory and reconciles
// them with the record store.
//
// The engine loads items for one user at a time. Reads always filter by
// owner, so whatever a refresh returns, callers only ever see items whose
// userId matches the one they ask for.
//
// Every fetch is tagged with the epoch it was issued in and a sequence
// number. Clear and user changes bump the epoch. A response is applied only
// if its epoch is still current and nothing issued after it has already
// been applied; anything else is dropped. The engine stays Loading while
// any fetch of the current epoch is outstanding.
package budget

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Kale254/final/internal/calculator"
	"github.com/Kale254/final/internal/models"
)

// Store is the record store the engine reads and writes.
type Store interface {
	ListByUser(ctx context.Context, userID string) ([]models.BudgetItem, error)
	ListAll(ctx context.Context) ([]models.BudgetItem, error)
	Create(ctx context.Context, scopeUserID string, item models.BudgetItem) (models.BudgetItem, error)
	DeleteByID(ctx context.Context, id string) error
}

// Session supplies the logged-in user, or nil.
type Session interface {
	CurrentUser() *models.User
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the sink that store failures and dropped responses go to.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithClock replaces time.Now, which seeds new item ids.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithResync sets the post-create re-read. The default is ResyncAll.
func WithResync(r Resync) Option {
	return func(e *Engine) { e.resync = r }
}

// Engine is safe for concurrent use. No lock is held during store calls.
type Engine struct {
	store   Store
	session Session
	logger  *slog.Logger
	now     func() time.Time
	resync  Resync

	mu     sync.Mutex
	items  []models.BudgetItem
	state  State
	userID string
	loaded bool

	epoch   uint64
	issued  uint64
	applied uint64
	pending int
}

// New creates an engine in the Uninitialized state.
func New(store Store, session Session, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		session: session,
		logger:  slog.Default(),
		now:     time.Now,
		resync:  ResyncAll,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ticket identifies one fetch.
type ticket struct {
	epoch uint64
	seq   uint64
}

// Refresh replaces the collection with the store's items for userID.
// Refreshing for a user other than the one currently loaded starts over:
// the collection is emptied and fetches still in flight for the old user
// are abandoned. On failure the previous collection and state are kept;
// the error is logged and returned.
func (e *Engine) Refresh(ctx context.Context, userID string) error {
	t := e.begin(userID)
	items, err := e.store.ListByUser(ctx, userID)
	return e.finish(ctx, t, "refresh", items, err)
}

// AddItem validates the input, creates the item in the store under userID's
// scope and re-reads the collection. Invalid input returns a
// *ValidationError without touching the store.
func (e *Engine) AddItem(ctx context.Context, label string, amount float64, userID string) (models.BudgetItem, error) {
	if strings.TrimSpace(label) == "" || math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return models.BudgetItem{}, &ValidationError{Message: InvalidInputMessage}
	}
	e.mu.Lock()
	if e.state != Ready {
		e.mu.Unlock()
		return models.BudgetItem{}, ErrNotReady
	}
	epoch, scope := e.epoch, e.userID
	e.mu.Unlock()

	item := models.BudgetItem{
		ID:     strconv.FormatInt(e.now().UnixMilli(), 10),
		Item:   label,
		Budget: amount,
		UserID: userID,
	}

	created, err := e.store.Create(ctx, userID, item)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to add budget item", "item_id", item.ID, "user_id", userID, "error", err)
		return models.BudgetItem{}, fmt.Errorf("add budget item: %w", err)
	}

	if err := e.resyncAfterCreate(ctx, epoch, scope); err != nil {
		return created, err
	}
	return created, nil
}

// resyncAfterCreate re-reads the collection the add started from. It does
// nothing if that collection has since been cleared or rekeyed.
func (e *Engine) resyncAfterCreate(ctx context.Context, epoch uint64, scope string) error {
	t, ok := e.beginIn(epoch)
	if !ok {
		e.logger.DebugContext(ctx, "Collection reset during add, skipping resync", "user_id", scope)
		return nil
	}

	var (
		items []models.BudgetItem
		err   error
	)
	if e.resync == ResyncUser {
		items, err = e.store.ListByUser(ctx, scope)
	} else {
		items, err = e.store.ListAll(ctx)
	}
	return e.finish(ctx, t, "resync", items, err)
}

// RemoveItem deletes id from the store and, once the store agrees, from
// memory. It does not re-read. On failure the collection is unchanged.
func (e *Engine) RemoveItem(ctx context.Context, id string) error {
	e.mu.Lock()
	if e.state != Ready {
		e.mu.Unlock()
		return ErrNotReady
	}
	epoch := e.epoch
	e.mu.Unlock()

	if err := e.store.DeleteByID(ctx, id); err != nil {
		e.logger.ErrorContext(ctx, "Failed to remove budget item", "item_id", id, "error", err)
		return fmt.Errorf("remove budget item: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.epoch != epoch {
		e.logger.DebugContext(ctx, "Collection reset during delete", "item_id", id)
		return nil
	}
	e.items = slices.DeleteFunc(e.items, func(it models.BudgetItem) bool { return it.ID == id })
	return nil
}

// TotalFor sums the budget of the in-memory items owned by userID.
func (e *Engine) TotalFor(userID string) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return calculator.Total(e.items, userID)
}

// Items returns a copy of the in-memory items owned by userID, in store order.
func (e *Engine) Items(userID string) []models.BudgetItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	return calculator.Filter(e.items, userID)
}

// Clear forgets the collection and the user it belongs to. Responses to
// fetches issued before the call are discarded when they arrive.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reset("")
}

// Sync follows the session: no user clears, a new user triggers a refresh,
// the same user refreshes only if nothing has loaded yet.
func (e *Engine) Sync(ctx context.Context) error {
	user := e.session.CurrentUser()

	e.mu.Lock()
	switch {
	case user == nil:
		if e.userID != "" || e.state != Uninitialized {
			e.reset("")
		}
		e.mu.Unlock()
		return nil
	case user.ID == e.userID && (e.loaded || e.state == Loading):
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	return e.Refresh(ctx, user.ID)
}

// State reports the load state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// UserID is the user the collection is keyed to, or "".
func (e *Engine) UserID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.userID
}

// begin moves to Loading and tags a new fetch, rekeying if userID differs.
func (e *Engine) begin(userID string) ticket {
	e.mu.Lock()
	defer e.mu.Unlock()

	if userID != e.userID {
		e.reset(userID)
	}
	return e.issue()
}

// beginIn is begin without rekeying. It fails if epoch is no longer current.
func (e *Engine) beginIn(epoch uint64) (ticket, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.epoch != epoch {
		return ticket{}, false
	}
	return e.issue(), true
}

func (e *Engine) issue() ticket {
	e.issued++
	e.pending++
	e.state = Loading
	return ticket{epoch: e.epoch, seq: e.issued}
}

// finish applies or drops the outcome of the fetch t.
func (e *Engine) finish(ctx context.Context, t ticket, op string, items []models.BudgetItem, err error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	current := t.epoch == e.epoch
	if current {
		e.pending--
	}
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to load budget items", "op", op, "user_id", e.userID, "error", err)
		if current && e.pending == 0 {
			e.settle()
		}
		return fmt.Errorf("%s budget items: %w", op, err)
	}

	if !current || t.seq < e.applied {
		e.logger.DebugContext(ctx, "Discarding stale budget items response",
			"op", op,
			"seq", t.seq,
			"stale_epoch", !current,
		)
		if current && e.pending == 0 {
			e.settle()
		}
		return nil
	}

	e.items = slices.Clone(items)
	e.applied = t.seq
	e.loaded = true
	if e.pending == 0 || t.seq == e.issued {
		e.state = Ready
	}
	return nil
}

// settle leaves Loading once no fetch is outstanding.
func (e *Engine) settle() {
	if e.loaded {
		e.state = Ready
	} else {
		e.state = Uninitialized
	}
}

// reset empties the collection and starts a new epoch keyed to userID.
func (e *Engine) reset(userID string) {
	e.items = nil
	e.state = Uninitialized
	e.userID = userID
	e.loaded = false
	e.epoch++
	e.applied = 0
	e.pending = 0
}
