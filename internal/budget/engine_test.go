package budget

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kale254/final/internal/models"
	"github.com/Kale254/final/pkg/logging"
)

// fakeStore is an in-memory record store that counts calls. listByUser and
// listAll, when set, replace the default behaviour.
type fakeStore struct {
	mu      sync.Mutex
	records []models.BudgetItem
	calls   map[string]int

	listByUser func(ctx context.Context, userID string) ([]models.BudgetItem, error)
	listAll    func(ctx context.Context) ([]models.BudgetItem, error)
	createErr  error
	deleteErr  error
}

func newFakeStore(records ...models.BudgetItem) *fakeStore {
	return &fakeStore{records: records, calls: map[string]int{}}
}

func (f *fakeStore) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeStore) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeStore) ListByUser(ctx context.Context, userID string) ([]models.BudgetItem, error) {
	f.mu.Lock()
	f.calls["listByUser"]++
	override := f.listByUser
	var out []models.BudgetItem
	for _, r := range f.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	f.mu.Unlock()

	if override != nil {
		return override(ctx, userID)
	}
	return out, nil
}

func (f *fakeStore) ListAll(ctx context.Context) ([]models.BudgetItem, error) {
	f.mu.Lock()
	f.calls["listAll"]++
	override := f.listAll
	out := append([]models.BudgetItem(nil), f.records...)
	f.mu.Unlock()

	if override != nil {
		return override(ctx)
	}
	return out, nil
}

func (f *fakeStore) Create(_ context.Context, scope string, item models.BudgetItem) (models.BudgetItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["create"]++
	if f.createErr != nil {
		return models.BudgetItem{}, f.createErr
	}
	if item.UserID == "" {
		item.UserID = scope
	}
	f.records = append(f.records, item)
	return item, nil
}

func (f *fakeStore) DeleteByID(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["delete"]++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	kept := f.records[:0]
	for _, r := range f.records {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	f.records = kept
	return nil
}

type fakeSession struct {
	mu   sync.Mutex
	user *models.User
}

func (s *fakeSession) CurrentUser() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *fakeSession) set(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		s.user = nil
		return
	}
	s.user = &models.User{ID: id}
}

var fixedNow = time.UnixMilli(1700000000000)

func newTestEngine(store Store, opts ...Option) *Engine {
	base := []Option{
		WithLogger(logging.Discard()),
		WithClock(func() time.Time { return fixedNow }),
	}
	return New(store, &fakeSession{}, append(base, opts...)...)
}

func readyEngine(t *testing.T, store *fakeStore, userID string, opts ...Option) *Engine {
	t.Helper()
	e := newTestEngine(store, opts...)
	require.NoError(t, e.Refresh(context.Background(), userID))
	require.Equal(t, Ready, e.State())
	return e
}

func TestAddThenRefreshScenario(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	e := readyEngine(t, store, "u1")

	created, err := e.AddItem(ctx, "Rent", 1200, "u1")
	require.NoError(t, err)
	assert.Equal(t, "1700000000000", created.ID)

	require.NoError(t, e.Refresh(ctx, "u1"))

	items := e.Items("u1")
	require.Len(t, items, 1)
	assert.Equal(t, models.BudgetItem{ID: "1700000000000", Item: "Rent", Budget: 1200, UserID: "u1"}, items[0])
	assert.Equal(t, 1200.0, e.TotalFor("u1"))
	assert.Equal(t, 1, store.count("create"))
}

func TestAddItemResyncStrategies(t *testing.T) {
	ctx := context.Background()

	t.Run("all re-reads the unscoped collection", func(t *testing.T) {
		store := newFakeStore(models.BudgetItem{ID: "9", Item: "Gym", Budget: 30, UserID: "u2"})
		e := readyEngine(t, store, "u1")

		_, err := e.AddItem(ctx, "Rent", 1200, "u1")
		require.NoError(t, err)

		assert.Equal(t, 1, store.count("listAll"))
		assert.Equal(t, 1, store.count("listByUser"))
		assert.Equal(t, Ready, e.State())
		assert.Len(t, e.Items("u1"), 1)
		assert.Equal(t, 30.0, e.TotalFor("u2"), "unscoped resync holds other owners' items")
	})

	t.Run("user re-reads the scoped path", func(t *testing.T) {
		store := newFakeStore(models.BudgetItem{ID: "9", Item: "Gym", Budget: 30, UserID: "u2"})
		e := readyEngine(t, store, "u1", WithResync(ResyncUser))

		_, err := e.AddItem(ctx, "Rent", 1200, "u1")
		require.NoError(t, err)

		assert.Equal(t, 0, store.count("listAll"))
		assert.Equal(t, 2, store.count("listByUser"))
		assert.Len(t, e.Items("u1"), 1)
		assert.Zero(t, e.TotalFor("u2"))
	})
}

func TestAddItemValidation(t *testing.T) {
	tests := []struct {
		name   string
		label  string
		amount float64
	}{
		{"empty label", "", 10},
		{"blank label", "   \t", 10},
		{"zero amount", "Rent", 0},
		{"negative amount", "Rent", -5},
		{"NaN amount", "Rent", math.NaN()},
		{"infinite amount", "Rent", math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			e := readyEngine(t, store, "u1")
			before := store.total()

			_, err := e.AddItem(context.Background(), tt.label, tt.amount, "u1")

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, InvalidInputMessage, ve.Message)
			assert.Equal(t, before, store.total(), "validation must not reach the store")
		})
	}
}

func TestMutationsRequireReady(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	e := newTestEngine(store)

	_, err := e.AddItem(ctx, "Rent", 10, "u1")
	assert.ErrorIs(t, err, ErrNotReady)
	assert.ErrorIs(t, e.RemoveItem(ctx, "1"), ErrNotReady)
	assert.Zero(t, store.total())
}

func TestTotalsScenario(t *testing.T) {
	store := newFakeStore(
		models.BudgetItem{ID: "1", Item: "Rent", Budget: 50, UserID: "u1"},
		models.BudgetItem{ID: "2", Item: "Food", Budget: 75, UserID: "u2"},
	)
	store.listByUser = func(ctx context.Context, _ string) ([]models.BudgetItem, error) {
		return store.ListAll(ctx)
	}
	e := readyEngine(t, store, "u1")

	assert.Equal(t, 50.0, e.TotalFor("u1"))
	assert.Equal(t, 75.0, e.TotalFor("u2"))
	assert.Zero(t, e.TotalFor("u3"))
	assert.Equal(t, []models.BudgetItem{{ID: "1", Item: "Rent", Budget: 50, UserID: "u1"}}, e.Items("u1"))

	t.Run("remove present id", func(t *testing.T) {
		require.NoError(t, e.RemoveItem(context.Background(), "1"))
		assert.Equal(t, 1, store.count("delete"))
		assert.Empty(t, e.Items("u1"))
		assert.Zero(t, e.TotalFor("u1"))
		assert.Equal(t, []models.BudgetItem{{ID: "2", Item: "Food", Budget: 75, UserID: "u2"}}, e.Items("u2"))
	})

	t.Run("remove absent id", func(t *testing.T) {
		require.NoError(t, e.RemoveItem(context.Background(), "404"))
		assert.Equal(t, 2, store.count("delete"))
		assert.Len(t, e.Items("u2"), 1)
	})

	t.Run("clear", func(t *testing.T) {
		e.Clear()
		assert.Zero(t, e.TotalFor("u1"))
		assert.Zero(t, e.TotalFor("u2"))
		assert.Equal(t, Uninitialized, e.State())
		assert.Empty(t, e.UserID())
	})
}

func TestTotalOfEmptyEngine(t *testing.T) {
	e := newTestEngine(newFakeStore())
	assert.Zero(t, e.TotalFor("u1"))
	assert.NotNil(t, e.Items("u1"))
}

func TestStoreFailuresKeepState(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection refused")

	var logs bytes.Buffer
	store := newFakeStore(models.BudgetItem{ID: "1", Item: "Rent", Budget: 50, UserID: "u1"})
	e := readyEngine(t, store, "u1", WithLogger(logging.New(logging.Options{Format: "json", Writer: &logs})))

	t.Run("refresh", func(t *testing.T) {
		store.listByUser = func(context.Context, string) ([]models.BudgetItem, error) { return nil, boom }
		defer func() { store.listByUser = nil }()

		err := e.Refresh(ctx, "u1")
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, Ready, e.State())
		assert.Len(t, e.Items("u1"), 1)
		assert.Contains(t, logs.String(), "Failed to load budget items")
	})

	t.Run("add", func(t *testing.T) {
		store.createErr = boom
		defer func() { store.createErr = nil }()

		_, err := e.AddItem(ctx, "Food", 20, "u1")
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, store.count("listAll"))
		assert.Len(t, e.Items("u1"), 1)
		assert.Contains(t, logs.String(), "Failed to add budget item")
	})

	t.Run("remove", func(t *testing.T) {
		store.deleteErr = boom
		defer func() { store.deleteErr = nil }()

		err := e.RemoveItem(ctx, "1")
		assert.ErrorIs(t, err, boom)
		assert.Len(t, e.Items("u1"), 1)
		assert.Contains(t, logs.String(), "Failed to remove budget item")
	})

	t.Run("first refresh failing stays uninitialized", func(t *testing.T) {
		fresh := newFakeStore()
		fresh.listByUser = func(context.Context, string) ([]models.BudgetItem, error) { return nil, boom }
		e := newTestEngine(fresh)

		assert.Error(t, e.Refresh(ctx, "u1"))
		assert.Equal(t, Uninitialized, e.State())
	})
}

// gate blocks a fetch until release is called with the response it should return.
type gate struct {
	entered chan struct{}
	respond chan []models.BudgetItem
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}, 1), respond: make(chan []models.BudgetItem)}
}

func (g *gate) fetch(ctx context.Context, _ string) ([]models.BudgetItem, error) {
	g.entered <- struct{}{}
	return <-g.respond, nil
}

func TestStaleResponseAfterClearIsDiscarded(t *testing.T) {
	ctx := context.Background()
	g := newGate()
	store := newFakeStore()
	store.listByUser = g.fetch
	e := newTestEngine(store)

	done := make(chan error)
	go func() { done <- e.Refresh(ctx, "u1") }()

	<-g.entered
	assert.Equal(t, Loading, e.State())
	e.Clear()

	g.respond <- []models.BudgetItem{{ID: "1", Item: "Rent", Budget: 50, UserID: "u1"}}
	require.NoError(t, <-done)

	assert.Empty(t, e.Items("u1"))
	assert.Zero(t, e.TotalFor("u1"))
	assert.Equal(t, Uninitialized, e.State())
}

func TestOlderRefreshDoesNotOverwriteNewer(t *testing.T) {
	ctx := context.Background()
	g := newGate()
	store := newFakeStore()
	e := newTestEngine(store)

	store.listByUser = g.fetch
	done := make(chan error)
	go func() { done <- e.Refresh(ctx, "u1") }()
	<-g.entered

	newer := []models.BudgetItem{{ID: "2", Item: "Food", Budget: 75, UserID: "u1"}}
	store.mu.Lock()
	store.listByUser = func(context.Context, string) ([]models.BudgetItem, error) { return newer, nil }
	store.mu.Unlock()
	require.NoError(t, e.Refresh(ctx, "u1"))
	assert.Equal(t, Ready, e.State())

	g.respond <- []models.BudgetItem{{ID: "1", Item: "Rent", Budget: 50, UserID: "u1"}}
	require.NoError(t, <-done)

	assert.Equal(t, newer, e.Items("u1"))
	assert.Equal(t, Ready, e.State())
}

func TestNewestRefreshFailsThenOlderSucceeds(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("timeout")
	g := newGate()
	store := newFakeStore()
	e := newTestEngine(store)

	store.listByUser = g.fetch
	done := make(chan error)
	go func() { done <- e.Refresh(ctx, "u1") }()
	<-g.entered

	store.mu.Lock()
	store.listByUser = func(context.Context, string) ([]models.BudgetItem, error) { return nil, boom }
	store.mu.Unlock()
	assert.ErrorIs(t, e.Refresh(ctx, "u1"), boom)
	assert.Equal(t, Loading, e.State(), "an older fetch is still outstanding")

	g.respond <- []models.BudgetItem{{ID: "1", Item: "Rent", Budget: 50, UserID: "u1"}}
	require.NoError(t, <-done)

	assert.Equal(t, Ready, e.State())
	assert.Equal(t, 50.0, e.TotalFor("u1"))

	_, err := e.AddItem(ctx, "Food", 10, "u1")
	require.NoError(t, err)
	assert.Equal(t, Ready, e.State())
}

func TestOverlappingRefreshesBothFail(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("timeout")
	entered := make(chan struct{})
	release := make(chan struct{})
	store := newFakeStore()
	store.listByUser = func(context.Context, string) ([]models.BudgetItem, error) {
		close(entered)
		<-release
		return nil, boom
	}
	e := newTestEngine(store)

	done := make(chan error)
	go func() { done <- e.Refresh(ctx, "u1") }()
	<-entered

	store.mu.Lock()
	store.listByUser = func(context.Context, string) ([]models.BudgetItem, error) { return nil, boom }
	store.mu.Unlock()
	assert.Error(t, e.Refresh(ctx, "u1"))
	assert.Equal(t, Loading, e.State())

	close(release)
	assert.ErrorIs(t, <-done, boom)
	assert.Equal(t, Uninitialized, e.State())
}

// hookedCreator runs during inside Create, before the record is stored.
type hookedCreator struct {
	*fakeStore
	during func()
}

func (h *hookedCreator) Create(ctx context.Context, scope string, item models.BudgetItem) (models.BudgetItem, error) {
	h.during()
	return h.fakeStore.Create(ctx, scope, item)
}

func TestClearDuringAddSkipsResync(t *testing.T) {
	for _, r := range []Resync{ResyncAll, ResyncUser} {
		t.Run(r.String(), func(t *testing.T) {
			ctx := context.Background()
			store := newFakeStore(models.BudgetItem{ID: "1", Item: "Rent", Budget: 50, UserID: "u1"})
			e := readyEngine(t, store, "u1", WithResync(r))
			e.store = &hookedCreator{fakeStore: store, during: e.Clear}

			_, err := e.AddItem(ctx, "Food", 10, "u1")
			require.NoError(t, err)

			assert.Equal(t, Uninitialized, e.State())
			assert.Empty(t, e.UserID())
			assert.Zero(t, e.TotalFor("u1"))
			assert.Equal(t, 1, store.count("create"))
			assert.Equal(t, 0, store.count("listAll"))
			assert.Equal(t, 1, store.count("listByUser"))
		})
	}
}

func TestUserChangeDuringAddKeepsNewCollection(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(
		models.BudgetItem{ID: "1", Item: "Rent", Budget: 50, UserID: "u1"},
		models.BudgetItem{ID: "2", Item: "Food", Budget: 75, UserID: "u2"},
	)
	e := readyEngine(t, store, "u1")
	e.store = &hookedCreator{fakeStore: store, during: func() {
		e.Clear()
		require.NoError(t, e.Refresh(ctx, "u2"))
	}}

	_, err := e.AddItem(ctx, "Gym", 30, "u1")
	require.NoError(t, err)

	assert.Equal(t, "u2", e.UserID())
	assert.Equal(t, Ready, e.State())
	assert.Zero(t, e.TotalFor("u1"))
	assert.Equal(t, 75.0, e.TotalFor("u2"))
	assert.Equal(t, 0, store.count("listAll"))
}

func TestClearDuringResyncDiscardsResponse(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(models.BudgetItem{ID: "1", Item: "Rent", Budget: 50, UserID: "u1"})
	e := readyEngine(t, store, "u1")
	store.listAll = func(context.Context) ([]models.BudgetItem, error) {
		e.Clear()
		return []models.BudgetItem{{ID: "1", Item: "Rent", Budget: 50, UserID: "u1"}}, nil
	}

	_, err := e.AddItem(ctx, "Food", 10, "u1")
	require.NoError(t, err)

	assert.Equal(t, 1, store.count("listAll"))
	assert.Equal(t, Uninitialized, e.State())
	assert.Zero(t, e.TotalFor("u1"))
}

func TestAddRejectedWhileLoading(t *testing.T) {
	ctx := context.Background()
	g := newGate()
	store := newFakeStore()
	e := readyEngine(t, store, "u1")

	store.mu.Lock()
	store.listByUser = g.fetch
	store.mu.Unlock()

	done := make(chan error)
	go func() { done <- e.Refresh(ctx, "u1") }()
	<-g.entered

	_, err := e.AddItem(ctx, "Rent", 10, "u1")
	assert.ErrorIs(t, err, ErrNotReady)

	g.respond <- nil
	require.NoError(t, <-done)
	assert.Equal(t, Ready, e.State())
}

func TestDeleteAfterClearLeavesNewCollection(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(
		models.BudgetItem{ID: "1", Item: "Rent", Budget: 50, UserID: "u1"},
		models.BudgetItem{ID: "1", Item: "Rent", Budget: 50, UserID: "u2"},
	)
	e := readyEngine(t, store, "u1")

	release := make(chan struct{})
	entered := make(chan struct{})
	blocking := &blockingDeleter{fakeStore: store, entered: entered, release: release}
	e.store = blocking

	done := make(chan error)
	go func() { done <- e.RemoveItem(ctx, "1") }()
	<-entered

	e.Clear()
	require.NoError(t, e.Refresh(ctx, "u2"))
	close(release)
	require.NoError(t, <-done)

	assert.Len(t, e.Items("u2"), 1, "delete issued before the reset must not touch the new collection")
}

type blockingDeleter struct {
	*fakeStore
	entered chan struct{}
	release chan struct{}
}

func (b *blockingDeleter) DeleteByID(ctx context.Context, id string) error {
	close(b.entered)
	<-b.release
	return nil
}

func TestSyncFollowsSession(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(
		models.BudgetItem{ID: "1", Item: "Rent", Budget: 50, UserID: "u1"},
		models.BudgetItem{ID: "2", Item: "Food", Budget: 75, UserID: "u2"},
	)
	session := &fakeSession{}
	e := New(store, session, WithLogger(logging.Discard()))

	require.NoError(t, e.Sync(ctx))
	assert.Zero(t, store.count("listByUser"), "no user, no fetch")

	session.set("u1")
	require.NoError(t, e.Sync(ctx))
	assert.Equal(t, "u1", e.UserID())
	assert.Equal(t, 50.0, e.TotalFor("u1"))

	require.NoError(t, e.Sync(ctx))
	assert.Equal(t, 1, store.count("listByUser"), "same user does not refetch")

	session.set("u2")
	require.NoError(t, e.Sync(ctx))
	assert.Equal(t, "u2", e.UserID())
	assert.Empty(t, e.Items("u1"))
	assert.Equal(t, 75.0, e.TotalFor("u2"))

	session.set("")
	require.NoError(t, e.Sync(ctx))
	assert.Equal(t, Uninitialized, e.State())
	assert.Zero(t, e.TotalFor("u2"))
	assert.Equal(t, 2, store.count("listByUser"))
}

func TestEnginesAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(
		models.BudgetItem{ID: "1", Item: "Rent", Budget: 50, UserID: "u1"},
		models.BudgetItem{ID: "2", Item: "Food", Budget: 75, UserID: "u2"},
	)
	a := readyEngine(t, store, "u1")
	b := readyEngine(t, store, "u2")

	a.Clear()
	assert.Zero(t, a.TotalFor("u1"))
	assert.Equal(t, 75.0, b.TotalFor("u2"))
	require.NoError(t, b.RemoveItem(ctx, "2"))
	assert.Equal(t, Uninitialized, a.State())
}

func TestParseResync(t *testing.T) {
	for in, want := range map[string]Resync{"": ResyncAll, "all": ResyncAll, "user": ResyncUser} {
		got, err := ParseResync(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseResync("sometimes")
	assert.Error(t, err)
}

func TestDefaultLoggerIsUsable(t *testing.T) {
	e := New(newFakeStore(), &fakeSession{})
	assert.Equal(t, slog.Default(), e.logger)
	assert.Equal(t, Uninitialized, e.State())
	assert.Equal(t, "uninitialized", e.State().String())
}
