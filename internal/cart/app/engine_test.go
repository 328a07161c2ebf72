package app

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dwikikusuma/storefront/internal/cart/domain"
)

type fakeStore struct {
	mu   sync.Mutex
	docs map[string]domain.Snapshot
	puts int

	getErr error
	putErr error

	// hooks run outside the lock, before the store touches its documents
	beforeGet func(userID string)
	beforePut func(userID string)
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: make(map[string]domain.Snapshot)}
}

func (s *fakeStore) Get(ctx context.Context, userID string) (domain.Snapshot, error) {
	if s.beforeGet != nil {
		s.beforeGet(userID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	snap, ok := s.docs[userID]
	if !ok {
		return nil, ErrCartNotFound
	}
	return snap.Clone(), nil
}

func (s *fakeStore) Put(ctx context.Context, userID string, snap domain.Snapshot) error {
	if s.beforePut != nil {
		s.beforePut(userID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.docs[userID] = snap.Clone()
	s.puts++
	return nil
}

func (s *fakeStore) seed(userID string, snap domain.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[userID] = snap.Clone()
}

func (s *fakeStore) doc(userID string) (domain.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.docs[userID]
	return snap.Clone(), ok
}

func (s *fakeStore) setPutErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putErr = err
}

func (s *fakeStore) putCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T) (*Engine, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	return NewEngine(store, testLogger()), store
}

func product(id string, price float64) domain.Product {
	return domain.Product{ID: id, Title: "product " + id, UnitPrice: decimal.NewFromFloat(price)}
}

func signIn(t *testing.T, e *Engine, userID string) {
	t.Helper()
	if err := e.Load(context.Background(), userID); err != nil {
		t.Fatalf("Load(%s) failed: %v", userID, err)
	}
}

// assertInvariant checks that the aggregate count always re-derives from
// the lines.
func assertInvariant(t *testing.T, e *Engine) {
	t.Helper()
	lines := e.Lines()
	want := 0
	for _, l := range lines {
		want += int(l.Quantity)
	}
	if got := e.ItemCount(); got != want {
		t.Fatalf("ItemCount = %d, want %d (sum of quantities)", got, want)
	}
}

func TestAddItemNewLine(t *testing.T) {
	e, store := newTestEngine(t)
	signIn(t, e, "user-1")

	if err := e.AddItem(product("p1", 10)); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}

	lines := e.Lines()
	if len(lines) != 1 || lines[0].ProductID != "p1" || lines[0].Quantity != 1 {
		t.Fatalf("unexpected lines: %+v", lines)
	}
	if e.ItemCount() != 1 {
		t.Fatalf("ItemCount = %d, want 1", e.ItemCount())
	}
	assertInvariant(t, e)

	e.waitIdle()
	doc, ok := store.doc("user-1")
	if !ok || !doc.Equal(lines) {
		t.Fatalf("persisted doc = %+v, want %+v", doc, lines)
	}
}

func TestAddItemExistingLineBumpsQuantity(t *testing.T) {
	e, store := newTestEngine(t)
	store.seed("user-1", domain.Snapshot{
		{ProductID: "p1", UnitPrice: decimal.NewFromInt(10), Quantity: 2},
	})
	signIn(t, e, "user-1")

	if err := e.AddItem(product("p1", 10)); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}

	lines := e.Lines()
	if len(lines) != 1 {
		t.Fatalf("expected a single line, got %d", len(lines))
	}
	if lines[0].Quantity != 3 {
		t.Fatalf("quantity = %d, want 3", lines[0].Quantity)
	}
	if e.ItemCount() != 3 {
		t.Fatalf("ItemCount = %d, want 3", e.ItemCount())
	}
	assertInvariant(t, e)
}

func TestIncrementLine(t *testing.T) {
	e, _ := newTestEngine(t)
	signIn(t, e, "user-1")

	if err := e.AddItem(product("p1", 10)); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	if err := e.IncrementLine("p1"); err != nil {
		t.Fatalf("IncrementLine failed: %v", err)
	}
	if got := e.Lines()[0].Quantity; got != 2 {
		t.Fatalf("quantity = %d, want 2", got)
	}

	if err := e.IncrementLine("nope"); err != ErrLineNotFound {
		t.Fatalf("expected ErrLineNotFound, got %v", err)
	}
	assertInvariant(t, e)
}

func TestDecrementFloorsAtOne(t *testing.T) {
	e, _ := newTestEngine(t)
	signIn(t, e, "user-1")

	if err := e.AddItem(product("p1", 10)); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}

	// quantity is 1: decrementing must not drop the line or go below 1
	if err := e.DecrementLine("p1"); err != nil {
		t.Fatalf("DecrementLine failed: %v", err)
	}
	lines := e.Lines()
	if len(lines) != 1 || lines[0].Quantity != 1 {
		t.Fatalf("floor violated: %+v", lines)
	}
	if e.ItemCount() != 1 {
		t.Fatalf("ItemCount = %d, want 1", e.ItemCount())
	}

	if err := e.IncrementLine("p1"); err != nil {
		t.Fatalf("IncrementLine failed: %v", err)
	}
	if err := e.DecrementLine("p1"); err != nil {
		t.Fatalf("DecrementLine failed: %v", err)
	}
	if got := e.Lines()[0].Quantity; got != 1 {
		t.Fatalf("quantity = %d, want 1", got)
	}

	if err := e.DecrementLine("nope"); err != ErrLineNotFound {
		t.Fatalf("expected ErrLineNotFound, got %v", err)
	}
	assertInvariant(t, e)
}

func TestRemoveLineDeletesRegardlessOfQuantity(t *testing.T) {
	e, _ := newTestEngine(t)
	signIn(t, e, "user-1")

	if err := e.AddItem(product("p1", 10)); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	if err := e.IncrementLine("p1"); err != nil {
		t.Fatalf("IncrementLine failed: %v", err)
	}
	if err := e.AddItem(product("p2", 5)); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}

	if err := e.RemoveLine("p1"); err != nil {
		t.Fatalf("RemoveLine failed: %v", err)
	}
	lines := e.Lines()
	if len(lines) != 1 || lines[0].ProductID != "p2" {
		t.Fatalf("unexpected lines after remove: %+v", lines)
	}
	if err := e.RemoveLine("p1"); err != ErrLineNotFound {
		t.Fatalf("expected ErrLineNotFound, got %v", err)
	}
	assertInvariant(t, e)
}

func TestAddThenRemoveRoundTrip(t *testing.T) {
	e, _ := newTestEngine(t)
	signIn(t, e, "user-1")

	if err := e.AddItem(product("p1", 10)); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	before := e.Lines()
	beforeCount := e.ItemCount()

	if err := e.AddItem(product("p2", 5)); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	if err := e.RemoveLine("p2"); err != nil {
		t.Fatalf("RemoveLine failed: %v", err)
	}

	if !e.Lines().Equal(before) {
		t.Fatalf("lines = %+v, want %+v", e.Lines(), before)
	}
	if e.ItemCount() != beforeCount {
		t.Fatalf("ItemCount = %d, want %d", e.ItemCount(), beforeCount)
	}
}

func TestDerivedCountInvariantAcrossMutations(t *testing.T) {
	e, _ := newTestEngine(t)
	signIn(t, e, "user-1")

	steps := []func() error{
		func() error { return e.AddItem(product("p1", 10)) },
		func() error { return e.AddItem(product("p2", 3)) },
		func() error { return e.AddItem(product("p1", 10)) },
		func() error { return e.IncrementLine("p2") },
		func() error { return e.DecrementLine("p1") },
		func() error { return e.DecrementLine("p2") },
		func() error { return e.RemoveLine("p1") },
		func() error { return e.AddItem(product("p3", 7)) },
		func() error { return e.Clear() },
		func() error { return e.AddItem(product("p1", 10)) },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d failed: %v", i, err)
		}
		assertInvariant(t, e)
	}
}

func TestMutationsRequireIdentity(t *testing.T) {
	e, store := newTestEngine(t)

	if err := e.AddItem(product("p1", 10)); err != ErrUnauthenticated {
		t.Fatalf("AddItem: expected ErrUnauthenticated, got %v", err)
	}
	if err := e.IncrementLine("p1"); err != ErrUnauthenticated {
		t.Fatalf("IncrementLine: expected ErrUnauthenticated, got %v", err)
	}
	if err := e.Clear(); err != ErrUnauthenticated {
		t.Fatalf("Clear: expected ErrUnauthenticated, got %v", err)
	}
	if err := e.Resync(context.Background()); err != ErrUnauthenticated {
		t.Fatalf("Resync: expected ErrUnauthenticated, got %v", err)
	}
	if err := e.Load(context.Background(), Anonymous); err != ErrUnauthenticated {
		t.Fatalf("Load: expected ErrUnauthenticated, got %v", err)
	}

	if len(e.Lines()) != 0 || e.ItemCount() != 0 {
		t.Fatal("failed operations must not touch state")
	}
	if store.putCount() != 0 {
		t.Fatal("failed operations must not schedule writes")
	}
}

func TestLoadIsIdempotent(t *testing.T) {
	e, store := newTestEngine(t)
	store.seed("user-1", domain.Snapshot{
		{ProductID: "p1", UnitPrice: decimal.NewFromInt(10), Quantity: 2},
		{ProductID: "p2", UnitPrice: decimal.NewFromInt(4), Quantity: 1},
	})

	signIn(t, e, "user-1")
	first := e.Lines()
	firstCount := e.ItemCount()

	signIn(t, e, "user-1")
	if !e.Lines().Equal(first) {
		t.Fatalf("second load diverged: %+v vs %+v", e.Lines(), first)
	}
	if e.ItemCount() != firstCount {
		t.Fatalf("ItemCount = %d, want %d", e.ItemCount(), firstCount)
	}
	if e.Status() != domain.SyncIdle {
		t.Fatalf("status = %s, want idle", e.Status())
	}
}

func TestLoadAbsentDocumentIsEmptyCart(t *testing.T) {
	e, _ := newTestEngine(t)
	signIn(t, e, "user-1")

	if len(e.Lines()) != 0 {
		t.Fatalf("expected empty cart, got %+v", e.Lines())
	}
	if e.Status() != domain.SyncIdle || e.LastError() != nil {
		t.Fatalf("absent document is not a failure: status=%s err=%v", e.Status(), e.LastError())
	}
}

func TestLoadFailureFallsBackToEmpty(t *testing.T) {
	e, store := newTestEngine(t)
	store.getErr = context.DeadlineExceeded

	// a degraded read never surfaces as a Load error
	if err := e.Load(context.Background(), "user-1"); err != nil {
		t.Fatalf("Load returned %v, want nil", err)
	}
	if len(e.Lines()) != 0 {
		t.Fatalf("expected empty fallback, got %+v", e.Lines())
	}
	if e.Status() != domain.SyncFailed || e.LastError() == nil {
		t.Fatalf("load failure must be observable: status=%s err=%v", e.Status(), e.LastError())
	}
}

func TestIdentitySwitchMidFlight(t *testing.T) {
	e, store := newTestEngine(t)
	snapA := domain.Snapshot{{ProductID: "p1", UnitPrice: decimal.NewFromInt(10), Quantity: 2}}
	snapB := domain.Snapshot{{ProductID: "p2", UnitPrice: decimal.NewFromInt(5), Quantity: 1}}
	store.seed("userA", snapA)
	store.seed("userB", snapB)

	startedA := make(chan struct{})
	releaseA := make(chan struct{})
	store.beforeGet = func(userID string) {
		if userID == "userA" {
			close(startedA)
			<-releaseA
		}
	}

	doneA := make(chan struct{})
	go func() {
		defer close(doneA)
		_ = e.Load(context.Background(), "userA")
	}()

	// userB is requested after userA but settles first
	<-startedA
	signIn(t, e, "userB")
	close(releaseA)
	<-doneA

	if e.CurrentUser() != "userB" {
		t.Fatalf("current user = %q, want userB", e.CurrentUser())
	}
	if !e.Lines().Equal(snapB) {
		t.Fatalf("final state = %+v, want userB snapshot %+v", e.Lines(), snapB)
	}
}

func TestSupersededWritesAreDropped(t *testing.T) {
	e, store := newTestEngine(t)
	signIn(t, e, "user-1")

	putStarted := make(chan struct{}, 1)
	releasePut := make(chan struct{})
	var gateOnce sync.Once
	store.beforePut = func(string) {
		gateOnce.Do(func() {
			putStarted <- struct{}{}
			<-releasePut
		})
	}

	// S1 goes in flight and blocks
	if err := e.AddItem(product("p1", 10)); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	<-putStarted

	// S2 and S3 arrive while S1's write is stuck; only S3 may be written next
	if err := e.AddItem(product("p2", 5)); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	if err := e.AddItem(product("p3", 2)); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}

	close(releasePut)
	e.waitIdle()

	doc, ok := store.doc("user-1")
	if !ok {
		t.Fatal("no document persisted")
	}
	if !doc.Equal(e.Lines()) {
		t.Fatalf("persisted doc = %+v, want latest local state %+v", doc, e.Lines())
	}
	// the S2 snapshot was superseded before it could be issued
	if got := store.putCount(); got != 2 {
		t.Fatalf("puts = %d, want 2 (S1 plus the coalesced latest)", got)
	}
}

func TestSyncFailureKeepsOptimisticState(t *testing.T) {
	e, store := newTestEngine(t)
	signIn(t, e, "user-1")
	store.setPutErr(context.DeadlineExceeded)

	if err := e.AddItem(product("p1", 10)); err != nil {
		t.Fatalf("AddItem must not fail on degraded persistence: %v", err)
	}
	e.waitIdle()

	if e.Status() != domain.SyncFailed || e.LastError() == nil {
		t.Fatalf("sync failure must be observable: status=%s err=%v", e.Status(), e.LastError())
	}
	if len(e.Lines()) != 1 {
		t.Fatal("local mutation must not be rolled back")
	}
	if _, ok := store.doc("user-1"); ok {
		t.Fatal("store must not hold a document after a failed put")
	}

	// the next successful mutation's write is the recovery path
	store.setPutErr(nil)
	if err := e.IncrementLine("p1"); err != nil {
		t.Fatalf("IncrementLine failed: %v", err)
	}
	e.waitIdle()

	if e.Status() != domain.SyncIdle || e.LastError() != nil {
		t.Fatalf("recovery not reflected: status=%s err=%v", e.Status(), e.LastError())
	}
	doc, ok := store.doc("user-1")
	if !ok || !doc.Equal(e.Lines()) {
		t.Fatalf("persisted doc = %+v, want %+v", doc, e.Lines())
	}
}

func TestResyncIsExplicitRecovery(t *testing.T) {
	e, store := newTestEngine(t)
	signIn(t, e, "user-1")
	store.setPutErr(context.DeadlineExceeded)

	if err := e.AddItem(product("p1", 10)); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	e.waitIdle()

	t.Run("still failing -> returns error", func(t *testing.T) {
		if err := e.Resync(context.Background()); err == nil {
			t.Fatal("expected Resync to report the write failure")
		}
	})

	t.Run("store recovered -> persists current state", func(t *testing.T) {
		store.setPutErr(nil)
		if err := e.Resync(context.Background()); err != nil {
			t.Fatalf("Resync failed: %v", err)
		}
		doc, ok := store.doc("user-1")
		if !ok || !doc.Equal(e.Lines()) {
			t.Fatalf("persisted doc = %+v, want %+v", doc, e.Lines())
		}
		if e.Status() != domain.SyncIdle {
			t.Fatalf("status = %s, want idle", e.Status())
		}
	})
}

func TestClearEmptiesAndSyncs(t *testing.T) {
	e, store := newTestEngine(t)
	signIn(t, e, "user-1")

	if err := e.AddItem(product("p1", 10)); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	if err := e.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if len(e.Lines()) != 0 || e.ItemCount() != 0 {
		t.Fatalf("cart not empty: %+v", e.Lines())
	}

	e.waitIdle()
	doc, ok := store.doc("user-1")
	if !ok || len(doc) != 0 {
		t.Fatalf("persisted doc = %+v, want empty", doc)
	}
}

func TestResetOnSignOutSkipsSync(t *testing.T) {
	e, store := newTestEngine(t)
	signIn(t, e, "user-1")
	if err := e.AddItem(product("p1", 10)); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	e.waitIdle()
	persisted, _ := store.doc("user-1")
	puts := store.putCount()

	e.Reset()

	if e.CurrentUser() != Anonymous || len(e.Lines()) != 0 {
		t.Fatal("reset must leave an anonymous empty cart")
	}
	if store.putCount() != puts {
		t.Fatal("reset must not write to the store")
	}
	doc, _ := store.doc("user-1")
	if !doc.Equal(persisted) {
		t.Fatal("reset must leave the remote copy untouched")
	}
	if err := e.AddItem(product("p2", 5)); err != ErrUnauthenticated {
		t.Fatalf("expected ErrUnauthenticated after reset, got %v", err)
	}
}

func TestWatchFollowsSessionChanges(t *testing.T) {
	e, store := newTestEngine(t)
	snap := domain.Snapshot{{ProductID: "p1", UnitPrice: decimal.NewFromInt(10), Quantity: 2}}
	store.seed("user-1", snap)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessions := make(chanSessions)
	go func() { _ = e.Watch(ctx, sessions) }()

	sessions <- "user-1"
	waitFor(t, func() bool { return e.CurrentUser() == "user-1" && e.ItemCount() == 2 })

	sessions <- Anonymous
	waitFor(t, func() bool { return e.CurrentUser() == Anonymous && e.ItemCount() == 0 })
}

type chanSessions chan string

func (c chanSessions) Identities(ctx context.Context) <-chan string { return c }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
