package pos

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-pos-terminal/internal/auth"
	"github.com/ariefcatur/go-pos-terminal/internal/clock"
	"github.com/ariefcatur/go-pos-terminal/internal/money"
	"github.com/ariefcatur/go-pos-terminal/internal/sqlite"
	"github.com/ariefcatur/go-pos-terminal/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 10, 18, 9, 30, 15, 123*int(time.Millisecond), time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedSeed(items ...Item) func() []Item {
	return func() []Item {
		out := make([]Item, len(items))
		copy(out, items)
		return out
	}
}

func openEngine(t *testing.T, store storage.Store, items ...Item) *Engine {
	t.Helper()
	e, err := Open(context.Background(), store,
		WithClock(clock.NewFixed(testNow)),
		WithLogger(quietLogger()),
		WithSeed(fixedSeed(items...)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close(context.Background()) })
	return e
}

func dump(t *testing.T, store storage.Store) map[storage.Collection]string {
	t.Helper()
	out := make(map[storage.Collection]string)
	for _, c := range storage.Collections {
		b, err := store.Load(context.Background(), c)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		require.NoError(t, err)
		out[c] = string(b)
	}
	return out
}

func login(t *testing.T) auth.Session {
	t.Helper()
	sess, err := auth.NewGate("s3cret").Login("s3cret")
	require.NoError(t, err)
	return sess
}

func TestOpen_SeedsFirstRun(t *testing.T) {
	store := storage.NewMemory()
	e := openEngine(t, store, Item{ID: "i1", Name: "Soju", UnitPrice: money.FromMajor(120), Stock: 4})

	snap := e.Get()
	require.Len(t, snap.Catalog, 1)
	assert.Empty(t, snap.Cart)
	assert.Equal(t, StateActive, snap.State)

	docs := dump(t, store)
	assert.Contains(t, docs, storage.CollectionCatalog)
	assert.Equal(t, "[]", docs[storage.CollectionSales])
}

func TestEngine_OutOfStockScenario(t *testing.T) {
	ctx := context.Background()
	e := openEngine(t, storage.NewMemory(), Item{ID: "i1", Name: "Ramyun", UnitPrice: money.FromMajor(55), Stock: 3})

	for i := 0; i < 3; i++ {
		require.NoError(t, e.AddOne(ctx, "i1"))
	}
	err := e.AddOne(ctx, "i1")
	require.ErrorIs(t, err, ErrInsufficientStock)

	it, _ := e.Item("i1")
	assert.Equal(t, 0, it.Stock)
	snap := e.Get()
	require.Len(t, snap.Cart, 1)
	assert.Equal(t, 3, snap.Cart[0].Quantity)
	assert.Equal(t, money.FromMajor(165), snap.Total)
}

func TestEngine_CheckoutScenario(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	e := openEngine(t, store, Item{ID: "i1", Name: "Ramyun", Category: "Noodles", UnitPrice: money.FromMajor(55), Stock: 10})

	require.NoError(t, e.AddOne(ctx, "i1"))
	require.NoError(t, e.AddOne(ctx, "i1"))

	sale, err := e.Checkout(ctx, money.FromMajor(150))
	require.NoError(t, err)

	assert.Equal(t, money.FromMajor(110), sale.Total)
	assert.Equal(t, money.FromMajor(150), sale.CashTendered)
	assert.Equal(t, money.FromMajor(40), sale.Change)
	assert.Equal(t, "R-202510180930123-000001", sale.ID)
	assert.Equal(t, testNow, sale.Timestamp)
	require.Len(t, sale.Lines, 1)
	assert.Equal(t, SaleLine{Name: "Ramyun", Category: "Noodles", UnitPrice: money.FromMajor(55), Quantity: 2}, sale.Lines[0])

	snap := e.Get()
	assert.Empty(t, snap.Cart)
	assert.Equal(t, 1, snap.SalesCount)
	it, _ := e.Item("i1")
	assert.Equal(t, 8, it.Stock, "sold units do not return to the shelf")

	got, ok := e.Sale(sale.ID)
	require.True(t, ok)
	assert.Equal(t, sale, got)

	persisted, err := LoadSales(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, []Sale{sale}, persisted)
}

func TestEngine_CheckoutRefusals(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	e := openEngine(t, store, Item{ID: "i1", Name: "Ramyun", UnitPrice: money.FromMajor(55), Stock: 10})

	_, err := e.Checkout(ctx, money.FromMajor(100))
	assert.ErrorIs(t, err, ErrEmptyCart)

	require.NoError(t, e.AddOne(ctx, "i1"))
	require.NoError(t, e.AddOne(ctx, "i1"))
	before := dump(t, store)
	snapBefore := e.Get()

	_, err = e.Checkout(ctx, money.FromMajor(100))
	assert.ErrorIs(t, err, ErrInsufficientPayment)

	assert.Equal(t, before, dump(t, store), "refused checkout writes nothing")
	assert.Equal(t, snapBefore, e.Get())

	_, err = e.Checkout(ctx, money.FromMajor(110))
	assert.NoError(t, err, "exact cash is accepted")
}

func TestEngine_DecrementLastUnitRemovesLine(t *testing.T) {
	ctx := context.Background()
	e := openEngine(t, storage.NewMemory(), Item{ID: "i1", Name: "Ramyun", Stock: 2})

	require.NoError(t, e.AddOne(ctx, "i1"))
	require.NoError(t, e.DecrementOne(ctx, "i1"))

	assert.Empty(t, e.Get().Cart)
	it, _ := e.Item("i1")
	assert.Equal(t, 2, it.Stock)

	assert.ErrorIs(t, e.DecrementOne(ctx, "i1"), ErrLineNotFound)
	assert.ErrorIs(t, e.IncrementOne(ctx, "i1"), ErrLineNotFound)
	assert.ErrorIs(t, e.RemoveLine(ctx, "i1"), ErrLineNotFound)
}

func TestEngine_SameInstantCheckoutsGetDistinctIDs(t *testing.T) {
	ctx := context.Background()
	e := openEngine(t, storage.NewMemory(), Item{ID: "i1", Name: "Ramyun", UnitPrice: 100, Stock: 5})

	require.NoError(t, e.AddOne(ctx, "i1"))
	first, err := e.Checkout(ctx, 100)
	require.NoError(t, err)
	require.NoError(t, e.AddOne(ctx, "i1"))
	second, err := e.Checkout(ctx, 100)
	require.NoError(t, err)

	assert.Equal(t, first.Timestamp, second.Timestamp)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestEngine_StockConservation(t *testing.T) {
	ctx := context.Background()
	initial := map[string]int{"a": 3, "b": 5, "c": 1}
	e := openEngine(t, storage.NewMemory(),
		Item{ID: "a", Name: "A", UnitPrice: 150, Stock: 3},
		Item{ID: "b", Name: "B", UnitPrice: 275, Stock: 5},
		Item{ID: "c", Name: "C", UnitPrice: 990, Stock: 1},
	)
	sold := map[string]int{}
	ids := []string{"a", "b", "c", "missing"}
	rng := rand.New(rand.NewSource(7))

	for step := 0; step < 300; step++ {
		id := ids[rng.Intn(len(ids))]
		switch rng.Intn(6) {
		case 0:
			_ = e.AddOne(ctx, id)
		case 1:
			_ = e.IncrementOne(ctx, id)
		case 2:
			_ = e.DecrementOne(ctx, id)
		case 3:
			_ = e.RemoveLine(ctx, id)
		case 4:
			if rng.Intn(4) == 0 {
				_ = e.ResetCart(ctx)
			}
		case 5:
			cart := e.Get().Cart
			if _, err := e.Checkout(ctx, e.Get().Total); err == nil {
				for _, line := range cart {
					sold[line.ItemID] += line.Quantity
				}
			}
		}

		snap := e.Get()
		inCart := map[string]int{}
		for _, line := range snap.Cart {
			assert.Positive(t, line.Quantity)
			inCart[line.ItemID] += line.Quantity
		}
		for _, it := range snap.Catalog {
			assert.GreaterOrEqual(t, it.Stock, 0)
			assert.Equal(t, initial[it.ID]-sold[it.ID], it.Stock+inCart[it.ID], "item %s at step %d", it.ID, step)
		}
	}
}

func TestEngine_PersistReloadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	items := []Item{
		{ID: "a", Name: "Gimbap", Category: "Ready meals", UnitPrice: money.MustParse("89.50"), Stock: 6},
		{ID: "b", Name: "Yakult", Category: "Drinks", UnitPrice: money.FromMajor(12), Stock: 20},
	}

	e, err := Open(ctx, store, WithClock(clock.NewFixed(testNow)), WithLogger(quietLogger()), WithSeed(fixedSeed(items...)))
	require.NoError(t, err)
	require.NoError(t, e.AddOne(ctx, "a"))
	require.NoError(t, e.AddOne(ctx, "b"))
	_, err = e.Checkout(ctx, money.FromMajor(200))
	require.NoError(t, err)
	require.NoError(t, e.AddOne(ctx, "b"))
	require.NoError(t, e.IncrementOne(ctx, "b"))
	wantSnap, wantSales := e.Get(), e.Sales()
	require.NoError(t, e.Close(ctx))

	reopened := openEngine(t, store)
	assert.Equal(t, wantSnap, reopened.Get())
	assert.Equal(t, wantSales, reopened.Sales())

	require.NoError(t, reopened.RemoveLine(ctx, "b"))
	sale, err := reopened.Checkout(ctx, 0)
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Empty(t, sale.ID)

	require.NoError(t, reopened.AddOne(ctx, "a"))
	sale, err = reopened.Checkout(ctx, money.FromMajor(100))
	require.NoError(t, err)
	assert.Equal(t, "R-202510180930123-000002", sale.ID, "sequence survives restart")
}

func TestEngine_CartPersistFailureDiscardsChange(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	e := openEngine(t, store, Item{ID: "i1", Name: "Ramyun", Stock: 2})

	store.FailCommits(errors.New("disk full"))
	err := e.AddOne(ctx, "i1")
	require.Error(t, err)

	assert.Empty(t, e.Get().Cart)
	assert.Equal(t, StateActive, e.Get().State)

	store.FailCommits(nil)
	require.NoError(t, e.AddOne(ctx, "i1"))
}

func TestEngine_CheckoutPersistFailureHalts(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	e := openEngine(t, store, Item{ID: "i1", Name: "Ramyun", UnitPrice: 100, Stock: 2})
	require.NoError(t, e.AddOne(ctx, "i1"))

	store.FailCommits(errors.New("disk full"))
	_, err := e.Checkout(ctx, 100)
	require.Error(t, err)

	snap := e.Get()
	assert.Equal(t, StateHalted, snap.State)
	assert.Len(t, snap.Cart, 1, "in-memory state keeps the last committed state")
	assert.Equal(t, 0, snap.SalesCount)

	store.FailCommits(nil)
	assert.ErrorIs(t, e.AddOne(ctx, "i1"), ErrHalted)
	_, err = e.Checkout(ctx, 100)
	assert.ErrorIs(t, err, ErrHalted)
}

func TestEngine_ClosedRefusesMutations(t *testing.T) {
	ctx := context.Background()
	e := openEngine(t, storage.NewMemory(), Item{ID: "i1", Name: "Ramyun", Stock: 2})
	require.NoError(t, e.Close(ctx))
	assert.ErrorIs(t, e.AddOne(ctx, "i1"), ErrClosed)
	assert.NoError(t, e.Close(ctx))
}

func TestEngine_LeaseGuardsSecondSession(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	seed := WithSeed(fixedSeed(Item{ID: "i1", Name: "Ramyun", Stock: 2}))

	first, err := Open(ctx, store, seed, WithLogger(quietLogger()), WithLease("till-1", time.Hour))
	require.NoError(t, err)

	_, err = Open(ctx, store, seed, WithLogger(quietLogger()), WithLease("till-2", time.Hour))
	require.ErrorIs(t, err, storage.ErrLeaseHeld)

	require.NoError(t, first.Close(ctx))

	second, err := Open(ctx, store, seed, WithLogger(quietLogger()), WithLease("till-2", time.Hour))
	require.NoError(t, err)
	require.NoError(t, second.Close(ctx))
}

func TestEngine_RestoreFallbacks(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	require.NoError(t, store.Commit(ctx, map[storage.Collection][]byte{
		storage.CollectionCatalog: []byte(`[{"id":"a","name":"A","category":"","unit_price":100,"stock":4}]`),
		storage.CollectionCart: []byte(`[
			{"item_id":"a","name":"A","category":"","unit_price":100,"quantity":1},
			{"item_id":"gone","name":"Gone","category":"","unit_price":5,"quantity":2},
			{"item_id":"a","name":"A","category":"","unit_price":100,"quantity":3}
		]`),
		storage.CollectionSales: []byte(`{not json`),
	}))

	e := openEngine(t, store, Item{ID: "seed", Name: "Seeded", Stock: 1})
	snap := e.Get()
	require.Len(t, snap.Catalog, 1)
	assert.Equal(t, "a", snap.Catalog[0].ID, "valid catalog is kept")
	require.Len(t, snap.Cart, 1)
	assert.Equal(t, 1, snap.Cart[0].Quantity)
	assert.Equal(t, 0, snap.SalesCount)
}

func TestEngine_CorruptCatalogFallsBackToSeed(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	require.NoError(t, store.Commit(ctx, map[storage.Collection][]byte{
		storage.CollectionCatalog: []byte(`garbage`),
	}))

	e := openEngine(t, store, Item{ID: "seed", Name: "Seeded", Stock: 1})
	snap := e.Get()
	require.Len(t, snap.Catalog, 1)
	assert.Equal(t, "seed", snap.Catalog[0].ID)
	assert.Contains(t, dump(t, store)[storage.CollectionCatalog], `"seed"`)
}

func TestEngine_GatedOperations(t *testing.T) {
	ctx := context.Background()
	e := openEngine(t, storage.NewMemory(),
		Item{ID: "a", Name: "A", UnitPrice: 100, Stock: 5},
		Item{ID: "b", Name: "B", UnitPrice: 200, Stock: 5},
	)
	sess := login(t)

	assert.ErrorIs(t, e.UpsertItem(ctx, auth.Session{}, Item{ID: "c", Name: "C"}), ErrUnauthorized)
	assert.ErrorIs(t, e.RemoveItem(ctx, auth.Session{}, "a"), ErrUnauthorized)
	assert.ErrorIs(t, e.ResetCatalog(ctx, auth.Session{}), ErrUnauthorized)
	assert.ErrorIs(t, e.DeleteSale(ctx, auth.Session{}, "x"), ErrUnauthorized)

	require.NoError(t, e.UpsertItem(ctx, sess, Item{ID: "c", Name: "C", UnitPrice: 300, Stock: 1}))
	assert.Len(t, e.Get().Catalog, 3)
	assert.ErrorIs(t, e.UpsertItem(ctx, sess, Item{ID: "d", Name: ""}), ErrInvalidItem)

	require.NoError(t, e.AddOne(ctx, "a"))
	assert.ErrorIs(t, e.RemoveItem(ctx, sess, "a"), ErrItemInUse)
	assert.ErrorIs(t, e.ResetCatalog(ctx, sess), ErrCartNotEmpty)
	require.NoError(t, e.RemoveItem(ctx, sess, "b"))
	assert.ErrorIs(t, e.RemoveItem(ctx, sess, "b"), ErrItemNotFound)

	sale, err := e.Checkout(ctx, 100)
	require.NoError(t, err)

	assert.ErrorIs(t, e.DeleteSale(ctx, sess, "R-nope"), ErrSaleNotFound)
	require.NoError(t, e.DeleteSale(ctx, sess, sale.ID))
	assert.Empty(t, e.Sales())
	it, _ := e.Item("a")
	assert.Equal(t, 4, it.Stock, "deleting a sale does not restock")

	require.NoError(t, e.ResetCatalog(ctx, sess))
	catalog := e.Get().Catalog
	require.Len(t, catalog, 2)
	assert.Equal(t, 5, catalog[0].Stock)
}

func TestEngine_LoggedOutSessionIsRefused(t *testing.T) {
	ctx := context.Background()
	e := openEngine(t, storage.NewMemory(), Item{ID: "a", Name: "A", Stock: 1})
	gate := auth.NewGate("s3cret")
	sess, err := gate.Login("s3cret")
	require.NoError(t, err)

	gate.Logout(sess.Token())
	assert.ErrorIs(t, e.UpsertItem(ctx, sess, Item{ID: "z", Name: "Z"}), ErrUnauthorized)
}

func TestEngine_Subscribe(t *testing.T) {
	ctx := context.Background()
	e := openEngine(t, storage.NewMemory(), Item{ID: "a", Name: "A", UnitPrice: 100, Stock: 1})

	var events []Event
	cancel := e.Subscribe(func(ev Event) { events = append(events, ev) })

	require.NoError(t, e.AddOne(ctx, "a"))
	require.ErrorIs(t, e.AddOne(ctx, "a"), ErrInsufficientStock)
	sale, err := e.Checkout(ctx, 100)
	require.NoError(t, err)

	require.Len(t, events, 3)
	assert.Equal(t, EventCartChanged, events[0].Kind)
	assert.Equal(t, OpAddOne, events[0].Op)
	assert.Equal(t, "a", events[0].ItemID)
	assert.Len(t, events[0].Snapshot.Cart, 1)

	assert.Equal(t, EventRefused, events[1].Kind)
	assert.ErrorIs(t, events[1].Err, ErrInsufficientStock)

	assert.Equal(t, EventSaleCommitted, events[2].Kind)
	require.NotNil(t, events[2].Sale)
	assert.Equal(t, sale.ID, events[2].Sale.ID)
	assert.Empty(t, events[2].Snapshot.Cart)

	cancel()
	require.NoError(t, e.ResetCart(ctx))
	assert.Len(t, events, 3)
}

func TestEngine_CheckoutWithCancelledContextDoesNotHalt(t *testing.T) {
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "pos.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	e := openEngine(t, store, Item{ID: "i1", Name: "Ramyun", UnitPrice: 100, Stock: 2})
	require.NoError(t, e.AddOne(context.Background(), "i1"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Checkout(ctx, 100)
	assert.ErrorIs(t, err, context.Canceled)

	snap := e.Get()
	assert.Equal(t, StateActive, snap.State)
	assert.Len(t, snap.Cart, 1)
	assert.Equal(t, 0, snap.SalesCount)

	require.NoError(t, e.AddOne(context.Background(), "i1"))
	sale, err := e.Checkout(context.Background(), 200)
	require.NoError(t, err)
	assert.Equal(t, money.Amount(200), sale.Total)
}

// cancelOnCommit cancels the caller's context as the commit starts.
type cancelOnCommit struct {
	storage.Store
	cancel    context.CancelFunc
	commitErr error
}

func (s *cancelOnCommit) Commit(ctx context.Context, writes map[storage.Collection][]byte) error {
	if s.cancel != nil {
		s.cancel()
		s.commitErr = ctx.Err()
	}
	return s.Store.Commit(ctx, writes)
}

func TestEngine_CommitOutlivesCallerCancellation(t *testing.T) {
	store := &cancelOnCommit{Store: storage.NewMemory()}
	e := openEngine(t, store, Item{ID: "i1", Name: "Ramyun", UnitPrice: 100, Stock: 2})
	require.NoError(t, e.AddOne(context.Background(), "i1"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store.cancel = cancel

	sale, err := e.Checkout(ctx, 100)
	require.NoError(t, err)
	assert.NoError(t, store.commitErr, "commit context is detached from the caller")
	assert.Error(t, ctx.Err())

	snap := e.Get()
	assert.Equal(t, StateActive, snap.State)
	assert.Equal(t, 1, snap.SalesCount)
	assert.Equal(t, "R-202510180930123-000001", sale.ID)
}

// flakyLeaser grants the first acquire and fails every renewal with a
// transport error.
type flakyLeaser struct {
	*storage.Memory
	mu    sync.Mutex
	calls int
}

func (f *flakyLeaser) AcquireLease(ctx context.Context, holder string, ttl time.Duration) error {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	if n > 1 {
		return errors.New("dial tcp: i/o timeout")
	}
	return f.Memory.AcquireLease(ctx, holder, ttl)
}

func TestEngine_HaltsWhenLeaseExpiresUnrenewed(t *testing.T) {
	ctx := context.Background()
	store := &flakyLeaser{Memory: storage.NewMemory()}
	e, err := Open(ctx, store,
		WithLogger(quietLogger()),
		WithSeed(fixedSeed(Item{ID: "i1", Name: "Ramyun", UnitPrice: 100, Stock: 2})),
		WithLease("till-1", 60*time.Millisecond),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close(ctx) })

	require.Eventually(t, func() bool { return e.Get().State == StateHalted }, 2*time.Second, 10*time.Millisecond)

	err = e.AddOne(ctx, "i1")
	assert.ErrorIs(t, err, ErrHalted)
	assert.ErrorIs(t, err, storage.ErrLeaseLost)
}
