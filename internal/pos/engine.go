package pos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ariefcatur/go-pos-terminal/internal/auth"
	"github.com/ariefcatur/go-pos-terminal/internal/clock"
	"github.com/ariefcatur/go-pos-terminal/internal/money"
	"github.com/ariefcatur/go-pos-terminal/internal/storage"
	"github.com/google/uuid"
)

// commitTimeout bounds one store commit. The commit runs detached from the
// caller's context: once started it must finish or fail on its own.
const commitTimeout = 10 * time.Second

var (
	cartCollections    = []storage.Collection{storage.CollectionCatalog, storage.CollectionCart}
	catalogCollections = []storage.Collection{storage.CollectionCatalog}
	salesCollections   = []storage.Collection{storage.CollectionSales}
)

// Engine owns the catalog, the cart and the sales log of one terminal. All
// operations run to completion under one lock; every change is persisted
// before it becomes visible.
type Engine struct {
	mu     sync.Mutex
	store  storage.Store
	clock  clock.Clock
	logger *slog.Logger
	seed   func() []Item

	st      *state
	status  State
	haltErr error

	listeners map[int]Listener
	nextID    int

	holder   string
	leaseTTL time.Duration
	// leaseUntil is when the last successful acquire expires; writes stop
	// there unless a renewal lands first.
	leaseUntil time.Time
	stopLease  chan struct{}
	leaseDone chan struct{}
}

type Option func(*Engine)

func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithSeed sets the default catalog used on first run and by ResetCatalog.
func WithSeed(seed func() []Item) Option {
	return func(e *Engine) { e.seed = seed }
}

// WithLease guards the store with a session lease when the store supports
// it. A zero ttl disables the guard.
func WithLease(holder string, ttl time.Duration) Option {
	return func(e *Engine) {
		e.holder = holder
		e.leaseTTL = ttl
	}
}

// Open restores the engine state from store, seeding defaults on first run.
func Open(ctx context.Context, store storage.Store, opts ...Option) (*Engine, error) {
	e := &Engine{
		store:     store,
		clock:     clock.NewSystem(),
		logger:    slog.Default(),
		status:    StateActive,
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(e)
	}

	leaser, guarded := store.(storage.Leaser)
	guarded = guarded && e.leaseTTL > 0
	if guarded {
		if e.holder == "" {
			e.holder = uuid.NewString()
		}
		start := time.Now()
		if err := leaser.AcquireLease(ctx, e.holder, e.leaseTTL); err != nil {
			return nil, fmt.Errorf("acquire lease: %w", err)
		}
		e.leaseUntil = start.Add(e.leaseTTL)
	}

	st, writes, err := loadState(ctx, store, e.seed, e.logger)
	if err == nil && len(writes) > 0 {
		err = store.Commit(ctx, writes)
	}
	if err != nil {
		if guarded {
			_ = leaser.ReleaseLease(context.Background(), e.holder)
		}
		return nil, fmt.Errorf("restore state: %w", err)
	}
	e.st = st

	if guarded {
		e.stopLease = make(chan struct{})
		e.leaseDone = make(chan struct{})
		go e.renewLease(leaser)
	}

	e.logger.Info("engine opened",
		slog.Int("catalog_items", st.ledger.Len()),
		slog.Int("cart_lines", st.cart.Len()),
		slog.Int("sales", len(st.sales)))
	return e, nil
}

func (e *Engine) renewLease(leaser storage.Leaser) {
	defer close(e.leaseDone)
	interval := e.leaseTTL / 3
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-e.stopLease:
			return
		case <-t.C:
			start := time.Now()
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			err := leaser.AcquireLease(ctx, e.holder, e.leaseTTL)
			cancel()

			e.mu.Lock()
			switch {
			case err == nil:
				e.leaseUntil = start.Add(e.leaseTTL)
			case errors.Is(err, storage.ErrLeaseHeld):
				e.haltLocked(storage.ErrLeaseLost)
			case !time.Now().Before(e.leaseUntil):
				e.haltLocked(fmt.Errorf("%w: renewal failing since expiry: %v", storage.ErrLeaseLost, err))
			default:
				e.logger.Warn("lease renewal failed", slog.String("error", err.Error()),
					slog.Time("lease_until", e.leaseUntil))
			}
			halted := e.status == StateHalted
			e.mu.Unlock()
			if halted {
				return
			}
		}
	}
}

// Close stops lease renewal and releases the lease. The store itself is
// left open for its owner to close.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.status == StateClosed {
		e.mu.Unlock()
		return nil
	}
	e.status = StateClosed
	e.mu.Unlock()

	if e.stopLease == nil {
		return nil
	}
	close(e.stopLease)
	<-e.leaseDone
	if leaser, ok := e.store.(storage.Leaser); ok {
		return leaser.ReleaseLease(ctx, e.holder)
	}
	return nil
}

func (e *Engine) haltLocked(cause error) {
	if !CanTransition(e.status, StateHalted) {
		return
	}
	e.status = StateHalted
	e.haltErr = cause
	e.logger.Error("engine halted; further mutations refused until restart", slog.String("cause", cause.Error()))
}

func (e *Engine) writableLocked() error {
	switch e.status {
	case StateHalted:
		return fmt.Errorf("%w: %w", ErrHalted, e.haltErr)
	case StateClosed:
		return ErrClosed
	}
	if !e.leaseUntil.IsZero() && !time.Now().Before(e.leaseUntil) {
		e.haltLocked(storage.ErrLeaseLost)
		return fmt.Errorf("%w: %w", ErrHalted, e.haltErr)
	}
	return nil
}

// Subscribe registers l for every subsequent event. The returned function
// removes it.
func (e *Engine) Subscribe(l Listener) (cancel func()) {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = l
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

func (e *Engine) listenersLocked() []Listener {
	out := make([]Listener, 0, len(e.listeners))
	for i := 0; i < e.nextID; i++ {
		if l, ok := e.listeners[i]; ok {
			out = append(out, l)
		}
	}
	return out
}

func (e *Engine) snapshotLocked() Snapshot {
	return Snapshot{
		Catalog:    e.st.ledger.Items(),
		Cart:       e.st.cart.Lines(),
		Total:      e.st.cart.Total(),
		SalesCount: len(e.st.sales),
		State:      e.status,
	}
}

// Get returns a copy of the current state.
func (e *Engine) Get() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) Item(id string) (Item, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st.ledger.Get(id)
}

// Sales returns the sales log in commit order.
func (e *Engine) Sales() []Sale {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Sale, len(e.st.sales))
	copy(out, e.st.sales)
	return out
}

func (e *Engine) Sale(id string) (Sale, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range e.st.sales {
		if s.ID == id {
			return s, true
		}
	}
	return Sale{}, false
}

type mutation struct {
	kind   EventKind
	op     Op
	itemID string
	cols   []storage.Collection
	// fatal halts the engine when the commit fails.
	fatal bool
	apply func(st *state) (*Sale, error)
}

// run applies m to a clone of the state, commits the touched collections in
// one store call and only then swaps the clone in.
func (e *Engine) run(ctx context.Context, m mutation) (*Sale, error) {
	e.mu.Lock()
	if err := e.writableLocked(); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	// A caller that is already gone gets nothing applied.
	if err := ctx.Err(); err != nil {
		e.mu.Unlock()
		return nil, err
	}

	next := e.st.clone()
	sale, err := m.apply(next)
	if err != nil {
		ev := Event{Kind: EventRefused, Op: m.op, ItemID: m.itemID, Err: err, Snapshot: e.snapshotLocked()}
		ls := e.listenersLocked()
		e.mu.Unlock()
		notify(ls, ev)
		return nil, err
	}

	writes, err := next.encode(m.cols...)
	if err == nil {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
		err = e.store.Commit(cctx, writes)
		cancel()
	}
	if err != nil {
		if m.fatal {
			e.haltLocked(err)
		} else {
			e.logger.Warn("persist failed; change discarded", slog.String("op", string(m.op)), slog.String("error", err.Error()))
		}
		e.mu.Unlock()
		return nil, fmt.Errorf("persist %s: %w", m.op, err)
	}

	e.st = next
	ev := Event{Kind: m.kind, Op: m.op, ItemID: m.itemID, Sale: sale, Snapshot: e.snapshotLocked()}
	ls := e.listenersLocked()
	e.mu.Unlock()
	notify(ls, ev)
	return sale, nil
}

func notify(ls []Listener, ev Event) {
	for _, l := range ls {
		l(ev)
	}
}

func (e *Engine) cartOp(ctx context.Context, op Op, itemID string, fn func(*Cart, *Ledger) error) error {
	_, err := e.run(ctx, mutation{
		kind:   EventCartChanged,
		op:     op,
		itemID: itemID,
		cols:   cartCollections,
		apply: func(st *state) (*Sale, error) {
			return nil, fn(st.cart, st.ledger)
		},
	})
	return err
}

// AddOne reserves one unit of itemID into the cart. ErrInsufficientStock
// leaves everything unchanged.
func (e *Engine) AddOne(ctx context.Context, itemID string) error {
	return e.cartOp(ctx, OpAddOne, itemID, func(c *Cart, l *Ledger) error { return c.AddOne(l, itemID) })
}

func (e *Engine) IncrementOne(ctx context.Context, itemID string) error {
	return e.cartOp(ctx, OpIncrementOne, itemID, func(c *Cart, l *Ledger) error { return c.IncrementOne(l, itemID) })
}

func (e *Engine) DecrementOne(ctx context.Context, itemID string) error {
	return e.cartOp(ctx, OpDecrementOne, itemID, func(c *Cart, l *Ledger) error { return c.DecrementOne(l, itemID) })
}

func (e *Engine) RemoveLine(ctx context.Context, itemID string) error {
	return e.cartOp(ctx, OpRemoveLine, itemID, func(c *Cart, l *Ledger) error { return c.RemoveLine(l, itemID) })
}

// ResetCart releases every cart line back to stock.
func (e *Engine) ResetCart(ctx context.Context) error {
	return e.cartOp(ctx, OpResetCart, "", func(c *Cart, l *Ledger) error { return c.ResetAll(l) })
}

// Checkout commits the cart as a Sale paid with cash. Catalog, cart, sales
// log and receipt counter are written in one commit; if that commit fails
// the engine halts because the durable outcome is unknown.
func (e *Engine) Checkout(ctx context.Context, cash money.Amount) (Sale, error) {
	now := e.clock.Now()
	sale, err := e.run(ctx, mutation{
		kind:  EventSaleCommitted,
		op:    OpCheckout,
		cols:  storage.Collections,
		fatal: true,
		apply: func(st *state) (*Sale, error) {
			s, err := checkout(st, cash, now)
			if err != nil {
				return nil, err
			}
			return &s, nil
		},
	})
	if err != nil {
		return Sale{}, err
	}
	e.logger.Info("sale committed",
		slog.String("receipt_id", sale.ID),
		slog.String("total", sale.Total.String()),
		slog.Int("lines", len(sale.Lines)))
	return *sale, nil
}

// UpsertItem creates or edits a catalog item. Prices already in the cart
// keep their snapshot.
func (e *Engine) UpsertItem(ctx context.Context, sess auth.Session, item Item) error {
	_, err := e.run(ctx, mutation{
		kind:   EventCatalogChanged,
		op:     OpUpsertItem,
		itemID: item.ID,
		cols:   catalogCollections,
		apply: func(st *state) (*Sale, error) {
			if err := auth.Require(sess); err != nil {
				return nil, err
			}
			return nil, st.ledger.Upsert(item)
		},
	})
	return err
}

// RemoveItem deletes a catalog item. Items with a cart line are refused
// with ErrItemInUse so an open order never changes silently.
func (e *Engine) RemoveItem(ctx context.Context, sess auth.Session, itemID string) error {
	_, err := e.run(ctx, mutation{
		kind:   EventCatalogChanged,
		op:     OpRemoveItem,
		itemID: itemID,
		cols:   catalogCollections,
		apply: func(st *state) (*Sale, error) {
			if err := auth.Require(sess); err != nil {
				return nil, err
			}
			if st.cart.Contains(itemID) {
				return nil, fmt.Errorf("%w: %s", ErrItemInUse, itemID)
			}
			return nil, st.ledger.Remove(itemID)
		},
	})
	return err
}

// ResetCatalog replaces the catalog with the seed defaults. The cart must be
// empty, otherwise its reserved units would vanish.
func (e *Engine) ResetCatalog(ctx context.Context, sess auth.Session) error {
	_, err := e.run(ctx, mutation{
		kind: EventCatalogChanged,
		op:   OpResetCatalog,
		cols: catalogCollections,
		apply: func(st *state) (*Sale, error) {
			if err := auth.Require(sess); err != nil {
				return nil, err
			}
			if st.cart.Len() > 0 {
				return nil, ErrCartNotEmpty
			}
			l, err := NewLedger(seedItems(e.seed))
			if err != nil {
				return nil, err
			}
			st.ledger = l
			return nil, nil
		},
	})
	return err
}

// DeleteSale removes a committed sale from the log. Stock is not restored.
func (e *Engine) DeleteSale(ctx context.Context, sess auth.Session, saleID string) error {
	var deleted Sale
	_, err := e.run(ctx, mutation{
		kind: EventSaleDeleted,
		op:   OpDeleteSale,
		cols: salesCollections,
		apply: func(st *state) (*Sale, error) {
			if err := auth.Require(sess); err != nil {
				return nil, err
			}
			for i, s := range st.sales {
				if s.ID == saleID {
					deleted = s
					st.sales = append(st.sales[:i], st.sales[i+1:]...)
					return &deleted, nil
				}
			}
			return nil, fmt.Errorf("%w: %s", ErrSaleNotFound, saleID)
		},
	})
	return err
}

// LoadSales reads the sales log without opening an engine, for read-only
// consumers such as reports.
func LoadSales(ctx context.Context, store storage.Store) ([]Sale, error) {
	var sales []Sale
	if _, err := loadJSON(ctx, store, storage.CollectionSales, &sales); err != nil {
		return nil, err
	}
	return sales, nil
}
