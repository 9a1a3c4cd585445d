package pos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ariefcatur/go-pos-terminal/internal/storage"
)

// state is everything the engine persists. Mutations run on a clone that
// replaces the live state only after it has been committed.
type state struct {
	ledger *Ledger
	cart   *Cart
	sales  []Sale
	seq    uint64
}

func (s *state) clone() *state {
	sales := make([]Sale, len(s.sales))
	copy(sales, s.sales)
	return &state{
		ledger: s.ledger.Clone(),
		cart:   s.cart.Clone(),
		sales:  sales,
		seq:    s.seq,
	}
}

func (s *state) encode(cols ...storage.Collection) (map[storage.Collection][]byte, error) {
	out := make(map[storage.Collection][]byte, len(cols))
	for _, c := range cols {
		var v any
		switch c {
		case storage.CollectionCatalog:
			v = s.ledger.Items()
		case storage.CollectionCart:
			v = s.cart.Lines()
		case storage.CollectionSales:
			sales := s.sales
			if sales == nil {
				sales = []Sale{}
			}
			v = sales
		case storage.CollectionReceiptSeq:
			v = s.seq
		default:
			return nil, fmt.Errorf("unknown collection %q", c)
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", c, err)
		}
		out[c] = b
	}
	return out, nil
}

// loadState restores the persisted collections. Missing or corrupt documents
// fall back to defaults; only I/O failures are returned as errors. The
// returned writes hold the defaults that must be persisted right away.
func loadState(ctx context.Context, store storage.Store, seed func() []Item, logger *slog.Logger) (*state, map[storage.Collection][]byte, error) {
	st := &state{}
	var initial []storage.Collection

	var items []Item
	found, err := loadJSON(ctx, store, storage.CollectionCatalog, &items)
	if err != nil && !errors.Is(err, ErrStorageCorrupt) {
		return nil, nil, err
	}
	if err != nil {
		logger.Warn("catalog is corrupt, seeding defaults", slog.String("error", err.Error()))
	}
	if found && err == nil && len(items) > 0 {
		if st.ledger, err = NewLedger(items); err != nil {
			logger.Warn("catalog failed validation, seeding defaults", slog.String("error", err.Error()))
		}
	}
	if st.ledger == nil {
		if st.ledger, err = NewLedger(seedItems(seed)); err != nil {
			return nil, nil, fmt.Errorf("seed catalog: %w", err)
		}
		initial = append(initial, storage.CollectionCatalog)
	}

	var lines []CartLine
	if _, err := loadJSON(ctx, store, storage.CollectionCart, &lines); err != nil {
		if !errors.Is(err, ErrStorageCorrupt) {
			return nil, nil, err
		}
		logger.Warn("cart is corrupt, starting empty", slog.String("error", err.Error()))
		lines = nil
	}
	st.cart = NewCart(sanitizeCart(lines, st.ledger, logger))

	found, err = loadJSON(ctx, store, storage.CollectionSales, &st.sales)
	switch {
	case errors.Is(err, ErrStorageCorrupt):
		logger.Warn("sales log is corrupt, starting empty", slog.String("error", err.Error()))
		st.sales = nil
	case err != nil:
		return nil, nil, err
	case !found:
		initial = append(initial, storage.CollectionSales)
	}

	var seq uint64
	found, err = loadJSON(ctx, store, storage.CollectionReceiptSeq, &seq)
	if err != nil && !errors.Is(err, ErrStorageCorrupt) {
		return nil, nil, err
	}
	if !found || err != nil {
		seq = recoverSeq(st.sales)
	}
	st.seq = seq

	writes, err := st.encode(initial...)
	if err != nil {
		return nil, nil, err
	}
	return st, writes, nil
}

// loadJSON decodes collection c into v. Decode failures are reported as
// ErrStorageCorrupt.
func loadJSON(ctx context.Context, store storage.Store, c storage.Collection, v any) (bool, error) {
	b, err := store.Load(ctx, c)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", c, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return true, fmt.Errorf("%w: %s: %v", ErrStorageCorrupt, c, err)
	}
	return true, nil
}

func seedItems(seed func() []Item) []Item {
	if seed == nil {
		return nil
	}
	return seed()
}

// sanitizeCart drops restored lines that no longer make sense against the
// catalog they were reserved from.
func sanitizeCart(lines []CartLine, l *Ledger, logger *slog.Logger) []CartLine {
	out := make([]CartLine, 0, len(lines))
	seen := make(map[string]bool, len(lines))
	for _, line := range lines {
		_, known := l.Get(line.ItemID)
		if !known || line.Quantity <= 0 || seen[line.ItemID] {
			logger.Warn("dropping restored cart line",
				slog.String("item_id", line.ItemID),
				slog.Int("quantity", line.Quantity),
				slog.Bool("known_item", known))
			continue
		}
		seen[line.ItemID] = true
		out = append(out, line)
	}
	return out
}

// recoverSeq rebuilds the receipt counter from the sales log when the
// counter document is missing.
func recoverSeq(sales []Sale) uint64 {
	seq := uint64(len(sales))
	for _, s := range sales {
		if n, ok := receiptSeq(s.ID); ok && n > seq {
			seq = n
		}
	}
	return seq
}
