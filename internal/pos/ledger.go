package pos

import (
	"fmt"
	"strings"
)

// Ledger is the catalog: items in display order with mutable stock counters.
type Ledger struct {
	items []Item
	index map[string]int
}

// NewLedger builds a ledger from items, rejecting duplicates and invalid
// records.
func NewLedger(items []Item) (*Ledger, error) {
	l := &Ledger{
		items: make([]Item, 0, len(items)),
		index: make(map[string]int, len(items)),
	}
	for _, it := range items {
		if _, dup := l.index[it.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidItem, it.ID)
		}
		if err := l.Upsert(it); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func validateItem(it Item) error {
	switch {
	case strings.TrimSpace(it.ID) == "":
		return fmt.Errorf("%w: empty id", ErrInvalidItem)
	case strings.TrimSpace(it.Name) == "":
		return fmt.Errorf("%w: empty name for %s", ErrInvalidItem, it.ID)
	case it.UnitPrice < 0:
		return fmt.Errorf("%w: negative price for %s", ErrInvalidItem, it.ID)
	case it.Stock < 0:
		return fmt.Errorf("%w: negative stock for %s", ErrInvalidItem, it.ID)
	}
	return nil
}

func (l *Ledger) Len() int { return len(l.items) }

func (l *Ledger) Get(id string) (Item, bool) {
	i, ok := l.index[id]
	if !ok {
		return Item{}, false
	}
	return l.items[i], true
}

// Items returns a copy of the catalog in display order.
func (l *Ledger) Items() []Item {
	out := make([]Item, len(l.items))
	copy(out, l.items)
	return out
}

// Reserve takes count units off the shelf. Nothing changes when it fails.
func (l *Ledger) Reserve(id string, count int) error {
	if count <= 0 {
		return ErrInvalidQuantity
	}
	i, ok := l.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	if stock := l.items[i].Stock; count > stock {
		return &StockError{ItemID: id, Requested: count, Available: stock}
	}
	l.items[i].Stock -= count
	return nil
}

// Release puts count units back on the shelf. Callers only release what
// they reserved earlier.
func (l *Ledger) Release(id string, count int) error {
	if count <= 0 {
		return ErrInvalidQuantity
	}
	i, ok := l.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	l.items[i].Stock += count
	return nil
}

// Upsert replaces the item with the same id in place, or appends it.
func (l *Ledger) Upsert(it Item) error {
	if err := validateItem(it); err != nil {
		return err
	}
	if i, ok := l.index[it.ID]; ok {
		l.items[i] = it
		return nil
	}
	l.index[it.ID] = len(l.items)
	l.items = append(l.items, it)
	return nil
}

func (l *Ledger) Remove(id string) error {
	i, ok := l.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	l.items = append(l.items[:i], l.items[i+1:]...)
	delete(l.index, id)
	for j := i; j < len(l.items); j++ {
		l.index[l.items[j].ID] = j
	}
	return nil
}

func (l *Ledger) Clone() *Ledger {
	c := &Ledger{
		items: l.Items(),
		index: make(map[string]int, len(l.index)),
	}
	for id, i := range l.index {
		c.index[id] = i
	}
	return c
}
