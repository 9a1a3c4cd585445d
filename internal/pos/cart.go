package pos

import (
	"fmt"

	"github.com/ariefcatur/go-pos-terminal/internal/money"
)

// Cart is the order being rung up. Every quantity change goes through the
// ledger so that, per item, cart quantity + shelf stock stays constant.
type Cart struct {
	lines []CartLine
}

func NewCart(lines []CartLine) *Cart {
	c := &Cart{lines: make([]CartLine, len(lines))}
	copy(c.lines, lines)
	return c
}

func (c *Cart) find(itemID string) int {
	for i := range c.lines {
		if c.lines[i].ItemID == itemID {
			return i
		}
	}
	return -1
}

// AddOne reserves one unit and adds it to the cart, creating the line with
// the current catalog price if needed.
func (c *Cart) AddOne(l *Ledger, itemID string) error {
	item, ok := l.Get(itemID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	total, err := c.checkedTotal()
	if err == nil {
		_, err = total.CheckedAdd(item.UnitPrice)
	}
	if err != nil {
		return fmt.Errorf("add %s: %w", itemID, err)
	}
	if err := l.Reserve(itemID, 1); err != nil {
		return err
	}
	if i := c.find(itemID); i >= 0 {
		c.lines[i].Quantity++
		return nil
	}
	c.lines = append(c.lines, CartLine{
		ItemID:    item.ID,
		Name:      item.Name,
		Category:  item.Category,
		UnitPrice: item.UnitPrice,
		Quantity:  1,
	})
	return nil
}

// IncrementOne is AddOne restricted to a line already in the cart.
func (c *Cart) IncrementOne(l *Ledger, itemID string) error {
	if c.find(itemID) < 0 {
		return fmt.Errorf("%w: %s", ErrLineNotFound, itemID)
	}
	return c.AddOne(l, itemID)
}

// DecrementOne releases one unit; the line disappears when it reaches zero.
func (c *Cart) DecrementOne(l *Ledger, itemID string) error {
	i := c.find(itemID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrLineNotFound, itemID)
	}
	if err := l.Release(itemID, 1); err != nil {
		return err
	}
	if c.lines[i].Quantity > 1 {
		c.lines[i].Quantity--
		return nil
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	return nil
}

func (c *Cart) RemoveLine(l *Ledger, itemID string) error {
	i := c.find(itemID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrLineNotFound, itemID)
	}
	if err := l.Release(itemID, c.lines[i].Quantity); err != nil {
		return err
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	return nil
}

// ResetAll releases every line back to the shelf and empties the cart.
func (c *Cart) ResetAll(l *Ledger) error {
	for _, line := range c.lines {
		if err := l.Release(line.ItemID, line.Quantity); err != nil {
			return err
		}
	}
	c.clear()
	return nil
}

// clear drops all lines without touching stock: used once the units are sold.
func (c *Cart) clear() { c.lines = c.lines[:0] }

func (c *Cart) Total() money.Amount {
	var total money.Amount
	for _, line := range c.lines {
		total += line.Subtotal()
	}
	return total
}

// checkedTotal is Total that fails with money.ErrOverflow instead of
// wrapping, for carts restored from storage.
func (c *Cart) checkedTotal() (money.Amount, error) {
	var total money.Amount
	for _, line := range c.lines {
		sub, err := line.UnitPrice.CheckedMul(line.Quantity)
		if err == nil {
			total, err = total.CheckedAdd(sub)
		}
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}

func (c *Cart) Len() int { return len(c.lines) }

func (c *Cart) Contains(itemID string) bool { return c.find(itemID) >= 0 }

func (c *Cart) Line(itemID string) (CartLine, bool) {
	if i := c.find(itemID); i >= 0 {
		return c.lines[i], true
	}
	return CartLine{}, false
}

func (c *Cart) Lines() []CartLine {
	out := make([]CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Clone() *Cart { return NewCart(c.lines) }
