package pos

import (
	"errors"
	"fmt"

	"github.com/ariefcatur/go-pos-terminal/internal/auth"
)

var (
	ErrItemNotFound        = errors.New("item not found")
	ErrInvalidItem         = errors.New("invalid item")
	ErrInvalidQuantity     = errors.New("invalid quantity")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrLineNotFound        = errors.New("item is not in the cart")
	ErrItemInUse           = errors.New("item is in the cart")
	ErrEmptyCart           = errors.New("cart is empty")
	ErrInsufficientPayment = errors.New("cash tendered is less than total")
	ErrCartNotEmpty        = errors.New("cart is not empty")
	ErrSaleNotFound        = errors.New("sale not found")
	ErrStorageCorrupt      = errors.New("stored collection is corrupt")
	ErrHalted              = errors.New("engine halted; restart required")
	ErrClosed              = errors.New("engine closed")

	ErrUnauthorized = auth.ErrUnauthorized
)

// StockError reports a reservation that asked for more than the shelf holds.
type StockError struct {
	ItemID    string
	Requested int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.ItemID, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }
