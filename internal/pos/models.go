package pos

import (
	"time"

	"github.com/ariefcatur/go-pos-terminal/internal/money"
)

// Item is a catalog entry. Stock is the number of units still on the shelf:
// units sitting in the cart have already been taken out of it.
type Item struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Category  string       `json:"category"`
	UnitPrice money.Amount `json:"unit_price"`
	Stock     int          `json:"stock"`
}

// CartLine is one pending line of the current order. Name and Category are
// display copies; UnitPrice is frozen when the line is first created.
type CartLine struct {
	ItemID    string       `json:"item_id"`
	Name      string       `json:"name"`
	Category  string       `json:"category"`
	UnitPrice money.Amount `json:"unit_price"`
	Quantity  int          `json:"quantity"`
}

func (l CartLine) Subtotal() money.Amount { return l.UnitPrice.Mul(l.Quantity) }

// SaleLine is a fully denormalized copy of a sold line.
type SaleLine struct {
	Name      string       `json:"name"`
	Category  string       `json:"category"`
	UnitPrice money.Amount `json:"unit_price"`
	Quantity  int          `json:"quantity"`
}

func (l SaleLine) Subtotal() money.Amount { return l.UnitPrice.Mul(l.Quantity) }

// Sale is a committed order. It is never modified after commit.
type Sale struct {
	ID           string       `json:"id"`
	Lines        []SaleLine   `json:"lines"`
	Total        money.Amount `json:"total"`
	CashTendered money.Amount `json:"cash"`
	Change       money.Amount `json:"change"`
	Timestamp    time.Time    `json:"date"`
}

// Snapshot is a read-only copy of the engine state.
type Snapshot struct {
	Catalog    []Item       `json:"catalog"`
	Cart       []CartLine   `json:"cart"`
	Total      money.Amount `json:"total"`
	SalesCount int          `json:"sales_count"`
	State      State        `json:"state"`
}
