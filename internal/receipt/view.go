// Package receipt turns a committed sale into a printable view model and
// renders it as fixed-width text for a thermal printer.
package receipt

import (
	"fmt"
	"time"

	"github.com/ariefcatur/go-pos-terminal/internal/money"
	"github.com/ariefcatur/go-pos-terminal/internal/pos"
)

// Profile is the store identity printed on every receipt.
type Profile struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Footer  string `json:"footer"`
}

type Line struct {
	Label  string       `json:"label"`
	Amount money.Amount `json:"amount"`
}

// View is everything a receipt shows. It carries no interactive controls.
type View struct {
	Store     Profile      `json:"store"`
	ReceiptID string       `json:"receipt_id"`
	Date      time.Time    `json:"date"`
	Lines     []Line       `json:"lines"`
	Total     money.Amount `json:"total"`
	Cash      money.Amount `json:"cash"`
	Change    money.Amount `json:"change"`
}

func NewView(sale pos.Sale, p Profile) View {
	v := View{
		Store:     p,
		ReceiptID: sale.ID,
		Date:      sale.Timestamp,
		Lines:     make([]Line, 0, len(sale.Lines)),
		Total:     sale.Total,
		Cash:      sale.CashTendered,
		Change:    sale.Change,
	}
	for _, l := range sale.Lines {
		v.Lines = append(v.Lines, Line{
			Label:  fmt.Sprintf("%s x%d", l.Name, l.Quantity),
			Amount: l.Subtotal(),
		})
	}
	return v
}
