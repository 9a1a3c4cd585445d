package pos

import (
	"fmt"
	"time"

	"github.com/ariefcatur/go-pos-terminal/internal/money"
)

// checkout converts the cart of st into a Sale. It only touches st, which
// the engine persists as one unit afterwards.
func checkout(st *state, cash money.Amount, now time.Time) (Sale, error) {
	if st.cart.Len() == 0 {
		return Sale{}, ErrEmptyCart
	}
	total, err := st.cart.checkedTotal()
	if err != nil {
		return Sale{}, fmt.Errorf("cart total: %w", err)
	}
	if cash < total {
		return Sale{}, fmt.Errorf("%w: total %s, cash %s", ErrInsufficientPayment, total, cash)
	}

	issuer := NewIssuer(st.seq)
	sale := Sale{
		ID:           issuer.Next(now),
		Total:        total,
		CashTendered: cash,
		Change:       cash - total,
		Timestamp:    now.UTC(),
	}
	for _, line := range st.cart.Lines() {
		name, category := line.Name, line.Category
		if item, ok := st.ledger.Get(line.ItemID); ok {
			name, category = item.Name, item.Category
		}
		sale.Lines = append(sale.Lines, SaleLine{
			Name:      name,
			Category:  category,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
		})
	}

	st.sales = append(st.sales, sale)
	st.cart.clear()
	st.seq = issuer.Seq()
	return sale, nil
}
