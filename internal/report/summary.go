package report

import (
	"sort"
	"time"

	"github.com/ariefcatur/go-pos-terminal/internal/money"
	"github.com/ariefcatur/go-pos-terminal/internal/pos"
)

const DefaultTopN = 5

type Bestseller struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type Summary struct {
	Revenue      money.Amount `json:"revenue"`
	Transactions int          `json:"transactions"`
	Bestsellers  []Bestseller `json:"bestsellers"`
}

// Summarize totals sales and ranks items by quantity sold, ties broken by
// name. topN <= 0 uses DefaultTopN.
func Summarize(sales []pos.Sale, topN int) Summary {
	if topN <= 0 {
		topN = DefaultTopN
	}
	sum := Summary{Transactions: len(sales), Bestsellers: []Bestseller{}}
	qty := map[string]int{}
	for _, s := range sales {
		sum.Revenue += s.Total
		for _, l := range s.Lines {
			qty[l.Name] += l.Quantity
		}
	}
	for name, n := range qty {
		sum.Bestsellers = append(sum.Bestsellers, Bestseller{Name: name, Quantity: n})
	}
	sort.Slice(sum.Bestsellers, func(i, j int) bool {
		a, b := sum.Bestsellers[i], sum.Bestsellers[j]
		if a.Quantity != b.Quantity {
			return a.Quantity > b.Quantity
		}
		return a.Name < b.Name
	})
	if len(sum.Bestsellers) > topN {
		sum.Bestsellers = sum.Bestsellers[:topN]
	}
	return sum
}

type Day struct {
	Date  time.Time  `json:"date"`
	Sales []pos.Sale `json:"sales"`
}

// Key renders the day as YYYY-MM-DD.
func (d Day) Key() string { return d.Date.Format(dateLayout) }

// GroupByDay buckets sales by calendar day in loc, newest day first. Sales
// inside a day keep log order.
func GroupByDay(sales []pos.Sale, loc *time.Location) []Day {
	loc = locOrLocal(loc)
	index := map[string]int{}
	var days []Day
	for _, s := range sales {
		d := startOfDay(s.Timestamp.In(loc))
		key := d.Format(dateLayout)
		i, ok := index[key]
		if !ok {
			i = len(days)
			index[key] = i
			days = append(days, Day{Date: d})
		}
		days[i].Sales = append(days[i].Sales, s)
	}
	sort.SliceStable(days, func(i, j int) bool { return days[i].Date.After(days[j].Date) })
	return days
}
