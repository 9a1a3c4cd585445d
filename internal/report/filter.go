// Package report answers read-only questions over the committed sales log:
// time windows, category and item facets, totals and bestsellers.
package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-pos-terminal/internal/pos"
)

type Window string

const (
	WindowAll       Window = "all"
	WindowToday     Window = "today"
	WindowYesterday Window = "yesterday"
	WindowWeek      Window = "week"
	WindowMonth     Window = "month"
	WindowYear      Window = "year"
	WindowRange     Window = "range"
)

// AllFacet is the facet value that disables a category or item filter.
const AllFacet = "All"

const dateLayout = "2006-01-02"

var (
	ErrUnknownWindow = errors.New("unknown report window")
	ErrInvalidDate   = errors.New("invalid date")
)

func ParseWindow(s string) (Window, error) {
	w := Window(strings.ToLower(strings.TrimSpace(s)))
	switch w {
	case "":
		return WindowAll, nil
	case WindowAll, WindowToday, WindowYesterday, WindowWeek, WindowMonth, WindowYear, WindowRange:
		return w, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownWindow, s)
}

// ParseDate reads a YYYY-MM-DD range bound in loc. Empty input is the zero
// time, meaning the bound is not set.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), locOrLocal(loc))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// Filter selects sales. Windows are evaluated in Location (time.Local when
// nil). Range covers From's whole day through To's whole day; it matches
// everything while either bound is missing.
type Filter struct {
	Window   Window
	From     time.Time
	To       time.Time
	Category string
	Item     string
	Location *time.Location
}

func locOrLocal(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (f Filter) matchWindow(ts, now time.Time) bool {
	loc := locOrLocal(f.Location)
	ts, now = ts.In(loc), now.In(loc)
	switch f.Window {
	case WindowToday:
		return sameDay(ts, now)
	case WindowYesterday:
		return sameDay(ts, now.AddDate(0, 0, -1))
	case WindowWeek:
		return !ts.Before(now.AddDate(0, 0, -7)) && !ts.After(now)
	case WindowMonth:
		return ts.Year() == now.Year() && ts.Month() == now.Month()
	case WindowYear:
		return ts.Year() == now.Year()
	case WindowRange:
		if f.From.IsZero() || f.To.IsZero() {
			return true
		}
		from := startOfDay(f.From.In(loc))
		to := startOfDay(f.To.In(loc)).AddDate(0, 0, 1)
		return !ts.Before(from) && ts.Before(to)
	}
	return true
}

func facetSet(v string) bool { return v != "" && v != AllFacet }

func (f Filter) matchFacets(s pos.Sale) bool {
	if facetSet(f.Category) && !anyLine(s, func(l pos.SaleLine) bool { return l.Category == f.Category }) {
		return false
	}
	if facetSet(f.Item) && !anyLine(s, func(l pos.SaleLine) bool { return l.Name == f.Item }) {
		return false
	}
	return true
}

func anyLine(s pos.Sale, fn func(pos.SaleLine) bool) bool {
	for _, l := range s.Lines {
		if fn(l) {
			return true
		}
	}
	return false
}

// Match reports whether s passes the window and both facets at instant now.
func (f Filter) Match(s pos.Sale, now time.Time) bool {
	return f.matchWindow(s.Timestamp, now) && f.matchFacets(s)
}

// Apply returns the matching sales in log order.
func Apply(sales []pos.Sale, f Filter, now time.Time) []pos.Sale {
	out := make([]pos.Sale, 0, len(sales))
	for _, s := range sales {
		if f.Match(s, now) {
			out = append(out, s)
		}
	}
	return out
}

// Facets lists the distinct categories and item names in first-seen order.
func Facets(sales []pos.Sale) (categories, items []string) {
	seenCat := map[string]bool{}
	seenItem := map[string]bool{}
	for _, s := range sales {
		for _, l := range s.Lines {
			if !seenCat[l.Category] {
				seenCat[l.Category] = true
				categories = append(categories, l.Category)
			}
			if !seenItem[l.Name] {
				seenItem[l.Name] = true
				items = append(items, l.Name)
			}
		}
	}
	return categories, items
}
