package receipt

import (
	"bufio"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
)

// DefaultWidth fits 58 mm paper.
const DefaultWidth = 32

const cutLine = "- - - - - - - - - - - - - - - -"

type renderer struct {
	w     *bufio.Writer
	width int
	loc   *time.Location
}

type RenderOption func(*renderer)

// WithLocation sets the zone the sale date is printed in.
func WithLocation(loc *time.Location) RenderOption {
	return func(r *renderer) {
		if loc != nil {
			r.loc = loc
		}
	}
}

func WithWidth(n int) RenderOption {
	return func(r *renderer) {
		if n >= 16 {
			r.width = n
		}
	}
}

// Render writes v as plain text. Wide (Hangul, CJK) runes take two columns.
func Render(w io.Writer, v View, opts ...RenderOption) error {
	r := &renderer{w: bufio.NewWriter(w), width: DefaultWidth, loc: time.Local}
	for _, opt := range opts {
		opt(r)
	}

	r.center(v.Store.Name)
	r.center(v.Store.Address)
	r.center("Receipt #: " + v.ReceiptID)
	if !v.Date.IsZero() {
		r.center(v.Date.In(r.loc).Format("2006-01-02 15:04"))
	}
	r.rule()
	for _, l := range v.Lines {
		r.pair(l.Label, l.Amount.Format())
	}
	r.rule()
	r.pair("Total:", v.Total.Format())
	r.pair("Cash:", v.Cash.Format())
	r.pair("Change:", v.Change.Format())
	r.rule()
	r.center(v.Store.Footer)
	r.line("")
	r.center(runewidth.Truncate(cutLine, r.width, ""))
	return r.w.Flush()
}

func (r *renderer) line(s string) {
	r.w.WriteString(s)
	r.w.WriteByte('\n')
}

func (r *renderer) rule() { r.line(strings.Repeat("-", r.width)) }

func (r *renderer) center(s string) {
	if s == "" {
		return
	}
	for _, part := range wrap(s, r.width) {
		pad := (r.width - runewidth.StringWidth(part)) / 2
		r.line(strings.Repeat(" ", pad) + part)
	}
}

// pair prints label on the left and value flush right. A label too long to
// share the line wraps and the value goes on the last wrapped line or below it.
func (r *renderer) pair(label, value string) {
	vw := runewidth.StringWidth(value)
	parts := wrap(label, r.width)
	last := parts[len(parts)-1]
	for _, p := range parts[:len(parts)-1] {
		r.line(p)
	}
	if gap := r.width - runewidth.StringWidth(last) - vw; gap >= 1 {
		r.line(last + strings.Repeat(" ", gap) + value)
		return
	}
	r.line(last)
	r.line(strings.Repeat(" ", max(r.width-vw, 0)) + value)
}

// wrap breaks s on spaces into chunks no wider than width; single words
// wider than width are cut.
func wrap(s string, width int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return []string{""}
	}
	var out []string
	cur := ""
	for _, word := range words {
		for runewidth.StringWidth(word) > width {
			if cur != "" {
				out = append(out, cur)
				cur = ""
			}
			head := runewidth.Truncate(word, width, "")
			out = append(out, head)
			word = word[len(head):]
		}
		switch {
		case cur == "":
			cur = word
		case runewidth.StringWidth(cur)+1+runewidth.StringWidth(word) <= width:
			cur += " " + word
		default:
			out = append(out, cur)
			cur = word
		}
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}
