// Package watchlist is the reconciliation store behind the table view: an
// ordered list of per-symbol quote records merged from both providers.
package watchlist

import (
	"image"
	"math"

	"stockwatch/internal/imaging"
	"stockwatch/internal/quote"
)

const thumbnailSize = 24

// Watchlist is the single source of truth for display order and row
// identity. It is not safe for concurrent use: the event loop is the only
// mutator, and all reads happen on that loop.
type Watchlist struct {
	rows []quote.Quote
}

func New() *Watchlist {
	return &Watchlist{}
}

func (w *Watchlist) Len() int {
	return len(w.rows)
}

func (w *Watchlist) At(i int) (quote.Quote, bool) {
	if i < 0 || i >= len(w.rows) {
		return quote.Quote{}, false
	}
	return w.rows[i], true
}

// Merge is a symbol-keyed upsert. For an existing row, every field is taken
// from the incoming quote except two carry-forwards: Previous becomes the
// row's pre-merge current price (the delta baseline), and a non-empty
// existing logo survives an empty incoming one. Unknown symbols append.
func (w *Watchlist) Merge(q quote.Quote) {
	if q.Symbol == "" {
		return
	}
	for i := range w.rows {
		if w.rows[i].Symbol != q.Symbol {
			continue
		}
		oldPrice := w.rows[i].Current
		oldLogo := w.rows[i].Logo
		q.Previous = oldPrice
		if q.Logo == nil && oldLogo != nil {
			q.Logo = oldLogo
		}
		w.rows[i] = q
		return
	}
	// First sighting: no prior price to diff against.
	q.Previous = q.Current
	w.rows = append(w.rows, q)
}

// UpdateLogo replaces the logo of the matching row with a fixed-size
// thumbnail. Unknown symbols are a no-op; late logo responses for deleted
// rows land here.
func (w *Watchlist) UpdateLogo(symbol string, logo image.Image) {
	if logo == nil {
		return
	}
	for i := range w.rows {
		if w.rows[i].Symbol == symbol {
			w.rows[i].Logo = imaging.Thumbnail(logo, thumbnailSize)
			return
		}
	}
}

// RemoveAt deletes the row at the given position. Out-of-range is a no-op.
func (w *Watchlist) RemoveAt(i int) bool {
	if i < 0 || i >= len(w.rows) {
		return false
	}
	w.rows = append(w.rows[:i], w.rows[i+1:]...)
	return true
}

// Changed reports whether the row's current price differs from the
// previously observed one beyond float tolerance. Drives row highlighting.
func (w *Watchlist) Changed(i int) bool {
	if i < 0 || i >= len(w.rows) {
		return false
	}
	return !floatEqual(w.rows[i].Current, w.rows[i].Previous)
}

// Symbols is a snapshot of all symbols in display order. It drives refresh
// dispatch and the persisted favorites list.
func (w *Watchlist) Symbols() []string {
	out := make([]string, len(w.rows))
	for i, r := range w.rows {
		out[i] = r.Symbol
	}
	return out
}

// Rows returns a copy of the current records for rendering.
func (w *Watchlist) Rows() []quote.Quote {
	out := make([]quote.Quote, len(w.rows))
	copy(out, w.rows)
	return out
}

func (w *Watchlist) SetAll(rows []quote.Quote) {
	w.rows = append(w.rows[:0:0], rows...)
}

func (w *Watchlist) Clear() {
	w.rows = nil
}

func floatEqual(a, b float64) bool {
	bigger := math.Max(math.Abs(a), math.Abs(b))
	return math.Abs(a-b) <= 1e-9*math.Max(1, bigger)
}
