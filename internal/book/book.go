package book

import (
	"fmt"
	"sort"

	"github.com/rickgao/kalshi-stream/internal/model"
)

// Valid tick range for binary market price levels (cents).
const (
	MinPrice = 1
	MaxPrice = 99
)

// InvalidDeltaError reports a delta referencing a price or side the book
// cannot hold. It means upstream state has diverged from the true book and
// a fresh snapshot is required before further deltas can be trusted.
type InvalidDeltaError struct {
	Ticker string
	Side   model.Side
	Price  int
}

func (e *InvalidDeltaError) Error() string {
	return fmt.Sprintf("invalid delta for %s: side=%q price=%d", e.Ticker, e.Side, e.Price)
}

// Book holds the two-sided price-level state for one market.
type Book struct {
	ticker  string
	yes     map[int]int
	no      map[int]int
	suspect bool
}

// New creates an empty book for a market.
func New(ticker string) *Book {
	return &Book{
		ticker: ticker,
		yes:    make(map[int]int),
		no:     make(map[int]int),
	}
}

// Ticker returns the market this book belongs to.
func (b *Book) Ticker() string {
	return b.ticker
}

// ApplySnapshot replaces the entire state for both sides unconditionally.
// After the call the book contains exactly the supplied non-zero levels.
// A snapshot also clears the suspect flag: the book is authoritative again.
func (b *Book) ApplySnapshot(yes, no []model.PriceLevel) {
	b.yes = make(map[int]int, len(yes))
	for _, l := range yes {
		if l.Size > 0 {
			b.yes[l.Price] = l.Size
		}
	}
	b.no = make(map[int]int, len(no))
	for _, l := range no {
		if l.Size > 0 {
			b.no[l.Price] = l.Size
		}
	}
	b.suspect = false
}

// ApplyDelta adds delta (signed) to the size at price on side. A resulting
// size <= 0 removes the level entirely; a positive result at an absent price
// creates the level. A price outside [MinPrice, MaxPrice] or an unknown side
// returns *InvalidDeltaError and marks the book suspect.
func (b *Book) ApplyDelta(side model.Side, price, delta int) error {
	if !side.Valid() || price < MinPrice || price > MaxPrice {
		b.suspect = true
		return &InvalidDeltaError{Ticker: b.ticker, Side: side, Price: price}
	}

	levels := b.yes
	if side == model.SideNo {
		levels = b.no
	}

	size := levels[price] + delta
	if size <= 0 {
		delete(levels, price)
	} else {
		levels[price] = size
	}
	return nil
}

// MarkSuspect flags the book as diverged from the true exchange state, for
// faults detected outside the book itself (a missed delta in the stream).
// Deltas are untrusted until the next snapshot.
func (b *Book) MarkSuspect() {
	b.suspect = true
}

// Suspect reports whether the book has diverged since its last snapshot.
// Deltas applied to a suspect book cannot be trusted.
func (b *Book) Suspect() bool {
	return b.suspect
}

// Materialize produces an immutable point-in-time view with both sides
// sorted ascending by price. It never mutates state.
func (b *Book) Materialize() model.BookView {
	return model.BookView{
		Yes: materializeSide(b.yes),
		No:  materializeSide(b.no),
	}
}

func materializeSide(levels map[int]int) []model.PriceLevel {
	out := make([]model.PriceLevel, 0, len(levels))
	for price, size := range levels {
		out = append(out, model.PriceLevel{Price: price, Size: size})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out
}
