package book

// Registry owns the ticker -> Book mapping for one session. It is an
// explicit handle passed into the dispatcher rather than a process-wide
// table, so tests can instantiate independent sessions.
//
// Like Book, a Registry is owned by a single dispatch loop; entries live
// from market discovery until unsubscription, after which they are evicted.
type Registry struct {
	books map[string]*Book
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{books: make(map[string]*Book)}
}

// Get returns the book for ticker, creating it on first use.
func (r *Registry) Get(ticker string) *Book {
	b, ok := r.books[ticker]
	if !ok {
		b = New(ticker)
		r.books[ticker] = b
	}
	return b
}

// Lookup returns the book for ticker without creating one.
func (r *Registry) Lookup(ticker string) (*Book, bool) {
	b, ok := r.books[ticker]
	return b, ok
}

// Evict drops the book for ticker after the market is unsubscribed.
func (r *Registry) Evict(ticker string) {
	delete(r.books, ticker)
}

// Len returns the number of tracked books.
func (r *Registry) Len() int {
	return len(r.books)
}
