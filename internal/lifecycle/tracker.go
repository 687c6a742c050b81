package lifecycle

import (
	"log/slog"
	"sync"
)

// State is the subscription lifecycle state of one market.
type State int

const (
	// StateDiscovered: resolved from the REST API, not yet subscribed.
	StateDiscovered State = iota
	// StateSubscribed: subscribe commands issued for all three channels.
	StateSubscribed
	// StateDetermined: the market closed/settled; unsubscribes were triggered.
	StateDetermined
	// StateUnsubscribed: unsubscribe commands issued. Terminal.
	StateUnsubscribed
)

func (s State) String() string {
	switch s {
	case StateDiscovered:
		return "discovered"
	case StateSubscribed:
		return "subscribed"
	case StateDetermined:
		return "determined"
	case StateUnsubscribed:
		return "unsubscribed"
	default:
		return "unknown"
	}
}

// Tracker drives the per-market state machine and the global termination
// predicate for one session.
type Tracker struct {
	logger *slog.Logger

	mu        sync.Mutex
	states    map[string]State
	remaining int // markets not yet Unsubscribed
	done      chan struct{}
	closed    bool
}

// NewTracker creates a tracker with no markets.
func NewTracker(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		logger: logger,
		states: make(map[string]State),
		done:   make(chan struct{}),
	}
}

// Track registers markets at StateDiscovered. Already-tracked tickers are
// ignored.
func (t *Tracker) Track(tickers ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, ticker := range tickers {
		if _, ok := t.states[ticker]; ok {
			continue
		}
		t.states[ticker] = StateDiscovered
		t.remaining++
	}
}

// State returns the current state for ticker.
func (t *Tracker) State(ticker string) (State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.states[ticker]
	return s, ok
}

// MarkSubscribed moves a market Discovered -> Subscribed. Returns false if
// the market is unknown or not in StateDiscovered.
func (t *Tracker) MarkSubscribed(ticker string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.states[ticker] != StateDiscovered {
		return false
	}
	t.states[ticker] = StateSubscribed
	return true
}

// MarkDetermined moves a market Subscribed -> Determined. Returns true
// exactly once per market, so the caller emits unsubscribe commands exactly
// once.
func (t *Tracker) MarkDetermined(ticker string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.states[ticker]
	if !ok || s != StateSubscribed {
		return false
	}
	t.states[ticker] = StateDetermined
	t.logger.Info("market determined", "ticker", ticker)
	return true
}

// MarkUnsubscribed moves a market Determined -> Unsubscribed. The transport
// gives no per-ticker ack, so best-effort issuance of the unsubscribe
// commands counts. Evaluates the global termination predicate.
func (t *Tracker) MarkUnsubscribed(ticker string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.states[ticker] != StateDetermined {
		return false
	}
	t.states[ticker] = StateUnsubscribed
	t.remaining--
	t.logger.Info("market unsubscribed",
		"ticker", ticker,
		"remaining", t.remaining,
	)

	if t.remaining == 0 && !t.closed {
		t.closed = true
		close(t.done)
	}
	return true
}

// IsTerminal reports whether a market has reached StateUnsubscribed. Any
// further message referencing the ticker must be logged and discarded.
func (t *Tracker) IsTerminal(ticker string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.states[ticker] == StateUnsubscribed
}

// Active returns all tickers that still need a live subscription
// (Discovered or Subscribed).
func (t *Tracker) Active() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, 0, len(t.states))
	for ticker, s := range t.states {
		if s == StateDiscovered || s == StateSubscribed {
			out = append(out, ticker)
		}
	}
	return out
}

// AllUnsubscribed reports whether every tracked market reached
// StateUnsubscribed. False when nothing is tracked.
func (t *Tracker) AllUnsubscribed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.states) > 0 && t.remaining == 0
}

// Remaining returns the number of markets not yet unsubscribed.
func (t *Tracker) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.remaining
}

// Done returns a channel closed when every tracked market is Unsubscribed.
// It fires on the transition itself, not on a poll.
func (t *Tracker) Done() <-chan struct{} {
	return t.done
}
