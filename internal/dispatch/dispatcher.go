package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/kalshi-stream/internal/book"
	"github.com/rickgao/kalshi-stream/internal/lifecycle"
	"github.com/rickgao/kalshi-stream/internal/model"
)

// Sink receives persistence records emitted by the dispatcher. Writes are
// append-only; the sink may buffer but must preserve per-ticker write order.
type Sink interface {
	RecordTrade(ctx context.Context, rec model.TradeRecord) error
	RecordSnapshot(ctx context.Context, rec model.SnapshotRecord) error
}

// Commander issues outbound subscription commands on the transport.
type Commander interface {
	Subscribe(ctx context.Context, channels, tickers []string) error
	Unsubscribe(ctx context.Context, channels, tickers []string) error
}

// Dispatcher is the single entry point for every inbound frame.
type Dispatcher struct {
	books   *book.Registry
	tracker *lifecycle.Tracker
	sink    Sink
	cmd     Commander
	logger  *slog.Logger

	// lastSeq tracks the last sequence number per subscription so missed
	// orderbook deltas are detected. Owned by the dispatch loop, like books.
	lastSeq map[int64]int64

	statsMu sync.Mutex
	stats   Stats
}

// New creates a Dispatcher routing into the given collaborators.
func New(books *book.Registry, tracker *lifecycle.Tracker, sink Sink, cmd Commander, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		books:   books,
		tracker: tracker,
		sink:    sink,
		cmd:     cmd,
		logger:  logger,
		lastSeq: make(map[int64]int64),
	}
}

// Stats returns a copy of the current counters.
func (d *Dispatcher) Stats() Stats {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	return d.stats
}

func (d *Dispatcher) count(f func(*Stats)) {
	d.statsMu.Lock()
	f(&d.stats)
	d.statsMu.Unlock()
}

// Dispatch classifies and routes one inbound frame. Malformed frames are
// logged and dropped, never raised past this boundary. A non-nil error is a
// persistence fault and must be surfaced by the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, data []byte, receivedAt time.Time) error {
	d.count(func(s *Stats) { s.Frames++ })

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		d.logger.Warn("dropping unparseable frame", "error", err)
		d.count(func(s *Stats) { s.ParseErrors++ })
		return nil
	}

	switch env.Type {
	case typeSnapshot:
		return d.handleSnapshot(ctx, env, receivedAt)
	case typeDelta:
		return d.handleDelta(ctx, env, receivedAt)
	case typeTrade:
		return d.handleTrade(ctx, env.Msg)
	case typeLifecycle:
		d.handleLifecycle(ctx, env.Msg)
		return nil
	case "subscribed", "unsubscribed", "ok", "error":
		// Command responses are correlated by the session before frames
		// reach the dispatcher; seeing one here is harmless.
		d.logger.Debug("skipping command response", "type", env.Type)
		return nil
	default:
		d.logger.Warn("dropping frame with unknown channel", "type", env.Type)
		d.count(func(s *Stats) { s.Dropped++ })
		return nil
	}
}

// handleSnapshot replaces book state and records the materialized view.
func (d *Dispatcher) handleSnapshot(ctx context.Context, env envelope, receivedAt time.Time) error {
	var wire snapshotWire
	if err := json.Unmarshal(env.Msg, &wire); err != nil {
		d.logger.Warn("dropping malformed snapshot", "error", err)
		d.count(func(s *Stats) { s.ParseErrors++ })
		return nil
	}
	if wire.MarketTicker == "" {
		d.logger.Warn("dropping snapshot without ticker")
		d.count(func(s *Stats) { s.Dropped++ })
		return nil
	}
	if d.tracker.IsTerminal(wire.MarketTicker) {
		d.logger.Info("discarding snapshot for unsubscribed market", "ticker", wire.MarketTicker)
		d.count(func(s *Stats) { s.Dropped++ })
		return nil
	}

	// A snapshot restarts the delta stream; its seq is the new baseline.
	if env.Seq != 0 {
		d.lastSeq[env.SID] = env.Seq
	}

	b := d.books.Get(wire.MarketTicker)
	b.ApplySnapshot(pairsToLevels(wire.Yes), pairsToLevels(wire.No))
	d.count(func(s *Stats) { s.Snapshots++ })

	rec := model.SnapshotRecord{
		Ticker: wire.MarketTicker,
		TS:     receivedAt.Unix(), // snapshots carry no exchange timestamp
		Book:   b.Materialize(),
	}
	if err := d.sink.RecordSnapshot(ctx, rec); err != nil {
		return fmt.Errorf("record snapshot %s: %w", wire.MarketTicker, err)
	}
	return nil
}

// handleDelta applies one level adjustment and records the resulting full
// book view, matching the persisted-snapshot contract.
func (d *Dispatcher) handleDelta(ctx context.Context, env envelope, receivedAt time.Time) error {
	var wire deltaWire
	if err := json.Unmarshal(env.Msg, &wire); err != nil {
		d.logger.Warn("dropping malformed delta", "error", err)
		d.count(func(s *Stats) { s.ParseErrors++ })
		return nil
	}
	if wire.MarketTicker == "" {
		d.logger.Warn("dropping delta without ticker")
		d.count(func(s *Stats) { s.Dropped++ })
		return nil
	}
	if d.tracker.IsTerminal(wire.MarketTicker) {
		d.logger.Info("discarding delta for unsubscribed market", "ticker", wire.MarketTicker)
		d.count(func(s *Stats) { s.Dropped++ })
		return nil
	}

	b := d.books.Get(wire.MarketTicker)

	// A sequence gap means at least one delta was lost: the book has
	// silently diverged and every further delta is untrusted until the
	// exchange resends a full snapshot.
	if gap, missed := d.checkSequence(env.SID, env.Seq); gap {
		d.logger.Warn("sequence gap detected, book state diverged",
			"ticker", wire.MarketTicker,
			"sid", env.SID,
			"got", env.Seq,
			"missed", missed,
		)
		d.count(func(s *Stats) { s.SeqGaps++ })
		b.MarkSuspect()
		d.requestFreshSnapshot(ctx, wire.MarketTicker)
		return nil
	}

	if b.Suspect() {
		d.logger.Warn("dropping delta for suspect book, awaiting fresh snapshot",
			"ticker", wire.MarketTicker,
		)
		d.count(func(s *Stats) { s.Dropped++ })
		return nil
	}

	if err := b.ApplyDelta(model.Side(wire.Side), wire.Price, wire.Delta); err != nil {
		var invalid *book.InvalidDeltaError
		if errors.As(err, &invalid) {
			d.logger.Error("invalid delta, book state diverged",
				"ticker", wire.MarketTicker,
				"side", wire.Side,
				"price", wire.Price,
			)
			d.count(func(s *Stats) { s.InvalidDeltas++ })
			d.requestFreshSnapshot(ctx, wire.MarketTicker)
			return nil
		}
		return err
	}
	d.count(func(s *Stats) { s.Deltas++ })

	rec := model.SnapshotRecord{
		Ticker: wire.MarketTicker,
		TS:     deltaTimestamp(wire.TS, receivedAt),
		Book:   b.Materialize(),
	}
	if err := d.sink.RecordSnapshot(ctx, rec); err != nil {
		return fmt.Errorf("record snapshot %s: %w", wire.MarketTicker, err)
	}
	return nil
}

// handleTrade emits exactly one trade record per message. No state mutation.
func (d *Dispatcher) handleTrade(ctx context.Context, msg json.RawMessage) error {
	var wire tradeWire
	if err := json.Unmarshal(msg, &wire); err != nil {
		d.logger.Warn("dropping malformed trade", "error", err)
		d.count(func(s *Stats) { s.ParseErrors++ })
		return nil
	}
	if wire.MarketTicker == "" || wire.TS == 0 {
		d.logger.Warn("dropping trade missing ticker or timestamp",
			"ticker", wire.MarketTicker,
			"ts", wire.TS,
		)
		d.count(func(s *Stats) { s.Dropped++ })
		return nil
	}
	if d.tracker.IsTerminal(wire.MarketTicker) {
		d.logger.Info("discarding trade for unsubscribed market", "ticker", wire.MarketTicker)
		d.count(func(s *Stats) { s.Dropped++ })
		return nil
	}

	tradeID, err := uuid.Parse(wire.TradeID)
	if err != nil {
		d.logger.Warn("trade has unparseable trade_id",
			"ticker", wire.MarketTicker,
			"trade_id", wire.TradeID,
		)
	}

	rec := model.TradeRecord{
		Ticker:    wire.MarketTicker,
		TS:        wire.TS,
		TradeID:   tradeID,
		Price:     wire.YesPrice,
		Count:     wire.Count,
		TakerSide: model.Side(wire.TakerSide),
	}
	d.count(func(s *Stats) { s.Trades++ })

	if err := d.sink.RecordTrade(ctx, rec); err != nil {
		return fmt.Errorf("record trade %s: %w", wire.MarketTicker, err)
	}
	return nil
}

// handleLifecycle drives the state machine. A determined market triggers
// unsubscribe commands for all three channels, exactly once.
func (d *Dispatcher) handleLifecycle(ctx context.Context, msg json.RawMessage) {
	var wire lifecycleWire
	if err := json.Unmarshal(msg, &wire); err != nil {
		d.logger.Warn("dropping malformed lifecycle message", "error", err)
		d.count(func(s *Stats) { s.ParseErrors++ })
		return
	}
	if wire.MarketTicker == "" || wire.Status == "" {
		d.logger.Warn("dropping lifecycle message missing ticker or status",
			"ticker", wire.MarketTicker,
			"status", wire.Status,
		)
		d.count(func(s *Stats) { s.Dropped++ })
		return
	}
	d.count(func(s *Stats) { s.Lifecycle++ })

	if !isDeterminedStatus(wire.Status) {
		d.logger.Debug("lifecycle status update",
			"ticker", wire.MarketTicker,
			"status", wire.Status,
		)
		return
	}

	if !d.tracker.MarkDetermined(wire.MarketTicker) {
		// Already determined/unsubscribed, or never subscribed.
		d.logger.Debug("ignoring repeat lifecycle event",
			"ticker", wire.MarketTicker,
			"status", wire.Status,
		)
		return
	}

	if err := d.cmd.Unsubscribe(ctx, AllChannels(), []string{wire.MarketTicker}); err != nil {
		// Best effort: the market no longer produces data we want, so a
		// failed unsubscribe must not keep the session alive forever.
		d.logger.Warn("unsubscribe failed",
			"ticker", wire.MarketTicker,
			"error", err,
		)
	}
	d.tracker.MarkUnsubscribed(wire.MarketTicker)
	d.books.Evict(wire.MarketTicker)
}

// checkSequence reports whether the delta stream for one subscription skipped
// sequence numbers, and how many were missed. Frames without a sequence
// number carry no ordering information and are never treated as gaps.
func (d *Dispatcher) checkSequence(sid, seq int64) (gap bool, missed int64) {
	if seq == 0 {
		return false, 0
	}

	last, ok := d.lastSeq[sid]
	d.lastSeq[sid] = seq
	if !ok {
		// First frame seen for this subscription is the baseline.
		return false, 0
	}
	if seq != last+1 {
		return true, seq - last - 1
	}
	return false, 0
}

// requestFreshSnapshot re-subscribes the orderbook channel for one market so
// the exchange resends a full snapshot. The suspect book keeps dropping
// deltas until that snapshot arrives.
func (d *Dispatcher) requestFreshSnapshot(ctx context.Context, ticker string) {
	if err := d.cmd.Unsubscribe(ctx, []string{ChannelOrderbook}, []string{ticker}); err != nil {
		d.logger.Warn("orderbook unsubscribe for refresh failed", "ticker", ticker, "error", err)
	}
	if err := d.cmd.Subscribe(ctx, []string{ChannelOrderbook}, []string{ticker}); err != nil {
		d.logger.Warn("orderbook resubscribe for refresh failed", "ticker", ticker, "error", err)
	}
}

// isDeterminedStatus reports whether a lifecycle status means the market
// stopped trading for good.
func isDeterminedStatus(status string) bool {
	return status == "closed" || status == "settled" || status == "determined"
}

func pairsToLevels(pairs [][2]int) []model.PriceLevel {
	out := make([]model.PriceLevel, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, model.PriceLevel{Price: p[0], Size: p[1]})
	}
	return out
}

// deltaTimestamp parses the RFC 3339 exchange timestamp, falling back to the
// local receive time.
func deltaTimestamp(ts string, receivedAt time.Time) int64 {
	if ts == "" {
		return receivedAt.Unix()
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return receivedAt.Unix()
	}
	return t.Unix()
}
