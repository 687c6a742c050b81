package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/kalshi-stream/internal/auth"
	"github.com/rickgao/kalshi-stream/internal/book"
	"github.com/rickgao/kalshi-stream/internal/config"
	"github.com/rickgao/kalshi-stream/internal/connection"
	"github.com/rickgao/kalshi-stream/internal/dispatch"
	"github.com/rickgao/kalshi-stream/internal/lifecycle"
)

// Config holds everything a session needs to dial and run.
type Config struct {
	URL         string
	Credentials *auth.Credentials
	Session     config.SessionConfig
}

// pendingCmd tracks one in-flight command awaiting its response.
type pendingCmd struct {
	cmd      string
	channels []string
	critical bool // a rejected critical command is fatal to the session
	sentAt   time.Time
}

// Session owns one WebSocket connection end to end.
type Session struct {
	cfg        Config
	tracker    *lifecycle.Tracker
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger

	// newClient builds the transport; swapped out in tests.
	newClient func() connection.Client

	client connection.Client

	cmdID     atomic.Int64
	pendingMu sync.Mutex
	pending   map[int64]pendingCmd
}

// New creates a session over the given book registry, tracker and sink. The
// session is its own dispatcher's Commander: subscription commands triggered
// by lifecycle events go back out on the same connection.
func New(cfg Config, books *book.Registry, tracker *lifecycle.Tracker, sink dispatch.Sink, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		cfg:     cfg,
		tracker: tracker,
		logger:  logger,
		pending: make(map[int64]pendingCmd),
	}
	s.dispatcher = dispatch.New(books, tracker, sink, s, logger)
	s.newClient = func() connection.Client {
		return connection.NewClient(connection.ClientConfig{
			URL:          cfg.URL,
			Credentials:  cfg.Credentials,
			PingTimeout:  cfg.Session.PingTimeout,
			WriteTimeout: cfg.Session.WriteTimeout,
			BufferSize:   cfg.Session.BufferSize,
		}, logger)
	}
	return s
}

// Stats returns the dispatcher's frame counters.
func (s *Session) Stats() dispatch.Stats {
	return s.dispatcher.Stats()
}

// Run connects, subscribes every tracked market and processes frames until
// every market is unsubscribed, the context is cancelled, or the transport
// fails beyond repair. Returns nil on normal termination.
func (s *Session) Run(ctx context.Context) error {
	s.client = s.newClient()
	if err := s.client.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer s.client.Close()

	if err := s.subscribeAll(ctx, s.tracker.Active()); err != nil {
		return fmt.Errorf("initial subscribe: %w", err)
	}

	janitor := time.NewTicker(s.cfg.Session.SubscribeTimeout)
	defer janitor.Stop()

	for {
		select {
		case <-ctx.Done():
			s.unsubscribeActive()
			return ctx.Err()

		case <-s.tracker.Done():
			s.logger.Info("all markets unsubscribed, session complete")
			return nil

		case err := <-s.client.Errors():
			s.logger.Warn("connection error", "error", err)
			if err := s.reconnect(ctx); err != nil {
				return err
			}

		case msg := <-s.client.Messages():
			if resp, ok := tryParseResponse(msg.Data); ok {
				if err := s.routeResponse(resp); err != nil {
					return err
				}
				continue
			}
			if err := s.dispatcher.Dispatch(ctx, msg.Data, msg.ReceivedAt); err != nil {
				return fmt.Errorf("dispatch: %w", err)
			}

		case <-janitor.C:
			s.expirePending()
		}
	}
}

// Subscribe issues one subscribe command covering channels x tickers.
// Fire-and-forget: the response is correlated when it arrives.
func (s *Session) Subscribe(ctx context.Context, channels, tickers []string) error {
	return s.sendCommand(ctx, "subscribe", channels, connection.SubscribeParams{
		Channels:      channels,
		MarketTickers: tickers,
	}, false)
}

// Unsubscribe issues one unsubscribe command covering channels x tickers.
func (s *Session) Unsubscribe(ctx context.Context, channels, tickers []string) error {
	return s.sendCommand(ctx, "unsubscribe", channels, connection.UnsubscribeParams{
		Channels:      channels,
		MarketTickers: tickers,
	}, false)
}

// subscribeAll subscribes every channel for the given tickers, one command
// per channel, and marks each ticker Subscribed. A send failure here is
// fatal: a session that cannot subscribe collects nothing.
func (s *Session) subscribeAll(ctx context.Context, tickers []string) error {
	if len(tickers) == 0 {
		return nil
	}

	for _, channel := range dispatch.AllChannels() {
		err := s.sendCommand(ctx, "subscribe", []string{channel}, connection.SubscribeParams{
			Channels:      []string{channel},
			MarketTickers: tickers,
		}, true)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", channel, err)
		}
	}

	for _, ticker := range tickers {
		s.tracker.MarkSubscribed(ticker)
	}

	s.logger.Info("subscribed markets",
		"markets", len(tickers),
		"channels", len(dispatch.AllChannels()),
	)
	return nil
}

// sendCommand assigns an ID, registers the pending entry and writes the
// command to the connection.
func (s *Session) sendCommand(ctx context.Context, cmd string, channels []string, params any, critical bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	id := s.cmdID.Add(1)
	data, err := json.Marshal(connection.Command{
		ID:     id,
		Cmd:    cmd,
		Params: params,
	})
	if err != nil {
		return fmt.Errorf("marshal %s command: %w", cmd, err)
	}

	s.pendingMu.Lock()
	s.pending[id] = pendingCmd{
		cmd:      cmd,
		channels: channels,
		critical: critical,
		sentAt:   time.Now(),
	}
	s.pendingMu.Unlock()

	if err := s.client.Send(data); err != nil {
		s.pendingMu.Lock()
		delete(s.pending, id)
		s.pendingMu.Unlock()
		return fmt.Errorf("send %s command: %w", cmd, err)
	}

	return nil
}

// tryParseResponse reports whether a frame is a command response. Responses
// carry an id; data messages never do.
func tryParseResponse(data []byte) (connection.Response, bool) {
	var resp connection.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return connection.Response{}, false
	}
	switch resp.Type {
	case "subscribed", "unsubscribed", "ok", "error":
		return resp, resp.ID != 0
	default:
		return connection.Response{}, false
	}
}

// routeResponse matches a response to its pending command. An error response
// to a critical command kills the session.
func (s *Session) routeResponse(resp connection.Response) error {
	s.pendingMu.Lock()
	entry, ok := s.pending[resp.ID]
	delete(s.pending, resp.ID)
	s.pendingMu.Unlock()

	if !ok {
		// Response to a command from before a reconnect.
		s.logger.Debug("response for unknown command", "id", resp.ID, "type", resp.Type)
		return nil
	}

	if resp.Type == "error" {
		var errMsg connection.ErrorMsg
		json.Unmarshal(resp.Msg, &errMsg)
		s.logger.Error("command rejected",
			"cmd", entry.cmd,
			"channels", entry.channels,
			"code", errMsg.Code,
			"message", errMsg.Message,
		)
		if entry.critical {
			return fmt.Errorf("%s rejected: %s %s", entry.cmd, errMsg.Code, errMsg.Message)
		}
		return nil
	}

	s.logger.Debug("command acknowledged",
		"cmd", entry.cmd,
		"type", resp.Type,
		"latency", time.Since(entry.sentAt),
	)
	return nil
}

// expirePending drops commands that never got a response.
func (s *Session) expirePending() {
	cutoff := time.Now().Add(-s.cfg.Session.SubscribeTimeout)

	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	for id, entry := range s.pending {
		if entry.sentAt.Before(cutoff) {
			s.logger.Warn("command response timed out",
				"cmd", entry.cmd,
				"channels", entry.channels,
			)
			delete(s.pending, id)
		}
	}
}

// reconnect replaces the connection and resubscribes every market still
// active. Books keep their state; the fresh orderbook subscription makes the
// exchange resend full snapshots, which replace any stale levels.
func (s *Session) reconnect(ctx context.Context) error {
	s.client.Close()
	s.clearPending()

	wait := s.cfg.Session.ReconnectBaseWait
	maxAttempts := s.cfg.Session.MaxReconnects

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		s.logger.Info("reconnecting",
			"attempt", attempt,
			"max_attempts", maxAttempts,
		)

		client := s.newClient()
		if err := client.Connect(ctx); err != nil {
			s.logger.Warn("reconnect failed", "attempt", attempt, "error", err)
			wait *= 2
			if wait > s.cfg.Session.ReconnectMaxWait {
				wait = s.cfg.Session.ReconnectMaxWait
			}
			continue
		}

		s.client = client
		if err := s.subscribeAll(ctx, s.tracker.Active()); err != nil {
			return fmt.Errorf("resubscribe after reconnect: %w", err)
		}

		s.logger.Info("reconnected", "attempt", attempt)
		return nil
	}

	return fmt.Errorf("reconnect: gave up after %d attempts", maxAttempts)
}

// unsubscribeActive best-effort unsubscribes everything still active. Used
// on shutdown so the server stops streaming immediately.
func (s *Session) unsubscribeActive() {
	active := s.tracker.Active()
	if len(active) == 0 {
		return
	}

	// The run context is already cancelled here.
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Session.WriteTimeout)
	defer cancel()

	if err := s.Unsubscribe(ctx, dispatch.AllChannels(), active); err != nil {
		s.logger.Warn("shutdown unsubscribe failed", "error", err)
	}
}

func (s *Session) clearPending() {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	if len(s.pending) > 0 {
		s.logger.Debug("discarding pending commands", "count", len(s.pending))
	}
	s.pending = make(map[int64]pendingCmd)
}
