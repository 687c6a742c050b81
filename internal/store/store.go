package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/kalshi-stream/internal/model"
)

// ErrClosed is returned for writes after Stop.
var ErrClosed = errors.New("store closed")

// Config holds sink settings.
type Config struct {
	BatchSize     int           // Flush when either batch reaches this size
	FlushInterval time.Duration // Periodic flush interval
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     500,
		FlushInterval: time.Second,
	}
}

// Stats contains sink counters.
type Stats struct {
	TradeInserts    int64
	SnapshotInserts int64
	Flushes         int64
	FlushErrors     int64
}

// tradeRow is the persisted shape of one trade.
type tradeRow struct {
	TS     int64
	Ticker string
	Trade  []byte // jsonb payload
}

// snapshotRow is the persisted shape of one book snapshot.
type snapshotRow struct {
	TS       int64
	Ticker   string
	Snapshot []byte // jsonb payload
}

// Store is the persistence sink for trades and snapshots.
type Store struct {
	cfg    Config
	db     *pgxpool.Pool
	logger *slog.Logger

	batchMu       sync.Mutex
	tradeBatch    []tradeRow
	snapshotBatch []snapshotRow
	closed        bool
	stats         Stats
	flushErr      error // first flush failure, surfaced on Stop

	// flushMu serializes flushes so batches land in append order.
	flushMu sync.Mutex

	flushTicker *time.Ticker
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// New creates a Store writing to db.
func New(cfg Config, db *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		cfg:           cfg,
		db:            db,
		logger:        logger,
		tradeBatch:    make([]tradeRow, 0, cfg.BatchSize),
		snapshotBatch: make([]snapshotRow, 0, cfg.BatchSize),
	}
}

// Start begins the periodic flush loop.
func (s *Store) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.flushTicker = time.NewTicker(s.cfg.FlushInterval)

	s.wg.Add(1)
	go s.flushLoop()

	s.logger.Info("store started",
		"batch_size", s.cfg.BatchSize,
		"flush_interval", s.cfg.FlushInterval,
	)
	return nil
}

// Stop flushes remaining records and shuts down. It returns the first flush
// failure seen during the run, so storage faults reach the operator.
func (s *Store) Stop(ctx context.Context) error {
	s.logger.Info("stopping store")

	if s.cancel != nil {
		s.cancel()
	}
	if s.flushTicker != nil {
		s.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("store stop timed out")
	}

	// Refuse further writes before the final flush, so nothing can land in
	// the batch after it and be lost.
	s.batchMu.Lock()
	s.closed = true
	s.batchMu.Unlock()

	s.flush(context.Background())

	s.batchMu.Lock()
	err := s.flushErr
	s.batchMu.Unlock()

	s.logger.Info("store stopped")
	return err
}

// Stats returns current counters.
func (s *Store) Stats() Stats {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	return s.stats
}

// RecordTrade appends one trade record. Fire-and-forget: the row is batched
// and written by the flush loop.
func (s *Store) RecordTrade(ctx context.Context, rec model.TradeRecord) error {
	payload, err := json.Marshal(tradePayload{
		TradeID:   rec.TradeID.String(),
		Price:     rec.Price,
		Count:     rec.Count,
		TakerSide: string(rec.TakerSide),
	})
	if err != nil {
		return fmt.Errorf("encode trade payload: %w", err)
	}

	s.batchMu.Lock()
	if s.closed {
		s.batchMu.Unlock()
		return ErrClosed
	}
	s.tradeBatch = append(s.tradeBatch, tradeRow{
		TS:     rec.TS,
		Ticker: rec.Ticker,
		Trade:  payload,
	})
	shouldFlush := len(s.tradeBatch) >= s.cfg.BatchSize
	s.batchMu.Unlock()

	if shouldFlush {
		s.flush(ctx)
	}
	return nil
}

// RecordSnapshot appends one snapshot record.
func (s *Store) RecordSnapshot(ctx context.Context, rec model.SnapshotRecord) error {
	payload, err := json.Marshal(rec.Book)
	if err != nil {
		return fmt.Errorf("encode snapshot payload: %w", err)
	}

	s.batchMu.Lock()
	if s.closed {
		s.batchMu.Unlock()
		return ErrClosed
	}
	s.snapshotBatch = append(s.snapshotBatch, snapshotRow{
		TS:       rec.TS,
		Ticker:   rec.Ticker,
		Snapshot: payload,
	})
	shouldFlush := len(s.snapshotBatch) >= s.cfg.BatchSize
	s.batchMu.Unlock()

	if shouldFlush {
		s.flush(ctx)
	}
	return nil
}

// tradePayload is the jsonb shape stored in the trades table.
type tradePayload struct {
	TradeID   string `json:"trade_id"`
	Price     int    `json:"price"`
	Count     int    `json:"count"`
	TakerSide string `json:"taker_side"`
}

// flushLoop periodically flushes both batches.
func (s *Store) flushLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.flushTicker.C:
			s.flush(s.ctx)
		}
	}
}

// flush writes both batches to the database in append order.
func (s *Store) flush(ctx context.Context) {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.batchMu.Lock()
	trades := s.tradeBatch
	snapshots := s.snapshotBatch
	s.tradeBatch = make([]tradeRow, 0, s.cfg.BatchSize)
	s.snapshotBatch = make([]snapshotRow, 0, s.cfg.BatchSize)
	s.batchMu.Unlock()

	if len(trades) == 0 && len(snapshots) == 0 {
		return
	}

	start := time.Now()

	if len(trades) > 0 {
		if err := s.insertTrades(ctx, trades); err != nil {
			s.recordFlushError(fmt.Errorf("insert trades: %w", err), len(trades))
		} else {
			s.batchMu.Lock()
			s.stats.TradeInserts += int64(len(trades))
			s.batchMu.Unlock()
		}
	}

	if len(snapshots) > 0 {
		if err := s.insertSnapshots(ctx, snapshots); err != nil {
			s.recordFlushError(fmt.Errorf("insert snapshots: %w", err), len(snapshots))
		} else {
			s.batchMu.Lock()
			s.stats.SnapshotInserts += int64(len(snapshots))
			s.batchMu.Unlock()
		}
	}

	s.batchMu.Lock()
	s.stats.Flushes++
	s.batchMu.Unlock()

	s.logger.Debug("flushed",
		"trades", len(trades),
		"snapshots", len(snapshots),
		"duration", time.Since(start),
	)
}

func (s *Store) recordFlushError(err error, count int) {
	s.logger.Error("batch insert failed", "error", err, "count", count)

	s.batchMu.Lock()
	s.stats.FlushErrors++
	if s.flushErr == nil {
		s.flushErr = err
	}
	s.batchMu.Unlock()
}

func (s *Store) insertTrades(ctx context.Context, rows []tradeRow) error {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(
			`INSERT INTO trades (ts, ticker, trade) VALUES ($1, $2, $3)`,
			r.TS, r.Ticker, r.Trade,
		)
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) insertSnapshots(ctx context.Context, rows []snapshotRow) error {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(
			`INSERT INTO orderbook_snapshots (ts, ticker, snapshot) VALUES ($1, $2, $3)`,
			r.TS, r.Ticker, r.Snapshot,
		)
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}
