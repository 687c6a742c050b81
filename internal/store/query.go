package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rickgao/kalshi-stream/internal/model"
)

// QueryOptions filters read queries. Zero values mean "no filter":
// an empty Ticker matches all tickers, a zero StartTS or EndTS leaves
// that end of the time range open. EndTS is inclusive.
type QueryOptions struct {
	Ticker  string
	StartTS int64
	EndTS   int64
}

// StoredTrade is one persisted trade row.
type StoredTrade struct {
	TS        int64
	Ticker    string
	TradeID   string
	Price     int
	Count     int
	TakerSide string
}

// StoredSnapshot is one persisted snapshot row.
type StoredSnapshot struct {
	TS     int64
	Ticker string
	Book   model.BookView
}

// whereClause builds the filter SQL and its arguments.
func (q QueryOptions) whereClause() (string, []any) {
	var conds []string
	var args []any

	if q.Ticker != "" {
		args = append(args, q.Ticker)
		conds = append(conds, fmt.Sprintf("ticker = $%d", len(args)))
	}
	if q.StartTS != 0 {
		args = append(args, q.StartTS)
		conds = append(conds, fmt.Sprintf("ts >= $%d", len(args)))
	}
	if q.EndTS != 0 {
		args = append(args, q.EndTS)
		conds = append(conds, fmt.Sprintf("ts <= $%d", len(args)))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Trades returns persisted trades matching opts, ordered by timestamp.
func (s *Store) Trades(ctx context.Context, opts QueryOptions) ([]StoredTrade, error) {
	where, args := opts.whereClause()
	sql := `SELECT ts, ticker, trade FROM trades` + where + ` ORDER BY ts`

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []StoredTrade
	for rows.Next() {
		var (
			t       StoredTrade
			payload []byte
		)
		if err := rows.Scan(&t.TS, &t.Ticker, &payload); err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}

		var p tradePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("decode trade payload: %w", err)
		}
		t.TradeID = p.TradeID
		t.Price = p.Price
		t.Count = p.Count
		t.TakerSide = p.TakerSide

		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trades: %w", err)
	}
	return out, nil
}

// Snapshots returns persisted book snapshots matching opts, ordered by
// timestamp.
func (s *Store) Snapshots(ctx context.Context, opts QueryOptions) ([]StoredSnapshot, error) {
	where, args := opts.whereClause()
	sql := `SELECT ts, ticker, snapshot FROM orderbook_snapshots` + where + ` ORDER BY ts`

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []StoredSnapshot
	for rows.Next() {
		var (
			snap    StoredSnapshot
			payload []byte
		)
		if err := rows.Scan(&snap.TS, &snap.Ticker, &payload); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		if err := json.Unmarshal(payload, &snap.Book); err != nil {
			return nil, fmt.Errorf("decode snapshot payload: %w", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}
