package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/kalshi-stream/internal/model"
)

func TestStore_RefusesWritesAfterStop(t *testing.T) {
	// A long flush interval keeps the loop from touching the (nil) pool.
	s := New(Config{BatchSize: 100, FlushInterval: time.Hour}, nil, nil)

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// Writes racing shutdown must fail loudly, not land in a batch that
	// will never be flushed.
	err := s.RecordTrade(ctx, model.TradeRecord{
		Ticker:  "MKT-A",
		TS:      1762612613,
		TradeID: uuid.Nil,
		Price:   50,
		Count:   1,
	})
	if !errors.Is(err, ErrClosed) {
		t.Errorf("RecordTrade after Stop = %v, want ErrClosed", err)
	}

	err = s.RecordSnapshot(ctx, model.SnapshotRecord{
		Ticker: "MKT-A",
		TS:     1762612613,
	})
	if !errors.Is(err, ErrClosed) {
		t.Errorf("RecordSnapshot after Stop = %v, want ErrClosed", err)
	}
}
