package model

import "github.com/google/uuid"

// Side identifies one side of a binary market.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Valid reports whether the side is one of yes/no.
func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

// PriceLevel is a single resting price level in an order book.
type PriceLevel struct {
	Price int `json:"price"` // Price in cents (1-99)
	Size  int `json:"size"`  // Resting contracts at this price
}

// BookView is an immutable point-in-time view of one market's order book.
// Both sides are sorted ascending by price and contain no zero-size levels.
type BookView struct {
	Yes []PriceLevel `json:"yes"`
	No  []PriceLevel `json:"no"`
}

// SnapshotRecord is a full materialized book state persisted after every
// snapshot or delta message. Immutable once written.
type SnapshotRecord struct {
	Ticker string
	TS     int64 // Unix seconds
	Book   BookView
}

// TradeRecord is one executed trade. Each trade message produces exactly
// one record; trades are never updated or deduplicated.
type TradeRecord struct {
	Ticker    string
	TS        int64     // Unix seconds (exchange timestamp)
	TradeID   uuid.UUID // Exchange trade ID (uuid.Nil if unparseable)
	Price     int       // YES price in cents
	Count     int       // Number of contracts
	TakerSide Side
}

// LifecycleEvent is a market status change from the lifecycle channel.
// It drives subscription state transitions only and is not persisted.
type LifecycleEvent struct {
	Ticker string
	Status string // e.g. "active", "closed", "settled", "determined"
	TS     int64  // Unix seconds
}
