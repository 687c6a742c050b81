package dispatch

import "encoding/json"

// Subscription channels on the exchange stream.
const (
	ChannelOrderbook = "orderbook_delta"
	ChannelTrade     = "trade"
	ChannelLifecycle = "market_lifecycle_v2"
)

// AllChannels lists every channel a market is subscribed on.
func AllChannels() []string {
	return []string{ChannelOrderbook, ChannelTrade, ChannelLifecycle}
}

// Message types carried in the envelope. The orderbook channel delivers two
// kinds: a full snapshot on subscribe and deltas afterwards.
const (
	typeSnapshot  = "orderbook_snapshot"
	typeDelta     = "orderbook_delta"
	typeTrade     = "trade"
	typeLifecycle = "market_lifecycle_v2"
)

// envelope is the outer frame shape: {type, sid, seq, msg}.
type envelope struct {
	Type string          `json:"type"`
	SID  int64           `json:"sid"`
	Seq  int64           `json:"seq"`
	Msg  json.RawMessage `json:"msg"`
}

// snapshotWire is the msg payload for orderbook_snapshot. Levels arrive as
// [price_cents, size] pairs and are applied in array order.
type snapshotWire struct {
	MarketTicker string   `json:"market_ticker"`
	Yes          [][2]int `json:"yes"`
	No           [][2]int `json:"no"`
}

// deltaWire is the msg payload for orderbook_delta. The timestamp is an
// RFC 3339 string (e.g. "2025-11-08T14:36:53.091704Z").
type deltaWire struct {
	MarketTicker string `json:"market_ticker"`
	Price        int    `json:"price"`
	Delta        int    `json:"delta"`
	Side         string `json:"side"`
	TS           string `json:"ts"`
}

// tradeWire is the msg payload for trade messages.
type tradeWire struct {
	MarketTicker string `json:"market_ticker"`
	TradeID      string `json:"trade_id"`
	Count        int    `json:"count"`
	YesPrice     int    `json:"yes_price"`
	NoPrice      int    `json:"no_price"`
	TakerSide    string `json:"taker_side"`
	TS           int64  `json:"ts"`
}

// lifecycleWire is the msg payload for market_lifecycle_v2 messages.
type lifecycleWire struct {
	MarketTicker string `json:"market_ticker"`
	Status       string `json:"status"`
	TS           int64  `json:"ts"`
}

// Stats contains dispatcher counters.
type Stats struct {
	Frames        int64
	Snapshots     int64
	Deltas        int64
	Trades        int64
	Lifecycle     int64
	ParseErrors   int64
	Dropped       int64
	InvalidDeltas int64
	SeqGaps       int64
}
