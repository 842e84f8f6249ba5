// Package event defines the tick-event variants carried between the parser,
// the router, and each symbol's order book.
//
// All prices are integer ticks of 1/10000 yuan; all volumes are integer
// shares. Timestamps are milliseconds since midnight, derived from the
// wire's HHMMSSmmm / HMMSSmmm integer encoding.
package event

import "fmt"

// OrderKind identifies the semantics of an OrderTick.
type OrderKind int

const (
	OrderKindMarket     OrderKind = 1
	OrderKindLimit      OrderKind = 2
	OrderKindBestOfSide OrderKind = 3
	OrderKindCancel     OrderKind = 10
)

// Side is the buy/sell side of an order or trade.
type Side int

const (
	SideBuy  Side = 1
	SideSell Side = 2
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// TradeKind identifies the semantics of a TradeTick.
type TradeKind int

const (
	TradeKindExecution TradeKind = 0
	TradeKindCancel    TradeKind = 1
)

// Market identifies which exchange a symbol trades on. Derived from the
// symbol's leading digit: symbols starting with '6' are Shanghai, everything
// else is Shenzhen.
type Market string

const (
	MarketSH Market = "SH"
	MarketSZ Market = "SZ"
)

// MarketOf derives the exchange from a symbol.
func MarketOf(symbol string) Market {
	if len(symbol) > 0 && symbol[0] == '6' {
		return MarketSH
	}
	return MarketSZ
}

// MarketEvent is the variant type produced by the parser: exactly one of
// Order or Trade is non-nil.
type MarketEvent struct {
	Order *OrderTick
	Trade *TradeTick
}

// Symbol returns the symbol the event belongs to.
func (e MarketEvent) Symbol() string {
	if e.Order != nil {
		return e.Order.Symbol
	}
	if e.Trade != nil {
		return e.Trade.Symbol
	}
	return ""
}

// TimestampMs returns the event's millisecond-of-day timestamp.
func (e MarketEvent) TimestampMs() int64 {
	if e.Order != nil {
		return e.Order.TimestampMs
	}
	if e.Trade != nil {
		return e.Trade.TimestampMs
	}
	return 0
}

// OrderTick is a single per-order tick: a new limit order, a cancellation, or
// (ignored by the book) a market/best-of-side order.
type OrderTick struct {
	Seq         int64
	Symbol      string
	TimeRaw     int64 // raw HHMMSSmmm / HMMSSmmm field, kept for diagnostics
	TimestampMs int64
	OrderNum    uint64
	PriceTicks  int64
	Volume      int64
	Kind        OrderKind
	Side        Side
	OrigNum     uint64
	Seq2        int64
	Channel     string
}

// ID is the order identifier used to index the book: orig_num on Shanghai
// (whose live feed publishes the original resting order's number on cancels),
// order_num everywhere else.
func (o *OrderTick) ID() uint64 {
	if MarketOf(o.Symbol) == MarketSH {
		return o.OrigNum
	}
	return o.OrderNum
}

func (o *OrderTick) String() string {
	return fmt.Sprintf("OrderTick{seq:%d sym:%s id:%d px:%d vol:%d kind:%d side:%s}",
		o.Seq, o.Symbol, o.ID(), o.PriceTicks, o.Volume, o.Kind, o.Side)
}

// TradeTick is a single per-trade tick: an execution or a Shenzhen-style
// cancellation-via-trade-channel report.
type TradeTick struct {
	Seq         int64
	Symbol      string
	TimeRaw     int64
	TimestampMs int64
	TradeNum    uint64
	PriceTicks  int64
	Volume      int64
	Amount      int64
	Side        Side
	Kind        TradeKind
	SellID      uint64 // 0 means unknown counterparty
	BuyID       uint64 // 0 means unknown counterparty
}

func (t *TradeTick) String() string {
	return fmt.Sprintf("TradeTick{seq:%d sym:%s trade:%d px:%d vol:%d kind:%d buy:%d sell:%d}",
		t.Seq, t.Symbol, t.TradeNum, t.PriceTicks, t.Volume, t.Kind, t.BuyID, t.SellID)
}

// HistoryRequestKind distinguishes the two history-download streams a book
// waits on during phase A.
type HistoryRequestKind int

const (
	HistoryOrder HistoryRequestKind = iota
	HistoryTrade
)

func (k HistoryRequestKind) String() string {
	if k == HistoryTrade {
		return "Tran"
	}
	return "Order"
}

// FeedKind identifies which live feed a raw frame came from.
type FeedKind int

const (
	FeedOrder FeedKind = iota
	FeedTrade
)

// RawFrame is what a Feed Adapter pushes into the Router: an undecoded chunk
// of bytes from one of the two live feeds.
type RawFrame struct {
	Feed FeedKind
	Data []byte
}
