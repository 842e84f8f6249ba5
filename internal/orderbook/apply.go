package orderbook

import "github.com/l2book/engine/internal/event"

// applyEvent is the book's single mutation entry point: every history-replay
// and live event, and every re-drained pending event, funnels through here.
func (b *Book) applyEvent(ev event.MarketEvent) {
	switch {
	case ev.Order != nil:
		b.applyOrderTick(ev.Order)
	case ev.Trade != nil:
		b.applyTradeTick(ev.Trade)
	}
}

// recordReplayedID tracks every id seen during phase A replay into a
// scratch map kept separate from historyOrderIDs/historyTradeIDs, so the
// per-order/per-trade dedup those maps drive in applyOrderTick/applyTradeTick
// stays empty (and therefore inert) for the whole replay — spec §4.3 step 4
// builds the dedup set "after the full replay", precisely so a second event
// sharing an id mid-replay (e.g. a Shanghai insert followed by its own
// cancel, same orig_num) is applied instead of spuriously deduped.
func recordReplayedID(ev event.MarketEvent, orderIDs, tradeIDs map[uint64]int64) {
	switch {
	case ev.Order != nil:
		orderIDs[ev.Order.ID()] = ev.Order.TimestampMs
	case ev.Trade != nil:
		tradeIDs[ev.Trade.TradeNum] = ev.Trade.TimestampMs
	}
}

func (b *Book) advanceWatermark(ts int64) {
	if ts > b.lastEventTimestampMs {
		b.lastEventTimestampMs = ts
	}
}

// applyOrderTick handles a single per-order tick per the market-specific
// rules in spec §4.3.1. Market and best-of-side orders carry no resting
// price and are ignored on both exchanges.
func (b *Book) applyOrderTick(o *event.OrderTick) {
	id := o.ID()
	if _, dup := b.historyOrderIDs[id]; dup {
		b.advanceWatermark(o.TimestampMs)
		return
	}
	b.advanceWatermark(o.TimestampMs)

	switch o.Kind {
	case event.OrderKindLimit:
		b.insertOrder(id, o.PriceTicks, o.Side, o.Volume)
	case event.OrderKindCancel:
		b.cancelOrder(id, o.Volume, o.TimestampMs, event.MarketEvent{Order: o})
	case event.OrderKindMarket, event.OrderKindBestOfSide:
		// Price unknown: never entered the book, nothing to do.
	}
}

// insertOrder appends a new resting order to its (side, price) level,
// creating the level if this is the first order at that price.
func (b *Book) insertOrder(id uint64, priceTicks int64, side event.Side, volume int64) {
	tree := b.treeFor(side)
	level := tree.Get(priceTicks)
	if level == nil {
		level = NewPriceLevel(priceTicks)
		tree.Insert(level)
	}
	ref := &OrderRef{ID: id, PriceTicks: priceTicks, Side: side, VolumeRemaining: volume}
	b.orderIndex[id] = level.Append(ref)
}

// cancelOrder reduces a resting order's volume (spec's order-channel cancel
// and the trade-channel cancel report share this logic). If the order isn't
// indexed yet, the event is retried via pending unless it's already stale.
func (b *Book) cancelOrder(id uint64, volume int64, timestampMs int64, original event.MarketEvent) {
	node, ok := b.orderIndex[id]
	if !ok {
		if timestampMs+EventTimeoutMs >= b.lastEventTimestampMs {
			b.pendingEvents = append(b.pendingEvents, original)
		}
		return
	}
	level := node.level
	level.decrementVolume(node, volume)
	if node.ref.VolumeRemaining <= 0 {
		b.removeOrder(node)
	}
	if level.TotalVolume <= 0 && level.IsEmpty() {
		b.treeFor(node.ref.Side).Delete(level.Price)
	}
}

// removeOrder erases a node from its level's list and from the order index,
// removing the now-empty level from its tree.
func (b *Book) removeOrder(node *orderNode) {
	level := node.level
	id := node.ref.ID
	side := node.ref.Side
	level.remove(node)
	delete(b.orderIndex, id)
	if level.IsEmpty() {
		b.treeFor(side).Delete(level.Price)
	}
}

func (b *Book) treeFor(side event.Side) *RBTree {
	if side == event.SideBuy {
		return b.bids
	}
	return b.asks
}

// applyTradeTick handles a single per-trade tick per spec §4.3.2.
func (b *Book) applyTradeTick(t *event.TradeTick) {
	if _, dup := b.historyTradeIDs[t.TradeNum]; dup {
		b.advanceWatermark(t.TimestampMs)
		return
	}
	b.advanceWatermark(t.TimestampMs)

	if t.Kind == event.TradeKindCancel {
		b.applyTradeCancel(t)
		return
	}
	b.applyExecution(t)
}

// applyTradeCancel handles Shenzhen-style cancellation reports carried on
// the trade channel: each nonzero side is reduced independently.
func (b *Book) applyTradeCancel(t *event.TradeTick) {
	ev := event.MarketEvent{Trade: t}
	if t.BuyID != 0 {
		b.cancelOrder(t.BuyID, t.Volume, t.TimestampMs, ev)
	}
	if t.SellID != 0 {
		b.cancelOrder(t.SellID, t.Volume, t.TimestampMs, ev)
	}
}

// applyExecution implements the four cases of spec §4.3.2 for kind=execution
// trades, guarding against double-decrement when a trade's two legs arrive
// on separate passes through apply_event.
func (b *Book) applyExecution(t *event.TradeTick) {
	_, buyPresent := b.orderIndex[t.BuyID]
	_, sellPresent := b.orderIndex[t.SellID]

	switch {
	case buyPresent && sellPresent:
		if _, done := b.buyDoneTradeIDs[t.TradeNum]; !done {
			b.onMatch(t.BuyID, t.Volume, t.Side)
		}
		if _, done := b.sellDoneTradeIDs[t.TradeNum]; !done {
			b.onMatch(t.SellID, t.Volume, t.Side)
		}
		delete(b.buyDoneTradeIDs, t.TradeNum)
		delete(b.sellDoneTradeIDs, t.TradeNum)

	case buyPresent:
		if _, done := b.buyDoneTradeIDs[t.TradeNum]; !done {
			b.onMatch(t.BuyID, t.Volume, t.Side)
			b.buyDoneTradeIDs[t.TradeNum] = struct{}{}
		}
		b.pendingEvents = append(b.pendingEvents, event.MarketEvent{Trade: t})

	case sellPresent:
		if _, done := b.sellDoneTradeIDs[t.TradeNum]; !done {
			b.onMatch(t.SellID, t.Volume, t.Side)
			b.sellDoneTradeIDs[t.TradeNum] = struct{}{}
		}
		b.pendingEvents = append(b.pendingEvents, event.MarketEvent{Trade: t})

	default:
		if t.TimestampMs+EventTimeoutMs >= b.lastEventTimestampMs {
			b.pendingEvents = append(b.pendingEvents, event.MarketEvent{Trade: t})
		} else {
			delete(b.buyDoneTradeIDs, t.TradeNum)
			delete(b.sellDoneTradeIDs, t.TradeNum)
		}
	}
}

// onMatch applies an execution's volume to one side of a resting order.
// Shanghai's feed never publishes the aggressor as a resting order, so if
// the looked-up order's side equals the trade's side on that side of the
// call, it is the aggressor and must not be decremented.
func (b *Book) onMatch(orderID uint64, volume int64, tradeSide event.Side) {
	node, ok := b.orderIndex[orderID]
	if !ok {
		return
	}
	if b.market == event.MarketSH && node.ref.Side == tradeSide {
		return
	}
	level := node.level
	level.decrementVolume(node, volume)
	if node.ref.VolumeRemaining <= 0 {
		b.removeOrder(node)
		return
	}
	if level.TotalVolume <= 0 {
		b.treeFor(node.ref.Side).Delete(level.Price)
	}
}
