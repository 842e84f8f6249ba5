package orderbook

import "github.com/l2book/engine/internal/event"

// These accessors are for tests and external read-only observers (e.g. the
// control server's DEPTH command). Per spec §5 they take the book's
// shared-exclusive lock for read, so they're safe to call concurrently with
// the book's own goroutine running Run.

// BestBid returns the highest resting bid price and its aggregate volume.
func (b *Book) BestBid() (priceTicks, volume int64, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	level := b.bids.Min()
	if level == nil {
		return 0, 0, false
	}
	return level.Price, level.TotalVolume, true
}

// BestAsk returns the lowest resting ask price and its aggregate volume.
func (b *Book) BestAsk() (priceTicks, volume int64, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	level := b.asks.Min()
	if level == nil {
		return 0, 0, false
	}
	return level.Price, level.TotalVolume, true
}

// VolumeAt returns the aggregate resting volume at a given price on the
// given side, or 0 if there's no level there.
func (b *Book) VolumeAt(side event.Side, priceTicks int64) int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	level := b.treeFor(side).Get(priceTicks)
	if level == nil {
		return 0
	}
	return level.TotalVolume
}

// OrderVolumeRemaining returns the remaining volume of an indexed order, or
// (0, false) if it isn't currently resting.
func (b *Book) OrderVolumeRemaining(id uint64) (int64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	node, ok := b.orderIndex[id]
	if !ok {
		return 0, false
	}
	return node.ref.VolumeRemaining, true
}

// OrderIndexLen returns the number of currently resting orders.
func (b *Book) OrderIndexLen() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.orderIndex)
}

// Watermark returns the book's monotonic event-time high-water mark.
func (b *Book) Watermark() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastEventTimestampMs
}

// AlreadyAlerted reports whether a seal-unwind alert has fired for this
// symbol.
func (b *Book) AlreadyAlerted() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.alreadyAlerted
}

// MaxSealVolume returns the current seal-volume high-water mark.
func (b *Book) MaxSealVolume() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.maxSealVolume
}

// PendingLen returns the number of events currently awaiting resolution.
func (b *Book) PendingLen() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.pendingEvents)
}
