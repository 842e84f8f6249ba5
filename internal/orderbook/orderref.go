package orderbook

import "github.com/l2book/engine/internal/event"

// OrderRef is a resting order as tracked by the book: just enough state to
// match and cancel against, not the full wire tick that created it.
//
// Invariant: VolumeRemaining > 0 while indexed; an order whose remaining
// volume drops to zero or below is dropped from both its price level and the
// order index in the same step.
type OrderRef struct {
	ID              uint64
	PriceTicks      int64
	Side            event.Side
	VolumeRemaining int64
}
