// Package orderbook implements the per-symbol limit order book: two
// red-black trees of price levels (bids, asks), each level a FIFO queue of
// resting orders, plus an id->node index for O(1) cancel/match.
package orderbook

// orderNode is a node in the doubly-linked list of orders resting at one
// price level. The doubly-linked list gives O(1) removal from anywhere in
// the queue, needed for cancels and fills that don't target the head.
type orderNode struct {
	ref   *OrderRef
	prev  *orderNode
	next  *orderNode
	level *PriceLevel // back-pointer for O(1) removal
}

// PriceLevel holds every order resting at a single price, in arrival order,
// plus the aggregate volume across them.
//
// Invariant: TotalVolume == sum of ref.VolumeRemaining over every node in the
// list. Every mutation path (insert, cancel, match) keeps this in lockstep;
// when the list becomes empty the level itself is removed from its tree.
type PriceLevel struct {
	Price       int64
	head        *orderNode
	tail        *orderNode
	count       int
	TotalVolume int64
}

// NewPriceLevel creates a new empty price level.
func NewPriceLevel(price int64) *PriceLevel {
	return &PriceLevel{Price: price}
}

// Count returns the number of orders resting at this level.
func (pl *PriceLevel) Count() int {
	return pl.count
}

// IsEmpty reports whether the level has no resting orders.
func (pl *PriceLevel) IsEmpty() bool {
	return pl.count == 0
}

// Head returns the oldest (highest time-priority) order at this level.
func (pl *PriceLevel) Head() *orderNode {
	return pl.head
}

// Append inserts an order at the tail of the level's FIFO queue.
func (pl *PriceLevel) Append(ref *OrderRef) *orderNode {
	node := &orderNode{ref: ref, level: pl}

	if pl.tail == nil {
		pl.head = node
		pl.tail = node
	} else {
		node.prev = pl.tail
		pl.tail.next = node
		pl.tail = node
	}

	pl.count++
	pl.TotalVolume += ref.VolumeRemaining
	return node
}

// remove unlinks a node from the level's queue and decrements the
// aggregate by the order's remaining volume at the time of removal.
func (pl *PriceLevel) remove(node *orderNode) {
	if node == nil {
		return
	}

	pl.TotalVolume -= node.ref.VolumeRemaining
	pl.count--

	if node.prev != nil {
		node.prev.next = node.next
	} else {
		pl.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		pl.tail = node.prev
	}

	node.prev = nil
	node.next = nil
	node.level = nil
}

// decrementVolume applies a fill or partial cancel to a node already resting
// in this level, keeping TotalVolume in lockstep.
func (pl *PriceLevel) decrementVolume(node *orderNode, delta int64) {
	node.ref.VolumeRemaining -= delta
	pl.TotalVolume -= delta
}
