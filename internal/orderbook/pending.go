package orderbook

// drainPending copies out every currently pending event and replays each
// through applyEvent. Handlers that still cannot resolve an event (the
// counterparty or cancel target hasn't arrived yet) re-append it to
// pendingEvents themselves, so this snapshot-then-replay shape is what keeps
// that re-enqueue from growing the slice being iterated.
func (b *Book) drainPending() {
	if len(b.pendingEvents) == 0 {
		return
	}
	batch := b.pendingEvents
	b.pendingEvents = nil
	for _, ev := range batch {
		b.applyEvent(ev)
	}
}
