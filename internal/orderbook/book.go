package orderbook

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/l2book/engine/internal/event"
	"github.com/l2book/engine/internal/obslog"
)

// EventTimeoutMs is how stale a pending event may be (relative to the book's
// watermark) before it is dropped instead of retried.
const EventTimeoutMs = 60_000

// historyDequeueTimeout bounds how long phase A waits on an empty
// history_queue before re-checking the loader's done flags.
const historyDequeueTimeout = 3 * time.Second

// SignalSink is the external collaborator that alerts are published to.
// Send failures are logged but never block book progress.
type SignalSink interface {
	Publish(alert string) error
}

// AccountRegistry maps a symbol to the account ids an alert payload should
// name.
type AccountRegistry interface {
	Get(symbol string) []string
}

// Book is the per-symbol order book state machine: two sides of resting
// orders, the pending-event resolver, the history/live reconciliation
// lifecycle, and the seal-unwind strategy's rolling state. A Book's own
// processing loop (Run) is its only mutator; mu is the shared-exclusive lock
// spec §5 requires external readers (the control server's DEPTH/STATS
// commands) to acquire before touching book state concurrently with it —
// taken for write around every mutating pass, for read by the accessors.
type Book struct {
	mu sync.RWMutex

	symbol string
	market event.Market

	bids *RBTree // descending: Min() returns the highest (best) bid
	asks *RBTree // ascending: Min() returns the lowest (best) ask

	orderIndex map[uint64]*orderNode

	pendingEvents []event.MarketEvent

	historyOrderIDs map[uint64]int64 // id -> timestamp_ms, pruned to last 10m
	historyTradeIDs map[uint64]int64

	buyDoneTradeIDs  map[uint64]struct{}
	sellDoneTradeIDs map[uint64]struct{}

	lastEventTimestampMs int64

	maxSealVolume   int64
	sealRatioWindow map[int64]float64
	alreadyAlerted  bool

	historyOrderDone     bool
	historyTradeDone     bool
	historyPhaseComplete bool

	historyQueue chan event.MarketEvent
	liveQueue    chan event.MarketEvent

	sink     SignalSink
	registry AccountRegistry
	log      *obslog.Logger
}

// New creates a Book for symbol. sink and registry may be nil in tests that
// never exercise the strategy path.
func New(symbol string, sink SignalSink, registry AccountRegistry, log *obslog.Logger) *Book {
	if log == nil {
		log = obslog.NewNop()
	}
	return &Book{
		symbol: symbol,
		market: event.MarketOf(symbol),

		bids: NewRBTree(true),
		asks: NewRBTree(false),

		orderIndex: make(map[uint64]*orderNode),

		historyOrderIDs: make(map[uint64]int64),
		historyTradeIDs: make(map[uint64]int64),

		buyDoneTradeIDs:  make(map[uint64]struct{}),
		sellDoneTradeIDs: make(map[uint64]struct{}),

		sealRatioWindow: make(map[int64]float64),

		historyQueue: make(chan event.MarketEvent, 4096),
		liveQueue:    make(chan event.MarketEvent, 4096),

		sink:     sink,
		registry: registry,
		log:      log.WithSymbol(symbol),
	}
}

// Symbol returns the book's symbol.
func (b *Book) Symbol() string { return b.symbol }

// Market returns the exchange this symbol trades on.
func (b *Book) Market() event.Market { return b.market }

// PushHistory enqueues a backfilled event for phase A replay. Safe to call
// from the History Loader's goroutine.
func (b *Book) PushHistory(ev event.MarketEvent) {
	b.historyQueue <- ev
}

// MarkHistoryDone flips one of the two loader-completion flags. The
// processing loop treats phase A as finished only once both are set and the
// queue has gone quiet.
func (b *Book) MarkHistoryDone(kind event.HistoryRequestKind) {
	b.historyQueue <- event.MarketEvent{} // wakes the dequeue; the flags are checked after the next quiet 3s
	switch kind {
	case event.HistoryOrder:
		b.historyOrderDone = true
	case event.HistoryTrade:
		b.historyTradeDone = true
	}
}

// PushLive enqueues a live-feed event. Safe to call from the Router's
// goroutine.
func (b *Book) PushLive(ev event.MarketEvent) {
	b.liveQueue <- ev
}

// Run drives the book's two-phase lifecycle until ctx is cancelled. It is
// meant to be started once, in its own goroutine, by whatever orchestrator
// registers the symbol.
func (b *Book) Run(ctx context.Context) {
	b.runHistoryPhase(ctx)
	if ctx.Err() != nil {
		return
	}
	b.runLivePhase(ctx)
}

// runHistoryPhase implements spec Phase A: collect, sort, replay, then seed
// the dedup sets from the replayed tail.
func (b *Book) runHistoryPhase(ctx context.Context) {
	var buffer []event.MarketEvent
	const phaseADrainEvery = 100

	timer := time.NewTimer(historyDequeueTimeout)
	defer timer.Stop()

	for !b.historyPhaseComplete {
		timer.Reset(historyDequeueTimeout)
		select {
		case <-ctx.Done():
			return
		case ev := <-b.historyQueue:
			if ev.Order == nil && ev.Trade == nil {
				continue // wake-up sentinel from MarkHistoryDone
			}
			buffer = append(buffer, ev)
			continue
		case <-timer.C:
			if b.historyOrderDone && b.historyTradeDone {
				b.historyPhaseComplete = true
			}
			continue
		}
	}

	sort.SliceStable(buffer, func(i, j int) bool {
		return buffer[i].TimestampMs() < buffer[j].TimestampMs()
	})

	replayedOrderIDs := make(map[uint64]int64, len(buffer))
	replayedTradeIDs := make(map[uint64]int64, len(buffer))

	b.mu.Lock()
	defer b.mu.Unlock()

	for i, ev := range buffer {
		b.applyEvent(ev)
		recordReplayedID(ev, replayedOrderIDs, replayedTradeIDs)
		if (i+1)%phaseADrainEvery == 0 {
			b.drainPending()
		}
	}
	b.drainPending()

	// Only now, after the full replay, do these ids become the phase B dedup
	// window — never during the loop above, or a second event sharing an id
	// (a cancel following its own insert, a trade resolved out of pendingEvents)
	// would be spuriously deduped against itself mid-replay.
	for id, ts := range replayedOrderIDs {
		b.historyOrderIDs[id] = ts
	}
	for id, ts := range replayedTradeIDs {
		b.historyTradeIDs[id] = ts
	}

	cutoff := b.lastEventTimestampMs - 10*60*1000
	for id, ts := range b.historyOrderIDs {
		if ts < cutoff {
			delete(b.historyOrderIDs, id)
		}
	}
	for id, ts := range b.historyTradeIDs {
		if ts < cutoff {
			delete(b.historyTradeIDs, id)
		}
	}
}

// runLivePhase implements spec Phase B: steady-state consumption of the live
// queue, draining pending events and evaluating the seal strategy as it
// goes.
func (b *Book) runLivePhase(ctx context.Context) {
	const phaseBDrainEvery = 10
	count := 0

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-b.liveQueue:
			if ev.Order == nil && ev.Trade == nil {
				continue
			}
			func() {
				b.mu.Lock()
				defer b.mu.Unlock()
				b.applyEvent(ev)
				count++
				if count%phaseBDrainEvery == 0 {
					b.drainPending()
				}
				b.evaluateSealStrategy(ev.TimestampMs())
			}()
		}
	}
}
