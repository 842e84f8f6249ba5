package orderbook

import (
	"context"
	"testing"

	"github.com/l2book/engine/internal/event"
)

func newTestBook(symbol string) *Book {
	return New(symbol, nil, nil, nil)
}

// S1 — basic insert/cancel.
func TestScenarioS1_InsertCancel(t *testing.T) {
	b := newTestBook("600001")

	b.applyOrderTick(&event.OrderTick{
		OrderNum: 100, OrigNum: 100, Symbol: "600001",
		PriceTicks: 101000, Volume: 500,
		Kind: event.OrderKindLimit, Side: event.SideBuy,
	})
	b.applyOrderTick(&event.OrderTick{
		OrderNum: 100, OrigNum: 100, Symbol: "600001",
		Volume: 500, Kind: event.OrderKindCancel,
	})

	if b.OrderIndexLen() != 0 {
		t.Fatalf("expected empty index, got %d entries", b.OrderIndexLen())
	}
	if v := b.VolumeAt(event.SideBuy, 101000); v != 0 {
		t.Fatalf("expected aggregate[101000] absent, got %d", v)
	}
}

// S2 — partial fill.
func TestScenarioS2_PartialFill(t *testing.T) {
	b := newTestBook("000007") // Shenzhen

	b.applyOrderTick(&event.OrderTick{OrderNum: 7, Symbol: "000007", PriceTicks: 98000, Volume: 300, Kind: event.OrderKindLimit, Side: event.SideBuy})
	b.applyOrderTick(&event.OrderTick{OrderNum: 9, Symbol: "000007", PriceTicks: 98000, Volume: 200, Kind: event.OrderKindLimit, Side: event.SideSell})
	b.applyTradeTick(&event.TradeTick{TradeNum: 55, BuyID: 7, SellID: 9, Volume: 200, Side: event.SideSell, Kind: event.TradeKindExecution})

	rem, ok := b.OrderVolumeRemaining(7)
	if !ok || rem != 100 {
		t.Fatalf("expected id=7 remaining 100, got %d ok=%v", rem, ok)
	}
	if _, ok := b.OrderVolumeRemaining(9); ok {
		t.Fatalf("expected id=9 removed")
	}
	if v := b.VolumeAt(event.SideBuy, 98000); v != 100 {
		t.Fatalf("expected bid[98000]=100, got %d", v)
	}
	if v := b.VolumeAt(event.SideSell, 98000); v != 0 {
		t.Fatalf("expected ask[98000] absent, got %d", v)
	}
}

// S3 — out-of-order trade: the trade arrives before either resting order.
func TestScenarioS3_OutOfOrderTrade(t *testing.T) {
	b := newTestBook("000021")

	b.applyTradeTick(&event.TradeTick{TradeNum: 77, BuyID: 21, SellID: 22, Volume: 100, Kind: event.TradeKindExecution})
	if got := b.PendingLen(); got != 1 {
		t.Fatalf("expected 1 pending event, got %d", got)
	}

	b.applyOrderTick(&event.OrderTick{OrderNum: 21, Symbol: "000021", PriceTicks: 50000, Volume: 100, Kind: event.OrderKindLimit, Side: event.SideBuy})
	b.applyOrderTick(&event.OrderTick{OrderNum: 22, Symbol: "000021", PriceTicks: 50000, Volume: 100, Kind: event.OrderKindLimit, Side: event.SideSell})
	b.drainPending()

	if _, ok := b.OrderVolumeRemaining(21); ok {
		t.Fatalf("expected id=21 fully consumed")
	}
	if _, ok := b.OrderVolumeRemaining(22); ok {
		t.Fatalf("expected id=22 fully consumed")
	}
	if _, ok := b.buyDoneTradeIDs[77]; ok {
		t.Fatalf("buy_done_trade_ids must not retain 77 once both sides settle")
	}
	if _, ok := b.sellDoneTradeIDs[77]; ok {
		t.Fatalf("sell_done_trade_ids must not retain 77 once both sides settle")
	}
}

// S4 — Shanghai aggressor immunity.
func TestScenarioS4_ShanghaiAggressorImmunity(t *testing.T) {
	b := newTestBook("600xxx")

	b.applyOrderTick(&event.OrderTick{OrigNum: 500, Symbol: "600xxx", PriceTicks: 100000, Volume: 200, Kind: event.OrderKindLimit, Side: event.SideBuy})
	b.applyOrderTick(&event.OrderTick{OrigNum: 501, Symbol: "600xxx", PriceTicks: 100000, Volume: 200, Kind: event.OrderKindLimit, Side: event.SideSell})

	b.applyTradeTick(&event.TradeTick{TradeNum: 1, BuyID: 500, SellID: 501, Volume: 200, Side: event.SideBuy, Kind: event.TradeKindExecution})

	rem, ok := b.OrderVolumeRemaining(500)
	if !ok || rem != 200 {
		t.Fatalf("expected buy order 500 untouched at 200, got %d ok=%v", rem, ok)
	}
	if _, ok := b.OrderVolumeRemaining(501); ok {
		t.Fatalf("expected sell order 501 removed")
	}
}

// S6 — history dedup: a replayed id already seen in the history window must
// not be re-inserted during live processing.
func TestScenarioS6_HistoryDedup(t *testing.T) {
	b := newTestBook("000900")
	b.historyOrderIDs[900] = 33_000_000
	b.lastEventTimestampMs = 33_000_000

	b.applyOrderTick(&event.OrderTick{OrderNum: 900, Symbol: "000900", PriceTicks: 12000, Volume: 100, Kind: event.OrderKindLimit, Side: event.SideBuy, TimestampMs: 33_100_000})

	if b.OrderIndexLen() != 0 {
		t.Fatalf("expected no insertion for deduped id 900, index has %d entries", b.OrderIndexLen())
	}
}

func TestInvariant_AggregateMatchesSumOfRemaining(t *testing.T) {
	b := newTestBook("000001")
	b.applyOrderTick(&event.OrderTick{OrderNum: 1, Symbol: "000001", PriceTicks: 1000, Volume: 50, Kind: event.OrderKindLimit, Side: event.SideBuy})
	b.applyOrderTick(&event.OrderTick{OrderNum: 2, Symbol: "000001", PriceTicks: 1000, Volume: 70, Kind: event.OrderKindLimit, Side: event.SideBuy})

	level := b.bids.Get(1000)
	var sum int64
	for n := level.Head(); n != nil; n = n.next {
		sum += n.ref.VolumeRemaining
	}
	if sum != level.TotalVolume {
		t.Fatalf("aggregate %d != sum of remaining %d", level.TotalVolume, sum)
	}
}

func TestSealStrategy_EmptyBidsReturnsCleanly(t *testing.T) {
	b := newTestBook("600100")
	b.evaluateSealStrategy(0) // must not panic with no resting bid
}

func TestSealStrategy_MaxSealVolumeZero_NoAlert(t *testing.T) {
	b := newTestBook("600100")
	b.applyOrderTick(&event.OrderTick{OrderNum: 1, Symbol: "600100", PriceTicks: 120000, Volume: 30_000_000, Kind: event.OrderKindLimit, Side: event.SideBuy})
	b.evaluateSealStrategy(1000)
	if b.alreadyAlerted {
		t.Fatalf("first observation should only set max_seal_volume, not alert")
	}
	if b.maxSealVolume != 30_000_000 {
		t.Fatalf("expected max_seal_volume=30000000, got %d", b.maxSealVolume)
	}
}

// TestSealStrategy_BelowThreshold_NoObservation: bb_vol*bb_price just under
// the 20,000,000-yuan threshold must not even start tracking max_seal_volume.
func TestSealStrategy_BelowThreshold_NoObservation(t *testing.T) {
	b := newTestBook("600100")
	// 1999 * 100000000 ticks = 199,900,000,000 < 200,000,000,000 threshold.
	b.applyOrderTick(&event.OrderTick{OrderNum: 1, Symbol: "600100", PriceTicks: 100_000_000, Volume: 1999, Kind: event.OrderKindLimit, Side: event.SideBuy})
	b.evaluateSealStrategy(1000)
	if b.maxSealVolume != 0 {
		t.Fatalf("expected max_seal_volume to stay 0 below threshold, got %d", b.maxSealVolume)
	}
}

// TestSealStrategy_AtThreshold_SeedsWithoutAlert: bb_vol*bb_price exactly equal
// to the threshold is still "< threshold" false, i.e. the strict-inequality
// guard in spec §4.4 step 3 means equality does NOT skip the observation —
// but since this is the only bid, sealVolume(=bbVol) is new and only seeds
// max_seal_volume without alerting, so this exercises the boundary without
// asserting an alert either way.
func TestSealStrategy_AtThreshold_SeedsWithoutAlert(t *testing.T) {
	b := newTestBook("600100")
	// 2000 * 100000000 ticks = 200,000,000,000 == threshold exactly.
	b.applyOrderTick(&event.OrderTick{OrderNum: 1, Symbol: "600100", PriceTicks: 100_000_000, Volume: 2000, Kind: event.OrderKindLimit, Side: event.SideBuy})
	b.evaluateSealStrategy(1000)
	if b.alreadyAlerted {
		t.Fatalf("must not alert on first observation at threshold")
	}
	if b.maxSealVolume != 2000 {
		t.Fatalf("expected max_seal_volume=2000 at exact threshold, got %d", b.maxSealVolume)
	}
}

// TestPhaseA_InsertThenCancelSameID_NotSelfDeduped covers spec §4.3 Phase A
// step 4: the dedup sets must only be populated after the full replay, so a
// Shanghai cancel (id == orig_num) following its own insert in the same
// backfill is applied, not dropped as a spurious duplicate of itself.
func TestPhaseA_InsertThenCancelSameID_NotSelfDeduped(t *testing.T) {
	b := newTestBook("600321") // Shanghai: ID() == orig_num

	b.PushHistory(event.MarketEvent{Order: &event.OrderTick{
		OrigNum: 55, Symbol: "600321", PriceTicks: 105000, Volume: 300,
		Kind: event.OrderKindLimit, Side: event.SideBuy, TimestampMs: 1000,
	}})
	b.PushHistory(event.MarketEvent{Order: &event.OrderTick{
		OrigNum: 55, Symbol: "600321", Volume: 300,
		Kind: event.OrderKindCancel, TimestampMs: 2000,
	}})
	b.MarkHistoryDone(event.HistoryOrder)
	b.MarkHistoryDone(event.HistoryTrade)

	b.runHistoryPhase(context.Background())

	if b.OrderIndexLen() != 0 {
		t.Fatalf("expected order 55 cancelled during replay, index has %d entries", b.OrderIndexLen())
	}
}

// TestPhaseA_OutOfOrderTradeResolvesAcrossDrain covers the other half of the
// same bug: a trade seen before either resting order must still resolve once
// drainPending replays it against the now-inserted orders, instead of being
// deduped against itself because recordReplayedID leaked into the live
// historyTradeIDs map mid-replay.
func TestPhaseA_OutOfOrderTradeResolvesAcrossDrain(t *testing.T) {
	b := newTestBook("000555") // Shenzhen: ID() == order_num

	b.PushHistory(event.MarketEvent{Trade: &event.TradeTick{
		TradeNum: 900, BuyID: 10, SellID: 11, Volume: 100,
		Kind: event.TradeKindExecution, TimestampMs: 500,
	}})
	b.PushHistory(event.MarketEvent{Order: &event.OrderTick{
		OrderNum: 10, Symbol: "000555", PriceTicks: 40000, Volume: 100,
		Kind: event.OrderKindLimit, Side: event.SideBuy, TimestampMs: 600,
	}})
	b.PushHistory(event.MarketEvent{Order: &event.OrderTick{
		OrderNum: 11, Symbol: "000555", PriceTicks: 40000, Volume: 100,
		Kind: event.OrderKindLimit, Side: event.SideSell, TimestampMs: 700,
	}})
	b.MarkHistoryDone(event.HistoryOrder)
	b.MarkHistoryDone(event.HistoryTrade)

	b.runHistoryPhase(context.Background())

	if _, ok := b.OrderVolumeRemaining(10); ok {
		t.Fatalf("expected buy order 10 fully consumed by the replayed trade")
	}
	if _, ok := b.OrderVolumeRemaining(11); ok {
		t.Fatalf("expected sell order 11 fully consumed by the replayed trade")
	}
}

type stubSink struct {
	published []string
}

func (s *stubSink) Publish(alert string) error {
	s.published = append(s.published, alert)
	return nil
}

type stubRegistry map[string][]string

func (r stubRegistry) Get(symbol string) []string { return r[symbol] }

// S5 — seal-unwind alert: a limit-up seal (no unopposed asks, bb_vol*bb_price
// above threshold) whose volume drains by enough, quickly enough, to cross
// both the absolute ratio floor and the rate-of-change guard fires exactly
// one alert naming the registered accounts.
func TestScenarioS5_SealUnwindAlert(t *testing.T) {
	sink := &stubSink{}
	reg := stubRegistry{"600555": {"acc1", "acc2"}}
	b := New("600555", sink, reg, nil)

	const t0 = int64(33_590_000)
	b.applyOrderTick(&event.OrderTick{OrigNum: 1, Symbol: "600555", PriceTicks: 120000, Volume: 25_000_000, Kind: event.OrderKindLimit, Side: event.SideBuy, TimestampMs: t0})
	b.lastEventTimestampMs = t0
	b.evaluateSealStrategy(t0)
	if b.alreadyAlerted {
		t.Fatalf("must not alert on first observation")
	}
	if b.maxSealVolume != 25_000_000 {
		t.Fatalf("expected max_seal_volume=25000000, got %d", b.maxSealVolume)
	}

	// A second look at an unchanged seal records ratio=1.0 into the rolling
	// window, establishing the "how intact was it recently" baseline.
	const t0b = t0 + 500
	b.lastEventTimestampMs = t0b
	b.evaluateSealStrategy(t0b)
	if b.alreadyAlerted {
		t.Fatalf("must not alert while the seal is still fully intact")
	}

	// The seal drains from 25,000,000 to 15,000,000 shares: a partial cancel
	// of 10,000,000 against the original resting order.
	b.applyOrderTick(&event.OrderTick{OrigNum: 1, Symbol: "600555", Volume: 10_000_000, Kind: event.OrderKindCancel, TimestampMs: t0 + 900})

	const t1 = t0 + 1000
	b.lastEventTimestampMs = t1
	b.evaluateSealStrategy(t1)

	if !b.alreadyAlerted {
		t.Fatalf("expected seal-unwind alert to fire (ratio=0.6 < 2/3, change=0.4 > 0.2)")
	}
	if len(sink.published) != 1 {
		t.Fatalf("expected exactly one published alert, got %d: %v", len(sink.published), sink.published)
	}
	if sink.published[0] != "<600555#acc1,acc2>" {
		t.Fatalf("unexpected alert payload %q", sink.published[0])
	}

	// A further evaluation must not fire a second alert for the same symbol.
	b.evaluateSealStrategy(t1 + 100)
	if len(sink.published) != 1 {
		t.Fatalf("expected no further alert once already_alerted, got %d publishes", len(sink.published))
	}
}

// TestSealStrategy_RatioExactlyTwoThirds_NoAlert: ratio == 2/3 fails the
// strict "< 2/3" guard, so no alert fires even with a large ratio_change.
func TestSealStrategy_RatioExactlyTwoThirds_NoAlert(t *testing.T) {
	b := newTestBook("600200")
	const t0 = int64(1_000_000)
	b.applyOrderTick(&event.OrderTick{OrigNum: 1, Symbol: "600200", PriceTicks: 100_000_000, Volume: 3000, Kind: event.OrderKindLimit, Side: event.SideBuy, TimestampMs: t0})
	b.lastEventTimestampMs = t0
	b.evaluateSealStrategy(t0) // seeds max_seal_volume=3000

	const t0b = t0 + 500
	b.lastEventTimestampMs = t0b
	b.evaluateSealStrategy(t0b) // records ratio=1.0 into the window

	// Drain to 2000 shares: ratio = 2000/3000 = 2/3 exactly.
	b.applyOrderTick(&event.OrderTick{OrigNum: 1, Symbol: "600200", Volume: 1000, Kind: event.OrderKindCancel, TimestampMs: t0 + 900})

	const t1 = t0 + 1000
	b.lastEventTimestampMs = t1
	b.evaluateSealStrategy(t1)

	if b.alreadyAlerted {
		t.Fatalf("ratio exactly 2/3 must not alert")
	}
}
