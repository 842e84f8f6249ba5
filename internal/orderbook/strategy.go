package orderbook

// sealThresholdTicksShares is 20,000,000 yuan expressed in tick·share units
// (price is in ticks of 1/10000 yuan, so this is 20,000,000 * 10,000).
const sealThresholdTicksShares = 20_000_000 * 10_000

// sealRatioWindowMs is how long a ratio observation stays eligible for the
// max-in-window comparison.
const sealRatioWindowMs = 5_000

// evaluateSealStrategy runs the limit-up seal-unwind detector after every
// live event's book mutation, per spec §4.4. It is a no-op once an alert has
// already fired for this symbol, or while there's no resting bid.
func (b *Book) evaluateSealStrategy(eventTimestampMs int64) {
	if b.alreadyAlerted {
		return
	}
	bbLevel := b.bids.Min()
	if bbLevel == nil {
		return
	}
	baLevel := b.asks.Min()

	bbPrice, bbVol := bbLevel.Price, bbLevel.TotalVolume
	var baPrice int64
	if baLevel != nil {
		baPrice = baLevel.Price
	}

	probeLimitPrice := bbPrice
	if baLevel != nil && baPrice > probeLimitPrice {
		probeLimitPrice = baPrice
	}

	if bbPrice < probeLimitPrice {
		b.maxSealVolume = 0
		return
	}

	if bbVol*bbPrice < sealThresholdTicksShares {
		return
	}

	var unopposedAsk int64
	b.asks.ForEach(func(level *PriceLevel) bool {
		if level.Price > bbPrice {
			return false
		}
		unopposedAsk += level.TotalVolume
		return true
	})
	sealVolume := bbVol - unopposedAsk

	if sealVolume > b.maxSealVolume {
		b.maxSealVolume = sealVolume
		return
	}

	cutoff := b.lastEventTimestampMs - sealRatioWindowMs
	for ts := range b.sealRatioWindow {
		if ts <= cutoff {
			delete(b.sealRatioWindow, ts)
		}
	}

	var ratio float64
	if b.maxSealVolume != 0 {
		ratio = float64(sealVolume) / float64(b.maxSealVolume)
	}

	var maxRatioInWindow float64
	for _, r := range b.sealRatioWindow {
		if r > maxRatioInWindow {
			maxRatioInWindow = r
		}
	}
	ratioChange := maxRatioInWindow - ratio

	b.sealRatioWindow[eventTimestampMs] = ratio

	if b.maxSealVolume > 0 && ratio < 2.0/3.0 && ratioChange > 0.2 {
		payload := formatAccountAlert(b.symbol, b.registry)
		if payload == "" {
			return
		}
		if b.sink != nil {
			if err := b.sink.Publish(payload); err != nil {
				b.log.Warnf("signal sink publish failed: %v", err)
				return
			}
		}
		b.alreadyAlerted = true
	}
}

// formatAccountAlert builds the "<SYMBOL#ACC1,ACC2,...>" wire payload, or ""
// if the symbol has no registered accounts.
func formatAccountAlert(symbol string, registry AccountRegistry) string {
	if registry == nil {
		return ""
	}
	accounts := registry.Get(symbol)
	if len(accounts) == 0 {
		return ""
	}
	out := "<" + symbol + "#"
	for i, acc := range accounts {
		if i > 0 {
			out += ","
		}
		out += acc
	}
	return out + ">"
}
