package signalsink

import (
	"strings"
	"time"

	"github.com/l2book/engine/internal/alertlog"
	"github.com/l2book/engine/internal/obslog"
)

// DurableSink wraps another Sink, appending every alert to an on-disk log
// before forwarding it. A failed append is logged but does not block
// delivery — the log is an audit trail, not a prerequisite for publishing.
type DurableSink struct {
	inner Sink
	log   *alertlog.Log
	obs   *obslog.Logger
}

// Sink is the minimal publish contract DurableSink wraps; orderbook.Book's
// SignalSink and FanoutSink/TCPSink both satisfy it.
type Sink interface {
	Publish(alert string) error
}

// NewDurableSink wraps inner with an append-only audit trail at path.
func NewDurableSink(inner Sink, path string, syncMode bool, obs *obslog.Logger) (*DurableSink, error) {
	l, err := alertlog.Open(path, syncMode)
	if err != nil {
		return nil, err
	}
	if obs == nil {
		obs = obslog.NewNop()
	}
	return &DurableSink{inner: inner, log: l, obs: obs}, nil
}

// Publish records the alert in the durable log, then forwards it.
func (d *DurableSink) Publish(alert string) error {
	symbol := symbolFromPayload(alert)
	if _, err := d.log.Append(symbol, alert, time.Now().UnixMilli()); err != nil {
		d.obs.Warnf("alert log append failed: %v", err)
	}
	return d.inner.Publish(alert)
}

// Close closes the underlying log file.
func (d *DurableSink) Close() error {
	return d.log.Close()
}

// symbolFromPayload extracts SYMBOL from a "<SYMBOL#ACC1,ACC2>" payload.
func symbolFromPayload(payload string) string {
	payload = strings.TrimPrefix(payload, "<")
	if i := strings.IndexByte(payload, '#'); i >= 0 {
		return payload[:i]
	}
	return payload
}
