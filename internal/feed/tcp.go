// Package feed implements the Feed Adapters: TCP clients that stream raw
// order/trade frames from the exchange gateway into the Router. Grounded on
// original_source/L2TcpSubscriber.{h,cpp}'s connect/read-loop/reconnect
// shape, replacing its WinSock-specific socket calls with net.Dial and its
// bespoke reconnect flag with a context-driven backoff loop.
package feed

import (
	"context"
	"net"
	"time"

	"github.com/l2book/engine/internal/event"
	"github.com/l2book/engine/internal/obslog"
)

// Sink receives raw frames decoded by neither this package nor the caller —
// just the undecoded bytes, tagged with which feed they came from. The
// Router owns parsing.
type Sink interface {
	PushRaw(event.RawFrame)
}

// TCPFeed maintains a persistent connection to one of the two live feeds
// (order or trade), reconnecting with backoff on any read error.
type TCPFeed struct {
	addr string
	kind event.FeedKind
	sink Sink
	log  *obslog.Logger

	minBackoff time.Duration
	maxBackoff time.Duration
}

// NewTCPFeed creates a feed adapter for one feed kind at addr.
func NewTCPFeed(addr string, kind event.FeedKind, sink Sink, log *obslog.Logger) *TCPFeed {
	if log == nil {
		log = obslog.NewNop()
	}
	return &TCPFeed{
		addr:       addr,
		kind:       kind,
		sink:       sink,
		log:        log,
		minBackoff: 500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
	}
}

// Run connects and streams frames until ctx is cancelled, reconnecting with
// exponential backoff whenever the connection drops.
func (f *TCPFeed) Run(ctx context.Context) {
	backoff := f.minBackoff
	for ctx.Err() == nil {
		if err := f.runOnce(ctx); err != nil {
			f.log.Warnf("feed %v connection to %s dropped: %v (retrying in %s)", f.kind, f.addr, err, backoff)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > f.maxBackoff {
			backoff = f.maxBackoff
		}
	}
}

func (f *TCPFeed) runOnce(ctx context.Context) error {
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", f.addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	f.log.Infof("feed %v connected to %s", f.kind, f.addr)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, 64*1024)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			f.sink.PushRaw(event.RawFrame{Feed: f.kind, Data: chunk})
		}
		if err != nil {
			return err
		}
	}
}
