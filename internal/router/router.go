// Package router implements the Data Router: a single task draining raw
// frames from both feeds, running them through the parser, and dispatching
// each decoded event to its symbol's book.
package router

import (
	"context"
	"sync"

	"github.com/l2book/engine/internal/event"
	"github.com/l2book/engine/internal/obslog"
	"github.com/l2book/engine/internal/parser"
)

// BookTarget is the subset of *orderbook.Book the router pushes live events
// into.
type BookTarget interface {
	PushLive(event.MarketEvent)
}

// Router dispatches parsed market events to per-symbol books. It is the
// single-producer-multi-consumer boundary described in spec §2: one
// goroutine drains the raw-frame queue, fanning parsed events out across
// however many book goroutines are registered.
type Router struct {
	raw chan event.RawFrame

	mu     sync.RWMutex
	books  map[string]BookTarget
	parser *parser.Parser
	log    *obslog.Logger
}

// New creates a Router. log is used both for the parser's malformed-record
// warnings and the router's own unknown-symbol drops.
func New(log *obslog.Logger) *Router {
	if log == nil {
		log = obslog.NewNop()
	}
	return &Router{
		raw:    make(chan event.RawFrame, 4096),
		books:  make(map[string]BookTarget),
		parser: parser.New(log),
		log:    log,
	}
}

// PushRaw enqueues a raw frame from a Feed Adapter. Satisfies feed.Sink.
func (r *Router) PushRaw(f event.RawFrame) {
	r.raw <- f
}

// Register associates a symbol with the book that should receive its
// events. Registration is expected to happen at bootstrap, before Run
// starts consuming frames that might reference the symbol.
func (r *Router) Register(symbol string, book BookTarget) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.books[symbol] = book
}

// Run drains the raw-frame queue until ctx is cancelled. Cancellation
// drains no further work, per spec §4.2.
func (r *Router) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-r.raw:
			for _, ev := range r.parser.Feed(frame.Data) {
				r.dispatch(ev)
			}
		}
	}
}

func (r *Router) dispatch(ev event.MarketEvent) {
	symbol := ev.Symbol()
	r.mu.RLock()
	book, ok := r.books[symbol]
	r.mu.RUnlock()
	if !ok {
		r.log.Warnf("dropping event for unregistered symbol %q", symbol)
		return
	}
	book.PushLive(ev)
}
