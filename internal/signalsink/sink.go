// Package signalsink distributes seal-unwind alert payloads to downstream
// consumers. Adapted from the teacher's internal/marketdata publisher: the
// same subscribe/fan-out/non-blocking-drop shape, collapsed from three
// typed channels (L1/L2/trade) down to the one payload type this system's
// Strategy Evaluator actually emits.
package signalsink

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/l2book/engine/internal/obslog"
)

// FanoutSink distributes alert payloads to every subscriber. Subscribers
// that fall behind have updates dropped rather than blocking the book's
// processing goroutine, matching spec §4.5: "send failure is logged but
// does not block book progress."
type FanoutSink struct {
	mu         sync.RWMutex
	subs       []chan string
	bufferSize int
	log        *obslog.Logger
}

// NewFanoutSink creates a sink with the given per-subscriber buffer depth.
func NewFanoutSink(bufferSize int, log *obslog.Logger) *FanoutSink {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	if log == nil {
		log = obslog.NewNop()
	}
	return &FanoutSink{bufferSize: bufferSize, log: log}
}

// Subscribe returns a channel that receives every published alert from this
// point on.
func (s *FanoutSink) Subscribe() <-chan string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan string, s.bufferSize)
	s.subs = append(s.subs, ch)
	return ch
}

// Publish fans an alert payload out to every subscriber. Always returns nil:
// a full subscriber channel is a slow-consumer condition, not a sink
// failure, so it is logged and dropped rather than surfaced as an error.
func (s *FanoutSink) Publish(alert string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- alert:
		default:
			s.log.Warnf("subscriber channel full, dropping alert %q", alert)
		}
	}
	return nil
}

// Close closes every subscriber channel.
func (s *FanoutSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		close(ch)
	}
	s.subs = nil
}

// TCPSink listens on a TCP address and pushes every published alert,
// newline-terminated, to every currently-connected client — the Go analogue
// of the original's named-pipe SendServer, which accepted and streamed
// alerts to whichever control process connected. Unlike the pipe (one client
// at a time, reconnect-on-disconnect), a TCP listener naturally serves
// several subscribers at once, so this broadcasts to all of them instead of
// tracking a single client handle.
type TCPSink struct {
	ln  net.Listener
	log *obslog.Logger

	mu      sync.Mutex
	clients map[net.Conn]struct{}
}

// NewTCPSink starts listening on addr. Run must be started in its own
// goroutine to begin accepting subscriber connections.
func NewTCPSink(addr string, log *obslog.Logger) (*TCPSink, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening for signal sink clients on %s: %w", addr, err)
	}
	if log == nil {
		log = obslog.NewNop()
	}
	return &TCPSink{ln: ln, log: log, clients: make(map[net.Conn]struct{})}, nil
}

// Run accepts subscriber connections until ctx is cancelled.
func (s *TCPSink) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		s.ln.Close()
	}()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Warnf("signal sink accept error: %v", err)
			continue
		}
		s.mu.Lock()
		s.clients[conn] = struct{}{}
		s.mu.Unlock()
		s.log.Infof("signal sink client connected from %s", conn.RemoteAddr())
	}
}

// Publish writes the alert payload, newline-terminated, to every connected
// client. A client whose write fails is disconnected and dropped rather than
// failing the whole publish, matching spec §4.5: "send failure is logged but
// does not block book progress."
func (s *TCPSink) Publish(alert string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		if _, err := fmt.Fprintf(conn, "%s\n", alert); err != nil {
			s.log.Warnf("signal sink client write failed, disconnecting: %v", err)
			conn.Close()
			delete(s.clients, conn)
		}
	}
	return nil
}

// Close closes the listener and every connected client.
func (s *TCPSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		conn.Close()
	}
	s.clients = nil
	return s.ln.Close()
}

// MultiSink fans a publish out to several inner sinks, continuing past a
// failing one instead of letting it block the rest.
type MultiSink struct {
	sinks []Sink
	log   *obslog.Logger
}

// NewMultiSink combines sinks into one. Publish always returns nil; failures
// are logged per inner sink.
func NewMultiSink(log *obslog.Logger, sinks ...Sink) *MultiSink {
	if log == nil {
		log = obslog.NewNop()
	}
	return &MultiSink{sinks: sinks, log: log}
}

func (m *MultiSink) Publish(alert string) error {
	for _, s := range m.sinks {
		if err := s.Publish(alert); err != nil {
			m.log.Warnf("sink publish failed: %v", err)
		}
	}
	return nil
}
