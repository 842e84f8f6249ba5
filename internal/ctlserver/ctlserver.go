// Package ctlserver implements the named-pipe control/inspection interface
// as a Unix-domain-socket server — the Go analogue of the original's
// ReceiveServer/SendServer named pipes (which on this platform would be
// Windows-only). Each accepted connection is handled on its own goroutine
// and closed after one command, matching the original's short-connection,
// read-one-message-then-close pattern, generalized here into a small command set instead of a single
// fire-and-forget message.
package ctlserver

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/l2book/engine/internal/obslog"
)

// BookInspector is the subset of *orderbook.Book the DEPTH command reports
// on.
type BookInspector interface {
	BestBid() (priceTicks, volume int64, ok bool)
	BestAsk() (priceTicks, volume int64, ok bool)
	OrderIndexLen() int
	Watermark() int64
}

// Server accepts control connections on a Unix domain socket and answers
// DEPTH <symbol> and STATS commands.
type Server struct {
	socketPath string
	books      func() map[string]BookInspector
	log        *obslog.Logger
}

// New creates a control server. books is called fresh on every request so
// newly registered symbols are visible without restarting the server.
func New(socketPath string, books func() map[string]BookInspector, log *obslog.Logger) *Server {
	if log == nil {
		log = obslog.NewNop()
	}
	return &Server{socketPath: socketPath, books: books, log: log}
}

// Run listens and serves connections until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	_ = os.Remove(s.socketPath) // stale socket from a prior run
	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("control server listen on %s: %w", s.socketPath, err)
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Warnf("control server accept error: %v", err)
			continue
		}
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	switch strings.ToUpper(fields[0]) {
	case "DEPTH":
		if len(fields) < 2 {
			fmt.Fprintln(conn, "ERR usage: DEPTH <symbol>")
			return
		}
		s.handleDepth(conn, fields[1])
	case "STATS":
		s.handleStats(conn)
	default:
		fmt.Fprintf(conn, "ERR unknown command %q\n", fields[0])
	}
}

func (s *Server) handleDepth(conn net.Conn, symbol string) {
	book, ok := s.books()[symbol]
	if !ok {
		fmt.Fprintf(conn, "ERR unknown symbol %q\n", symbol)
		return
	}
	bbPrice, bbVol, haveBid := book.BestBid()
	baPrice, baVol, haveAsk := book.BestAsk()
	fmt.Fprintf(conn, "DEPTH %s bid=%d@%d(%v) ask=%d@%d(%v) orders=%d watermark=%d\n",
		symbol, bbVol, bbPrice, haveBid, baVol, baPrice, haveAsk, book.OrderIndexLen(), book.Watermark())
}

func (s *Server) handleStats(conn net.Conn) {
	books := s.books()
	fmt.Fprintf(conn, "STATS symbols=%d\n", len(books))
	for symbol, book := range books {
		fmt.Fprintf(conn, "  %s orders=%d watermark=%d\n", symbol, book.OrderIndexLen(), book.Watermark())
	}
}
