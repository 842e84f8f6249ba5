// Command engine is the supervisor: it wires together configuration,
// logging, the account registry, the signal sink, the per-symbol order
// books, the feed adapters, the history loader and the control server, then
// runs until told to stop.
//
// Architecture:
//
//	┌────────────┐    ┌────────────┐    ┌─────────────┐
//	│ Order feed │───▶│            │    │  History    │
//	│ Trade feed │───▶│   Router   │    │  Loader     │
//	└────────────┘    └─────┬──────┘    └──────┬──────┘
//	                        │ push_live          │ push_history
//	                        ▼                    ▼
//	                 ┌─────────────────────────────────┐
//	                 │     Book (per symbol)            │──▶ Signal Sink
//	                 └─────────────────────────────────┘
//
// Each book owns exactly one goroutine; the supervisor restarts it on a
// panic instead of letting the whole process die, per spec §7's "fatal
// infra... propagate to supervisor for restart."
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/l2book/engine/internal/config"
	"github.com/l2book/engine/internal/ctlserver"
	"github.com/l2book/engine/internal/event"
	"github.com/l2book/engine/internal/feed"
	"github.com/l2book/engine/internal/history"
	"github.com/l2book/engine/internal/obslog"
	"github.com/l2book/engine/internal/orderbook"
	"github.com/l2book/engine/internal/registry"
	"github.com/l2book/engine/internal/router"
	"github.com/l2book/engine/internal/signalsink"
)

func main() {
	configPath := flag.String("config", "engine.ini", "path to INI configuration file")
	registryPath := flag.String("registry", "accounts.json", "path to the account registry's JSON store")
	controlSocket := flag.String("control-socket", "/tmp/l2book.sock", "path for the control server's Unix domain socket")
	symbolsFlag := flag.String("symbols", "600000,000001", "comma-separated symbols to monitor")
	alertLogPath := flag.String("alert-log", "alerts.log", "path to the durable seal-unwind alert audit log")
	flag.Parse()

	log := obslog.New("engine")
	defer log.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Errorf("loading config from %s: %v", *configPath, err)
		os.Exit(1)
	}

	acctRegistry, err := registry.New(*registryPath, log)
	if err != nil {
		log.Errorf("loading registry from %s: %v", *registryPath, err)
		os.Exit(1)
	}

	fanout := signalsink.NewFanoutSink(256, log)
	defer fanout.Close()

	tcpSink, err := signalsink.NewTCPSink(joinHostPort(cfg.Server.TCPHost, cfg.Server.SignalPort), log)
	if err != nil {
		log.Errorf("starting signal sink listener: %v", err)
		os.Exit(1)
	}
	defer tcpSink.Close()

	sink, err := signalsink.NewDurableSink(
		signalsink.NewMultiSink(log, fanout, tcpSink), *alertLogPath, false, log)
	if err != nil {
		log.Errorf("opening alert log at %s: %v", *alertLogPath, err)
		os.Exit(1)
	}
	defer sink.Close()

	rtr := router.New(log)
	loader := history.NewHTTPLoader(cfg.Server.HTTPURL, cfg.Auth.Username, cfg.Auth.Password, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	symbols := splitNonEmpty(*symbolsFlag)
	books := make(map[string]*orderbook.Book, len(symbols))
	var mu sync.RWMutex

	var wg sync.WaitGroup
	wg.Add(1)
	go func() { defer wg.Done(); tcpSink.Run(ctx) }()

	for _, symbol := range symbols {
		book := orderbook.New(symbol, sink, acctRegistry, log)
		mu.Lock()
		books[symbol] = book
		mu.Unlock()
		rtr.Register(symbol, book)

		wg.Add(1)
		go func(symbol string, book *orderbook.Book) {
			defer wg.Done()
			runBookWithRestart(ctx, symbol, book, log)
		}(symbol, book)

		wg.Add(1)
		go func(symbol string, book *orderbook.Book) {
			defer wg.Done()
			if err := loader.LoadSymbol(ctx, symbol, book); err != nil {
				log.Errorf("history load failed for %s: %v", symbol, err)
			}
		}(symbol, book)
	}

	orderFeed := feed.NewTCPFeed(
		joinHostPort(cfg.Server.TCPHost, cfg.Server.OrderPort), event.FeedOrder, rtr, log)
	tradeFeed := feed.NewTCPFeed(
		joinHostPort(cfg.Server.TCPHost, cfg.Server.TradePort), event.FeedTrade, rtr, log)

	wg.Add(3)
	go func() { defer wg.Done(); rtr.Run(ctx) }()
	go func() { defer wg.Done(); orderFeed.Run(ctx) }()
	go func() { defer wg.Done(); tradeFeed.Run(ctx) }()

	ctl := ctlserver.New(*controlSocket, func() map[string]ctlserver.BookInspector {
		mu.RLock()
		defer mu.RUnlock()
		out := make(map[string]ctlserver.BookInspector, len(books))
		for sym, b := range books {
			out[sym] = b
		}
		return out
	}, log)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ctl.Run(ctx); err != nil {
			log.Errorf("control server stopped: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Infof("shutdown signal received, stopping")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		log.Warnf("shutdown timed out after 10s, exiting anyway")
	}
}

// runBookWithRestart runs a book's processing loop, restarting it on a
// panic instead of crashing the whole engine. The restarted loop runs on the
// same Book and keeps whatever state it held when it panicked; a book whose
// history phase had completed goes straight back to live processing.
func runBookWithRestart(ctx context.Context, symbol string, book *orderbook.Book, log *obslog.Logger) {
	for ctx.Err() == nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Errorf("book %s panicked: %v (restarting)", symbol, r)
				}
			}()
			book.Run(ctx)
		}()
	}
}

func splitNonEmpty(csv string) []string {
	var out []string
	for _, s := range strings.Split(csv, ",") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func joinHostPort(host string, port int) string {
	return host + ":" + strconv.Itoa(port)
}
