// Package history implements the History Loader external collaborator:
// logging in to the snapshot HTTP endpoint, downloading and parsing each
// symbol's historical order/trade dump, and pushing the decoded events into
// a book before flipping its history-done flag. Grounded on
// original_source/L2HttpDownloader.h's login/download/parse shape.
package history

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-resty/resty/v2"

	"github.com/l2book/engine/internal/event"
	"github.com/l2book/engine/internal/obslog"
	"github.com/l2book/engine/internal/parser"
)

// BookSink is the subset of *orderbook.Book the loader pushes into.
type BookSink interface {
	PushHistory(ev event.MarketEvent)
	MarkHistoryDone(kind event.HistoryRequestKind)
}

// HTTPLoader downloads and replays historical order/trade dumps over HTTP,
// using a single authenticated session shared across symbols.
type HTTPLoader struct {
	client *resty.Client

	mu       sync.Mutex
	loggedIn bool
	username string
	password string

	log *obslog.Logger
}

// NewHTTPLoader creates a loader against baseURL, authenticating with the
// given credentials on first use.
func NewHTTPLoader(baseURL, username, password string, log *obslog.Logger) *HTTPLoader {
	if log == nil {
		log = obslog.NewNop()
	}
	return &HTTPLoader{
		client:   resty.New().SetBaseURL(baseURL),
		username: username,
		password: password,
		log:      log,
	}
}

// login authenticates once; subsequent calls are no-ops while the session
// cookie is presumed valid.
func (l *HTTPLoader) login(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loggedIn {
		return nil
	}
	resp, err := l.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{"username": l.username, "password": l.password}).
		Post("/login")
	if err != nil {
		return fmt.Errorf("history loader login: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("history loader login: status %d", resp.StatusCode())
	}
	l.loggedIn = true
	return nil
}

// LoadSymbol downloads and replays the order history and then the trade
// history for a symbol into sink, flipping each stream's done flag once that
// stream has been pushed. A failure returns an error and leaves the failed
// stream's flag unset (an order-history failure also skips the trade
// download), so the book stays in phase A; nothing here retries.
func (l *HTTPLoader) LoadSymbol(ctx context.Context, symbol string, sink BookSink) error {
	if err := l.login(ctx); err != nil {
		return err
	}

	if err := l.downloadAndReplay(ctx, symbol, event.HistoryOrder, sink); err != nil {
		return fmt.Errorf("symbol %s order history: %w", symbol, err)
	}
	if err := l.downloadAndReplay(ctx, symbol, event.HistoryTrade, sink); err != nil {
		return fmt.Errorf("symbol %s trade history: %w", symbol, err)
	}
	return nil
}

func (l *HTTPLoader) downloadAndReplay(ctx context.Context, symbol string, kind event.HistoryRequestKind, sink BookSink) error {
	resp, err := l.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"symbol": symbol, "type": kind.String()}).
		Get("/history")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("status %d", resp.StatusCode())
	}

	body := resp.Body()
	var count int
	switch kind {
	case event.HistoryOrder:
		ticks, err := parser.ParseHistoryOrderCSV(newReader(body), l.log)
		if err != nil {
			return err
		}
		for _, t := range ticks {
			sink.PushHistory(event.MarketEvent{Order: t})
		}
		count = len(ticks)
	case event.HistoryTrade:
		ticks, err := parser.ParseHistoryTradeCSV(newReader(body), l.log)
		if err != nil {
			return err
		}
		for _, t := range ticks {
			sink.PushHistory(event.MarketEvent{Trade: t})
		}
		count = len(ticks)
	}

	l.log.Infof("replayed %d history %s events for %s", count, kind, symbol)
	sink.MarkHistoryDone(kind)
	return nil
}
