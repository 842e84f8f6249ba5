// Package parser decodes the exchange's framed ASCII tick records into typed
// event.MarketEvent values.
//
// Wire format: a frame is a sequence of records delimited by '<' ... '>'.
// Inside a record there are one or more comma-separated field tuples
// separated by '#'. A trailing empty tuple (a '#' immediately before '>') is
// ignored. Field count identifies the tuple's kind: 13 fields is an order
// tuple, 14 is a trade tuple; anything else is malformed and is dropped with
// a warning.
package parser

import (
	"strconv"
	"strings"

	"github.com/l2book/engine/internal/event"
	"github.com/l2book/engine/internal/obslog"
)

const (
	orderFieldCount = 13
	tradeFieldCount = 14
)

// Parser decodes a byte stream into MarketEvents, preserving a residual
// buffer across calls so a record split across two reads is still decoded
// correctly.
type Parser struct {
	log   *obslog.Logger
	carry []byte
}

// New creates a Parser. log may be nil, in which case dropped/malformed
// records are silently discarded.
func New(log *obslog.Logger) *Parser {
	return &Parser{log: log}
}

// Feed decodes as many complete records as are present in carry+data and
// returns the events they produced. Any trailing partial record (an
// unterminated '<...') is kept in the residual buffer for the next call.
func (p *Parser) Feed(data []byte) []event.MarketEvent {
	buf := data
	if len(p.carry) > 0 {
		buf = append(append([]byte(nil), p.carry...), data...)
		p.carry = nil
	}

	var events []event.MarketEvent
	for {
		start := indexByte(buf, '<')
		if start < 0 {
			// No record start at all: nothing salvageable, discard.
			p.carry = nil
			break
		}
		end := indexByte(buf[start:], '>')
		if end < 0 {
			// Unterminated record: carry everything from '<' onward.
			p.carry = append([]byte(nil), buf[start:]...)
			break
		}
		end += start

		record := string(buf[start+1 : end])
		events = append(events, p.parseRecord(record)...)
		buf = buf[end+1:]
	}

	return events
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// parseRecord splits a record on '#' into field tuples and decodes each.
func (p *Parser) parseRecord(record string) []event.MarketEvent {
	var out []event.MarketEvent
	for _, tuple := range strings.Split(record, "#") {
		if tuple == "" {
			// Trailing empty tuple before '>' — ignored, not a warning.
			continue
		}
		ev, ok := p.parseTuple(tuple)
		if ok {
			out = append(out, ev)
		}
	}
	return out
}

func (p *Parser) parseTuple(tuple string) (event.MarketEvent, bool) {
	fields := strings.Split(tuple, ",")
	switch len(fields) {
	case orderFieldCount:
		return event.MarketEvent{Order: p.decodeOrderTuple(fields)}, true
	case tradeFieldCount:
		return event.MarketEvent{Trade: p.decodeTradeTuple(fields)}, true
	default:
		p.warnf("dropping tuple with unexpected field count %d: %q", len(fields), tuple)
		return event.MarketEvent{}, false
	}
}

// decodeOrderTuple decodes the 13-field live order tuple:
// seq, symbol, code, date, time, order_num, price, volume, kind, side, orig_num, seq2, channel
func (p *Parser) decodeOrderTuple(f []string) *event.OrderTick {
	timeRaw := p.svToInt(f[4])
	o := &event.OrderTick{
		Seq:        p.svToInt(f[0]),
		Symbol:     f[1],
		TimeRaw:    timeRaw,
		OrderNum:   uint64(p.svToInt(f[5])),
		PriceTicks: p.svToInt(f[6]),
		Volume:     p.svToInt(f[7]),
		Kind:       event.OrderKind(p.svToInt(f[8])),
		Side:       event.Side(p.svToInt(f[9])),
		OrigNum:    uint64(p.svToInt(f[10])),
		Seq2:       p.svToInt(f[11]),
		Channel:    f[12],
	}
	o.TimestampMs = event.TimeOfDayMs(timeRaw)
	return o
}

// decodeTradeTuple decodes the 14-field live trade tuple:
// seq, symbol, code, date, time, trade_num, price, volume, amount, side, kind, channel_or_blank, sell_id, buy_id
func (p *Parser) decodeTradeTuple(f []string) *event.TradeTick {
	timeRaw := p.svToInt(f[4])
	t := &event.TradeTick{
		Seq:        p.svToInt(f[0]),
		Symbol:     f[1],
		TimeRaw:    timeRaw,
		TradeNum:   uint64(p.svToInt(f[5])),
		PriceTicks: p.svToInt(f[6]),
		Volume:     p.svToInt(f[7]),
		Amount:     p.svToInt(f[8]),
		Side:       event.Side(p.svToInt(f[9])),
		Kind:       event.TradeKind(p.svToInt(f[10])),
		SellID:     uint64(p.svToInt(f[12])),
		BuyID:      uint64(p.svToInt(f[13])),
	}
	t.TimestampMs = event.TimeOfDayMs(timeRaw)
	return t
}

// svToInt parses an integer field the way the exchange feed's sv_to_int
// does: empty input is 0, non-numeric content is 0 with a warning.
func (p *Parser) svToInt(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		p.warnf("non-numeric field %q treated as 0", s)
		return 0
	}
	return n
}

func (p *Parser) warnf(format string, args ...interface{}) {
	if p.log != nil {
		p.log.Warnf(format, args...)
	}
}
