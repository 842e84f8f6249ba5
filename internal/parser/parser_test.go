package parser

import "testing"

func orderTuple(orderNum, side string) string {
	return "1,600001,X,20260731,93000000," + orderNum + ",120000,500,2," + side + ",0,1,CH1"
}

func tradeTuple(tradeNum string) string {
	return "1,600001,X,20260731,93000000," + tradeNum + ",120000,500,60000000,1,0,,9,10"
}

func TestFeed_SingleCompleteOrderRecord(t *testing.T) {
	p := New(nil)
	events := p.Feed([]byte("<" + orderTuple("1001", "1") + ">"))
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Order == nil {
		t.Fatalf("expected an order event")
	}
	if events[0].Order.OrderNum != 1001 {
		t.Fatalf("expected order_num=1001, got %d", events[0].Order.OrderNum)
	}
}

func TestFeed_MultipleTuplesInOneRecord(t *testing.T) {
	p := New(nil)
	record := "<" + orderTuple("1", "1") + "#" + tradeTuple("2") + ">"
	events := p.Feed([]byte(record))
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Order == nil || events[1].Trade == nil {
		t.Fatalf("expected order then trade, got %+v", events)
	}
}

func TestFeed_TrailingEmptyTupleIgnored(t *testing.T) {
	p := New(nil)
	events := p.Feed([]byte("<" + orderTuple("1", "1") + "#>"))
	if len(events) != 1 {
		t.Fatalf("expected 1 event (trailing empty tuple dropped silently), got %d", len(events))
	}
}

func TestFeed_RecordSplitAcrossCalls(t *testing.T) {
	p := New(nil)
	full := "<" + orderTuple("42", "2") + ">"
	mid := len(full) / 2

	if events := p.Feed([]byte(full[:mid])); len(events) != 0 {
		t.Fatalf("expected no events from a partial record, got %d", len(events))
	}
	events := p.Feed([]byte(full[mid:]))
	if len(events) != 1 {
		t.Fatalf("expected 1 event once the record completes, got %d", len(events))
	}
	if events[0].Order.OrderNum != 42 {
		t.Fatalf("expected order_num=42, got %d", events[0].Order.OrderNum)
	}
}

func TestFeed_UnterminatedRecordCarriesOver(t *testing.T) {
	p := New(nil)
	p.Feed([]byte("<" + orderTuple("7", "1")))
	if len(p.carry) == 0 {
		t.Fatalf("expected the unterminated record to be carried")
	}
	events := p.Feed([]byte(">"))
	if len(events) != 1 {
		t.Fatalf("expected 1 event once terminated, got %d", len(events))
	}
}

func TestFeed_MalformedTupleDropped(t *testing.T) {
	p := New(nil)
	// 5 fields: neither an order (13) nor a trade (14) tuple.
	events := p.Feed([]byte("<1,2,3,4,5>"))
	if len(events) != 0 {
		t.Fatalf("expected malformed tuple to be dropped, got %d events", len(events))
	}
}

func TestFeed_NonNumericFieldTreatedAsZero(t *testing.T) {
	p := New(nil)
	bad := "1,600001,X,20260731,93000000,NOTANUMBER,120000,500,2,1,0,1,CH1"
	events := p.Feed([]byte("<" + bad + ">"))
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Order.OrderNum != 0 {
		t.Fatalf("expected non-numeric order_num to decode as 0, got %d", events[0].Order.OrderNum)
	}
}

func TestFeed_NoRecordStartDiscardsGarbage(t *testing.T) {
	p := New(nil)
	events := p.Feed([]byte("garbage with no angle brackets"))
	if len(events) != 0 {
		t.Fatalf("expected no events from data with no record start, got %d", len(events))
	}
	if len(p.carry) != 0 {
		t.Fatalf("expected nothing carried when there's no '<' at all")
	}
}
