package parser

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/l2book/engine/internal/event"
)

// ParseHistoryOrderCSV reads a historical order dump (header row followed by
// data rows in the live tuple's field order, plus one trailing column that is
// ignored) and returns the decoded OrderTick events.
func ParseHistoryOrderCSV(r io.Reader, log interface{ Warnf(string, ...interface{}) }) ([]*event.OrderTick, error) {
	rows, err := readCSVRows(r)
	if err != nil {
		return nil, err
	}
	p := &Parser{}
	var out []*event.OrderTick
	for _, row := range rows {
		if len(row) < orderFieldCount {
			if log != nil {
				log.Warnf("dropping short history order row: %d columns", len(row))
			}
			continue
		}
		out = append(out, p.decodeOrderTuple(row[:orderFieldCount]))
	}
	return out, nil
}

// ParseHistoryTradeCSV reads a historical trade dump (header row followed by
// data rows in the live tuple's field order, plus one trailing column that is
// ignored) and returns the decoded TradeTick events.
func ParseHistoryTradeCSV(r io.Reader, log interface{ Warnf(string, ...interface{}) }) ([]*event.TradeTick, error) {
	rows, err := readCSVRows(r)
	if err != nil {
		return nil, err
	}
	p := &Parser{}
	var out []*event.TradeTick
	for _, row := range rows {
		if len(row) < tradeFieldCount {
			if log != nil {
				log.Warnf("dropping short history trade row: %d columns", len(row))
			}
			continue
		}
		out = append(out, p.decodeTradeTuple(row[:tradeFieldCount]))
	}
	return out, nil
}

// readCSVRows reads all data rows (skipping the header), tolerating ragged
// rows whose width differs from the header's (FieldsPerRecord is left
// permissive so a historical dump with an extra trailing column doesn't
// abort the whole file).
func readCSVRows(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading history CSV header: %w", err)
	}
	_ = header

	var rows [][]string
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return rows, fmt.Errorf("reading history CSV row: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
