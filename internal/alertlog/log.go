// Package alertlog is an append-only, checksummed durability trail for
// emitted seal-unwind alerts. Adapted from the teacher's
// internal/events.EventLog: same gob-encoded, length-framed, CRC32-checksummed
// append/replay shape, narrowed from the original's six order-lifecycle
// event types down to the one record this system actually emits. Each alert
// is appended before it is published; a failed append is reported to the
// caller, which still publishes, so such an alert is absent from the log.
package alertlog

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sync"
)

// Record is one durably-logged alert emission.
type Record struct {
	Seq         uint64
	Symbol      string
	Payload     string
	TimestampMs int64
	Checksum    uint32
}

// Log is an append-only file of Records, fsynced per write in SyncMode.
type Log struct {
	mu       sync.Mutex
	file     *os.File
	writer   *bufio.Writer
	encoder  *gob.Encoder
	path     string
	syncMode bool
	seq      uint64
}

// Open opens (creating if necessary) an alert log at path. syncMode trades
// throughput for durability, matching the teacher's EventLogConfig.SyncMode
// knob.
func Open(path string, syncMode bool) (*Log, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening alert log: %w", err)
	}
	writer := bufio.NewWriter(file)
	l := &Log{
		file:     file,
		writer:   writer,
		encoder:  gob.NewEncoder(writer),
		path:     path,
		syncMode: syncMode,
	}
	if err := l.recoverSeq(); err != nil {
		file.Close()
		return nil, fmt.Errorf("recovering alert log sequence: %w", err)
	}
	return l, nil
}

func (l *Log) recoverSeq() error {
	file, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	dec := gob.NewDecoder(file)
	for {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		l.seq = rec.Seq
	}
	return nil
}

// Append durably records one alert emission and returns its sequence
// number.
func (l *Log) Append(symbol, payload string, timestampMs int64) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	rec := Record{Seq: l.seq, Symbol: symbol, Payload: payload, TimestampMs: timestampMs}
	rec.Checksum = crc32.ChecksumIEEE([]byte(fmt.Sprintf("%d|%s|%s|%d", rec.Seq, rec.Symbol, rec.Payload, rec.TimestampMs)))

	if err := l.encoder.Encode(rec); err != nil {
		return 0, fmt.Errorf("encoding alert record: %w", err)
	}
	if err := l.writer.Flush(); err != nil {
		return 0, fmt.Errorf("flushing alert log: %w", err)
	}
	if l.syncMode {
		if err := l.file.Sync(); err != nil {
			return 0, fmt.Errorf("syncing alert log: %w", err)
		}
	}
	return rec.Seq, nil
}

// Replay reads every record in order and calls handler for each, stopping
// (and returning the error) if a checksum doesn't match.
func (l *Log) Replay(handler func(Record) error) error {
	file, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	dec := gob.NewDecoder(file)
	for {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		want := crc32.ChecksumIEEE([]byte(fmt.Sprintf("%d|%s|%s|%d", rec.Seq, rec.Symbol, rec.Payload, rec.TimestampMs)))
		if rec.Checksum != want {
			return fmt.Errorf("alert log checksum mismatch at seq %d", rec.Seq)
		}
		if err := handler(rec); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes and closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.writer.Flush(); err != nil {
		return err
	}
	return l.file.Close()
}
