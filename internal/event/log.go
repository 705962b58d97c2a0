package event

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Envelope wraps every record in the log. Sequence is the append position
// and the single source of truth for "most recent" ordering; EventID is a
// stable idempotency key for durable sinks and outbound publishing.
type Envelope struct {
	Sequence  int64
	EventID   uuid.UUID
	Type      Type
	Timestamp time.Time
	Record    Record
}

// Log is the append-only, ordered, replayable event log. Appending is the
// durability boundary for the write side: an operation is finalized exactly
// when its record lands here. Readers may consume any prefix and replay
// from the start at any time.
//
// Two subscription flavors mirror the write/read split: Subscribe delivers
// losslessly with backpressure (durable sinks), Watch drops on a full
// buffer (rebuildable read models).
type Log struct {
	mu       sync.RWMutex
	base     int64
	entries  []Envelope
	subs     []chan Envelope
	watchers []chan Envelope

	dropped int64
}

func NewLog() *Log {
	return &Log{}
}

// NewLogAt returns a log whose first append is assigned sequence next.
// A process resuming on top of a durable log starts here so its new
// envelopes never reuse sequences already written by a previous run.
func NewLogAt(next int64) *Log {
	if next < 0 {
		next = 0
	}
	return &Log{base: next}
}

// Append assigns the next sequence and fans the envelope out to
// subscribers. The caller is responsible for making the append atomic
// with the state mutation that produced the record.
func (l *Log) Append(rec Record, ts time.Time) Envelope {
	l.mu.Lock()
	env := Envelope{
		Sequence:  l.base + int64(len(l.entries)),
		EventID:   uuid.New(),
		Type:      rec.EventType(),
		Timestamp: ts,
		Record:    rec,
	}
	l.entries = append(l.entries, env)
	subs := append([]chan Envelope(nil), l.subs...)
	watchers := append([]chan Envelope(nil), l.watchers...)
	l.mu.Unlock()

	for _, ch := range subs {
		ch <- env // blocking: lossless, producer stalls if the sink lags
	}
	for _, ch := range watchers {
		select {
		case ch <- env:
		default:
			l.mu.Lock()
			l.dropped++
			l.mu.Unlock()
		}
	}
	return env
}

// All returns a copy of the full log.
func (l *Log) All() []Envelope {
	return l.Since(-1)
}

// Since returns all envelopes with Sequence > after, in order.
func (l *Log) Since(after int64) []Envelope {
	l.mu.RLock()
	defer l.mu.RUnlock()

	from := after + 1 - l.base
	if from < 0 {
		from = 0
	}
	if from >= int64(len(l.entries)) {
		return nil
	}
	out := make([]Envelope, int64(len(l.entries))-from)
	copy(out, l.entries[from:])
	return out
}

// Len returns the number of envelopes this log holds.
func (l *Log) Len() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return int64(len(l.entries))
}

// LastSequence returns the sequence of the most recent envelope, or one
// less than the starting sequence when nothing has been appended.
func (l *Log) LastSequence() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.base + int64(len(l.entries)) - 1
}

// Dropped returns how many envelopes were dropped on full watcher buffers.
func (l *Log) Dropped() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dropped
}

// Subscribe registers a lossless subscriber. Appends block while the
// subscriber's buffer is full, so consumers must keep draining.
func (l *Log) Subscribe(buffer int) <-chan Envelope {
	ch := make(chan Envelope, buffer)
	l.mu.Lock()
	l.subs = append(l.subs, ch)
	l.mu.Unlock()
	return ch
}

// Watch registers a lossy subscriber: envelopes are dropped when the
// buffer is full. Watchers are expected to rebuild from the log via Since.
func (l *Log) Watch(buffer int) <-chan Envelope {
	ch := make(chan Envelope, buffer)
	l.mu.Lock()
	l.watchers = append(l.watchers, ch)
	l.mu.Unlock()
	return ch
}
