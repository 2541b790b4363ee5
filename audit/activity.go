/*
Package audit provides the system-wide activity log.

PURPOSE:
  Every mutating core operation leaves one human-readable line here
  ("Admin User approved expense Fuel"). The operations dashboard reads it
  newest first. Unlike the stock movement log, this log is bounded: once
  the retention cap is reached the oldest entries are dropped.

INVARIANTS:
  1. Entries are immutable once appended.
  2. List() is ordered newest first.
  3. Append and cap eviction share one mutex, so eviction never races an
     append.
  4. Auditing is best-effort: a failing Sink is logged, never returned.

SEE ALSO:
  - store/sqlite/sqlite.go: Durable Sink implementation
*/
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mellovesfromage/warehouse-system/core"
)

// DefaultCapacity is the retention cap used when none is configured.
const DefaultCapacity = 1000

// Entry is one line of the activity log.
type Entry struct {
	ID        string        `json:"id"`
	Seq       int64         `json:"seq"`
	Actor     core.ActorRef `json:"actor"`
	Action    string        `json:"action"`
	Detail    string        `json:"detail"`
	Timestamp time.Time     `json:"timestamp"`
}

// Sink receives committed entries, typically to persist them.
type Sink interface {
	RecordActivity(ctx context.Context, e Entry) error
}

// Options configures a Log.
type Options struct {
	Capacity int
	Sink     Sink
	Logger   zerolog.Logger
	Clock    core.Clock
}

// Log is a bounded, newest-first activity trail backed by a ring buffer.
type Log struct {
	mu    sync.Mutex
	buf   []Entry
	head  int // index of the next write
	size  int
	seq   int64
	sink  Sink
	log   zerolog.Logger
	clock core.Clock
}

// NewLog creates an empty activity log.
func NewLog(opts Options) *Log {
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		buf:   make([]Entry, capacity),
		sink:  opts.Sink,
		log:   opts.Logger.With().Str("component", "activity").Logger(),
		clock: opts.Clock.OrDefault(),
	}
}

// Append records an action and returns the stored entry.
func (l *Log) Append(ctx context.Context, actor core.ActorRef, action, detail string) Entry {
	l.mu.Lock()
	l.seq++
	e := Entry{
		ID:        core.NewID(),
		Seq:       l.seq,
		Actor:     actor,
		Action:    action,
		Detail:    detail,
		Timestamp: l.clock(),
	}
	l.pushLocked(e)
	l.mu.Unlock()

	if l.sink != nil {
		if err := l.sink.RecordActivity(ctx, e); err != nil {
			l.log.Warn().Err(err).Str("action", action).Msg("activity sink failed")
		}
	}
	return e
}

// Restore loads previously persisted entries, given oldest first, without
// forwarding them to the sink.
func (l *Log) Restore(entries []Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range entries {
		l.pushLocked(e)
		if e.Seq > l.seq {
			l.seq = e.Seq
		}
	}
}

func (l *Log) pushLocked(e Entry) {
	l.buf[l.head] = e
	l.head = (l.head + 1) % len(l.buf)
	if l.size < len(l.buf) {
		l.size++
	}
}

// List returns all retained entries, newest first.
func (l *Log) List() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, l.size)
	for i := 0; i < l.size; i++ {
		idx := (l.head - 1 - i + len(l.buf)) % len(l.buf)
		out[i] = l.buf[idx]
	}
	return out
}

// Len returns the number of retained entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}

// Capacity returns the retention cap.
func (l *Log) Capacity() int { return len(l.buf) }
