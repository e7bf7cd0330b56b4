// Package stats implements lock-free run statistics: a fixed array of
// per-protocol atomic counters, optional per-CPU sharding to cut
// contention, and a batched per-worker local accumulator that flushes
// into the shared counters periodically and on release.
package stats

import (
	"sync/atomic"
	"time"

	"github.com/PaulShpilsher/router-flood-sub002/pkg/protocol"
)

// counters holds the three per-protocol 64-bit atomics the spec calls
// for: sent, bytes, failed. All updates use relaxed-ordering increments
// (Go's atomic package has no separate relaxed/acquire modes — Add and
// Load already compile to the processor's native atomic instructions,
// which is the closest a portable Go program gets to "relaxed for
// writers, acquire for readers").
type counters struct {
	sent   atomic.Uint64
	bytes  atomic.Uint64
	failed atomic.Uint64
}

func (c *counters) add(bytes uint64, failed bool) {
	if failed {
		c.failed.Add(1)
		return
	}
	c.sent.Add(1)
	c.bytes.Add(bytes)
}

func (c *counters) snapshot() ProtocolCounts {
	return ProtocolCounts{
		Sent:   c.sent.Load(),
		Bytes:  c.bytes.Load(),
		Failed: c.failed.Load(),
	}
}

func (c *counters) reset() {
	c.sent.Store(0)
	c.bytes.Store(0)
	c.failed.Store(0)
}

// Shared is one fixed array of per-protocol counters plus a global
// failure counter and the run's start time. Shared is safe for
// concurrent use by any number of workers and readers.
type Shared struct {
	perProtocol  [protocol.Cardinality]counters
	globalFailed atomic.Uint64
	startTime    time.Time
	sessionID    string
}

// NewShared constructs a Shared counter set with start_time fixed at
// construction — this is also the orchestrator's "all long-lived
// entities created before workers start" boundary.
func NewShared(sessionID string) *Shared {
	return &Shared{startTime: time.Now(), sessionID: sessionID}
}

// Record increments the counters for kind by one packet of n bytes, or
// increments failed (and the global failure counter) if ok is false.
func (s *Shared) Record(kind protocol.PacketType, n uint64, ok bool) {
	s.perProtocol[kind.Index()].add(n, !ok)
	if !ok {
		s.globalFailed.Add(1)
	}
}

// RecordBatch applies an already-accumulated LocalStats batch in one
// pass, used by LocalStats.Flush.
func (s *Shared) RecordBatch(batch *LocalStats) {
	for i := range batch.counts {
		c := &batch.counts[i]
		if c.sent > 0 {
			s.perProtocol[i].sent.Add(c.sent)
			s.perProtocol[i].bytes.Add(c.bytes)
		}
		if c.failed > 0 {
			s.perProtocol[i].failed.Add(c.failed)
			s.globalFailed.Add(c.failed)
		}
	}
	batch.reset()
}

// Reset zeroes every counter; monotonicity resumes from zero.
func (s *Shared) Reset() {
	for i := range s.perProtocol {
		s.perProtocol[i].reset()
	}
	s.globalFailed.Store(0)
	s.startTime = time.Now()
}

// Snapshot produces a plain-data copy with a timestamp. Per-slot reads
// are individually atomic but not linearized across slots — a snapshot
// is not guaranteed to represent one single global instant.
func (s *Shared) Snapshot() Snapshot {
	var snap Snapshot
	snap.SessionID = s.sessionID
	snap.Timestamp = time.Now()
	snap.Elapsed = snap.Timestamp.Sub(s.startTime)
	for i := range s.perProtocol {
		snap.PerProtocol[i] = s.perProtocol[i].snapshot()
	}
	snap.GlobalFailed = s.globalFailed.Load()
	return snap
}

// ProtocolCounts is a plain-data copy of one protocol slot.
type ProtocolCounts struct {
	Sent, Bytes, Failed uint64
}

// Snapshot is the plain-old-data export shape. Derived rates divide by
// elapsed seconds clamped to a small epsilon so a zero-duration
// snapshot never divides by zero.
type Snapshot struct {
	SessionID    string
	Timestamp    time.Time
	Elapsed      time.Duration
	PerProtocol  [protocol.Cardinality]ProtocolCounts
	GlobalFailed uint64
}

const epsilonSeconds = 1e-9

// TotalSent sums packets_sent across every protocol slot.
func (s Snapshot) TotalSent() uint64 {
	var total uint64
	for _, c := range s.PerProtocol {
		total += c.Sent
	}
	return total
}

// TotalBytes sums bytes_sent across every protocol slot.
func (s Snapshot) TotalBytes() uint64 {
	var total uint64
	for _, c := range s.PerProtocol {
		total += c.Bytes
	}
	return total
}

// PacketsPerSecond is always >= 0 and finite for any elapsed > 0.
func (s Snapshot) PacketsPerSecond() float64 {
	secs := s.Elapsed.Seconds()
	if secs < epsilonSeconds {
		secs = epsilonSeconds
	}
	return float64(s.TotalSent()) / secs
}

// MegabitsPerSecond mirrors PacketsPerSecond on the bytes dimension.
func (s Snapshot) MegabitsPerSecond() float64 {
	secs := s.Elapsed.Seconds()
	if secs < epsilonSeconds {
		secs = epsilonSeconds
	}
	return float64(s.TotalBytes()) * 8 / 1_000_000 / secs
}
