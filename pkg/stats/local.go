package stats

import "github.com/PaulShpilsher/router-flood-sub002/pkg/protocol"

// localCounts holds one protocol slot's worth of unflushed,
// non-atomic counters — safe only because exactly one worker ever
// touches a given LocalStats.
type localCounts struct {
	sent, bytes, failed uint64
}

// DefaultBatchSize is the number of record operations a LocalStats
// accumulates before auto-flushing to its Shared target.
const DefaultBatchSize = 100

// LocalStats is a per-worker, non-atomic accumulator bound to one
// Shared target. It flushes every BatchSize operations and whenever
// Flush/Close is called explicitly, so that at worker exit — normal,
// cancelled, or panicking — the invariant "sum of all locals plus
// shared equals the true total" holds with zero unflushed remainder.
type LocalStats struct {
	target    *Shared
	counts    [protocol.Cardinality]localCounts
	batchSize int
	ops       int
}

// NewLocalStats binds a LocalStats to target with the given batch size
// (DefaultBatchSize if batchSize <= 0).
func NewLocalStats(target *Shared, batchSize int) *LocalStats {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &LocalStats{target: target, batchSize: batchSize}
}

// Record increments the local counters for kind and flushes to the
// shared target every batchSize operations.
func (l *LocalStats) Record(kind protocol.PacketType, n uint64, ok bool) {
	c := &l.counts[kind.Index()]
	if ok {
		c.sent++
		c.bytes += n
	} else {
		c.failed++
	}
	l.ops++
	if l.ops >= l.batchSize {
		l.Flush()
	}
}

// Flush applies all unflushed local counters to the shared target and
// resets the local counts. Safe to call repeatedly, including when
// there is nothing to flush.
func (l *LocalStats) Flush() {
	l.target.RecordBatch(l)
	l.ops = 0
}

func (l *LocalStats) reset() {
	for i := range l.counts {
		l.counts[i] = localCounts{}
	}
}

// Close flushes any remaining locals. A worker calls Close on every
// exit path — normal completion, cancellation, or a recovered panic —
// so no increment is ever lost.
func (l *LocalStats) Close() {
	l.Flush()
}
