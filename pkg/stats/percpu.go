package stats

import "runtime"

// PerCpuStats keeps one Shared per shard to cut write contention when
// many workers record concurrently. Go exposes no portable "current
// CPU" primitive without cgo, so shard assignment falls back to the
// documented alternative: a fixed array indexed by a caller-supplied
// slot id (here, the worker's index), which preserves correctness —
// only contention characteristics change — and keeps aggregation order
// unspecified but stable within one Snapshot call, exactly as the
// design notes require.
type PerCpuStats struct {
	shards    []*Shared
	sessionID string
}

// NewPerCpuStats builds shardCount independent Shared counter sets.
// shardCount <= 0 defaults to runtime.GOMAXPROCS(0).
func NewPerCpuStats(sessionID string, shardCount int) *PerCpuStats {
	if shardCount <= 0 {
		shardCount = runtime.GOMAXPROCS(0)
	}
	if shardCount < 1 {
		shardCount = 1
	}
	p := &PerCpuStats{shards: make([]*Shared, shardCount), sessionID: sessionID}
	for i := range p.shards {
		p.shards[i] = NewShared(sessionID)
	}
	return p
}

// ShardFor returns the Shared a worker with the given slot id should
// record into. Workers pin to one slot for their lifetime via
// workerIndex % shardCount.
func (p *PerCpuStats) ShardFor(slot int) *Shared {
	return p.shards[slot%len(p.shards)]
}

// ShardCount reports how many shards were created.
func (p *PerCpuStats) ShardCount() int { return len(p.shards) }

// Snapshot aggregates every shard's counters into one Snapshot.
// Aggregation order walks shards in index order — stable within one
// call, but not otherwise meaningful, matching the open-question
// resolution that only the sums are specified to be correct.
func (p *PerCpuStats) Snapshot() Snapshot {
	var total Snapshot
	total.SessionID = p.sessionID

	oldestStart := p.shards[0].startTime
	for _, s := range p.shards[1:] {
		if s.startTime.Before(oldestStart) {
			oldestStart = s.startTime
		}
	}

	for _, s := range p.shards {
		shardSnap := s.Snapshot()
		for i := range total.PerProtocol {
			total.PerProtocol[i].Sent += shardSnap.PerProtocol[i].Sent
			total.PerProtocol[i].Bytes += shardSnap.PerProtocol[i].Bytes
			total.PerProtocol[i].Failed += shardSnap.PerProtocol[i].Failed
		}
		total.GlobalFailed += shardSnap.GlobalFailed
	}
	now := p.shards[0].Snapshot().Timestamp
	total.Timestamp = now
	total.Elapsed = now.Sub(oldestStart)
	return total
}

// Reset zeroes every shard.
func (p *PerCpuStats) Reset() {
	for _, s := range p.shards {
		s.Reset()
	}
}
