package stats

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/PaulShpilsher/router-flood-sub002/pkg/protocol"
)

func TestSharedRecordAndSnapshot(t *testing.T) {
	s := NewShared("session-1")
	s.Record(protocol.PacketUDP, 100, true)
	s.Record(protocol.PacketUDP, 50, true)
	s.Record(protocol.PacketUDP, 0, false)

	snap := s.Snapshot()
	got := snap.PerProtocol[protocol.PacketUDP.Index()]
	require.Equal(t, uint64(2), got.Sent)
	require.Equal(t, uint64(150), got.Bytes)
	require.Equal(t, uint64(1), got.Failed)
	require.Equal(t, uint64(1), snap.GlobalFailed)
}

func TestSharedResetZeroesEverything(t *testing.T) {
	s := NewShared("session-1")
	s.Record(protocol.PacketUDP, 100, true)
	s.Reset()
	snap := s.Snapshot()
	require.Equal(t, uint64(0), snap.TotalSent())
	require.Equal(t, uint64(0), snap.TotalBytes())
	require.Equal(t, uint64(0), snap.GlobalFailed)
}

func TestLocalStatsFlushesOnBatchBoundary(t *testing.T) {
	shared := NewShared("s")
	local := NewLocalStats(shared, 10)

	for i := 0; i < 9; i++ {
		local.Record(protocol.PacketUDP, 1, true)
	}
	require.Equal(t, uint64(0), shared.Snapshot().TotalSent(), "not yet flushed before batch size")

	local.Record(protocol.PacketUDP, 1, true) // 10th op triggers flush
	require.Equal(t, uint64(10), shared.Snapshot().TotalSent())
}

func TestLocalStatsCloseFlushesRemainder(t *testing.T) {
	shared := NewShared("s")
	local := NewLocalStats(shared, 100)
	local.Record(protocol.PacketUDP, 1, true)
	local.Record(protocol.PacketICMP, 1, false)
	local.Close()

	snap := shared.Snapshot()
	require.Equal(t, uint64(1), snap.TotalSent())
	require.Equal(t, uint64(1), snap.GlobalFailed)
}

func TestConcurrentWorkersSumToTrueTotal(t *testing.T) {
	shared := NewShared("s")
	const workers = 8
	const opsPerWorker = 1000

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := NewLocalStats(shared, 37) // odd batch size exercises partial flush
			defer local.Close()
			for i := 0; i < opsPerWorker; i++ {
				local.Record(protocol.PacketUDP, 10, true)
			}
		}()
	}
	wg.Wait()

	snap := shared.Snapshot()
	require.Equal(t, uint64(workers*opsPerWorker), snap.TotalSent())
	require.Equal(t, uint64(workers*opsPerWorker*10), snap.TotalBytes())
}

func TestPerCpuStatsAggregatesAllShards(t *testing.T) {
	p := NewPerCpuStats("s", 4)
	for slot := 0; slot < 4; slot++ {
		p.ShardFor(slot).Record(protocol.PacketUDP, 1, true)
	}
	snap := p.Snapshot()
	require.Equal(t, uint64(4), snap.TotalSent())
}

func TestPacketsPerSecondNonNegativeAndFinite(t *testing.T) {
	s := NewShared("s")
	s.Record(protocol.PacketUDP, 100, true)
	snap := s.Snapshot()
	pps := snap.PacketsPerSecond()
	require.GreaterOrEqual(t, pps, 0.0)
	require.False(t, isInf(pps))
}

func isInf(f float64) bool {
	return f > 1e308 || f < -1e308
}
