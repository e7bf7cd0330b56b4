package worker

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/PaulShpilsher/router-flood-sub002/pkg/control"
	"github.com/PaulShpilsher/router-flood-sub002/pkg/packet"
	"github.com/PaulShpilsher/router-flood-sub002/pkg/protocol"
	"github.com/PaulShpilsher/router-flood-sub002/pkg/ratelimit"
	"github.com/PaulShpilsher/router-flood-sub002/pkg/stats"
	"github.com/PaulShpilsher/router-flood-sub002/pkg/transport"
)

func newTestWorker(t *testing.T, shared *stats.Shared, token *control.Token) (*Worker, *transport.MockChannel) {
	t.Helper()
	mock := transport.NewMockChannel("mock-ipv4", 0, 1)
	dispatcher := transport.NewDispatcher(mock, nil, nil)
	target := packet.NewTarget(net.ParseIP("10.0.0.5"), []int{80, 443})
	builder := packet.NewBuilder(1, net.ParseIP("10.0.0.1"), nil, nil)
	mix := protocol.Mix{UDP: 1}
	selector := protocol.NewSelector(mix, false, 1)

	w := New(Config{
		Target:      target,
		Builder:     builder,
		Selector:    selector,
		Dispatcher:  dispatcher,
		RateLimiter: ratelimit.NewPacketLimiter(1000),
		SizeRange:   protocol.SizeRange{Min: 64, Max: 128},
		Local:       stats.NewLocalStats(shared, 10),
		Token:       token,
	})
	return w, mock
}

func TestWorkerSendsAndRecordsStats(t *testing.T) {
	shared := stats.NewShared("session")
	token := control.NewToken()
	w, mock := newTestWorker(t, shared, token)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		time.Sleep(50 * time.Millisecond)
		token.TriggerDrain("test done")
	}()

	require.NoError(t, w.Run(ctx))

	snap := shared.Snapshot()
	require.Greater(t, snap.TotalSent(), uint64(0))
	require.Greater(t, mock.SentCount(), uint64(0))
}

func TestWorkerStopsOnContextCancel(t *testing.T) {
	shared := stats.NewShared("session")
	token := control.NewToken()
	w, _ := newTestWorker(t, shared, token)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}

func TestWorkerExitsAfterConsecutiveFailureThreshold(t *testing.T) {
	shared := stats.NewShared("session")
	token := control.NewToken()

	mock := transport.NewMockChannel("mock-ipv4", 1.0, 1)
	dispatcher := transport.NewDispatcher(mock, nil, nil)
	target := packet.NewTarget(net.ParseIP("10.0.0.5"), []int{80, 443})
	builder := packet.NewBuilder(1, net.ParseIP("10.0.0.1"), nil, nil)
	mix := protocol.Mix{UDP: 1}
	selector := protocol.NewSelector(mix, false, 1)

	w := New(Config{
		Target:           target,
		Builder:          builder,
		Selector:         selector,
		Dispatcher:       dispatcher,
		RateLimiter:      ratelimit.NewPacketLimiter(100000),
		SizeRange:        protocol.SizeRange{Min: 64, Max: 128},
		Local:            stats.NewLocalStats(shared, 10),
		Token:            token,
		FailureThreshold: 5,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not give up after the configured failure threshold")
	}

	require.GreaterOrEqual(t, mock.FailedCount(), uint64(5))
	require.Equal(t, uint64(0), shared.Snapshot().TotalSent())
}

func TestWorkerRecoversFromSelectorPanic(t *testing.T) {
	shared := stats.NewShared("session")
	token := control.NewToken()
	w, _ := newTestWorker(t, shared, token)
	// Target family deliberately mismatched against an IPv6-only selector
	// drives BuildInto into InvalidCombination, not a panic — this test
	// instead exercises the recover path via a selector with no eligible
	// buckets, which NextForFamily documents as a panic.
	w.cfg.Selector = protocol.NewSelector(protocol.Mix{}, false, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := w.Run(ctx)
	require.NoError(t, err, "Run must recover from an internal panic and return nil")
}

func TestPoolRunsAllWorkersConcurrently(t *testing.T) {
	shared := stats.NewShared("session")
	token := control.NewToken()

	var workers []*Worker
	for i := 0; i < 4; i++ {
		w, _ := newTestWorker(t, shared, token)
		workers = append(workers, w)
	}
	pool := NewPool(workers)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		time.Sleep(50 * time.Millisecond)
		token.TriggerDrain("test done")
	}()

	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("pool did not finish after token drained")
	}

	require.Greater(t, shared.Snapshot().TotalSent(), uint64(0))
}

// TestPoolLeavesNoGoroutinesAfterDrain drives a full pool run through a
// drain trigger and then a context cancellation, and asserts no worker
// goroutine survives past the grace period.
func TestPoolLeavesNoGoroutinesAfterDrain(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	shared := stats.NewShared("session")
	token := control.NewToken()

	var workers []*Worker
	for i := 0; i < 4; i++ {
		w, _ := newTestWorker(t, shared, token)
		workers = append(workers, w)
	}
	pool := NewPool(workers)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		time.Sleep(20 * time.Millisecond)
		token.TriggerDrain("test done")
	}()

	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("pool did not finish after token drained")
	}
}
