package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPacketLimiterAcquireReturnsImmediatelyWithinBurst(t *testing.T) {
	l := NewPacketLimiter(1000)
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 10; i++ {
		require.NoError(t, l.Acquire(ctx))
	}
	require.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestPacketLimiterAcquireHonorsCancellation(t *testing.T) {
	l := NewPacketLimiter(1) // 1 pps, burst already exhausted below
	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx)) // consume the single token

	cancelCtx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.Acquire(cancelCtx)
	require.Error(t, err)
}

func TestBandwidthLimiterNilIsNoop(t *testing.T) {
	var l *BandwidthLimiter
	require.NoError(t, l.Account(context.Background(), 1<<20))
}

func TestBandwidthLimiterAccountsBytes(t *testing.T) {
	l := NewBandwidthLimiter(1 << 20) // 1 MiB/s
	require.NotNil(t, l)
	require.NoError(t, l.Account(context.Background(), 1024))
}

func TestNewBandwidthLimiterZeroDisables(t *testing.T) {
	require.Nil(t, NewBandwidthLimiter(0))
}
