// Package ratelimit paces packet emission with a per-worker token
// bucket and an optional orchestrator-wide bandwidth cap.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// PacketLimiter is a per-worker token bucket: capacity is one second of
// tokens at the configured rate, refilled continuously. Acquire
// suspends cooperatively until a token is available; under
// cancellation it returns immediately without consuming one. A worker
// that oversleeps simply emits at the capped rate afterward — there is
// no catch-up burst, since the bucket never grows past one second of
// capacity.
type PacketLimiter struct {
	limiter *rate.Limiter
}

// NewPacketLimiter builds a limiter for pps packets per second.
func NewPacketLimiter(pps int) *PacketLimiter {
	return &PacketLimiter{limiter: rate.NewLimiter(rate.Limit(pps), pps)}
}

// Acquire blocks until a token is available or ctx is done. On context
// cancellation it returns ctx.Err() without consuming a token — the
// caller (a worker observing Draining) must treat this as "do not
// send" rather than retry.
func (l *PacketLimiter) Acquire(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// BandwidthLimiter is an optional aggregate cap shared across all
// workers on the bytes dimension, sampled after each send rather than
// reserved before it — a send's exact size isn't known until the
// builder runs, so this limiter spends tokens retroactively instead of
// gating the send itself.
type BandwidthLimiter struct {
	limiter *rate.Limiter
}

// NewBandwidthLimiter builds a shared limiter capped at bytesPerSec. A
// nil *BandwidthLimiter is valid and always permits sends immediately —
// callers construct one only when max_bandwidth is configured.
func NewBandwidthLimiter(bytesPerSec uint64) *BandwidthLimiter {
	if bytesPerSec == 0 {
		return nil
	}
	burst := int(bytesPerSec)
	if burst <= 0 {
		burst = 1 << 20 // guard against overflow on absurd configured caps
	}
	return &BandwidthLimiter{limiter: rate.NewLimiter(rate.Limit(bytesPerSec), burst)}
}

// Account records n bytes just sent, blocking until the aggregate
// bandwidth budget can absorb them. A nil receiver is a no-op — the
// unconfigured case.
func (l *BandwidthLimiter) Account(ctx context.Context, n int) error {
	if l == nil {
		return nil
	}
	return l.limiter.WaitN(ctx, n)
}
