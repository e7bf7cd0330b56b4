package transport

import (
	"errors"
	"math/rand"
	"sync/atomic"

	"github.com/PaulShpilsher/router-flood-sub002/pkg/packet"
)

// errInjectedFailure is returned by MockChannel when its failure
// injection fires.
var errInjectedFailure = errors.New("transport: injected mock failure")

// MockChannel counts sends and, if FailureRate is positive, fails a
// random subset of them — substitutable for a real raw-socket channel
// in tests and dry-run mode without touching the network stack.
type MockChannel struct {
	name        string
	FailureRate float64 // e.g. 0.01 for 1%

	sent      atomic.Uint64
	failed    atomic.Uint64
	available atomic.Bool
	rng       *rand.Rand
}

// NewMockChannel returns an available MockChannel with the given
// failure rate (0 disables injection) seeded for reproducible tests.
func NewMockChannel(name string, failureRate float64, seed int64) *MockChannel {
	m := &MockChannel{name: name, FailureRate: failureRate, rng: rand.New(rand.NewSource(seed))} //nolint:gosec
	m.available.Store(true)
	return m
}

func (m *MockChannel) Send(buf []byte, target *packet.Target) error {
	if !m.available.Load() {
		return &ErrChannelUnavailable{}
	}
	m.sent.Add(1)
	if m.FailureRate > 0 && m.rng.Float64() < m.FailureRate {
		m.failed.Add(1)
		return errInjectedFailure
	}
	return nil
}

func (m *MockChannel) Available() bool { return m.available.Load() }
func (m *MockChannel) Name() string    { return m.name }

// Close marks the channel unavailable. Idempotent.
func (m *MockChannel) Close() error {
	m.available.Store(false)
	return nil
}

// SentCount returns the number of sends accepted (including injected
// failures, which still count as an attempted send).
func (m *MockChannel) SentCount() uint64 { return m.sent.Load() }

// FailedCount returns the number of sends that hit injected failure.
func (m *MockChannel) FailedCount() uint64 { return m.failed.Load() }

// SetAvailable forces availability for testing ErrChannelUnavailable
// paths without closing the channel outright.
func (m *MockChannel) SetAvailable(v bool) { m.available.Store(v) }
