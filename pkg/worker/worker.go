// Package worker runs the per-goroutine send loop: acquire a rate
// token, pick a packet kind for the target's family, build it into a
// reusable buffer, dispatch it, and record the outcome — grounded on
// the teacher's executeInject goroutine-per-unit-of-work pattern,
// generalized from "one goroutine per fault" to "one goroutine per
// flood worker" with its own exclusively-owned Builder, Selector, and
// LocalStats instead of a shared job struct.
package worker

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/PaulShpilsher/router-flood-sub002/pkg/control"
	"github.com/PaulShpilsher/router-flood-sub002/pkg/packet"
	"github.com/PaulShpilsher/router-flood-sub002/pkg/protocol"
	"github.com/PaulShpilsher/router-flood-sub002/pkg/ratelimit"
	"github.com/PaulShpilsher/router-flood-sub002/pkg/reporting"
	"github.com/PaulShpilsher/router-flood-sub002/pkg/stats"
	"github.com/PaulShpilsher/router-flood-sub002/pkg/transport"
)

// Config is everything one Worker needs, all exclusively owned — no
// field here is shared with any other worker except Dispatcher (which
// is itself safe for concurrent Send calls by contract), the Bandwidth
// limiter (one per run, safe for concurrent use), and the Token.
type Config struct {
	Index       int
	Target      *packet.Target
	Builder     *packet.Builder
	Selector    *protocol.Selector
	Dispatcher  *transport.Dispatcher
	RateLimiter *ratelimit.PacketLimiter
	Bandwidth   *ratelimit.BandwidthLimiter
	SizeRange   protocol.SizeRange
	Local       *stats.LocalStats
	Token       *control.Token
	Logger      *reporting.Logger
	// FailureThreshold is the number of consecutive send/build failures
	// after which a worker voluntarily exits rather than spinning
	// forever against a channel that has stopped working. Zero selects
	// the default of 1000.
	FailureThreshold int
}

// defaultFailureThreshold bounds how long a worker spins against a
// channel that has stopped accepting sends before giving up.
const defaultFailureThreshold = 1000

// Worker is one producer goroutine's exclusively-owned state.
type Worker struct {
	cfg Config
	buf [1500]byte
}

// New constructs a Worker from cfg.
func New(cfg Config) *Worker {
	return &Worker{cfg: cfg}
}

// Run executes the send loop until ctx is done or the cancellation
// token transitions to Draining, whichever comes first. Run always
// flushes its LocalStats before returning — on a normal stop, a
// cancelled context, or a recovered panic — so no increment is ever
// lost even if this worker dies mid-run. A panic here is caught,
// logged, and turned into a nil return so the pool's supervisor
// continues running the remaining workers unaffected.
func (w *Worker) Run(ctx context.Context) (err error) {
	defer w.cfg.Local.Close()
	defer func() {
		if r := recover(); r != nil {
			if w.cfg.Logger != nil {
				w.cfg.Logger.Error("worker panicked, recovering", "worker_index", w.cfg.Index, "panic", r)
			}
			err = nil
		}
	}()

	family := w.cfg.Target.Family()
	threshold := w.cfg.FailureThreshold
	if threshold <= 0 {
		threshold = defaultFailureThreshold
	}
	consecutiveFailures := 0

	for {
		if w.cfg.Token.Draining() {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-w.cfg.Token.Done():
			return nil
		default:
		}

		if err := w.cfg.RateLimiter.Acquire(ctx); err != nil {
			return nil
		}

		kind := w.cfg.Selector.NextForFamily(family)
		n, _, buildErr := w.cfg.Builder.BuildInto(w.buf[:], kind, w.cfg.Target, w.cfg.SizeRange)
		if buildErr != nil {
			w.cfg.Local.Record(kind, 0, false)
			consecutiveFailures++
			if consecutiveFailures >= threshold {
				w.giveUp(ctx, consecutiveFailures)
				return nil
			}
			continue
		}

		sendErr := w.dispatch(kind, w.buf[:n])
		if sendErr != nil {
			w.cfg.Local.Record(kind, 0, false)
			consecutiveFailures++
			if consecutiveFailures >= threshold {
				w.giveUp(ctx, consecutiveFailures)
				return nil
			}
			continue
		}
		consecutiveFailures = 0
		w.cfg.Local.Record(kind, uint64(n), true)

		if w.cfg.Bandwidth != nil {
			if err := w.cfg.Bandwidth.Account(ctx, n); err != nil {
				return nil
			}
		}
	}
}

// giveUp pauses briefly before a worker exits after too many
// consecutive failures — not a retry of the failed send (which would
// violate the fire-and-forget contract) but a guard against a hot spin
// in the instant before the worker gives up and the orchestrator
// notices it's gone.
func (w *Worker) giveUp(ctx context.Context, failures int) {
	if w.cfg.Logger != nil {
		w.cfg.Logger.Warn("worker exiting after consecutive failures", "worker_index", w.cfg.Index, "consecutive_failures", failures)
	}
	eb := &backoff.ExponentialBackOff{
		InitialInterval:     10 * time.Millisecond,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         500 * time.Millisecond,
	}
	eb.Reset()
	timer := time.NewTimer(eb.NextBackOff())
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// dispatch picks the transport Kind a PacketType needs and routes the
// send through this worker's Dispatcher.
func (w *Worker) dispatch(kind protocol.PacketType, buf []byte) error {
	var tkind transport.Kind
	switch kind.Family() {
	case protocol.FamilyIPv6:
		tkind = transport.KindIPv6
	default:
		tkind = transport.KindIPv4
	}
	if kind == protocol.PacketARP {
		tkind = transport.KindLayer2
	}
	return w.cfg.Dispatcher.Send(tkind, buf, w.cfg.Target)
}
