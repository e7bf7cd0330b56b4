package worker

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Pool spawns one goroutine per Worker and waits for all of them to
// finish, mirroring the teacher's "fire all goroutines, join, collect
// outcomes afterward" shape from its concurrent fault-injection stage
// — generalized here to run for the run's full duration instead of one
// fire-and-forget injection call, and onto errgroup for the join.
type Pool struct {
	workers []*Worker
}

// NewPool builds a Pool over workers, one per spawned thread.
func NewPool(workers []*Worker) *Pool {
	return &Pool{workers: workers}
}

// Run starts every worker concurrently and blocks until all have
// returned — normally because the cancellation token drained, because
// ctx was cancelled, or (for an individual worker) because it
// recovered from a panic. A panicking worker never takes the rest of
// the pool down with it; Worker.Run already recovers internally, and
// Pool.Run adds its own recover as a second line of defense in case a
// worker's own recover is bypassed by a re-panic in a deferred call.
// Unlike errgroup's usual early-cancel-on-first-error idiom, one
// worker's error never cancels its siblings — every worker runs for
// the token's full Draining lifecycle regardless of what the others
// report.
func (p *Pool) Run(ctx context.Context) {
	var g errgroup.Group
	for _, w := range p.workers {
		w := w
		g.Go(func() (err error) {
			defer func() { _ = recover() }()
			return w.Run(ctx)
		})
	}
	_ = g.Wait()
}
