// Package control implements the run's cooperative cancellation token
// and the signal/stop-file plumbing that drives it, grounded on the
// emergency-stop controller's signal.Notify + stop-file poll pattern,
// generalized to the two-level Running/Draining token this domain
// needs instead of a single stop/no-stop bit.
package control

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Level is the cancellation token's state. Workers must not initiate
// new sends after observing Draining; they must still flush local
// stats before exiting.
type Level int32

const (
	Running Level = iota
	Draining
)

// Token is the one shared cancellation handle for a run. All
// suspension points (rate limiter acquire, transport send) must return
// promptly once the token transitions to Draining.
type Token struct {
	mu        sync.Mutex
	level     Level
	drainCh   chan struct{}
	closeOnce sync.Once
	callbacks []func()
}

// NewToken returns a Token in the Running state.
func NewToken() *Token {
	return &Token{drainCh: make(chan struct{})}
}

// Level returns the current cancellation level.
func (t *Token) Level() Level {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.level
}

// Draining reports whether the token has transitioned past Running.
func (t *Token) Draining() bool {
	return t.Level() == Draining
}

// Done returns a channel closed exactly once, the moment the token
// transitions to Draining — suitable for use in a select alongside a
// rate limiter's own context.
func (t *Token) Done() <-chan struct{} {
	return t.drainCh
}

// TriggerDrain transitions the token to Draining. Idempotent — a
// second call is a no-op, matching the "double-release must be safe"
// resource-scoping requirement.
func (t *Token) TriggerDrain(reason string) {
	t.mu.Lock()
	if t.level == Draining {
		t.mu.Unlock()
		return
	}
	t.level = Draining
	callbacks := append([]func(){}, t.callbacks...)
	t.mu.Unlock()

	t.closeOnce.Do(func() { close(t.drainCh) })
	for _, cb := range callbacks {
		cb()
	}
}

// OnDrain registers a callback invoked (at most once) when the token
// transitions to Draining. If the token is already draining, cb runs
// immediately.
func (t *Token) OnDrain(cb func()) {
	t.mu.Lock()
	if t.level == Draining {
		t.mu.Unlock()
		cb()
		return
	}
	t.callbacks = append(t.callbacks, cb)
	t.mu.Unlock()
}

// Config controls how a Token gets wired to the outside world.
type Config struct {
	// StopFile, if set, is watched for creation as an alternate
	// drain trigger (operator-initiated, scriptable).
	StopFile string
	// EnableSignalHandlers installs SIGINT/SIGTERM handlers that
	// trigger Draining. SIGINT additionally causes the process to
	// exit 130 once draining completes — the caller checks
	// Watcher.InterruptedBySignal for this.
	EnableSignalHandlers bool
	// PollInterval is the fallback stop-file poll period used when
	// an fsnotify watch cannot be established (e.g. an unsupported
	// filesystem). Defaults to one second.
	PollInterval time.Duration
}

// Watcher owns the background goroutines that feed a Token and must be
// stopped (via its context) on every exit path to release the signal
// handler and any fsnotify watch.
type Watcher struct {
	token               *Token
	interruptedBySignal bool
	mu                  sync.Mutex
}

// Start wires cfg's triggers to token and returns a Watcher. The
// caller's ctx controls the watcher's own lifetime; cancelling it stops
// the background goroutines (but does not itself drain the token —
// that only happens via a real signal, stop file, or explicit
// TriggerDrain call).
func Start(ctx context.Context, token *Token, cfg Config) *Watcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	w := &Watcher{token: token}

	if cfg.EnableSignalHandlers {
		go w.watchSignals(ctx, token)
	}
	if cfg.StopFile != "" {
		go w.watchStopFile(ctx, token, cfg.StopFile, cfg.PollInterval)
	}
	return w
}

// InterruptedBySignal reports whether a SIGINT specifically (as
// opposed to SIGTERM or a stop file) triggered the drain — the
// orchestrator uses this to choose exit code 130 over 2.
func (w *Watcher) InterruptedBySignal() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.interruptedBySignal
}

func (w *Watcher) watchSignals(ctx context.Context, token *Token) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		if sig == syscall.SIGINT {
			w.mu.Lock()
			w.interruptedBySignal = true
			w.mu.Unlock()
		}
		token.TriggerDrain("signal: " + sig.String())
	case <-ctx.Done():
	}
}

// watchStopFile prefers an fsnotify watch on the stop file's parent
// directory for immediate reaction; if the watch can't be established
// (e.g. the directory doesn't exist yet, or the filesystem doesn't
// support inotify) it falls back to polling os.Stat at pollInterval —
// the same belt-and-suspenders posture as signal handlers being
// optional while the stop file is always checked.
func (w *Watcher) watchStopFile(ctx context.Context, token *Token, path string, pollInterval time.Duration) {
	if watcher, err := fsnotify.NewWatcher(); err == nil {
		defer watcher.Close()
		dir := parentDir(path)
		if watcher.Add(dir) == nil {
		watch:
			for {
				select {
				case ev, ok := <-watcher.Events:
					if !ok {
						return
					}
					if ev.Name == path && (ev.Op&(fsnotify.Create|fsnotify.Write) != 0) {
						token.TriggerDrain("stop file created: " + path)
						return
					}
				case <-watcher.Errors:
					break watch // fall through to polling below
				case <-ctx.Done():
					return
				}
			}
		}
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := os.Stat(path); err == nil {
				token.TriggerDrain("stop file detected (poll): " + path)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func parentDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
