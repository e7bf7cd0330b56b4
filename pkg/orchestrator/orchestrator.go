package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sys/unix"

	"github.com/PaulShpilsher/router-flood-sub002/pkg/config"
	"github.com/PaulShpilsher/router-flood-sub002/pkg/control"
	"github.com/PaulShpilsher/router-flood-sub002/pkg/iface"
	"github.com/PaulShpilsher/router-flood-sub002/pkg/packet"
	"github.com/PaulShpilsher/router-flood-sub002/pkg/protocol"
	"github.com/PaulShpilsher/router-flood-sub002/pkg/ratelimit"
	"github.com/PaulShpilsher/router-flood-sub002/pkg/reporting"
	"github.com/PaulShpilsher/router-flood-sub002/pkg/safety"
	"github.com/PaulShpilsher/router-flood-sub002/pkg/stats"
	"github.com/PaulShpilsher/router-flood-sub002/pkg/transport"
	"github.com/PaulShpilsher/router-flood-sub002/pkg/worker"
)

// Orchestrator owns one run's lifecycle end to end: validate, resolve
// the transmitting interface, open transport channels, spawn the
// worker pool, wait for the drain signal, and produce the final
// report.
type Orchestrator struct {
	cfg      *config.Config
	logger   *reporting.Logger
	progress *reporting.ProgressReporter
	storage  *reporting.Storage

	state     RunState
	sessionID string
	startTime time.Time
	watcher   *control.Watcher
}

// New builds an Orchestrator. storage may be nil to skip persisting a
// report (for callers that only want the in-memory RunReport).
func New(cfg *config.Config, logger *reporting.Logger, progress *reporting.ProgressReporter, storage *reporting.Storage) *Orchestrator {
	return &Orchestrator{cfg: cfg, logger: logger, progress: progress, storage: storage}
}

// Interrupted reports whether SIGINT (as opposed to SIGTERM or a stop
// file) drove the most recent Run's drain — the CLI layer uses this to
// choose exit code 130.
func (o *Orchestrator) Interrupted() bool {
	return o.watcher != nil && o.watcher.InterruptedBySignal()
}

func (o *Orchestrator) transitionState(s RunState) {
	from := o.state
	o.state = s
	o.logger.Info("state transition", "from", from.String(), "to", s.String())
	if o.progress != nil {
		o.progress.ReportStateTransition(from.String(), s.String())
	}
}

// Run executes one complete attack lifecycle against ctx. A validation
// failure (*safety.ValidationError) is returned unwrapped so the caller
// can type-assert it to choose the right process exit code; any other
// error is a runtime failure.
func (o *Orchestrator) Run(ctx context.Context) (*reporting.RunReport, error) {
	o.startTime = time.Now()
	o.sessionID = generateSessionID()
	o.state = StateValidating

	cfg := o.cfg

	o.transitionState(StateValidating)
	validator := safety.New()

	targetIP := net.ParseIP(cfg.Target.IP)
	if targetIP == nil {
		return o.fail(&safety.ValidationError{Kind: safety.InvalidIPRange, Message: fmt.Sprintf("%q is not a valid IP address", cfg.Target.IP)})
	}

	runCfg := safety.RunConfig{
		TargetIP:   targetIP,
		Ports:      cfg.Target.Ports,
		Threads:    cfg.Attack.Threads,
		Rate:       cfg.Attack.PacketRate,
		MaxThreads: cfg.Safety.MaxThreads,
		MaxRate:    cfg.Safety.MaxPacketRate,
	}
	if err := validator.ValidateRunConfig(runCfg); err != nil {
		return o.fail(err)
	}
	if err := safety.CheckSystemRequirements(cfg.Attack.DryRun); err != nil {
		return o.fail(err)
	}

	mix := cfg.Attack.ProtocolMix.Mix()
	if err := mix.Validate(); err != nil {
		return o.fail(err)
	}

	sizeRange := protocol.SizeRange{Min: cfg.Attack.PacketSizeRange[0], Max: cfg.Attack.PacketSizeRange[1]}
	if !sizeRange.Valid() {
		return o.fail(fmt.Errorf("attack.packet_size_range is invalid: %+v", sizeRange))
	}

	bwBytesPerSec, hasBandwidthCap, err := cfg.Attack.MaxBandwidthBytesPerSec()
	if err != nil {
		return o.fail(err)
	}

	o.transitionState(StateResolvingInterface)
	resolved, err := iface.Resolve(cfg.Target.Interface)
	if err != nil {
		return o.fail(fmt.Errorf("orchestrator: %w", err))
	}
	o.logger.Info("resolved interface", "name", resolved.Name, "ipv4", resolved.IPv4, "ipv6", resolved.IPv6)

	o.transitionState(StateOpeningChannels)
	dispatcher, closeChannels, allowLayer2, err := openChannels(cfg.Attack.DryRun, resolved, targetIP)
	if err != nil {
		return o.fail(fmt.Errorf("orchestrator: %w", err))
	}
	defer closeChannels()

	shardCount := cfg.Attack.Threads
	shared := stats.NewPerCpuStats(o.sessionID, shardCount)

	token := control.NewToken()
	watcherCtx, watcherCancel := context.WithCancel(ctx)
	defer watcherCancel()
	o.watcher = control.Start(watcherCtx, token, control.Config{
		StopFile:             cfg.Framework.StopFile,
		EnableSignalHandlers: true,
	})

	baseTarget := packet.NewTarget(targetIP, cfg.Target.Ports)
	baseSeed := time.Now().UnixNano()

	var bwLimiter *ratelimit.BandwidthLimiter
	if hasBandwidthCap {
		bwLimiter = ratelimit.NewBandwidthLimiter(bwBytesPerSec)
	}

	workers := make([]*worker.Worker, cfg.Attack.Threads)
	for i := range workers {
		seed := baseSeed + int64(i)
		builder := packet.NewBuilder(seed, resolved.IPv4, resolved.IPv6, resolved.HardwareMAC)
		selector := protocol.NewSelector(mix, allowLayer2, seed)
		limiter := ratelimit.NewPacketLimiter(cfg.Attack.PacketRate)
		local := stats.NewLocalStats(shared.ShardFor(i), stats.DefaultBatchSize)

		workers[i] = worker.New(worker.Config{
			Index:       i,
			Target:      baseTarget.Clone(),
			Builder:     builder,
			Selector:    selector,
			Dispatcher:  dispatcher,
			RateLimiter: limiter,
			Bandwidth:   bwLimiter,
			SizeRange:   sizeRange,
			Local:       local,
			Token:       token,
			Logger:      o.logger,
		})
	}
	pool := worker.NewPool(workers)

	o.transitionState(StateRunning)
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	poolDone := make(chan struct{})
	go func() {
		pool.Run(runCtx)
		close(poolDone)
	}()

	var metricsServer *reporting.MetricsServer
	if cfg.Monitoring.PrometheusAddr != "" {
		metricsServer = reporting.NewMetricsServer(reporting.MetricsConfig{Addr: cfg.Monitoring.PrometheusAddr})
		go func() {
			interval := time.Duration(cfg.Monitoring.StatsIntervalMS) * time.Millisecond
			if err := metricsServer.Serve(runCtx, interval, shared.Snapshot, protocol.Names()); err != nil {
				o.logger.Warn("metrics server stopped", "error", err)
			}
		}()
	}

	progressDone := o.startProgressTicker(runCtx, shared)

	o.waitForDrainOrDeadline(ctx, token, time.Duration(cfg.Attack.Duration)*time.Second)

	o.transitionState(StateDraining)
	<-poolDone
	cancelRun()
	<-progressDone

	o.transitionState(StateReporting)
	snap := shared.Snapshot()
	report := reporting.FromSnapshot(snap, protocol.Names())
	report.SessionID = o.sessionID
	report.TargetIP = cfg.Target.IP
	report.Ports = cfg.Target.Ports
	report.Threads = cfg.Attack.Threads
	report.DryRun = cfg.Attack.DryRun
	report.Success = true
	report.Status = reporting.StatusCompleted
	if o.Interrupted() {
		report.Status = reporting.StatusStopped
	}
	if validator.HasWarnings() {
		report.Warnings = append(report.Warnings, validator.Warnings...)
	}

	if o.storage != nil {
		if err := o.persist(&report); err != nil {
			o.logger.Warn("failed to persist report", "error", err)
		}
	}
	if o.progress != nil {
		o.progress.ReportRunCompleted(&report)
	}

	o.transitionState(StateDone)
	return &report, nil
}

// persist saves report in every format named by cfg.Export.Formats.
func (o *Orchestrator) persist(report *reporting.RunReport) error {
	var lastErr error
	for _, format := range o.cfg.Export.Formats {
		switch format {
		case "json":
			if _, err := o.storage.SaveJSON(report); err != nil {
				lastErr = err
			}
		case "csv":
			if _, err := o.storage.SaveCSV(report); err != nil {
				lastErr = err
			}
		default:
			o.logger.Warn("unknown export format, skipping", "format", format)
		}
	}
	return lastErr
}

// waitForDrainOrDeadline blocks until the token is already draining, ctx
// is cancelled (triggering a drain), or duration elapses (triggering a
// drain) — duration <= 0 means unbounded, wait only on the token/ctx.
func (o *Orchestrator) waitForDrainOrDeadline(ctx context.Context, token *control.Token, duration time.Duration) {
	if duration <= 0 {
		select {
		case <-token.Done():
		case <-ctx.Done():
			token.TriggerDrain("context cancelled")
		}
		return
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-timer.C:
		token.TriggerDrain("duration elapsed")
	case <-token.Done():
	case <-ctx.Done():
		token.TriggerDrain("context cancelled")
	}
}

// startProgressTicker periodically reports LiveRunState until ctx is
// done, returning a channel closed once the ticker goroutine has
// stopped so callers can wait for it before reading final stats.
func (o *Orchestrator) startProgressTicker(ctx context.Context, shared *stats.PerCpuStats) <-chan struct{} {
	done := make(chan struct{})
	if o.progress == nil {
		close(done)
		return done
	}

	interval := time.Duration(o.cfg.Monitoring.StatsIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snap := shared.Snapshot()
				o.progress.ReportState(reporting.LiveRunState{
					SessionID:        o.sessionID,
					State:            o.state.String(),
					StartTime:        o.startTime,
					Elapsed:          snap.Elapsed,
					TotalSent:        snap.TotalSent(),
					TotalBytes:       snap.TotalBytes(),
					GlobalFailed:     snap.GlobalFailed,
					PacketsPerSecond: snap.PacketsPerSecond(),
				})
			}
		}
	}()
	return done
}

// fail transitions to StateFailed and returns err unchanged so callers
// can still inspect its concrete type.
func (o *Orchestrator) fail(err error) (*reporting.RunReport, error) {
	o.transitionState(StateFailed)
	o.logger.Error("run failed", "error", err)
	return nil, err
}

// openChannels builds the transport dispatcher for the run: mock
// channels in dry-run mode (so the full send path still runs and
// populates stats without touching the network stack), real raw-socket
// channels otherwise. Layer2 (and therefore ARP) is only opened when
// the interface has a hardware address.
func openChannels(dryRun bool, resolved *iface.Resolved, targetIP net.IP) (*transport.Dispatcher, func(), bool, error) {
	if dryRun {
		var ipv4Ch, ipv6Ch, layer2Ch transport.Channel
		if targetIP.To4() != nil || resolved.IPv4 != nil {
			ipv4Ch = transport.NewMockChannel("ipv4", 0, 1)
		}
		if resolved.IPv6 != nil {
			ipv6Ch = transport.NewMockChannel("ipv6", 0, 2)
		}
		allowLayer2 := resolved.HardwareMAC != nil
		if allowLayer2 {
			layer2Ch = transport.NewMockChannel("layer2", 0, 3)
		}
		dispatcher := transport.NewDispatcher(ipv4Ch, ipv6Ch, layer2Ch)
		return dispatcher, func() { _ = dispatcher.Close() }, allowLayer2, nil
	}

	var ipv4Ch, ipv6Ch transport.Channel
	var layer2Ch transport.Channel
	allowLayer2 := false

	if resolved.IPv4 != nil {
		ch, err := openChannelWithRetry(func() (transport.Channel, error) { return transport.NewIPv4RawChannel() })
		if err != nil {
			return nil, nil, false, err
		}
		ipv4Ch = ch
	}
	if resolved.IPv6 != nil {
		ch, err := openChannelWithRetry(func() (transport.Channel, error) { return transport.NewIPv6RawChannel() })
		if err != nil {
			return nil, nil, false, err
		}
		ipv6Ch = ch
	}
	if resolved.HardwareMAC != nil {
		ch, err := openChannelWithRetry(func() (transport.Channel, error) { return transport.NewLayer2Channel(resolved.Name) })
		if err != nil {
			return nil, nil, false, err
		}
		layer2Ch = ch
		allowLayer2 = true
	}

	dispatcher := transport.NewDispatcher(ipv4Ch, ipv6Ch, layer2Ch)
	return dispatcher, func() { _ = dispatcher.Close() }, allowLayer2, nil
}

// openChannelWithRetry opens a raw socket channel, making up to three
// attempts in total with a short exponential backoff between them on transient failures (e.g.
// ENOBUFS/EAGAIN from a kernel under momentary memory pressure, common
// right after a container or network namespace starts up). A
// permission failure (EPERM/EACCES — the process lacks CAP_NET_RAW) is
// never transient, so it is not retried.
func openChannelWithRetry(open func() (transport.Channel, error)) (transport.Channel, error) {
	eb := &backoff.ExponentialBackOff{
		InitialInterval:     20 * time.Millisecond,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         200 * time.Millisecond,
	}
	eb.Reset()

	return backoff.Retry(context.Background(), func() (transport.Channel, error) {
		ch, err := open()
		if err == nil {
			return ch, nil
		}
		if errors.Is(err, unix.EPERM) || errors.Is(err, unix.EACCES) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}, backoff.WithBackOff(eb), backoff.WithMaxTries(3))
}

func generateSessionID() string {
	return fmt.Sprintf("run-%d", time.Now().UnixNano())
}
