package reporting

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/PaulShpilsher/router-flood-sub002/pkg/stats"
)

// MetricsConfig controls the optional Prometheus exposition endpoint.
// This repurposes the pack's prometheus client stack from its original
// query-side use (scraping an external Prometheus server for success
// criteria) to the exposition side: this process IS the thing an
// external Prometheus scrapes.
type MetricsConfig struct {
	Addr     string // empty disables the endpoint
	Path     string // defaults to "/metrics"
	Interval time.Duration
}

// MetricsServer exposes a run's live Snapshot as Prometheus gauges and
// counters on an HTTP endpoint, sampled on a fixed interval so the
// exposed series stay monotonic between scrapes without scraping the
// atomic counters on every single request.
type MetricsServer struct {
	server *http.Server
	reg    *prometheus.Registry

	packetsSent   *prometheus.CounterVec
	bytesSent     *prometheus.CounterVec
	packetsFailed *prometheus.CounterVec
	packetsPerSec prometheus.Gauge
}

// NewMetricsServer builds (but does not start) a MetricsServer bound
// to cfg.Addr.
func NewMetricsServer(cfg MetricsConfig) *MetricsServer {
	if cfg.Path == "" {
		cfg.Path = "/metrics"
	}

	reg := prometheus.NewRegistry()
	m := &MetricsServer{
		reg: reg,
		packetsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "routerflood_packets_sent_total",
			Help: "Packets successfully handed to the kernel, by protocol.",
		}, []string{"protocol"}),
		bytesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "routerflood_bytes_sent_total",
			Help: "Bytes successfully handed to the kernel, by protocol.",
		}, []string{"protocol"}),
		packetsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "routerflood_packets_failed_total",
			Help: "Packets that failed to send, by protocol.",
		}, []string{"protocol"}),
		packetsPerSec: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "routerflood_packets_per_second",
			Help: "Current aggregate packet rate.",
		}),
	}
	reg.MustRegister(m.packetsSent, m.bytesSent, m.packetsFailed, m.packetsPerSec)

	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	m.server = &http.Server{Addr: cfg.Addr, Handler: mux}

	return m
}

// Serve runs the HTTP server until ctx is cancelled, sampling snapshot
// every interval and updating the exposed series. snapshot and
// protocolNames mirror reporting.FromSnapshot's contract: dense
// per-index counters paired with their display names.
func (m *MetricsServer) Serve(ctx context.Context, interval time.Duration, snapshot func() stats.Snapshot, protocolNames []string) error {
	if interval <= 0 {
		interval = time.Second
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- m.server.ListenAndServe()
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	prevSent := map[string]uint64{}
	prevBytes := map[string]uint64{}
	prevFailed := map[string]uint64{}

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = m.server.Shutdown(shutdownCtx)
			return nil
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ticker.C:
			snap := snapshot()
			for i, c := range snap.PerProtocol {
				name := "unknown"
				if i < len(protocolNames) {
					name = protocolNames[i]
				}
				m.packetsSent.WithLabelValues(name).Add(float64(c.Sent - prevSent[name]))
				m.bytesSent.WithLabelValues(name).Add(float64(c.Bytes - prevBytes[name]))
				m.packetsFailed.WithLabelValues(name).Add(float64(c.Failed - prevFailed[name]))
				prevSent[name] = c.Sent
				prevBytes[name] = c.Bytes
				prevFailed[name] = c.Failed
			}
			m.packetsPerSec.Set(snap.PacketsPerSecond())
		}
	}
}
