package reporting

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/PaulShpilsher/router-flood-sub002/pkg/protocol"
	"github.com/PaulShpilsher/router-flood-sub002/pkg/stats"
)

func TestMetricsServerExposesSnapshot(t *testing.T) {
	m := NewMetricsServer(MetricsConfig{Addr: "127.0.0.1:0", Path: "/metrics"})

	shared := stats.NewShared("session-metrics")
	shared.Record(protocol.PacketUDP, 64, true)

	snapshotFn := func() stats.Snapshot { return shared.Snapshot() }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx, 10*time.Millisecond, snapshotFn, protocol.Names()) }()

	time.Sleep(30 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestMetricsServerHandlerServesText(t *testing.T) {
	m := NewMetricsServer(MetricsConfig{Addr: "127.0.0.1:0"})
	req, err := http.NewRequest(http.MethodGet, "/metrics", nil)
	require.NoError(t, err)
	rw := &discardResponseWriter{header: make(http.Header)}
	m.server.Handler.ServeHTTP(rw, req)
	require.Equal(t, http.StatusOK, rw.status)
}

type discardResponseWriter struct {
	header http.Header
	status int
}

func (d *discardResponseWriter) Header() http.Header { return d.header }
func (d *discardResponseWriter) Write(p []byte) (int, error) {
	if d.status == 0 {
		d.status = http.StatusOK
	}
	return io.Discard.Write(p)
}
func (d *discardResponseWriter) WriteHeader(status int) { d.status = status }
