package reporting

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestReport(sessionID string, start time.Time) *RunReport {
	return &RunReport{
		SessionID:  sessionID,
		TargetIP:   "10.0.0.5",
		StartTime:  start,
		EndTime:    start.Add(time.Minute),
		Elapsed:    "1m0s",
		Status:     StatusCompleted,
		Success:    true,
		TotalSent:  100,
		TotalBytes: 6400,
		PerProtocol: []ProtocolBreakdown{
			{Protocol: "udp", Sent: 100, Bytes: 6400, SharePct: 100},
		},
	}
}

func TestStorageSaveAndLoadJSON(t *testing.T) {
	dir := t.TempDir()
	logger := NewLogger(LoggerConfig{Output: os.Stdout})
	storage, err := NewStorage(dir, 0, logger)
	require.NoError(t, err)

	report := newTestReport("session-a", time.Now())
	path, err := storage.SaveJSON(report)
	require.NoError(t, err)

	loaded, err := storage.LoadReport(path)
	require.NoError(t, err)
	require.Equal(t, report.SessionID, loaded.SessionID)
	require.Equal(t, report.TotalSent, loaded.TotalSent)
}

func TestStorageSaveCSV(t *testing.T) {
	dir := t.TempDir()
	logger := NewLogger(LoggerConfig{Output: os.Stdout})
	storage, err := NewStorage(dir, 0, logger)
	require.NoError(t, err)

	path, err := storage.SaveCSV(newTestReport("session-b", time.Now()))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "protocol,sent,bytes,failed,share_pct")
	require.Contains(t, string(data), "udp")
}

func TestStoragePrunesOldestBeyondKeepLastN(t *testing.T) {
	dir := t.TempDir()
	logger := NewLogger(LoggerConfig{Output: os.Stdout})
	storage, err := NewStorage(dir, 2, logger)
	require.NoError(t, err)

	base := time.Now()
	for i := 0; i < 4; i++ {
		r := newTestReport("session-"+string(rune('a'+i)), base.Add(time.Duration(i)*time.Second))
		_, err := storage.SaveJSON(r)
		require.NoError(t, err)
	}

	summaries, err := storage.ListReports()
	require.NoError(t, err)
	require.Len(t, summaries, 2)
}
