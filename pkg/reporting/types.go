package reporting

import (
	"time"

	"github.com/PaulShpilsher/router-flood-sub002/pkg/stats"
)

// RunStatus is the terminal disposition of a run, mirrored in the
// persisted report the way the teacher's TestStatus marks a chaos
// test's outcome.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusStopped   RunStatus = "stopped"
	StatusFailed    RunStatus = "failed"
)

// ProtocolBreakdown is one packet kind's counters plus its share of
// total traffic, the per-protocol row of an exported report.
type ProtocolBreakdown struct {
	Protocol string  `json:"protocol"`
	Sent     uint64  `json:"sent"`
	Bytes    uint64  `json:"bytes"`
	Failed   uint64  `json:"failed"`
	SharePct float64 `json:"share_pct"`
}

// RunReport is the persisted record of one complete (or stopped, or
// failed) run — the export shape named in the wire-format notes:
// timestamps, session ID, elapsed time (as a duration string),
// per-protocol counters (as a list of rows), and
// the global failure count, plus the run metadata a human reading the
// file later will want.
type RunReport struct {
	SessionID string    `json:"session_id"`
	TargetIP  string    `json:"target_ip"`
	Ports     []int     `json:"ports"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Elapsed   string    `json:"elapsed"`

	Status  RunStatus `json:"status"`
	Success bool      `json:"success"`
	Message string    `json:"message,omitempty"`

	Threads int  `json:"threads"`
	DryRun  bool `json:"dry_run"`

	PerProtocol       []ProtocolBreakdown `json:"per_protocol"`
	TotalSent         uint64              `json:"total_sent"`
	TotalBytes        uint64              `json:"total_bytes"`
	GlobalFailed      uint64              `json:"global_failed"`
	PacketsPerSecond  float64             `json:"packets_per_second"`
	MegabitsPerSecond float64             `json:"megabits_per_second"`

	Warnings []string `json:"warnings,omitempty"`
}

// FromSnapshot builds a RunReport from a stats.Snapshot plus the
// per-index protocol display names (protocol.PacketType.String()) —
// accepting names rather than protocol.PacketType values keeps this
// package independent of pkg/protocol.
func FromSnapshot(snap stats.Snapshot, protocolNames []string) RunReport {
	r := RunReport{
		SessionID:         snap.SessionID,
		EndTime:           snap.Timestamp,
		StartTime:         snap.Timestamp.Add(-snap.Elapsed),
		Elapsed:           snap.Elapsed.Round(time.Millisecond).String(),
		TotalSent:         snap.TotalSent(),
		TotalBytes:        snap.TotalBytes(),
		GlobalFailed:      snap.GlobalFailed,
		PacketsPerSecond:  snap.PacketsPerSecond(),
		MegabitsPerSecond: snap.MegabitsPerSecond(),
	}

	total := r.TotalSent
	for i, c := range snap.PerProtocol {
		if c.Sent == 0 && c.Bytes == 0 && c.Failed == 0 {
			continue
		}
		share := 0.0
		if total > 0 {
			share = float64(c.Sent) / float64(total) * 100
		}
		name := "unknown"
		if i < len(protocolNames) {
			name = protocolNames[i]
		}
		r.PerProtocol = append(r.PerProtocol, ProtocolBreakdown{
			Protocol: name,
			Sent:     c.Sent,
			Bytes:    c.Bytes,
			Failed:   c.Failed,
			SharePct: share,
		})
	}

	return r
}

// LiveRunState is a point-in-time progress snapshot, reported
// periodically while a run is in flight.
type LiveRunState struct {
	SessionID string        `json:"session_id"`
	State     string        `json:"state"`
	StartTime time.Time     `json:"start_time"`
	Elapsed   time.Duration `json:"elapsed"`

	TotalSent        uint64  `json:"total_sent"`
	TotalBytes       uint64  `json:"total_bytes"`
	GlobalFailed     uint64  `json:"global_failed"`
	PacketsPerSecond float64 `json:"packets_per_second"`
}
