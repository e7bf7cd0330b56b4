package reporting

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// OutputFormat is how live progress gets rendered to the operator.
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatTUI  OutputFormat = "tui"
)

// ProgressReporter emits periodic run progress and the final summary,
// in whichever OutputFormat the operator asked for.
type ProgressReporter struct {
	format OutputFormat
	logger *Logger
}

// NewProgressReporter returns a ProgressReporter rendering in format.
func NewProgressReporter(format OutputFormat, logger *Logger) *ProgressReporter {
	return &ProgressReporter{format: format, logger: logger}
}

// ReportState emits one progress tick.
func (pr *ProgressReporter) ReportState(state LiveRunState) {
	switch pr.format {
	case FormatJSON:
		pr.reportJSON(state)
	case FormatTUI:
		pr.reportTUI(state)
	default:
		pr.reportText(state)
	}
}

// ReportStateTransition announces a lifecycle state change (e.g.
// Validating -> OpeningChannels -> Running -> Draining -> Reporting).
func (pr *ProgressReporter) ReportStateTransition(from, to string) {
	switch pr.format {
	case FormatJSON:
		data, _ := json.Marshal(map[string]interface{}{
			"event": "state_transition", "from_state": from, "to_state": to, "timestamp": time.Now(),
		})
		fmt.Println(string(data))
	default:
		fmt.Printf("[STATE] %s -> %s\n", from, to)
	}
}

// ReportRunCompleted emits the final summary.
func (pr *ProgressReporter) ReportRunCompleted(report *RunReport) {
	switch pr.format {
	case FormatJSON:
		data, _ := json.Marshal(map[string]interface{}{
			"event": "run_completed", "report": report, "timestamp": time.Now(),
		})
		fmt.Println(string(data))
	default:
		pr.printTextSummary(report)
	}
}

func (pr *ProgressReporter) reportText(state LiveRunState) {
	fmt.Printf("[%s] %s | elapsed=%s sent=%d failed=%d rate=%.1f pps\n",
		time.Now().Format("15:04:05"), state.State, state.Elapsed.Round(time.Second),
		state.TotalSent, state.GlobalFailed, state.PacketsPerSecond)
}

func (pr *ProgressReporter) reportJSON(state LiveRunState) {
	data, err := json.Marshal(state)
	if err != nil {
		pr.logger.Error("failed to marshal state", "error", err)
		return
	}
	fmt.Println(string(data))
}

func (pr *ProgressReporter) reportTUI(state LiveRunState) {
	fmt.Print("\033[2J\033[H")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("  router-flood | session %s\n", state.SessionID)
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("state:   %s\n", state.State)
	fmt.Printf("elapsed: %s\n", state.Elapsed.Round(time.Second))
	fmt.Printf("sent:    %d packets (%d bytes)\n", state.TotalSent, state.TotalBytes)
	fmt.Printf("failed:  %d\n", state.GlobalFailed)
	fmt.Printf("rate:    %.1f pps\n", state.PacketsPerSecond)
	fmt.Println(strings.Repeat("-", 60))
}

func (pr *ProgressReporter) printTextSummary(report *RunReport) {
	fmt.Printf("\n[RUN SUMMARY] %s\n", strings.ToUpper(string(report.Status)))
	fmt.Printf("  Session:  %s\n", report.SessionID)
	fmt.Printf("  Target:   %s\n", report.TargetIP)
	fmt.Printf("  Elapsed:  %s\n", report.Elapsed)
	fmt.Printf("  Sent:     %d packets (%d bytes)\n", report.TotalSent, report.TotalBytes)
	fmt.Printf("  Failed:   %d\n", report.GlobalFailed)
	fmt.Printf("  Rate:     %.1f pps, %.2f Mbps\n", report.PacketsPerSecond, report.MegabitsPerSecond)
	for _, w := range report.Warnings {
		fmt.Printf("  Warning:  %s\n", w)
	}
	fmt.Println()
}
