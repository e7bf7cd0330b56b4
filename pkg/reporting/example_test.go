package reporting_test

import (
	"fmt"
	"os"
	"time"

	"github.com/PaulShpilsher/router-flood-sub002/pkg/reporting"
)

// Example demonstrates saving and loading a run report.
func Example() {
	logger := reporting.NewLogger(reporting.LoggerConfig{
		Level:  reporting.LogLevelInfo,
		Format: reporting.LogFormatText,
		Output: os.Stdout,
	})

	storage, err := reporting.NewStorage("./run-reports", 10, logger)
	if err != nil {
		fmt.Printf("failed to create storage: %v\n", err)
		return
	}
	defer os.RemoveAll("./run-reports")

	report := &reporting.RunReport{
		SessionID: "session-12345",
		TargetIP:  "10.0.0.5",
		Ports:     []int{80, 443},
		StartTime: time.Now().Add(-1 * time.Minute),
		EndTime:   time.Now(),
		Elapsed:   "1m0s",
		Status:    reporting.StatusCompleted,
		Success:   true,
		Threads:   4,
		PerProtocol: []reporting.ProtocolBreakdown{
			{Protocol: "udp", Sent: 1000, Bytes: 64000, SharePct: 100},
		},
		TotalSent:  1000,
		TotalBytes: 64000,
	}

	if _, err := storage.SaveJSON(report); err != nil {
		fmt.Printf("failed to save report: %v\n", err)
		return
	}
	fmt.Println("report saved")

	summaries, err := storage.ListReports()
	if err != nil {
		fmt.Printf("failed to list reports: %v\n", err)
		return
	}
	fmt.Printf("found %d report(s)\n", len(summaries))

	// Output will vary due to timestamps, so we don't assert it.
}
