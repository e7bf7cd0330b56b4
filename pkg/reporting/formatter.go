package reporting

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"strings"
	"time"
)

// ReportFormat is a rendered (non-persisted-raw) report output.
type ReportFormat string

const (
	ReportFormatHTML ReportFormat = "html"
	ReportFormatText ReportFormat = "text"
)

// Formatter renders a RunReport into a human-facing document. JSON/CSV
// are handled directly by Storage since those are the persisted raw
// formats, not rendered ones.
type Formatter struct {
	logger *Logger
}

// NewFormatter returns a Formatter that logs through logger.
func NewFormatter(logger *Logger) *Formatter {
	return &Formatter{logger: logger}
}

// GenerateReport renders report in format to outputPath.
func (f *Formatter) GenerateReport(report *RunReport, format ReportFormat, outputPath string) error {
	switch format {
	case ReportFormatHTML:
		return f.generateHTMLReport(report, outputPath)
	case ReportFormatText:
		return f.generateTextReport(report, outputPath)
	default:
		return fmt.Errorf("unsupported report format: %s", format)
	}
}

func (f *Formatter) generateHTMLReport(report *RunReport, outputPath string) error {
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"formatTime": func(t time.Time) string { return t.Format("2006-01-02 15:04:05") },
	}).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse HTML template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, report); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	if err := os.WriteFile(outputPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write HTML report: %w", err)
	}
	f.logger.Info("HTML report generated", "path", outputPath)
	return nil
}

func (f *Formatter) generateTextReport(report *RunReport, outputPath string) error {
	var buf bytes.Buffer

	buf.WriteString(strings.Repeat("=", 80) + "\n")
	buf.WriteString("   ROUTER-FLOOD RUN REPORT\n")
	buf.WriteString(strings.Repeat("=", 80) + "\n\n")

	status := strings.ToUpper(string(report.Status))
	buf.WriteString("RUN SUMMARY\n")
	buf.WriteString(strings.Repeat("-", 80) + "\n")
	buf.WriteString(fmt.Sprintf("Status:       %s\n", status))
	buf.WriteString(fmt.Sprintf("Session ID:   %s\n", report.SessionID))
	buf.WriteString(fmt.Sprintf("Target:       %s ports=%v\n", report.TargetIP, report.Ports))
	buf.WriteString(fmt.Sprintf("Start Time:   %s\n", report.StartTime.Format("2006-01-02 15:04:05")))
	buf.WriteString(fmt.Sprintf("End Time:     %s\n", report.EndTime.Format("2006-01-02 15:04:05")))
	buf.WriteString(fmt.Sprintf("Elapsed:      %s\n", report.Elapsed))
	buf.WriteString(fmt.Sprintf("Threads:      %d\n", report.Threads))
	if report.DryRun {
		buf.WriteString("Dry Run:      true\n")
	}
	if report.Message != "" {
		buf.WriteString(fmt.Sprintf("Message:      %s\n", report.Message))
	}
	buf.WriteString("\n")

	buf.WriteString("THROUGHPUT\n")
	buf.WriteString(strings.Repeat("-", 80) + "\n")
	buf.WriteString(fmt.Sprintf("Total Sent:   %d packets (%d bytes)\n", report.TotalSent, report.TotalBytes))
	buf.WriteString(fmt.Sprintf("Failed:       %d\n", report.GlobalFailed))
	buf.WriteString(fmt.Sprintf("Rate:         %.1f pps, %.2f Mbps\n", report.PacketsPerSecond, report.MegabitsPerSecond))
	buf.WriteString("\n")

	if len(report.PerProtocol) > 0 {
		buf.WriteString("PER-PROTOCOL BREAKDOWN\n")
		buf.WriteString(strings.Repeat("-", 80) + "\n")
		buf.WriteString(fmt.Sprintf("%-12s %12s %14s %10s %8s\n", "protocol", "sent", "bytes", "failed", "share"))
		for _, row := range report.PerProtocol {
			buf.WriteString(fmt.Sprintf("%-12s %12d %14d %10d %7.1f%%\n",
				row.Protocol, row.Sent, row.Bytes, row.Failed, row.SharePct))
		}
		buf.WriteString("\n")
	}

	if len(report.Warnings) > 0 {
		buf.WriteString("WARNINGS\n")
		buf.WriteString(strings.Repeat("-", 80) + "\n")
		for _, w := range report.Warnings {
			buf.WriteString("  - " + w + "\n")
		}
		buf.WriteString("\n")
	}

	buf.WriteString(strings.Repeat("=", 80) + "\n")
	buf.WriteString(fmt.Sprintf("Generated: %s\n", time.Now().Format("2006-01-02 15:04:05")))
	buf.WriteString(strings.Repeat("=", 80) + "\n")

	if err := os.WriteFile(outputPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write text report: %w", err)
	}
	f.logger.Info("text report generated", "path", outputPath)
	return nil
}

// GetReportPath derives a rendered-report file path from report,
// format, and outputDir.
func GetReportPath(report *RunReport, format ReportFormat, outputDir string) string {
	timestamp := report.StartTime.Format("20060102-150405")
	return fmt.Sprintf("%s/report-%s-%s.%s", outputDir, timestamp, report.SessionID, format)
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Router-Flood Run Report - {{.SessionID}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 1000px; margin: 0 auto; padding: 20px; background-color: #f5f5f5; }
        .container { background-color: white; border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); padding: 30px; }
        h1, h2 { color: #2c3e50; border-bottom: 2px solid #3498db; padding-bottom: 10px; }
        table { width: 100%; border-collapse: collapse; margin: 20px 0; }
        th, td { padding: 10px; text-align: left; border-bottom: 1px solid #ddd; }
        th { background-color: #3498db; color: white; }
        .info-grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(200px, 1fr)); gap: 16px; margin: 20px 0; }
        .info-box { background-color: #ecf0f1; padding: 12px; border-radius: 4px; }
        .info-label { font-weight: bold; color: #7f8c8d; font-size: 0.85em; }
        .info-value { font-size: 1.05em; color: #2c3e50; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Router-Flood Run Report</h1>
        <p>Session: {{.SessionID}} — Status: {{.Status}}</p>

        <div class="info-grid">
            <div class="info-box"><div class="info-label">Target</div><div class="info-value">{{.TargetIP}}</div></div>
            <div class="info-box"><div class="info-label">Start</div><div class="info-value">{{formatTime .StartTime}}</div></div>
            <div class="info-box"><div class="info-label">Elapsed</div><div class="info-value">{{.Elapsed}}</div></div>
            <div class="info-box"><div class="info-label">Total Sent</div><div class="info-value">{{.TotalSent}}</div></div>
            <div class="info-box"><div class="info-label">Rate</div><div class="info-value">{{printf "%.1f" .PacketsPerSecond}} pps</div></div>
        </div>

        <h2>Per-Protocol Breakdown</h2>
        <table>
            <thead><tr><th>Protocol</th><th>Sent</th><th>Bytes</th><th>Failed</th><th>Share</th></tr></thead>
            <tbody>
                {{range .PerProtocol}}
                <tr><td>{{.Protocol}}</td><td>{{.Sent}}</td><td>{{.Bytes}}</td><td>{{.Failed}}</td><td>{{printf "%.1f" .SharePct}}%</td></tr>
                {{end}}
            </tbody>
        </table>

        {{if .Warnings}}
        <h2>Warnings</h2>
        <ul>{{range .Warnings}}<li>{{.}}</li>{{end}}</ul>
        {{end}}

        <p style="text-align: center; color: #7f8c8d; margin-top: 30px;">Generated {{formatTime .EndTime}}</p>
    </div>
</body>
</html>
`
