package reporting

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

// Storage persists RunReports to disk in the configured formats
// (json, csv) and prunes old reports beyond keepLastN, mirroring the
// teacher's Storage exactly except the persisted unit is a RunReport
// instead of a TestReport.
type Storage struct {
	outputDir string
	keepLastN int
	logger    *Logger
}

// NewStorage creates outputDir if needed and returns a ready Storage.
func NewStorage(outputDir string, keepLastN int, logger *Logger) (*Storage, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Storage{outputDir: outputDir, keepLastN: keepLastN, logger: logger}, nil
}

// SaveJSON writes report as indented JSON, named run-<timestamp>-<session>.json.
func (s *Storage) SaveJSON(report *RunReport) (string, error) {
	filename := fmt.Sprintf("run-%s-%s.json", report.StartTime.Format("20060102-150405"), report.SessionID)
	path := filepath.Join(s.outputDir, filename)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}
	s.logger.Info("run report saved", "path", path, "format", "json")
	s.pruneIfNeeded()
	return path, nil
}

// SaveCSV writes report's per-protocol breakdown as a CSV table, named
// run-<timestamp>-<session>.csv — the tabular sibling of SaveJSON for
// operators piping into spreadsheets rather than JSON tooling.
func (s *Storage) SaveCSV(report *RunReport) (string, error) {
	filename := fmt.Sprintf("run-%s-%s.csv", report.StartTime.Format("20060102-150405"), report.SessionID)
	path := filepath.Join(s.outputDir, filename)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"protocol", "sent", "bytes", "failed", "share_pct"}); err != nil {
		return "", fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range report.PerProtocol {
		record := []string{
			row.Protocol,
			strconv.FormatUint(row.Sent, 10),
			strconv.FormatUint(row.Bytes, 10),
			strconv.FormatUint(row.Failed, 10),
			strconv.FormatFloat(row.SharePct, 'f', 2, 64),
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush CSV: %w", err)
	}

	s.logger.Info("run report saved", "path", path, "format", "csv")
	s.pruneIfNeeded()
	return path, nil
}

// LoadReport reads a JSON report file back into a RunReport.
func (s *Storage) LoadReport(path string) (*RunReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}
	var report RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &report, nil
}

// ReportSummary is one ListReports row.
type ReportSummary struct {
	SessionID string    `json:"session_id"`
	StartTime time.Time `json:"start_time"`
	Elapsed   string    `json:"elapsed"`
	Status    RunStatus `json:"status"`
	Success   bool      `json:"success"`
	Filepath  string    `json:"filepath"`
}

// ListReports enumerates every *.json report in the output directory,
// newest first.
func (s *Storage) ListReports() ([]ReportSummary, error) {
	entries, err := os.ReadDir(s.outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	summaries := make([]ReportSummary, 0)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(s.outputDir, entry.Name())
		report, err := s.LoadReport(path)
		if err != nil {
			s.logger.Warn("failed to load report", "path", path, "error", err)
			continue
		}
		summaries = append(summaries, ReportSummary{
			SessionID: report.SessionID,
			StartTime: report.StartTime,
			Elapsed:   report.Elapsed,
			Status:    report.Status,
			Success:   report.Success,
			Filepath:  path,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].StartTime.After(summaries[j].StartTime)
	})
	return summaries, nil
}

// pruneIfNeeded deletes the oldest JSON reports beyond keepLastN.
// keepLastN <= 0 disables pruning entirely.
func (s *Storage) pruneIfNeeded() {
	if s.keepLastN <= 0 {
		return
	}
	summaries, err := s.ListReports()
	if err != nil {
		s.logger.Warn("failed to list reports for pruning", "error", err)
		return
	}
	if len(summaries) <= s.keepLastN {
		return
	}
	for _, old := range summaries[s.keepLastN:] {
		if err := os.Remove(old.Filepath); err != nil {
			s.logger.Warn("failed to delete old report", "path", old.Filepath, "error", err)
		} else {
			s.logger.Debug("deleted old report", "path", old.Filepath)
		}
	}
}

// GetOutputDir returns the output directory path.
func (s *Storage) GetOutputDir() string { return s.outputDir }
