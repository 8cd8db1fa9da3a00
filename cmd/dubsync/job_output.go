package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"dubsync/internal/api"
)

// writeJSON prints v as indented JSON for --json output.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderJobTable(list []api.Job) string {
	headers := []string{"Job", "Status", "Mode", "Lang", "Ready", "Failed", "Drift", "Source"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft}
	rows := make([][]string, 0, len(list))
	for _, job := range list {
		status := job.Status
		if job.Running {
			status += " *"
		}
		rows = append(rows, []string{
			job.ID,
			status,
			job.Mode,
			job.TargetLang,
			fmt.Sprintf("%d/%d", job.Counts["ready"], job.TotalSegments),
			strconv.Itoa(job.Counts["failed"]),
			formatMS(job.DriftMS),
			filepath.Base(job.SourcePath),
		})
	}
	return renderTable(headers, rows, aligns)
}

func renderJobDetail(out io.Writer, job api.Job, colorize bool) {
	for _, line := range renderSectionHeader("Job "+job.ID, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Status", jobStatusKind(job.Status), job.Status, colorize))
	fmt.Fprintln(out, renderStatusLine("Source", statusInfo, job.SourcePath, colorize))
	fmt.Fprintln(out, renderStatusLine("Mode", statusInfo, job.Mode+" -> "+job.TargetLang, colorize))
	fmt.Fprintln(out, renderStatusLine("Drift", statusInfo, formatMS(job.DriftMS), colorize))
	if job.ErrorMessage != "" {
		fmt.Fprintln(out, renderStatusLine("Error", statusError, job.ErrorMessage, colorize))
	}
	if job.SubtitleURL != "" {
		fmt.Fprintln(out, renderStatusLine("Subtitles", statusOK, job.SubtitleURL, colorize))
	}
	if job.FinalURL != "" {
		fmt.Fprintln(out, renderStatusLine("Final", statusOK, job.FinalURL, colorize))
	}
	if len(job.Segments) == 0 {
		return
	}
	fmt.Fprintln(out)

	headers := []string{"#", "Status", "Slot", "Start", "Strategy", "Speed", "Freeze", "Media / Error"}
	aligns := []columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignLeft, alignRight, alignRight, alignLeft}
	rows := make([][]string, 0, len(job.Segments))
	for _, seg := range job.Segments {
		detail := seg.MediaURL
		if seg.ErrorMessage != "" {
			detail = seg.ErrorMessage
		}
		speed := ""
		if seg.SpeedFactor > 0 {
			speed = fmt.Sprintf("%.3fx", seg.SpeedFactor)
		}
		rows = append(rows, []string{
			strconv.Itoa(seg.Index),
			seg.Status,
			formatMS(seg.EndMS - seg.StartMS),
			formatMS(seg.OutputStartMS),
			seg.Strategy,
			speed,
			formatMS(seg.FreezeMS),
			detail,
		})
	}
	fmt.Fprintln(out, renderTable(headers, rows, aligns))
}

func jobStatusKind(status string) statusKind {
	switch status {
	case "completed":
		return statusOK
	case "completed_with_failures", "cancelled":
		return statusWarn
	case "failed":
		return statusError
	default:
		return statusInfo
	}
}

// formatMS renders milliseconds as seconds; zero renders empty.
func formatMS(ms float64) string {
	if ms == 0 {
		return ""
	}
	return strconv.FormatFloat(ms/1000, 'f', 2, 64) + "s"
}
