package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"razer-doctor/internal/analytics"
	"razer-doctor/internal/report"
	"razer-doctor/internal/storage"
	"razer-doctor/internal/textutil"
)

// History writes archived runs, newest first. Structured formats emit the
// full records.
func History(w io.Writer, records []storage.Record, format Format) error {
	switch format {
	case FormatJSON:
		if records == nil {
			records = []storage.Record{}
		}
		return JSON(w, records)
	case FormatYAML:
		return YAML(w, records)
	case FormatText, "":
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	th := newTheme(w)
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, th.dim.Render("No saved diagnoses. Run with --save to keep one."))
		return err
	}

	header := []string{"RUN", "WHEN", "RESULT", "DETAIL"}
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			shortID(rec.RunID),
			rec.CreatedAt.Local().Format(time.DateTime),
			result(th, rec),
			detail(rec),
		})
	}

	widths := columnWidths(header, rows)

	var b strings.Builder
	b.WriteString(th.header.Render(formatRow(header, widths)) + "\n")
	for _, row := range rows {
		b.WriteString(formatRow(row, widths) + "\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func columnWidths(header []string, rows [][]string) []int {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = textutil.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], textutil.StringWidth(cell))
		}
	}
	return widths
}

func formatRow(cells []string, widths []int) string {
	padded := make([]string, len(cells))
	for i, cell := range cells {
		if i == len(cells)-1 {
			padded[i] = cell
			continue
		}
		padded[i] = textutil.PadRight(cell, widths[i])
	}
	return strings.TrimRight(strings.Join(padded, "  "), " ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func result(th theme, rec storage.Record) string {
	switch rec.Kind {
	case report.KindCompleted:
		if rec.Summary.Failed > 0 {
			return th.failed.Render("failed")
		}
		return th.passed.Render("healthy")
	case report.KindFatal:
		return th.failed.Render("fatal")
	default:
		return th.dim.Render("n/a")
	}
}

func detail(rec storage.Record) string {
	switch rec.Kind {
	case report.KindCompleted:
		s := rec.Summary
		return fmt.Sprintf("%d passed, %d failed, %d indeterminate", s.Passed, s.Failed, s.Indeterminate)
	case report.KindFatal:
		return textutil.TruncateWithEllipsis(firstLine(rec.Diagnosis.Message), 48)
	default:
		return "unsupported platform"
	}
}

// Stats writes per-check statistics over archived runs.
func Stats(w io.Writer, s analytics.Summary, format Format) error {
	switch format {
	case FormatJSON:
		return JSON(w, s)
	case FormatYAML:
		return YAML(w, s)
	case FormatText, "":
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	th := newTheme(w)
	var b strings.Builder
	fmt.Fprintf(&b, "%d runs: %d completed, %d fatal, %d not applicable\n\n", s.Runs, s.Completed, s.Fatal, s.NotApplicable)
	if len(s.Checks) == 0 {
		_, err := io.WriteString(w, b.String())
		return err
	}

	header := []string{"CHECK", "RUNS", "FAILED", "RATE"}
	rows := make([][]string, 0, len(s.Checks))
	for _, c := range s.Checks {
		rows = append(rows, []string{
			c.ID,
			fmt.Sprint(c.Runs),
			fmt.Sprint(c.Failures),
			fmt.Sprintf("%.0f%%", c.FailureRate*100),
		})
	}
	widths := columnWidths(header, rows)

	b.WriteString(th.header.Render(formatRow(header, widths)) + "\n")
	for _, row := range rows {
		b.WriteString(formatRow(row, widths) + "\n")
	}
	for _, msg := range s.Recurring() {
		b.WriteString("\n" + th.failed.Render("✗ "+msg))
	}
	if len(s.Recurring()) > 0 {
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}
