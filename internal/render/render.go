// Package render turns a diagnosis into a checklist for people or an
// encoded document for machines.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"razer-doctor/internal/report"
	"razer-doctor/internal/textutil"

	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown format %q (want text, json or yaml)", s)
	}
}

type Options struct {
	// Width wraps suggestions; zero disables wrapping.
	Width int
	// Quiet hides passed checks in text output.
	Quiet bool
}

const (
	suggestionIndent = "    "
	separatorWidth   = 32
)

// Diagnosis writes d in the requested format.
func Diagnosis(w io.Writer, d report.Diagnosis, format Format, opts Options) error {
	switch format {
	case FormatJSON:
		return JSON(w, d)
	case FormatYAML:
		return YAML(w, d)
	case FormatText, "":
		return Text(w, d, opts)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func YAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// Text writes the checklist: one line per check in report order, with
// suggestions under every check that needs attention, then a summary.
func Text(w io.Writer, d report.Diagnosis, opts Options) error {
	th := newTheme(w)
	var lines []string

	lines = append(lines, th.title.Render("OpenRazer troubleshooter"), "")

	switch d.Kind {
	case report.KindNotApplicable:
		lines = append(lines, th.dim.Render("The troubleshooter only supports Linux. Nothing was checked."))

	case report.KindFatal:
		lines = append(lines, th.failed.Render("✗ "+firstLine(d.Message)))
		for _, line := range strings.Split(strings.TrimRight(rest(d.Message), "\n"), "\n") {
			if line == "" {
				continue
			}
			lines = append(lines, th.dim.Render(suggestionIndent+line))
		}

	case report.KindCompleted:
		if d.Report == nil {
			return fmt.Errorf("completed diagnosis has no report")
		}
		lines = append(lines, checkLines(th, *d.Report, opts)...)
		lines = append(lines, th.dim.Render(strings.Repeat("─", separatorWidth)))
		lines = append(lines, summaryLine(th, d.Report.Summary()))

	default:
		return fmt.Errorf("unknown diagnosis kind %v", d.Kind)
	}

	_, err := io.WriteString(w, strings.Join(lines, "\n")+"\n")
	return err
}

func checkLines(th theme, r report.Report, opts Options) []string {
	var lines []string
	shown := 0
	for _, check := range r.Checks {
		if opts.Quiet && !check.NeedsAttention() {
			continue
		}
		shown++
		lines = append(lines, textutil.PadRight(icon(th, check.Outcome), 2)+th.header.Render(check.Name))
		if !check.NeedsAttention() {
			continue
		}
		for _, suggestion := range check.Suggestions {
			style := th.dim
			if strings.HasPrefix(suggestion, "$ ") {
				style = th.command
			}
			for _, line := range textutil.Indent(suggestion, suggestionIndent, wrapWidth(opts.Width)) {
				lines = append(lines, style.Render(line))
			}
		}
		lines = append(lines, "")
	}
	if shown == 0 {
		lines = append(lines, th.passed.Render("All checks passed."))
	}
	if len(lines) > 0 && lines[len(lines)-1] != "" {
		lines = append(lines, "")
	}
	return lines
}

func wrapWidth(width int) int {
	if width <= 0 {
		return 0
	}
	return max(width-len(suggestionIndent), 20)
}

func icon(th theme, o report.Outcome) string {
	switch o {
	case report.Passed:
		return th.passed.Render("✓")
	case report.Failed:
		return th.failed.Render("✗")
	default:
		return th.unknown.Render("⚠")
	}
}

func summaryLine(th theme, s report.Summary) string {
	parts := []string{th.passed.Render(fmt.Sprintf("✓ %d passed", s.Passed))}
	if s.Failed > 0 {
		parts = append(parts, th.failed.Render(fmt.Sprintf("✗ %d failed", s.Failed)))
	}
	if s.Indeterminate > 0 {
		parts = append(parts, th.unknown.Render(fmt.Sprintf("⚠ %d indeterminate", s.Indeterminate)))
	}
	return strings.Join(parts, "  ")
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func rest(s string) string {
	_, after, _ := strings.Cut(s, "\n")
	return after
}
