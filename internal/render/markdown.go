package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"razer-doctor/internal/report"
	"razer-doctor/internal/storage"
)

// Markdown writes an archived run as a report that can be pasted into an
// OpenRazer issue. logTail, when set, is quoted as the daemon log excerpt.
func Markdown(w io.Writer, rec storage.Record, logTail string) error {
	var sb strings.Builder
	sb.WriteString("# OpenRazer troubleshooter report\n\n")
	sb.WriteString(fmt.Sprintf("**Run:** %s\n", rec.RunID))
	sb.WriteString(fmt.Sprintf("**Recorded:** %s\n", rec.CreatedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("**Result:** %s\n\n", rec.Kind))

	d := rec.Diagnosis
	switch d.Kind {
	case report.KindNotApplicable:
		sb.WriteString("The troubleshooter does not support this platform; no check ran.\n")

	case report.KindFatal:
		sb.WriteString("## Failure\n\n```\n")
		sb.WriteString(strings.TrimRight(d.Message, "\n"))
		sb.WriteString("\n```\n")

	case report.KindCompleted:
		if d.Report == nil {
			return fmt.Errorf("run %s: completed diagnosis has no report", rec.RunID)
		}
		s := d.Report.Summary()
		sb.WriteString(fmt.Sprintf("%d passed, %d failed, %d indeterminate\n\n", s.Passed, s.Failed, s.Indeterminate))
		sb.WriteString("## Checks\n\n")
		for _, check := range d.Report.Checks {
			sb.WriteString(fmt.Sprintf("- [%s] %s (`%s`)\n", checkbox(check.Outcome), check.Name, check.Outcome))
			if !check.NeedsAttention() {
				continue
			}
			for _, suggestion := range check.Suggestions {
				if cmd, ok := strings.CutPrefix(suggestion, "$ "); ok {
					sb.WriteString(fmt.Sprintf("  - `%s`\n", cmd))
					continue
				}
				sb.WriteString("  - " + suggestion + "\n")
			}
		}

	default:
		return fmt.Errorf("unknown diagnosis kind %v", d.Kind)
	}

	if logTail != "" {
		sb.WriteString("\n## Daemon log\n\n```\n")
		sb.WriteString(strings.TrimRight(logTail, "\n"))
		sb.WriteString("\n```\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func checkbox(o report.Outcome) string {
	switch o {
	case report.Passed:
		return "x"
	case report.Failed:
		return " "
	default:
		return "?"
	}
}
