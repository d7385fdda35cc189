package textutil

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/reflow/wordwrap"
)

func WrapText(text string, width int) string {
	if width <= 0 {
		return text
	}
	return wordwrap.String(text, width)
}

// Indent wraps text to width and prefixes every resulting line. The prefix
// is not counted against width.
func Indent(text, prefix string, width int) []string {
	lines := strings.Split(WrapText(text, width), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return lines
}

func TruncateWithEllipsis(line string, width int) string {
	lineWidth := ansi.StringWidth(line)
	if lineWidth <= width {
		return line
	}
	if width <= 3 {
		return strings.Repeat(".", width)
	}
	return ansi.Cut(line, 0, width-3) + "..."
}

// PadRight pads s with spaces to width visible cells. Styled text keeps its
// escape sequences and is measured without them.
func PadRight(s string, width int) string {
	gap := width - ansi.StringWidth(s)
	if gap <= 0 {
		return s
	}
	return s + strings.Repeat(" ", gap)
}

func StringWidth(s string) int {
	return ansi.StringWidth(s)
}
