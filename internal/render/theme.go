package render

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	Crust    = lipgloss.Color("#11111b")
	Mauve    = lipgloss.Color("#cba6f7")
	Red      = lipgloss.Color("#f38ba8")
	Green    = lipgloss.Color("#a6e3a1")
	Yellow   = lipgloss.Color("#f9e2af")
	Overlay0 = lipgloss.Color("#6c7086")
	Lavender = lipgloss.Color("#b4befe")
	Blue     = lipgloss.Color("#89b4fa")
)

// theme binds the palette to one output. A renderer on a pipe or file
// drops colour and attributes, so styled output stays plain there.
type theme struct {
	title   lipgloss.Style
	header  lipgloss.Style
	passed  lipgloss.Style
	failed  lipgloss.Style
	unknown lipgloss.Style
	command lipgloss.Style
	dim     lipgloss.Style
}

func newTheme(w io.Writer) theme {
	r := lipgloss.NewRenderer(w)
	return theme{
		title:   r.NewStyle().Bold(true).Foreground(Crust).Background(Mauve).Padding(0, 1),
		header:  r.NewStyle().Bold(true).Foreground(Lavender),
		passed:  r.NewStyle().Foreground(Green),
		failed:  r.NewStyle().Foreground(Red),
		unknown: r.NewStyle().Foreground(Yellow),
		command: r.NewStyle().Foreground(Blue),
		dim:     r.NewStyle().Foreground(Overlay0),
	}
}
