package report

import "github.com/charmbracelet/lipgloss"

// Colors used in the report.
var (
	colorPrimary   = lipgloss.Color("62")  // Purple
	colorSecondary = lipgloss.Color("241") // Gray
	colorMuted     = lipgloss.Color("240") // Darker gray
	colorHighlight = lipgloss.Color("212") // Pink
	colorSuccess   = lipgloss.Color("78")  // Green
	colorError     = lipgloss.Color("196") // Red
)

// styles groups every style the renderer uses, so plain output can swap
// them all for no-ops at once.
type styles struct {
	Title       lipgloss.Style
	Section     lipgloss.Style
	Label       lipgloss.Style
	Entry       lipgloss.Style
	Meta        lipgloss.Style
	Up          lipgloss.Style
	Down        lipgloss.Style
	Unavailable lipgloss.Style
	Footer      lipgloss.Style
}

func newStyles(plain bool) styles {
	if plain {
		s := lipgloss.NewStyle()
		return styles{s, s, s, s, s, s, s, s, s}
	}
	return styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")).
			Background(colorPrimary).
			Padding(0, 1),
		Section: lipgloss.NewStyle().
			Bold(true).
			Foreground(colorHighlight).
			MarginTop(1),
		Label: lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true),
		Entry: lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")),
		Meta: lipgloss.NewStyle().
			Foreground(colorSecondary),
		Up: lipgloss.NewStyle().
			Foreground(colorError),
		Down: lipgloss.NewStyle().
			Foreground(colorSuccess),
		Unavailable: lipgloss.NewStyle().
			Foreground(colorMuted).
			Italic(true),
		Footer: lipgloss.NewStyle().
			Foreground(colorMuted).
			MarginTop(1),
	}
}
