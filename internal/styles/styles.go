// Package styles is the lipgloss palette for console output.
package styles

import "github.com/charmbracelet/lipgloss"

var (
	blue   = lipgloss.AdaptiveColor{Dark: "#6CA0DC", Light: "#1E3A5F"}
	yellow = lipgloss.AdaptiveColor{Dark: "#E5C07B", Light: "#7A5C00"}
	red    = lipgloss.AdaptiveColor{Dark: "#E06C75", Light: "#8B1A1A"}
	green  = lipgloss.AdaptiveColor{Dark: "#98C379", Light: "#3E6B2E"}
	grey   = lipgloss.AdaptiveColor{Dark: "#7F7C72", Light: "#6B6A60"}

	Info    = lipgloss.NewStyle().Foreground(blue).Bold(true)
	Warning = lipgloss.NewStyle().Foreground(yellow).Bold(true)
	Error   = lipgloss.NewStyle().Foreground(red).Bold(true)
	Success = lipgloss.NewStyle().Foreground(green).Bold(true)

	Dimmed       = lipgloss.NewStyle().Foreground(grey)
	DimmedItalic = Dimmed.Italic(true)
)
