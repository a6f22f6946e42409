package tui

import "github.com/charmbracelet/lipgloss"

// Theme holds the styles of the progress view.
type Theme struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Help     lipgloss.Style
	Card     lipgloss.Style
	Good     lipgloss.Style
	Bad      lipgloss.Style
}

// DefaultTheme returns the standard styles.
func DefaultTheme() Theme {
	return Theme{
		Title:    lipgloss.NewStyle().Bold(true),
		Subtitle: lipgloss.NewStyle().Faint(true),
		Help:     lipgloss.NewStyle().Faint(true),
		Card: lipgloss.NewStyle().
			Padding(1, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")),
		Good: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		Bad:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
}
