package tui

import "github.com/charmbracelet/lipgloss"

// Palette. Amber is reserved for breaks and interrupted work, red for
// anything overdue.
var (
	colorPrimary   = lipgloss.Color("#4FB3BF")
	colorMuted     = lipgloss.Color("#6C7086")
	colorSuccess   = lipgloss.Color("#A6E3A1")
	colorWarning   = lipgloss.Color("#FAB387")
	colorError     = lipgloss.Color("#F38BA8")
	colorFg        = lipgloss.Color("#CDD6F4")
	colorSubtle    = lipgloss.Color("#45475A")
	colorHighlight = lipgloss.Color("#89B4FA")
)

func bordered(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(c).Padding(1, 2)
}

func fg(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

func bigClock(c lipgloss.Color) lipgloss.Style {
	return fg(c).Bold(true).Align(lipgloss.Center)
}

var (
	activeTabStyle = fg(colorPrimary).Bold(true).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(colorPrimary).
			Padding(0, 2)
	inactiveTabStyle = fg(colorMuted).Padding(0, 2)

	panelStyle       = bordered(colorSubtle)
	activePanelStyle = bordered(colorPrimary)
	alertPanelStyle  = bordered(colorError)

	clockOffStyle     = bigClock(colorMuted)
	clockWorkingStyle = bigClock(colorSuccess)
	clockBreakStyle   = bigClock(colorWarning)

	titleStyle     = fg(colorFg).Bold(true)
	successStyle   = fg(colorSuccess)
	warningStyle   = fg(colorWarning)
	errorStyle     = fg(colorError)
	mutedStyle     = fg(colorMuted)
	highlightStyle = fg(colorHighlight)

	headerStyle = lipgloss.NewStyle().Padding(0, 1)
	footerStyle = mutedStyle.Padding(0, 1)

	selectedItemStyle = fg(colorPrimary).Bold(true)
	normalItemStyle   = fg(colorFg)
)
