// internal/report/style.go
package report

import "github.com/charmbracelet/lipgloss"

var (
	cyan    = lipgloss.Color("#00E5FF")
	green   = lipgloss.Color("#2AFFAA")
	red     = lipgloss.Color("#FF5555")
	muted   = lipgloss.Color("#6C7280")
	primary = lipgloss.Color("#ECEFF4")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(cyan)
	labelStyle = lipgloss.NewStyle().Foreground(muted).Width(20)
	valueStyle = lipgloss.NewStyle().Foreground(primary)
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(0, 1)
	gainStyle = lipgloss.NewStyle().Foreground(green)
	lossStyle = lipgloss.NewStyle().Foreground(red)
)
