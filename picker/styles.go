package picker

import "github.com/charmbracelet/lipgloss"

var (
	accentColor = lipgloss.Color("86")
	mutedColor  = lipgloss.Color("241")
	errorColor  = lipgloss.Color("203")

	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(accentColor).MarginBottom(1)
	sectionStyle  = lipgloss.NewStyle().Foreground(mutedColor).Italic(true)
	itemStyle     = lipgloss.NewStyle().PaddingLeft(2)
	selectedStyle = lipgloss.NewStyle().PaddingLeft(1).Foreground(accentColor).Bold(true)
	previewStyle  = lipgloss.NewStyle().Foreground(mutedColor).PaddingLeft(4)
	labelStyle    = lipgloss.NewStyle().Foreground(mutedColor)
	errorStyle    = lipgloss.NewStyle().Foreground(errorColor)
	footerStyle   = lipgloss.NewStyle().Foreground(mutedColor).MarginTop(1)
	frameStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(accentColor).Padding(0, 1)
)
