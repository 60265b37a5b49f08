package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/scrypster/clawscope/internal/timeline"
)

var (
	colorBlue     = lipgloss.Color("39")
	colorGreen    = lipgloss.Color("76")
	colorPink     = lipgloss.Color("212")
	colorLavender = lipgloss.Color("141")
	colorOrange   = lipgloss.Color("214")
	colorGray     = lipgloss.Color("240")

	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorBlue)
	filterStyle  = lipgloss.NewStyle().Foreground(colorPink)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorGray)
	spinnerStyle = lipgloss.NewStyle().Foreground(colorLavender)
	helpStyle    = lipgloss.NewStyle().Foreground(colorGray).Italic(true)

	kindStyles = map[string]lipgloss.Style{
		timeline.KindSession: lipgloss.NewStyle().Foreground(colorBlue),
		timeline.KindCron:    lipgloss.NewStyle().Foreground(colorLavender),
		timeline.KindTool:    lipgloss.NewStyle().Foreground(colorGreen),
		timeline.KindMemory:  lipgloss.NewStyle().Foreground(colorPink),
		timeline.KindAlert:   lipgloss.NewStyle().Foreground(colorOrange).Bold(true),
	}
)
