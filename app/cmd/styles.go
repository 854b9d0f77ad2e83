package cmd

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/pterm/pterm"
)

var (
	Green  = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	Red    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4672"))
	Yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7C948"))
	Info   = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
	Faint  = lipgloss.NewStyle().Faint(true)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(0, 1)
)

func newSpinner() *pterm.SpinnerPrinter {
	return pterm.DefaultSpinner.WithStyle(pterm.NewStyle(pterm.FgLightBlue)).
		WithSequence("⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏").
		WithDelay(100).WithRemoveWhenDone(true)
}
