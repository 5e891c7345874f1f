package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	// TitleStyle ANSI 6 (Cyan) for headings, readable on dark and light terminals
	TitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true).MarginBottom(1)

	// UsageStyle ANSI 2 (Green) for arguments and usage lines
	UsageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))

	// DescStyle ANSI 8 (Gray) for descriptions
	DescStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	// FlagStyle ANSI 3 (Yellow) for flags
	FlagStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))

	LabelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(26)
	ValueStyle   = lipgloss.NewStyle().Bold(true)
	SuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	ErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

// Row renders one aligned "label value" line.
func Row(label string, value any) string {
	return LabelStyle.Render(label) + ValueStyle.Render(fmt.Sprint(value))
}
