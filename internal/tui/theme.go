package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/lu-zhengda/netpulse/internal/projection"
	"github.com/lu-zhengda/netpulse/internal/theme"
)

// styles is rebuilt from the active palette whenever the theme flips.
type styles struct {
	palette theme.Palette

	title     lipgloss.Style
	headerBar lipgloss.Style
	selected  lipgloss.Style
	dim       lipgloss.Style
	help      lipgloss.Style
	statusBar lipgloss.Style
	errorText lipgloss.Style
	newBadge  lipgloss.Style
	column    lipgloss.Style
}

func newStyles(p theme.Palette) styles {
	return styles{
		palette: p,
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.Primary),
		headerBar: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.Text).
			Background(p.Bar).
			Padding(0, 1),
		selected: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.Secondary),
		dim: lipgloss.NewStyle().
			Foreground(p.Dim),
		help: lipgloss.NewStyle().
			Foreground(p.Dim).
			MarginTop(1),
		statusBar: lipgloss.NewStyle().
			Background(p.Bar).
			Foreground(p.Text).
			Padding(0, 1),
		errorText: lipgloss.NewStyle().
			Foreground(p.Danger),
		newBadge: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.Success),
		column: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.Dim),
	}
}

// statusColor maps a projection status label to a palette color.
func statusColor(label string, p theme.Palette) lipgloss.Color {
	switch label {
	case projection.LabelScanning:
		return p.Warning
	case projection.LabelError:
		return p.Danger
	case projection.LabelComplete:
		return p.Success
	default:
		return p.Dim
	}
}

func backendColor(label string, p theme.Palette) lipgloss.Color {
	if label == projection.LabelOnline {
		return p.Success
	}
	return p.Danger
}

// badge renders a label as reverse-video text in the given color.
func badge(label string, c lipgloss.Color) string {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(c).
		Reverse(true).
		Padding(0, 1).
		Render(label)
}
