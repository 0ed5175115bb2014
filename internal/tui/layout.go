package tui

import "strings"

// renderHeader draws a header bar with breadcrumb navigation.
func (s styles) renderHeader(parts ...string) string {
	breadcrumb := "netpulse"
	for _, p := range parts {
		breadcrumb += " > " + p
	}
	return s.headerBar.Render(breadcrumb) + "\n"
}

// hint is one footer key binding; disabled hints are dimmed.
type hint struct {
	keys    string
	label   string
	enabled bool
}

// renderFooter draws a footer with keybind hints.
func (s styles) renderFooter(hints []hint) string {
	parts := make([]string, 0, len(hints))
	for _, h := range hints {
		text := h.keys + " " + h.label
		if !h.enabled {
			text = s.dim.Render(text)
		}
		parts = append(parts, text)
	}
	return s.help.Render(strings.Join(parts, " | "))
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
