package theme

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

type Mode string

const (
	Dark  Mode = "dark"
	Light Mode = "light"
)

// ParseMode accepts "dark" or "light" in any case.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case Dark:
		return Dark, nil
	case Light:
		return Light, nil
	default:
		return "", fmt.Errorf("unknown theme %q (use dark or light)", s)
	}
}

// ---------------------------------------------------------------------------
// Palettes -- values are ANSI-256 color codes passed to lipgloss.Color().
// ---------------------------------------------------------------------------

type Palette struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Danger    lipgloss.Color
	Dim       lipgloss.Color
	Subtle    lipgloss.Color
	Text      lipgloss.Color
	Bar       lipgloss.Color
}

var palettes = map[Mode]Palette{
	Dark: {
		Primary:   lipgloss.Color("170"),
		Secondary: lipgloss.Color("212"),
		Success:   lipgloss.Color("82"),
		Warning:   lipgloss.Color("214"),
		Danger:    lipgloss.Color("196"),
		Dim:       lipgloss.Color("241"),
		Subtle:    lipgloss.Color("236"),
		Text:      lipgloss.Color("252"),
		Bar:       lipgloss.Color("236"),
	},
	Light: {
		Primary:   lipgloss.Color("91"),
		Secondary: lipgloss.Color("125"),
		Success:   lipgloss.Color("28"),
		Warning:   lipgloss.Color("130"),
		Danger:    lipgloss.Color("160"),
		Dim:       lipgloss.Color("244"),
		Subtle:    lipgloss.Color("254"),
		Text:      lipgloss.Color("235"),
		Bar:       lipgloss.Color("253"),
	},
}

// PaletteFor returns the colors of m. Unknown modes get the dark palette.
func PaletteFor(m Mode) Palette {
	if p, ok := palettes[m]; ok {
		return p
	}
	return palettes[Dark]
}

// Manager holds the active mode and notifies listeners when it flips.
type Manager struct {
	mu        sync.Mutex
	mode      Mode
	listeners []func(Mode)
}

func NewManager(initial Mode) *Manager {
	if _, ok := palettes[initial]; !ok {
		initial = Dark
	}
	return &Manager{mode: initial}
}

func (m *Manager) Current() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

func (m *Manager) Palette() Palette {
	return PaletteFor(m.Current())
}

// OnChange registers fn to run after every Toggle, with the new mode.
func (m *Manager) OnChange(fn func(Mode)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Toggle switches between dark and light and returns the new mode.
func (m *Manager) Toggle() Mode {
	m.mu.Lock()
	if m.mode == Dark {
		m.mode = Light
	} else {
		m.mode = Dark
	}
	mode := m.mode
	listeners := slices.Clone(m.listeners)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(mode)
	}
	return mode
}
