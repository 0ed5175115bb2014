package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/lu-zhengda/netpulse/internal/commands"
	"github.com/lu-zhengda/netpulse/internal/models"
	"github.com/lu-zhengda/netpulse/internal/projection"
	"github.com/lu-zhengda/netpulse/internal/scan"
	"github.com/lu-zhengda/netpulse/internal/theme"
)

// stateMsg carries a new orchestrator snapshot into the event loop.
type stateMsg struct {
	state scan.State
}

// listenState waits for the next snapshot. A closed channel ends the loop.
func listenState(ch <-chan scan.State) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return stateMsg{state: s}
	}
}

type Model struct {
	gateway *commands.Gateway
	states  <-chan scan.State
	backend string

	view   projection.View
	styles styles

	cursor       int
	scrollOffset int
	filter       textinput.Model
	filtering    bool

	spinner spinner.Model

	width  int
	height int
}

// New builds the dashboard. states is an orchestrator subscription; its
// first value must be the current state.
func New(gw *commands.Gateway, states <-chan scan.State, backend string) Model {
	st := newStyles(theme.PaletteFor(gw.ThemeMode()))

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(st.palette.Primary)

	ti := textinput.New()
	ti.Placeholder = "ip, mac, hostname or vendor"
	ti.Prompt = "/ "
	ti.CharLimit = 64
	ti.Width = 40

	return Model{
		gateway: gw,
		states:  states,
		backend: backend,
		view:    projection.Project(scan.State{StatusMessage: "Ready to scan"}),
		styles:  st,
		filter:  ti,
		spinner: sp,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, listenState(m.states))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		if m.view.Scanning {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case stateMsg:
		wasScanning := m.view.Scanning
		m.view = projection.Project(msg.state)
		m.clampCursor()
		cmds := []tea.Cmd{listenState(m.states)}
		if m.view.Scanning && !wasScanning {
			cmds = append(cmds, m.spinner.Tick)
		}
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.filtering {
			return m.updateFilter(msg)
		}
		return m.updateDashboard(msg)
	}

	if m.filtering {
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateDashboard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "s", "r":
		m.gateway.Scan(context.Background())
	case "x", "esc":
		if m.gateway.CanCancel() {
			m.gateway.Cancel()
		} else if msg.String() == "esc" && m.filter.Value() != "" {
			m.filter.SetValue("")
			m.clampCursor()
		}
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			m.ensureCursorVisible()
		}
	case "down", "j":
		if m.cursor < len(m.visibleDevices())-1 {
			m.cursor++
			m.ensureCursorVisible()
		}
	case "i":
		m.gateway.CopyIP(m.selected())
	case "m":
		m.gateway.CopyMAC(m.selected())
	case "t":
		m.styles = newStyles(theme.PaletteFor(m.gateway.ToggleTheme()))
		m.spinner.Style = lipgloss.NewStyle().Foreground(m.styles.palette.Primary)
	case "/":
		m.filtering = true
		return m, m.filter.Focus()
	}
	return m, nil
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.filtering = false
		m.filter.Blur()
		return m, nil
	case "esc":
		m.filtering = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.clampCursor()
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.cursor = 0
	m.scrollOffset = 0
	return m, cmd
}

func (m Model) visibleDevices() []models.Device {
	return projection.Filter(m.view.Devices, m.filter.Value())
}

// selected returns the device under the cursor, or nil.
func (m Model) selected() *models.Device {
	devices := m.visibleDevices()
	if m.cursor < 0 || m.cursor >= len(devices) {
		return nil
	}
	d := devices[m.cursor]
	return &d
}

func (m *Model) clampCursor() {
	n := len(m.visibleDevices())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.scrollOffset > m.cursor {
		m.scrollOffset = m.cursor
	}
}

func (m *Model) ensureCursorVisible() {
	visible := m.visibleItemCount()
	if m.cursor < m.scrollOffset {
		m.scrollOffset = m.cursor
	}
	if m.cursor >= m.scrollOffset+visible {
		m.scrollOffset = m.cursor - visible + 1
	}
}

func (m Model) visibleItemCount() int {
	if m.height == 0 {
		return 15
	}
	n := m.height - 14
	if n < 3 {
		n = 3
	}
	return n
}

func (m Model) View() string {
	st := m.styles
	v := m.view

	s := st.renderHeader("Devices", m.backend) + "\n"

	status := badge(v.StatusLabel, statusColor(v.StatusLabel, st.palette)) + " "
	if v.Scanning {
		status += m.spinner.View() + " "
	}
	status += st.dim.Render(v.StatusDetail)
	status += "   backend " + badge(v.BackendStatusLabel, backendColor(v.BackendStatusLabel, st.palette))
	if v.NewDeviceCount > 0 {
		status += "   " + st.newBadge.Render(fmt.Sprintf("%d new", v.NewDeviceCount))
	}
	if v.Subnet != "" {
		status += "   " + st.dim.Render("subnet "+v.Subnet)
	}
	s += status + "\n\n"

	s += m.viewDevices()

	if m.filtering || m.filter.Value() != "" {
		s += "\n" + m.filter.View() + "\n"
	}

	s += "\n" + st.statusBar.Render(v.StatusMessage) + "\n"
	if v.ErrorMessage != "" {
		s += "\n" + st.errorText.Render(v.ErrorMessage) + "\n"
	}

	s += st.renderFooter([]hint{
		{"s", "scan", m.gateway.CanScan()},
		{"x", "cancel", m.gateway.CanCancel()},
		{"i", "copy ip", true},
		{"m", "copy mac", true},
		{"/", "filter", true},
		{"t", "theme (" + string(m.gateway.ThemeMode()) + ")", true},
		{"q", "quit", true},
	})
	return s
}

func (m Model) viewDevices() string {
	st := m.styles
	devices := m.visibleDevices()

	if len(devices) == 0 {
		switch {
		case m.view.Scanning:
			return st.dim.Render("  Waiting for the backend to finish the sweep...") + "\n"
		case m.filter.Value() != "" && len(m.view.Devices) > 0:
			return st.dim.Render("  No devices match the filter.") + "\n"
		default:
			return st.dim.Render("  No devices yet. Press s to scan.") + "\n"
		}
	}

	s := st.column.Render(fmt.Sprintf("  %-16s %-18s %-22s %-20s %s",
		"IP", "MAC", "NAME", "VENDOR", "LAST SEEN")) + "\n"

	visible := m.visibleItemCount()
	end := m.scrollOffset + visible
	if end > len(devices) {
		end = len(devices)
	}

	for i := m.scrollOffset; i < end; i++ {
		d := devices[i]
		cursor := "  "
		if i == m.cursor {
			cursor = "> "
		}
		lastSeen := "-"
		if !d.LastSeen.IsZero() {
			lastSeen = humanize.Time(d.LastSeen)
		}
		line := fmt.Sprintf("%s%-16s %-18s %-22s %-20s %s",
			cursor, d.IP, d.MAC, truncate(d.Hostname, 22), truncate(d.Vendor, 20), lastSeen)

		if i == m.cursor {
			line = st.selected.Render(line)
		}
		if d.IsNew {
			line += " " + st.newBadge.Render("NEW")
		}
		s += line + "\n"
	}

	if len(devices) > visible {
		s += st.dim.Render(fmt.Sprintf("  [%d-%d of %d]", m.scrollOffset+1, end, len(devices))) + "\n"
	}
	return strings.TrimRight(s, " ")
}
