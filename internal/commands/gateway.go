// Package commands exposes the user actions of the dashboard and their
// enablement rules. The gateway holds no state; everything it changes
// belongs to the orchestrator or an external collaborator.
package commands

import (
	"context"
	"fmt"

	"github.com/lu-zhengda/netpulse/internal/models"
	"github.com/lu-zhengda/netpulse/internal/scan"
	"github.com/lu-zhengda/netpulse/internal/theme"
)

// Orchestrator is the subset of *scan.Orchestrator the gateway drives.
type Orchestrator interface {
	State() scan.State
	StartScan(ctx context.Context) bool
	RequestCancel() bool
	SetStatus(msg string)
}

type Clipboard interface {
	SetText(text string) error
}

type Theme interface {
	Toggle() theme.Mode
	Current() theme.Mode
	OnChange(fn func(theme.Mode))
}

type Gateway struct {
	orch  Orchestrator
	clip  Clipboard
	theme Theme
}

func New(o Orchestrator, clip Clipboard, th Theme) *Gateway {
	return &Gateway{orch: o, clip: clip, theme: th}
}

// CanScan is true unless a scan is running.
func (g *Gateway) CanScan() bool {
	return !g.orch.State().Scanning()
}

// Scan starts a scan if enabled. It reports whether a scan was started.
func (g *Gateway) Scan(ctx context.Context) bool {
	if !g.CanScan() {
		return false
	}
	return g.orch.StartScan(ctx)
}

// CanCancel is true only while a scan is running.
func (g *Gateway) CanCancel() bool {
	return g.orch.State().Scanning()
}

func (g *Gateway) Cancel() bool {
	if !g.CanCancel() {
		return false
	}
	return g.orch.RequestCancel()
}

// CopyIP copies the selected device's IP. Nil selection or empty IP is a no-op.
func (g *Gateway) CopyIP(sel *models.Device) bool {
	if sel == nil {
		return false
	}
	return g.copy("IP", sel.IP)
}

// CopyMAC copies the selected device's MAC. Nil selection or empty MAC is a no-op.
func (g *Gateway) CopyMAC(sel *models.Device) bool {
	if sel == nil {
		return false
	}
	return g.copy("MAC", sel.MAC)
}

func (g *Gateway) copy(what, value string) bool {
	if value == "" || g.clip == nil {
		return false
	}
	if err := g.clip.SetText(value); err != nil {
		g.orch.SetStatus(fmt.Sprintf("Copy failed: %v", err))
		return false
	}
	g.orch.SetStatus(fmt.Sprintf("Copied %s %s", what, value))
	return true
}

// ToggleTheme flips the theme and returns the new mode.
func (g *Gateway) ToggleTheme() theme.Mode {
	return g.theme.Toggle()
}

// ThemeMode returns the active theme.
func (g *Gateway) ThemeMode() theme.Mode {
	return g.theme.Current()
}
