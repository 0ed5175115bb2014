// Package projection derives display fields from orchestrator snapshots.
// Everything here is pure: feed a scan.State, get a View.
package projection

import (
	"fmt"
	"strings"

	"github.com/lu-zhengda/netpulse/internal/models"
	"github.com/lu-zhengda/netpulse/internal/scan"
)

const (
	LabelScanning = "SCANNING"
	LabelError    = "ERROR"
	LabelComplete = "COMPLETE"
	LabelIdle     = "IDLE"

	LabelOnline  = "ONLINE"
	LabelOffline = "OFFLINE"
)

// View is the read-only projection rendered by the UI.
type View struct {
	StatusLabel        string
	StatusDetail       string
	StatusMessage      string
	ErrorMessage       string
	BackendStatusLabel string
	NewDeviceCount     int
	Devices            []models.Device
	Subnet             string
	Scanning           bool
}

// Project computes the View for s. It does not modify s.
func Project(s scan.State) View {
	v := View{
		StatusMessage:      s.StatusMessage,
		ErrorMessage:       s.ErrorMessage,
		BackendStatusLabel: BackendLabel(s.BackendOnline),
		NewDeviceCount:     models.CountNew(s.Devices),
		Devices:            s.Devices,
		Scanning:           s.Scanning(),
	}
	if s.LastScan != nil {
		v.Subnet = s.LastScan.Subnet
	}
	v.StatusLabel, v.StatusDetail = status(s)
	return v
}

func status(s scan.State) (label, detail string) {
	switch {
	case s.Phase == scan.PhaseScanning:
		return LabelScanning, "discovering devices"
	case s.ErrorMessage != "":
		return LabelError, "scan failed"
	case len(s.Devices) > 0:
		return LabelComplete, fmt.Sprintf("%d discovered device(s)", len(s.Devices))
	default:
		return LabelIdle, "ready to scan"
	}
}

func BackendLabel(online bool) string {
	if online {
		return LabelOnline
	}
	return LabelOffline
}

// Filter returns the devices whose IP, MAC, hostname or vendor contain
// query, case-insensitively, in their original order. An empty query
// returns devices unchanged.
func Filter(devices []models.Device, query string) []models.Device {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return devices
	}
	var out []models.Device
	for _, d := range devices {
		if matches(d, q) {
			out = append(out, d)
		}
	}
	return out
}

func matches(d models.Device, q string) bool {
	for _, field := range []string{d.IP, d.MAC, d.Hostname, d.Vendor} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}
