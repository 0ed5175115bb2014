package models

import "time"

// Device is a single host reported by the backend for one scan.
// Devices are snapshots: a new scan replaces the whole set.
type Device struct {
	IP        string
	MAC       string
	Hostname  string
	Vendor    string
	FirstSeen time.Time
	LastSeen  time.Time
	IsNew     bool
}

// DisplayName returns the hostname, falling back to vendor and then IP.
func (d Device) DisplayName() string {
	if d.Hostname != "" {
		return d.Hostname
	}
	if d.Vendor != "" {
		return d.Vendor
	}
	return d.IP
}

// ScanMetadata describes one backend scan.
type ScanMetadata struct {
	ScanID    int
	Subnet    string
	Start     time.Time
	End       time.Time
	HostCount int
}

// Duration returns End-Start, or zero if the timestamps are out of order.
func (m ScanMetadata) Duration() time.Duration {
	if m.End.Before(m.Start) {
		return 0
	}
	return m.End.Sub(m.Start)
}

type ScanResult struct {
	Metadata ScanMetadata
	Devices  []Device
}

// CountNew returns how many devices carry the backend's new-device flag.
func CountNew(devices []Device) int {
	n := 0
	for _, d := range devices {
		if d.IsNew {
			n++
		}
	}
	return n
}
