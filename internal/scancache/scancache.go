package scancache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/lu-zhengda/netpulse/internal/models"
	"github.com/lu-zhengda/netpulse/internal/utils"
)

// Snapshot captures the device set of one completed scan.
type Snapshot struct {
	Timestamp time.Time        `json:"timestamp"`
	ScanID    int              `json:"scan_id"`
	Subnet    string           `json:"subnet"`
	Devices   []DeviceSnapshot `json:"devices"`
}

// DeviceSnapshot is the cached identity of one device.
type DeviceSnapshot struct {
	MAC      string `json:"mac"`
	IP       string `json:"ip"`
	Hostname string `json:"hostname,omitempty"`
	Vendor   string `json:"vendor,omitempty"`
}

// DeviceChange describes a device that moved to a different IP.
type DeviceChange struct {
	MAC    string `json:"mac"`
	FromIP string `json:"from_ip"`
	ToIP   string `json:"to_ip"`
}

// DiffResult describes how the device set changed between two snapshots.
type DiffResult struct {
	PreviousTimestamp time.Time        `json:"previous_timestamp"`
	PreviousScanID    int              `json:"previous_scan_id"`
	Appeared          []DeviceSnapshot `json:"appeared"`
	Disappeared       []DeviceSnapshot `json:"disappeared"`
	Moved             []DeviceChange   `json:"moved"`
}

// Empty reports whether nothing changed.
func (d DiffResult) Empty() bool {
	return len(d.Appeared) == 0 && len(d.Disappeared) == 0 && len(d.Moved) == 0
}

// DefaultPath returns the default scan cache file location:
// ~/.local/share/netpulse/last-scan.json
func DefaultPath() string {
	return utils.DataPath("last-scan.json")
}

// FromResult builds a snapshot of a completed scan.
func FromResult(res models.ScanResult, now time.Time) Snapshot {
	snap := Snapshot{
		Timestamp: now,
		ScanID:    res.Metadata.ScanID,
		Subnet:    res.Metadata.Subnet,
		Devices:   make([]DeviceSnapshot, 0, len(res.Devices)),
	}
	for _, d := range res.Devices {
		snap.Devices = append(snap.Devices, DeviceSnapshot{
			MAC:      d.MAC,
			IP:       d.IP,
			Hostname: d.Hostname,
			Vendor:   d.Vendor,
		})
	}
	return snap
}

// Save writes a snapshot to the given path as indented JSON.
// It creates parent directories if they don't exist.
func Save(path string, snap Snapshot) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create scan cache directory: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal scan snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write scan cache file: %w", err)
	}

	return nil
}

// Load reads a snapshot from the given path.
func Load(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read scan cache file: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to parse scan cache file: %w", err)
	}

	return snap, nil
}

// Diff compares two snapshots by MAC. Results are sorted by MAC.
func Diff(prev, curr Snapshot) DiffResult {
	result := DiffResult{
		PreviousTimestamp: prev.Timestamp,
		PreviousScanID:    prev.ScanID,
	}

	// Index previous devices by MAC.
	prevMap := make(map[string]DeviceSnapshot, len(prev.Devices))
	for _, d := range prev.Devices {
		prevMap[d.MAC] = d
	}

	for _, d := range curr.Devices {
		old, existed := prevMap[d.MAC]
		if !existed {
			result.Appeared = append(result.Appeared, d)
			continue
		}
		if old.IP != d.IP {
			result.Moved = append(result.Moved, DeviceChange{MAC: d.MAC, FromIP: old.IP, ToIP: d.IP})
		}
		delete(prevMap, d.MAC)
	}

	// Remaining entries in prevMap are devices that were not seen again.
	for _, d := range prevMap {
		result.Disappeared = append(result.Disappeared, d)
	}

	sort.Slice(result.Appeared, func(i, j int) bool { return result.Appeared[i].MAC < result.Appeared[j].MAC })
	sort.Slice(result.Disappeared, func(i, j int) bool { return result.Disappeared[i].MAC < result.Disappeared[j].MAC })
	sort.Slice(result.Moved, func(i, j int) bool { return result.Moved[i].MAC < result.Moved[j].MAC })
	return result
}
