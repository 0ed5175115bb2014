package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/lu-zhengda/netpulse/internal/history"
	"github.com/lu-zhengda/netpulse/internal/models"
	"github.com/lu-zhengda/netpulse/internal/scancache"
)

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Scan JSON types
// ---------------------------------------------------------------------------

type scanJSON struct {
	Version    string                `json:"version"`
	Timestamp  time.Time             `json:"timestamp"`
	ScanID     int                   `json:"scan_id"`
	Subnet     string                `json:"subnet"`
	Start      time.Time             `json:"ts_start"`
	End        time.Time             `json:"ts_end"`
	DurationMS int64                 `json:"duration_ms"`
	HostCount  int                   `json:"host_count"`
	NewDevices int                   `json:"new_devices"`
	Devices    []deviceJSON          `json:"devices"`
	Diff       *scancache.DiffResult `json:"diff,omitempty"`
}

type deviceJSON struct {
	IP        string    `json:"ip"`
	MAC       string    `json:"mac"`
	Hostname  string    `json:"hostname,omitempty"`
	Vendor    string    `json:"vendor,omitempty"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	IsNew     bool      `json:"is_new"`
}

// buildScanJSON converts a scan result into a JSON-serializable structure.
func buildScanJSON(res models.ScanResult, diff *scancache.DiffResult) scanJSON {
	devices := make([]deviceJSON, 0, len(res.Devices))
	for _, d := range res.Devices {
		devices = append(devices, deviceJSON{
			IP:        d.IP,
			MAC:       d.MAC,
			Hostname:  d.Hostname,
			Vendor:    d.Vendor,
			FirstSeen: d.FirstSeen,
			LastSeen:  d.LastSeen,
			IsNew:     d.IsNew,
		})
	}

	m := res.Metadata
	return scanJSON{
		Version:    version,
		Timestamp:  time.Now().UTC(),
		ScanID:     m.ScanID,
		Subnet:     m.Subnet,
		Start:      m.Start,
		End:        m.End,
		DurationMS: m.Duration().Milliseconds(),
		HostCount:  m.HostCount,
		NewDevices: models.CountNew(res.Devices),
		Devices:    devices,
		Diff:       diff,
	}
}

// ---------------------------------------------------------------------------
// Health JSON type
// ---------------------------------------------------------------------------

type healthOutJSON struct {
	Version   string `json:"version"`
	BaseURL   string `json:"base_url"`
	Status    string `json:"status"`
	Service   string `json:"service"`
	LatencyMS int64  `json:"latency_ms"`
}

// ---------------------------------------------------------------------------
// History JSON type
// ---------------------------------------------------------------------------

type historyJSON struct {
	Version       string                         `json:"version"`
	TotalScans    int                            `json:"total_scans"`
	TotalNew      int                            `json:"total_new"`
	AvgDurationMS int64                          `json:"avg_duration_ms"`
	BySubnet      map[string]history.SubnetStats `json:"by_subnet"`
	Recent        []history.Entry                `json:"recent"`
}

// buildHistoryJSON converts history stats into a JSON-serializable structure.
func buildHistoryJSON(stats history.Stats) historyJSON {
	return historyJSON{
		Version:       version,
		TotalScans:    stats.TotalScans,
		TotalNew:      stats.TotalNew,
		AvgDurationMS: stats.AvgDurationMS,
		BySubnet:      stats.BySubnet,
		Recent:        stats.Recent,
	}
}
