package transport

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lu-zhengda/netpulse/internal/models"
)

// Wire types mirror the backend's snake_case JSON. Nothing outside this
// package sees them.

type scanResponseJSON struct {
	Scan    *scanMetadataJSON `json:"scan"`
	Devices []deviceJSON      `json:"devices"`
}

type scanMetadataJSON struct {
	ScanID    int     `json:"scan_id"`
	Subnet    string  `json:"subnet"`
	TsStart   isoTime `json:"ts_start"`
	TsEnd     isoTime `json:"ts_end"`
	HostCount int     `json:"host_count"`
}

type deviceJSON struct {
	IP        string  `json:"ip"`
	MAC       string  `json:"mac"`
	Hostname  *string `json:"hostname"`
	Vendor    *string `json:"vendor"`
	FirstSeen isoTime `json:"first_seen"`
	LastSeen  isoTime `json:"last_seen"`
	IsNew     bool    `json:"is_new"`
}

type healthJSON struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

func (r scanResponseJSON) toModel() models.ScanResult {
	res := models.ScanResult{
		Metadata: models.ScanMetadata{
			ScanID:    r.Scan.ScanID,
			Subnet:    r.Scan.Subnet,
			Start:     time.Time(r.Scan.TsStart),
			End:       time.Time(r.Scan.TsEnd),
			HostCount: r.Scan.HostCount,
		},
		Devices: make([]models.Device, 0, len(r.Devices)),
	}
	for _, d := range r.Devices {
		res.Devices = append(res.Devices, models.Device{
			IP:        d.IP,
			MAC:       d.MAC,
			Hostname:  deref(d.Hostname),
			Vendor:    deref(d.Vendor),
			FirstSeen: time.Time(d.FirstSeen),
			LastSeen:  time.Time(d.LastSeen),
			IsNew:     d.IsNew,
		})
	}
	return res
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// isoTime accepts ISO 8601 timestamps with or without a UTC offset. Values
// without an offset are taken as UTC.
type isoTime time.Time

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

func (t *isoTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = isoTime{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	for _, layout := range isoLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = isoTime(parsed)
			return nil
		}
	}
	return fmt.Errorf("invalid ISO 8601 timestamp %q", s)
}
