package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/lu-zhengda/netpulse/internal/models"
	"github.com/lu-zhengda/netpulse/internal/utils"
	"golang.org/x/sys/unix"
)

// Entry records one completed scan.
type Entry struct {
	Timestamp  time.Time `json:"timestamp"`
	ScanID     int       `json:"scan_id"`
	Subnet     string    `json:"subnet"`
	HostCount  int       `json:"host_count"`
	NewDevices int       `json:"new_devices"`
	DurationMS int64     `json:"duration_ms"`
}

// EntryFromResult builds a history entry for a finished scan.
func EntryFromResult(res models.ScanResult, now time.Time) Entry {
	return Entry{
		Timestamp:  now,
		ScanID:     res.Metadata.ScanID,
		Subnet:     res.Metadata.Subnet,
		HostCount:  res.Metadata.HostCount,
		NewDevices: models.CountNew(res.Devices),
		DurationMS: res.Metadata.Duration().Milliseconds(),
	}
}

// SubnetStats holds aggregate statistics for a single subnet.
type SubnetStats struct {
	Scans     int `json:"scans"`
	MaxHosts  int `json:"max_hosts"`
	NewSeen   int `json:"new_seen"`
	LastHosts int `json:"last_hosts"`
}

// Stats holds aggregate scan statistics.
type Stats struct {
	TotalScans    int                    `json:"total_scans"`
	TotalNew      int                    `json:"total_new"`
	AvgDurationMS int64                  `json:"avg_duration_ms"`
	BySubnet      map[string]SubnetStats `json:"by_subnet"`
	Recent        []Entry                `json:"recent"`
}

// History manages the scan history file.
type History struct {
	path       string
	maxEntries int
}

// New creates a History that reads/writes path and keeps at most
// maxEntries records (0 means unlimited).
func New(path string, maxEntries int) *History {
	return &History{path: path, maxEntries: maxEntries}
}

// DefaultPath returns the default history file location:
// ~/.local/share/netpulse/history.json
func DefaultPath() string {
	return utils.DataPath("history.json")
}

// Record appends an entry, dropping the oldest beyond the cap. The file is
// held under an exclusive flock so a TUI and a headless scan can record
// concurrently.
func (h *History) Record(e Entry) error {
	dir := filepath.Dir(h.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	lock, err := os.OpenFile(h.path+".lock", os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open history lock: %w", err)
	}
	defer lock.Close()
	if err := unix.Flock(int(lock.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("failed to lock history: %w", err)
	}
	defer unix.Flock(int(lock.Fd()), unix.LOCK_UN)

	entries, err := h.Load()
	if err != nil {
		// Missing or corrupt history starts fresh rather than blocking scans.
		entries = nil
	}

	entries = append(entries, e)
	if h.maxEntries > 0 && len(entries) > h.maxEntries {
		entries = entries[len(entries)-h.maxEntries:]
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	tmp := h.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}
	if err := os.Rename(tmp, h.path); err != nil {
		return fmt.Errorf("failed to replace history file: %w", err)
	}
	return nil
}

// Load reads all entries from the history file.
func (h *History) Load() ([]Entry, error) {
	data, err := os.ReadFile(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse history file: %w", err)
	}

	return entries, nil
}

// Stats computes aggregate statistics from the history.
func (h *History) Stats() Stats {
	entries, err := h.Load()
	if err != nil || len(entries) == 0 {
		return Stats{
			BySubnet: make(map[string]SubnetStats),
		}
	}

	s := Stats{
		TotalScans: len(entries),
		BySubnet:   make(map[string]SubnetStats),
	}

	// Sort entries by timestamp descending for recent list.
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	var totalMS int64
	for i := len(sorted) - 1; i >= 0; i-- {
		e := sorted[i]
		s.TotalNew += e.NewDevices
		totalMS += e.DurationMS

		ss := s.BySubnet[e.Subnet]
		ss.Scans++
		ss.NewSeen += e.NewDevices
		if e.HostCount > ss.MaxHosts {
			ss.MaxHosts = e.HostCount
		}
		ss.LastHosts = e.HostCount
		s.BySubnet[e.Subnet] = ss
	}
	s.AvgDurationMS = totalMS / int64(len(entries))

	limit := 5
	if len(sorted) < limit {
		limit = len(sorted)
	}
	s.Recent = sorted[:limit]

	return s
}
