package history

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lu-zhengda/netpulse/internal/models"
)

func TestEntryFromResult(t *testing.T) {
	start := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	res := models.ScanResult{
		Metadata: models.ScanMetadata{
			ScanID:    12,
			Subnet:    "192.168.1.0/24",
			Start:     start,
			End:       start.Add(3500 * time.Millisecond),
			HostCount: 3,
		},
		Devices: []models.Device{{IsNew: true}, {}, {IsNew: true}},
	}

	e := EntryFromResult(res, start.Add(time.Minute))
	if e.ScanID != 12 || e.Subnet != "192.168.1.0/24" || e.HostCount != 3 {
		t.Errorf("unexpected entry %+v", e)
	}
	if e.NewDevices != 2 {
		t.Errorf("NewDevices = %d, want 2", e.NewDevices)
	}
	if e.DurationMS != 3500 {
		t.Errorf("DurationMS = %d, want 3500", e.DurationMS)
	}
}

func TestRecordAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.json")
	h := New(path, 0)

	ts := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		if err := h.Record(Entry{Timestamp: ts.Add(time.Duration(i) * time.Hour), ScanID: i}); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	entries, err := h.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}
	if entries[0].ScanID != 1 || entries[2].ScanID != 3 {
		t.Errorf("entries out of order: %+v", entries)
	}
}

func TestRecord_Cap(t *testing.T) {
	h := New(filepath.Join(t.TempDir(), "history.json"), 2)
	for i := 1; i <= 4; i++ {
		if err := h.Record(Entry{ScanID: i}); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := h.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].ScanID != 3 || entries[1].ScanID != 4 {
		t.Errorf("expected the two newest entries, got %+v", entries)
	}
}

func TestRecord_CorruptFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	h := New(path, 0)
	if err := h.Record(Entry{ScanID: 9}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	entries, err := h.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].ScanID != 9 {
		t.Errorf("entries = %+v", entries)
	}
}

func TestRecord_Concurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := New(path, 0).Record(Entry{ScanID: id}); err != nil {
				t.Errorf("Record(%d): %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	entries, err := New(path, 0).Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 8 {
		t.Errorf("len(entries) = %d, want 8 (lost updates)", len(entries))
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "none.json"), 0).Load()
	if !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestStats(t *testing.T) {
	h := New(filepath.Join(t.TempDir(), "history.json"), 0)
	ts := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	records := []Entry{
		{Timestamp: ts, ScanID: 1, Subnet: "192.168.1.0/24", HostCount: 4, NewDevices: 4, DurationMS: 3000},
		{Timestamp: ts.Add(time.Hour), ScanID: 2, Subnet: "192.168.1.0/24", HostCount: 6, NewDevices: 2, DurationMS: 5000},
		{Timestamp: ts.Add(2 * time.Hour), ScanID: 3, Subnet: "192.168.1.0/24", HostCount: 5, DurationMS: 4000},
		{Timestamp: ts.Add(3 * time.Hour), ScanID: 4, Subnet: "10.0.0.0/24", HostCount: 2, NewDevices: 2, DurationMS: 0},
	}
	for _, r := range records {
		if err := h.Record(r); err != nil {
			t.Fatal(err)
		}
	}

	s := h.Stats()
	if s.TotalScans != 4 {
		t.Errorf("TotalScans = %d, want 4", s.TotalScans)
	}
	if s.TotalNew != 8 {
		t.Errorf("TotalNew = %d, want 8", s.TotalNew)
	}
	if s.AvgDurationMS != 3000 {
		t.Errorf("AvgDurationMS = %d, want 3000", s.AvgDurationMS)
	}

	home := s.BySubnet["192.168.1.0/24"]
	if home.Scans != 3 || home.MaxHosts != 6 || home.LastHosts != 5 || home.NewSeen != 6 {
		t.Errorf("home subnet stats = %+v", home)
	}
	if len(s.Recent) != 4 || s.Recent[0].ScanID != 4 {
		t.Errorf("Recent should be newest first, got %+v", s.Recent)
	}
}

func TestStats_Empty(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "history.json"), 0).Stats()
	if s.TotalScans != 0 || s.BySubnet == nil {
		t.Errorf("unexpected empty stats %+v", s)
	}
}
