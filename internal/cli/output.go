package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/lu-zhengda/netpulse/internal/models"
	"github.com/lu-zhengda/netpulse/internal/scancache"
)

func printScanResult(res models.ScanResult) {
	m := res.Metadata
	fmt.Printf("\nScan %d of %s (%d hosts, %s)\n", m.ScanID, m.Subnet, m.HostCount, m.Duration().Round(100*time.Millisecond))
	fmt.Println(strings.Repeat("-", 78))

	if len(res.Devices) == 0 {
		fmt.Println("No devices found.")
		return
	}

	fmt.Printf("  %-16s %-18s %-22s %-20s\n", "IP", "MAC", "NAME", "VENDOR")
	for _, d := range res.Devices {
		line := fmt.Sprintf("  %-16s %-18s %-22s %-20s",
			d.IP, d.MAC, truncateText(d.Hostname, 22), truncateText(d.Vendor, 20))
		if d.IsNew {
			line += " [new]"
		}
		fmt.Println(strings.TrimRight(line, " "))
	}

	if n := models.CountNew(res.Devices); n > 0 {
		fmt.Printf("\n%d new %s on the network.\n", n, plural(n, "device", "devices"))
	}
}

func printDiff(diff *scancache.DiffResult) {
	fmt.Println()
	if diff == nil {
		fmt.Println("No previous scan to compare with.")
		return
	}

	fmt.Printf("Changes since scan %d (%s):\n", diff.PreviousScanID, humanize.Time(diff.PreviousTimestamp))
	if diff.Empty() {
		fmt.Println("  No changes.")
		return
	}
	for _, d := range diff.Appeared {
		fmt.Printf("  + %-16s %-18s %s\n", d.IP, d.MAC, d.Hostname)
	}
	for _, d := range diff.Disappeared {
		fmt.Printf("  - %-16s %-18s %s\n", d.IP, d.MAC, d.Hostname)
	}
	for _, c := range diff.Moved {
		fmt.Printf("  ~ %-18s %s -> %s\n", c.MAC, c.FromIP, c.ToIP)
	}
}

func truncateText(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
