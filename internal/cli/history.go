package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/lu-zhengda/netpulse/internal/history"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past scans and statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		h := history.New(history.DefaultPath(), appConfig.History.MaxEntries)
		stats := h.Stats()

		if jsonFlag {
			return printJSON(buildHistoryJSON(stats))
		}
		printHistory(stats)
		return nil
	},
}

func printHistory(stats history.Stats) {
	fmt.Println("netpulse -- Scan History")
	fmt.Println()

	if stats.TotalScans == 0 {
		fmt.Println("  No scans recorded yet. Run 'netpulse scan' to get started.")
		fmt.Println()
		return
	}

	fmt.Printf("  Total scans:       %s\n", humanize.Comma(int64(stats.TotalScans)))
	fmt.Printf("  New devices seen:  %s\n", humanize.Comma(int64(stats.TotalNew)))
	fmt.Printf("  Average duration:  %s\n", formatMillis(stats.AvgDurationMS))

	if len(stats.BySubnet) > 0 {
		fmt.Println()
		fmt.Println("  By Subnet:")

		subnets := make([]string, 0, len(stats.BySubnet))
		for s := range stats.BySubnet {
			subnets = append(subnets, s)
		}
		sort.Slice(subnets, func(i, j int) bool {
			return stats.BySubnet[subnets[i]].Scans > stats.BySubnet[subnets[j]].Scans
		})

		for _, s := range subnets {
			ss := stats.BySubnet[s]
			fmt.Printf("    %-20s %4d %-5s  last %3d hosts  max %3d\n",
				s, ss.Scans, plural(ss.Scans, "scan", "scans"), ss.LastHosts, ss.MaxHosts)
		}
	}

	if len(stats.Recent) > 0 {
		fmt.Println()
		fmt.Println("  Recent:")
		for _, e := range stats.Recent {
			fmt.Printf("    #%-5d %-16s %-20s %3d %-5s %3d new  %s\n",
				e.ScanID,
				humanize.Time(e.Timestamp),
				e.Subnet,
				e.HostCount,
				plural(e.HostCount, "host", "hosts"),
				e.NewDevices,
				formatMillis(e.DurationMS))
		}
	}
	fmt.Println()
}

func formatMillis(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	if d < time.Second {
		return d.String()
	}
	return d.Round(100 * time.Millisecond).String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
