package cli

import (
	"fmt"
	"time"

	"github.com/lu-zhengda/netpulse/internal/scan"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the discovery backend is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appConfig, resolveConfigPath())
		if err != nil {
			return err
		}
		defer a.Close()

		start := time.Now()
		h, err := a.client.Health(cmd.Context())
		if err != nil {
			return fmt.Errorf("%w\n%s", err, scan.RemediationHint)
		}
		latency := time.Since(start)

		if jsonFlag {
			return printJSON(healthOutJSON{
				Version:   version,
				BaseURL:   a.client.BaseURL(),
				Status:    h.Status,
				Service:   h.Service,
				LatencyMS: latency.Milliseconds(),
			})
		}
		fmt.Printf("%s is %s (%s, %s)\n", a.client.BaseURL(), h.Status, h.Service, latency.Round(time.Millisecond))
		return nil
	},
}
