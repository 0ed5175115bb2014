package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lu-zhengda/netpulse/internal/models"
	"github.com/lu-zhengda/netpulse/internal/scan"
	"github.com/lu-zhengda/netpulse/internal/scancache"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var scanDiff bool

var errScanCanceled = errors.New("scan canceled")

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan and print the discovered devices",
	Long:  "Ask the backend for one scan of the local network and print the result.\nCtrl-C cancels the scan in flight.\nWith --diff, compare against the previous scan.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appConfig, resolveConfigPath())
		if err != nil {
			return err
		}
		defer a.Close()

		// The cache is overwritten once this scan completes, so read the
		// previous snapshot first.
		var prev *scancache.Snapshot
		if scanDiff {
			if snap, err := scancache.Load(a.cachePath); err == nil {
				prev = &snap
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if !jsonFlag {
			fmt.Printf("Scanning via %s...\n", a.client.BaseURL())
		}
		st, res, err := runScan(ctx, a.client, a.log, a.recordScan)
		if err != nil {
			return err
		}
		switch st.Phase {
		case scan.PhaseCanceled:
			return errScanCanceled
		case scan.PhaseFailed:
			return errors.New(st.ErrorMessage)
		}

		var diff *scancache.DiffResult
		if prev != nil {
			d := scancache.Diff(*prev, scancache.FromResult(res, time.Now().UTC()))
			diff = &d
		}

		if jsonFlag {
			return printJSON(buildScanJSON(res, diff))
		}
		printScanResult(res)
		if scanDiff {
			printDiff(diff)
		}
		return nil
	},
}

// runScan drives a single scan through an orchestrator and returns its
// terminal state, plus the result when the scan succeeded. Canceling ctx
// cancels the scan.
func runScan(ctx context.Context, t scan.Transport, log logrus.FieldLogger, onComplete func(models.ScanResult)) (scan.State, models.ScanResult, error) {
	var res models.ScanResult
	orch := scan.New(t,
		scan.WithLogger(log),
		scan.WithOnComplete(func(r models.ScanResult) {
			res = r
			if onComplete != nil {
				onComplete(r)
			}
		}),
	)
	defer orch.Close()

	if !orch.StartScan(ctx) {
		return orch.State(), res, fmt.Errorf("scan could not be started")
	}
	orch.Wait()
	return orch.State(), res, nil
}

func init() {
	scanCmd.Flags().BoolVar(&scanDiff, "diff", false, "Compare with the previous scan")
}
