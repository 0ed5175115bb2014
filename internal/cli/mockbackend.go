package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lu-zhengda/netpulse/internal/logging"
	"github.com/lu-zhengda/netpulse/internal/mockbackend"
	"github.com/spf13/cobra"
)

var (
	mockAddr       string
	mockSubnet     string
	mockDelay      time.Duration
	mockFailStatus int
	mockFailBody   string
)

var mockBackendCmd = &cobra.Command{
	Use:   "mock-backend",
	Short: "Serve a canned discovery backend for development",
	Long:  "Serve GET /health and POST /scan/devices with a fixed set of devices.\nUse --delay to hold scans open and --fail-status to simulate backend errors.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if mockFailStatus != 0 && (mockFailStatus < 400 || mockFailStatus > 599) {
			return fmt.Errorf("invalid --fail-status %d (use 400-599)", mockFailStatus)
		}

		log, closer, err := logging.Setup(logging.Options{
			Level:  appConfig.Log.Level,
			Output: os.Stderr,
		})
		if err != nil {
			return err
		}
		defer closer.Close()

		backend := mockbackend.New(mockbackend.Config{
			Subnet:     mockSubnet,
			Delay:      mockDelay,
			FailStatus: mockFailStatus,
			FailBody:   mockFailBody,
		}, log)

		srv := &http.Server{
			Addr:              mockAddr,
			Handler:           backend.Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.ListenAndServe()
		}()
		fmt.Fprintf(os.Stderr, "mock backend listening on http://%s\n", mockAddr)

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("mock backend failed: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down mock backend: %w", err)
		}
		fmt.Fprintf(os.Stderr, "served %d scan request(s)\n", backend.Requests())
		return nil
	},
}

func init() {
	mockBackendCmd.Flags().StringVar(&mockAddr, "addr", "127.0.0.1:8787", "Listen address")
	mockBackendCmd.Flags().StringVar(&mockSubnet, "subnet", "192.168.1.0/24", "Subnet reported by scans")
	mockBackendCmd.Flags().DurationVar(&mockDelay, "delay", 2*time.Second, "How long each scan takes")
	mockBackendCmd.Flags().IntVar(&mockFailStatus, "fail-status", 0, "Fail every scan with this HTTP status")
	mockBackendCmd.Flags().StringVar(&mockFailBody, "fail-body", "scan failed", "Response body used with --fail-status")
}
