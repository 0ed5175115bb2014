package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/lu-zhengda/netpulse/internal/config"
	"github.com/lu-zhengda/netpulse/internal/history"
	"github.com/lu-zhengda/netpulse/internal/logging"
	"github.com/lu-zhengda/netpulse/internal/models"
	"github.com/lu-zhengda/netpulse/internal/scancache"
	"github.com/lu-zhengda/netpulse/internal/theme"
	"github.com/lu-zhengda/netpulse/internal/transport"
	"github.com/sirupsen/logrus"
)

// probeTimeout bounds the startup health check so an unreachable backend
// does not delay the dashboard.
const probeTimeout = 3 * time.Second

// app bundles the collaborators shared by the dashboard and the headless
// commands.
type app struct {
	cfg       *config.Config
	cfgPath   string
	log       *logrus.Logger
	logCloser io.Closer
	client    *transport.Client
	history   *history.History // nil when history is disabled
	cachePath string
}

func newApp(cfg *config.Config, cfgPath string) (*app, error) {
	log, closer, err := logging.Setup(logging.Options{
		Level: cfg.Log.Level,
		File:  cfg.LogFile(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	client := transport.New(cfg.Backend.BaseURL,
		transport.WithTimeout(cfg.BackendTimeout()),
		transport.WithLogger(log),
		transport.WithUserAgent("netpulse/"+version),
	)

	a := &app{
		cfg:       cfg,
		cfgPath:   cfgPath,
		log:       log,
		logCloser: closer,
		client:    client,
		cachePath: scancache.DefaultPath(),
	}
	if cfg.History.Enabled {
		a.history = history.New(history.DefaultPath(), cfg.History.MaxEntries)
	}
	return a, nil
}

func (a *app) Close() error {
	return a.logCloser.Close()
}

// probe reports whether the backend answers its health endpoint.
func (a *app) probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	h, err := a.client.Health(ctx)
	if err != nil {
		a.log.WithError(err).WithField("kind", transport.KindOf(err)).Warn("backend health probe failed")
		return false
	}
	a.log.WithFields(logrus.Fields{"status": h.Status, "service": h.Service}).Info("backend online")
	return true
}

// recordScan stores a completed scan in history and the last-scan cache.
// Failures are logged; they never affect the scan itself.
func (a *app) recordScan(res models.ScanResult) {
	now := time.Now().UTC()
	if a.history != nil {
		if err := a.history.Record(history.EntryFromResult(res, now)); err != nil {
			a.log.WithError(err).Warn("failed to record scan history")
		}
	}
	if err := scancache.Save(a.cachePath, scancache.FromResult(res, now)); err != nil {
		a.log.WithError(err).Warn("failed to save scan cache")
	}
}

// persistTheme writes the new theme to the config file. The file is
// re-read first so environment overrides are not written back.
func (a *app) persistTheme(m theme.Mode) {
	if a.cfgPath == "" {
		return
	}
	cfg, err := config.LoadFrom(a.cfgPath)
	if err != nil {
		a.log.WithError(err).Warn("failed to reload config for theme change")
		return
	}
	cfg.UI.Theme = string(m)
	if err := cfg.Save(a.cfgPath); err != nil {
		a.log.WithError(err).Warn("failed to save theme")
		return
	}
	a.log.WithField("theme", m).Debug("theme saved")
}
