package cli

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/lu-zhengda/netpulse/internal/config"
	"github.com/lu-zhengda/netpulse/internal/history"
	"github.com/lu-zhengda/netpulse/internal/logging"
	"github.com/lu-zhengda/netpulse/internal/mockbackend"
	"github.com/lu-zhengda/netpulse/internal/models"
	"github.com/lu-zhengda/netpulse/internal/scan"
	"github.com/lu-zhengda/netpulse/internal/scancache"
	"github.com/lu-zhengda/netpulse/internal/theme"
	"github.com/lu-zhengda/netpulse/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockClient(t *testing.T, cfg mockbackend.Config) (*mockbackend.Server, *transport.Client) {
	t.Helper()
	backend := mockbackend.New(cfg, nil)
	srv := httptest.NewServer(backend.Router())
	t.Cleanup(srv.Close)
	return backend, transport.New(srv.URL)
}

func TestRunScan_Success(t *testing.T) {
	_, client := newMockClient(t, mockbackend.Config{})

	var hooked []models.ScanResult
	st, res, err := runScan(context.Background(), client, logging.Discard(), func(r models.ScanResult) {
		hooked = append(hooked, r)
	})
	require.NoError(t, err)

	assert.Equal(t, scan.PhaseComplete, st.Phase)
	assert.True(t, st.BackendOnline)
	assert.Len(t, res.Devices, len(mockbackend.DefaultHosts))
	assert.Equal(t, res.Devices, st.Devices)
	require.Len(t, hooked, 1)
	assert.Equal(t, res.Metadata.ScanID, hooked[0].Metadata.ScanID)
}

func TestRunScan_Failure(t *testing.T) {
	_, client := newMockClient(t, mockbackend.Config{FailStatus: 500, FailBody: "arp sweep failed"})

	called := false
	st, _, err := runScan(context.Background(), client, nil, func(models.ScanResult) { called = true })
	require.NoError(t, err)

	assert.Equal(t, scan.PhaseFailed, st.Phase)
	assert.Contains(t, st.ErrorMessage, "backend returned 500")
	assert.Contains(t, st.ErrorMessage, scan.RemediationHint)
	assert.False(t, called, "hook must only run for successful scans")
}

func TestRunScan_Canceled(t *testing.T) {
	backend, client := newMockClient(t, mockbackend.Config{Delay: 5 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for backend.Requests() == 0 {
			time.Sleep(5 * time.Millisecond)
		}
		cancel()
	}()

	start := time.Now()
	st, _, err := runScan(ctx, client, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, scan.PhaseCanceled, st.Phase)
	assert.Empty(t, st.ErrorMessage)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func newTestApp(t *testing.T, cfgPath string) *app {
	t.Helper()
	cfg := config.Default()
	cfg.Log.File = ""

	a, err := newApp(cfg, cfgPath)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	dir := t.TempDir()
	a.cachePath = filepath.Join(dir, "last-scan.json")
	a.history = nil
	return a
}

func TestApp_RecordScan(t *testing.T) {
	a := newTestApp(t, "")
	histPath := filepath.Join(filepath.Dir(a.cachePath), "history.json")
	a.history = history.New(histPath, 10)

	a.recordScan(sampleResult())

	snap, err := scancache.Load(a.cachePath)
	require.NoError(t, err)
	assert.Equal(t, 12, snap.ScanID)
	assert.Len(t, snap.Devices, 2)

	entries, err := a.history.Load()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].NewDevices)
}

func TestApp_PersistTheme(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	fileCfg := config.Default()
	fileCfg.Backend.BaseURL = "http://10.0.0.5:8787"
	require.NoError(t, fileCfg.Save(cfgPath))

	a := newTestApp(t, cfgPath)
	// An environment override must not leak into the saved file.
	a.cfg.Backend.BaseURL = "http://override:9999"

	a.persistTheme(theme.Light)

	saved, err := config.LoadFrom(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "light", saved.UI.Theme)
	assert.Equal(t, "http://10.0.0.5:8787", saved.Backend.BaseURL)
}

func TestApp_PersistThemeWithoutPath(t *testing.T) {
	a := newTestApp(t, "")
	assert.NotPanics(t, func() { a.persistTheme(theme.Light) })
}

func TestApp_Probe(t *testing.T) {
	a := newTestApp(t, "")

	_, online := newMockClient(t, mockbackend.Config{})
	a.client = online
	assert.True(t, a.probe(context.Background()))

	a.client = transport.New("http://127.0.0.1:1")
	assert.False(t, a.probe(context.Background()))
}
