package scan

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lu-zhengda/netpulse/internal/models"
	"github.com/lu-zhengda/netpulse/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outcome struct {
	res models.ScanResult
	err error
}

// fakeTransport blocks each request until the test feeds an outcome. When
// honorCancel is set it resolves with a cancellation as soon as ctx is done.
type fakeTransport struct {
	honorCancel bool
	started     chan struct{}
	results     chan outcome

	mu    sync.Mutex
	calls int
}

func newFakeTransport(honorCancel bool) *fakeTransport {
	return &fakeTransport{
		honorCancel: honorCancel,
		started:     make(chan struct{}, 4),
		results:     make(chan outcome, 1),
	}
}

func (f *fakeTransport) RequestScan(ctx context.Context) (models.ScanResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	f.started <- struct{}{}

	if !f.honorCancel {
		out := <-f.results
		return out.res, out.err
	}
	select {
	case out := <-f.results:
		return out.res, out.err
	case <-ctx.Done():
		return models.ScanResult{}, &transport.Error{Kind: transport.KindCanceled, Err: ctx.Err()}
	}
}

func (f *fakeTransport) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeTransport) waitStarted(t *testing.T) {
	t.Helper()
	select {
	case <-f.started:
	case <-time.After(2 * time.Second):
		t.Fatal("transport was never called")
	}
}

func twoDevices() models.ScanResult {
	return models.ScanResult{
		Metadata: models.ScanMetadata{ScanID: 7, Subnet: "192.168.1.0/24", HostCount: 2},
		Devices: []models.Device{
			{IP: "192.168.1.1", MAC: "aa:aa:aa:aa:aa:01", Hostname: "router", IsNew: false},
			{IP: "192.168.1.9", MAC: "aa:aa:aa:aa:aa:09", IsNew: true},
		},
	}
}

// assertInvariant checks phase == Scanning iff an unreleased handle is held.
func assertInvariant(t *testing.T, o *Orchestrator) {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	scanning := o.state.Phase == PhaseScanning
	held := o.inflight != nil && !o.inflight.released
	assert.Equal(t, scanning, held, "phase=%s handle held=%v", o.state.Phase, held)
}

func TestNew_Idle(t *testing.T) {
	o := New(newFakeTransport(true))
	s := o.State()

	assert.Equal(t, PhaseIdle, s.Phase)
	assert.Equal(t, "Ready to scan", s.StatusMessage)
	assert.Empty(t, s.Devices)
	assert.False(t, s.BackendOnline)
	assertInvariant(t, o)
}

func TestStartScan_Success(t *testing.T) {
	ft := newFakeTransport(true)
	o := New(ft)

	require.True(t, o.StartScan(context.Background()))
	s := o.State()
	assert.Equal(t, PhaseScanning, s.Phase)
	assert.Equal(t, "Scanning local network...", s.StatusMessage)
	assertInvariant(t, o)

	ft.waitStarted(t)
	ft.results <- outcome{res: twoDevices()}
	o.Wait()

	s = o.State()
	assert.Equal(t, PhaseComplete, s.Phase)
	require.Len(t, s.Devices, 2)
	assert.Equal(t, "192.168.1.1", s.Devices[0].IP, "received order is preserved")
	assert.Contains(t, s.StatusMessage, "7")
	assert.Contains(t, s.StatusMessage, "2")
	assert.Equal(t, "Scan 7 complete: 2 hosts discovered", s.StatusMessage)
	assert.True(t, s.BackendOnline)
	require.NotNil(t, s.LastScan)
	assert.Equal(t, "192.168.1.0/24", s.LastScan.Subnet)
	assert.Empty(t, s.ErrorMessage)
	assertInvariant(t, o)
}

func TestStartScan_RejectedWhileScanning(t *testing.T) {
	ft := newFakeTransport(true)
	o := New(ft)

	require.True(t, o.StartScan(context.Background()))
	ft.waitStarted(t)
	before := o.State()

	assert.False(t, o.StartScan(context.Background()))
	assert.Equal(t, before, o.State(), "rejected start must not change state")

	ft.results <- outcome{res: twoDevices()}
	o.Wait()
	assert.Equal(t, 1, ft.Calls(), "only one transport request expected")
}

func TestRequestCancel_Canceled(t *testing.T) {
	for _, online := range []bool{true, false} {
		ft := newFakeTransport(true)
		o := New(ft, WithInitialBackendOnline(online))

		require.True(t, o.StartScan(context.Background()))
		ft.waitStarted(t)

		require.True(t, o.RequestCancel())
		o.Wait()

		s := o.State()
		assert.Equal(t, PhaseCanceled, s.Phase)
		assert.Empty(t, s.Devices)
		assert.Equal(t, "Scan canceled", s.StatusMessage)
		assert.Equal(t, online, s.BackendOnline, "cancellation must not change connectivity")
		assert.Empty(t, s.ErrorMessage)
		assertInvariant(t, o)
	}
}

func TestRequestCancel_PlainContextError(t *testing.T) {
	ft := newFakeTransport(false)
	o := New(ft)

	require.True(t, o.StartScan(context.Background()))
	ft.waitStarted(t)
	ft.results <- outcome{err: context.Canceled}
	o.Wait()

	assert.Equal(t, PhaseCanceled, o.State().Phase)
}

func TestRequestCancel_IdleIsNoop(t *testing.T) {
	o := New(newFakeTransport(true))
	before := o.State()

	assert.False(t, o.RequestCancel())
	assert.Equal(t, before, o.State())
}

func TestRequestCancel_AfterCompleteIsNoop(t *testing.T) {
	ft := newFakeTransport(true)
	o := New(ft)
	o.StartScan(context.Background())
	ft.waitStarted(t)
	ft.results <- outcome{res: twoDevices()}
	o.Wait()

	before := o.State()
	assert.False(t, o.RequestCancel())
	assert.Equal(t, before, o.State())
}

func TestCancelRace_SuccessWins(t *testing.T) {
	ft := newFakeTransport(false)
	o := New(ft)

	require.True(t, o.StartScan(context.Background()))
	ft.waitStarted(t)
	require.True(t, o.RequestCancel())

	// The transport never observed the signal and resolved successfully.
	ft.results <- outcome{res: twoDevices()}
	o.Wait()

	s := o.State()
	assert.Equal(t, PhaseComplete, s.Phase)
	assert.Len(t, s.Devices, 2)
	assertInvariant(t, o)
}

func TestStartScan_HTTPStatusFailure(t *testing.T) {
	ft := newFakeTransport(true)
	o := New(ft, WithInitialBackendOnline(true))

	require.True(t, o.StartScan(context.Background()))
	ft.waitStarted(t)
	ft.results <- outcome{err: &transport.Error{Kind: transport.KindHTTPStatus, StatusCode: 503, Body: "unavailable"}}
	o.Wait()

	s := o.State()
	assert.Equal(t, PhaseFailed, s.Phase)
	assert.False(t, s.BackendOnline)
	assert.Contains(t, s.ErrorMessage, "503")
	assert.Contains(t, s.ErrorMessage, "unavailable")
	assert.Contains(t, s.ErrorMessage, RemediationHint)
	assert.Equal(t, "Scan failed", s.StatusMessage)
	assert.Empty(t, s.Devices)
	assertInvariant(t, o)
}

func TestStartScan_OtherFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"connectivity", &transport.Error{Kind: transport.KindConnectivity, Err: errors.New("connection refused")}},
		{"malformed", &transport.Error{Kind: transport.KindMalformed, Err: errors.New("unexpected EOF")}},
		{"foreign", errors.New("boom")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := newFakeTransport(true)
			o := New(ft, WithInitialBackendOnline(true))
			o.StartScan(context.Background())
			ft.waitStarted(t)
			ft.results <- outcome{err: tt.err}
			o.Wait()

			s := o.State()
			assert.Equal(t, PhaseFailed, s.Phase)
			assert.False(t, s.BackendOnline)
			assert.Contains(t, s.ErrorMessage, tt.err.Error())
			assert.Contains(t, s.ErrorMessage, RemediationHint)
		})
	}
}

func TestStartScan_RecoversAfterFailure(t *testing.T) {
	ft := newFakeTransport(true)
	o := New(ft)

	o.StartScan(context.Background())
	ft.waitStarted(t)
	ft.results <- outcome{err: &transport.Error{Kind: transport.KindHTTPStatus, StatusCode: 500, Body: "boom"}}
	o.Wait()
	require.Equal(t, PhaseFailed, o.State().Phase)

	require.True(t, o.StartScan(context.Background()))
	s := o.State()
	assert.Equal(t, PhaseScanning, s.Phase)
	assert.Empty(t, s.ErrorMessage, "starting a scan clears the previous error")

	ft.waitStarted(t)
	ft.results <- outcome{res: twoDevices()}
	o.Wait()
	assert.Equal(t, PhaseComplete, o.State().Phase)
	assert.Equal(t, 2, ft.Calls())
}

func TestStartScan_ClearsPreviousDevices(t *testing.T) {
	ft := newFakeTransport(true)
	o := New(ft)

	o.StartScan(context.Background())
	ft.waitStarted(t)
	ft.results <- outcome{res: twoDevices()}
	o.Wait()
	require.Len(t, o.State().Devices, 2)

	o.StartScan(context.Background())
	assert.Empty(t, o.State().Devices)
	o.RequestCancel()
	o.Wait()
	assert.Empty(t, o.State().Devices, "canceled scans produce no partial results")
}

func TestSubscribe_DevicesReplacedAtomically(t *testing.T) {
	ft := newFakeTransport(true)
	o := New(ft)
	ch, stop := o.Subscribe()
	defer stop()

	first := <-ch
	assert.Equal(t, PhaseIdle, first.Phase, "first snapshot is the current state")

	var (
		seen = []State{first}
		done = make(chan struct{})
	)
	go func() {
		defer close(done)
		for s := range ch {
			seen = append(seen, s)
			if s.Phase == PhaseComplete {
				return
			}
		}
	}()

	o.StartScan(context.Background())
	ft.waitStarted(t)
	ft.results <- outcome{res: twoDevices()}
	o.Wait()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber never saw the complete snapshot")
	}

	assert.Equal(t, PhaseComplete, seen[len(seen)-1].Phase)
	for _, s := range seen {
		if n := len(s.Devices); n != 0 && n != 2 {
			t.Errorf("observed partial device list of %d in phase %s", n, s.Phase)
		}
		if s.Phase == PhaseScanning {
			assert.Empty(t, s.Devices)
		}
	}
	for i := 1; i < len(seen); i++ {
		assert.Greater(t, seen[i].Version, seen[i-1].Version)
	}
}

func TestSubscribe_SlowReaderGetsLatest(t *testing.T) {
	o := New(newFakeTransport(true))
	ch, stop := o.Subscribe()
	defer stop()

	for _, msg := range []string{"a", "b", "c"} {
		o.SetStatus(msg)
	}

	s := <-ch
	assert.Equal(t, "c", s.StatusMessage)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra snapshot %q", extra.StatusMessage)
	default:
	}
}

func TestSubscribe_UnsubscribeCloses(t *testing.T) {
	o := New(newFakeTransport(true))
	ch, stop := o.Subscribe()
	<-ch
	stop()
	stop()

	_, ok := <-ch
	assert.False(t, ok)
	o.SetStatus("after unsubscribe")
}

func TestOnComplete(t *testing.T) {
	ft := newFakeTransport(true)
	var got []models.ScanResult
	o := New(ft, WithOnComplete(func(r models.ScanResult) { got = append(got, r) }))

	o.StartScan(context.Background())
	ft.waitStarted(t)
	ft.results <- outcome{err: errors.New("down")}
	o.Wait()
	assert.Empty(t, got, "hook runs only for successful scans")

	o.StartScan(context.Background())
	ft.waitStarted(t)
	ft.results <- outcome{res: twoDevices()}
	o.Wait()
	require.Len(t, got, 1)
	assert.Equal(t, 7, got[0].Metadata.ScanID)
}

func TestHandleReleasedExactlyOnce(t *testing.T) {
	ft := newFakeTransport(true)
	o := New(ft)

	o.StartScan(context.Background())
	o.mu.Lock()
	h := o.inflight
	o.mu.Unlock()
	require.NotNil(t, h)
	assert.False(t, h.released)

	ft.waitStarted(t)
	o.RequestCancel()
	o.Wait()

	assert.True(t, h.released)
	assert.False(t, o.InFlight())
	h.release()
	assert.True(t, h.released)
}

func TestClose_CancelsInFlight(t *testing.T) {
	ft := newFakeTransport(true)
	o := New(ft)
	ch, _ := o.Subscribe()

	o.StartScan(context.Background())
	ft.waitStarted(t)
	o.Close()

	assert.Equal(t, PhaseCanceled, o.State().Phase)
	assert.False(t, o.StartScan(context.Background()), "closed orchestrator rejects scans")

	var last State
	for s := range ch {
		last = s
	}
	assert.Equal(t, PhaseCanceled, last.Phase)
}

func TestParentContextCancel(t *testing.T) {
	ft := newFakeTransport(true)
	o := New(ft)

	ctx, cancel := context.WithCancel(context.Background())
	o.StartScan(ctx)
	ft.waitStarted(t)
	cancel()
	o.Wait()

	assert.Equal(t, PhaseCanceled, o.State().Phase)
	assertInvariant(t, o)
}

func TestState_VersionIncreasesPerSnapshot(t *testing.T) {
	ft := newFakeTransport(true)
	o := New(ft)
	assert.Equal(t, uint64(0), o.State().Version)

	o.SetStatus("Copied IP 192.168.1.20")
	assert.Equal(t, uint64(1), o.State().Version)

	require.True(t, o.StartScan(context.Background()))
	assert.Equal(t, uint64(2), o.State().Version)

	ft.waitStarted(t)
	ft.results <- outcome{res: twoDevices()}
	o.Wait()
	assert.Equal(t, uint64(3), o.State().Version)

	// A rejected request publishes nothing.
	ft2 := newFakeTransport(true)
	o2 := New(ft2)
	require.True(t, o2.StartScan(context.Background()))
	ft2.waitStarted(t)
	v := o2.State().Version
	assert.False(t, o2.StartScan(context.Background()))
	assert.Equal(t, v, o2.State().Version)
	o2.Close()
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "scanning", PhaseScanning.String())
	assert.True(t, PhaseFailed.Terminal())
	assert.False(t, PhaseIdle.Terminal())
	assert.False(t, PhaseScanning.Terminal())
}
