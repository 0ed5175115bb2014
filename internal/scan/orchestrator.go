// Package scan owns the scan lifecycle: at most one request in flight,
// cooperative cancellation, and an immutable State snapshot published on
// every transition.
package scan

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/lu-zhengda/netpulse/internal/logging"
	"github.com/lu-zhengda/netpulse/internal/models"
	"github.com/lu-zhengda/netpulse/internal/transport"
	"github.com/sirupsen/logrus"
)

// Transport performs one backend scan.
type Transport interface {
	RequestScan(ctx context.Context) (models.ScanResult, error)
}

// handle is the cancellation token of the scan in flight.
type handle struct {
	id       string
	cancel   context.CancelFunc
	once     sync.Once
	released bool
}

// release frees the handle's context. Safe to call repeatedly; only the
// first call has an effect.
func (h *handle) release() {
	h.once.Do(func() {
		h.cancel()
		h.released = true
	})
}

type Orchestrator struct {
	transport  Transport
	log        logrus.FieldLogger
	onComplete func(models.ScanResult)

	mu       sync.Mutex
	state    State
	inflight *handle
	subs     map[chan State]struct{}
	closed   bool
	wg       sync.WaitGroup
}

type Option func(*Orchestrator)

func WithLogger(l logrus.FieldLogger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// WithOnComplete registers a hook run after every successful scan, outside
// the orchestrator lock.
func WithOnComplete(fn func(models.ScanResult)) Option {
	return func(o *Orchestrator) { o.onComplete = fn }
}

// WithInitialBackendOnline seeds the backend-online flag, e.g. from a
// startup health probe.
func WithInitialBackendOnline(online bool) Option {
	return func(o *Orchestrator) { o.state.BackendOnline = online }
}

func New(t Transport, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		transport: t,
		log:       logging.Discard(),
		state: State{
			Phase:         PhaseIdle,
			StatusMessage: msgReady,
		},
		subs: make(map[chan State]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current snapshot.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// InFlight reports whether a scan handle is held.
func (o *Orchestrator) InFlight() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inflight != nil
}

// StartScan begins a scan unless one is already running. It returns false,
// without touching state or the transport, when the request is rejected.
// The transport call runs on its own goroutine; ctx bounds it.
func (o *Orchestrator) StartScan(ctx context.Context) bool {
	o.mu.Lock()
	if o.closed || o.state.Phase == PhaseScanning {
		phase := o.state.Phase
		o.mu.Unlock()
		o.log.WithField("phase", phase).Debug("scan request rejected")
		return false
	}

	scanCtx, cancel := context.WithCancel(ctx)
	h := &handle{id: uuid.NewString(), cancel: cancel}
	o.inflight = h

	next := o.state
	next.Phase = PhaseScanning
	next.ErrorMessage = ""
	next.Devices = nil
	next.StatusMessage = msgScanning
	o.commit(next)

	o.wg.Add(1)
	o.mu.Unlock()

	o.log.WithField("scan_handle", h.id).Info("scan started")
	go o.run(scanCtx, h)
	return true
}

func (o *Orchestrator) run(ctx context.Context, h *handle) {
	defer o.wg.Done()
	res, err := o.transport.RequestScan(ctx)
	o.finish(h, res, err)
}

// finish applies the transport's resolution. Whatever the transport
// reports wins, so a success that races a cancel request is kept.
func (o *Orchestrator) finish(h *handle, res models.ScanResult, err error) {
	o.mu.Lock()
	if o.inflight != h {
		o.mu.Unlock()
		return
	}
	o.inflight = nil
	h.release()

	next := o.state
	log := o.log.WithField("scan_handle", h.id)
	switch {
	case err == nil:
		next.Phase = PhaseComplete
		next.Devices = slices.Clone(res.Devices)
		next.StatusMessage = fmt.Sprintf("Scan %d complete: %d hosts discovered",
			res.Metadata.ScanID, res.Metadata.HostCount)
		next.BackendOnline = true
		meta := res.Metadata
		next.LastScan = &meta
		log = log.WithFields(logrus.Fields{"scan_id": meta.ScanID, "hosts": meta.HostCount})
	case isCancellation(err):
		next.Phase = PhaseCanceled
		next.StatusMessage = msgCanceled
	default:
		next.Phase = PhaseFailed
		next.ErrorMessage = err.Error() + "\n" + RemediationHint
		next.StatusMessage = msgFailed
		next.BackendOnline = false
		log = log.WithError(err).WithField("kind", transport.KindOf(err))
	}
	o.commit(next)
	hook := o.onComplete
	o.mu.Unlock()

	log.WithField("phase", next.Phase).Info("scan finished")
	if err == nil && hook != nil {
		hook(res)
	}
}

func isCancellation(err error) bool {
	return transport.IsCanceled(err) || errors.Is(err, context.Canceled)
}

// RequestCancel signals the scan in flight. The phase only changes once the
// transport observes the signal and resolves. It is a no-op when idle.
func (o *Orchestrator) RequestCancel() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Phase != PhaseScanning || o.inflight == nil {
		return false
	}
	o.inflight.cancel()
	o.log.WithField("scan_handle", o.inflight.id).Info("scan cancel requested")
	return true
}

// SetStatus replaces the status message, e.g. after a clipboard copy.
func (o *Orchestrator) SetStatus(msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	next := o.state
	next.StatusMessage = msg
	o.commit(next)
}

// Subscribe returns a channel of snapshots, starting with the current one.
// Each subscriber buffers one snapshot; a slow reader skips intermediate
// snapshots but always receives the latest. The returned func unsubscribes
// and closes the channel.
func (o *Orchestrator) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	o.subs[ch] = struct{}{}
	ch <- o.state
	o.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			if _, ok := o.subs[ch]; ok {
				delete(o.subs, ch)
				close(ch)
			}
		})
	}
}

// Wait blocks until no scan goroutine is outstanding.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Close cancels any scan in flight, waits for it to resolve and closes all
// subscriptions. Further StartScan calls are rejected.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	if o.inflight != nil {
		o.inflight.cancel()
	}
	o.mu.Unlock()

	o.wg.Wait()

	o.mu.Lock()
	defer o.mu.Unlock()
	for ch := range o.subs {
		delete(o.subs, ch)
		close(ch)
	}
}

// commit installs next and publishes it. Callers hold o.mu.
func (o *Orchestrator) commit(next State) {
	next.Version = o.state.Version + 1
	o.state = next
	for ch := range o.subs {
		select {
		case ch <- next:
		default:
			// Replace the stale snapshot. Sends only happen under o.mu,
			// so the second send cannot block.
			select {
			case <-ch:
			default:
			}
			ch <- next
		}
	}
}
