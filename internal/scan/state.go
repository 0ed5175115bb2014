package scan

import "github.com/lu-zhengda/netpulse/internal/models"

// Phase is the lifecycle position of the orchestrator.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseScanning
	PhaseComplete
	PhaseCanceled
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseScanning:
		return "scanning"
	case PhaseComplete:
		return "complete"
	case PhaseCanceled:
		return "canceled"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether p is the outcome of a finished scan.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseCanceled || p == PhaseFailed
}

const (
	msgReady    = "Ready to scan"
	msgScanning = "Scanning local network..."
	msgCanceled = "Scan canceled"
	msgFailed   = "Scan failed"

	// RemediationHint is appended to every failure message.
	RemediationHint = "Tip: Start backend with `uvicorn app.main:app --port 8787`"
)

// State is an immutable snapshot of the orchestrator. Devices must not be
// modified by receivers.
type State struct {
	Phase         Phase
	StatusMessage string
	ErrorMessage  string
	Devices       []models.Device
	BackendOnline bool
	// LastScan is the metadata of the most recent successful scan.
	LastScan *models.ScanMetadata
	// Version increases with every published snapshot.
	Version uint64
}

// Scanning is shorthand for Phase == PhaseScanning.
func (s State) Scanning() bool {
	return s.Phase == PhaseScanning
}
