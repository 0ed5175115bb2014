// Package mockbackend serves canned scan results with the same JSON shape as
// the real discovery backend. It backs the mock-backend command and the HTTP
// tests.
package mockbackend

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Host is a canned device returned by every scan.
type Host struct {
	IP       string
	MAC      string
	Hostname string
	Vendor   string
}

// Config controls the canned responses.
type Config struct {
	Subnet string
	Hosts  []Host
	// Delay holds each scan open; a canceled request stops waiting.
	Delay time.Duration
	// FailStatus, when non-zero, makes every scan fail with FailBody.
	FailStatus int
	FailBody   string
	// RawBody, when set, is written verbatim with status 200.
	RawBody string
}

// DefaultHosts is a small home network.
var DefaultHosts = []Host{
	{IP: "192.168.1.1", MAC: "a4:91:b1:00:00:01", Hostname: "router.lan", Vendor: "Technicolor"},
	{IP: "192.168.1.20", MAC: "f0:18:98:3c:11:aa", Hostname: "macbook.lan", Vendor: "Apple"},
	{IP: "192.168.1.37", MAC: "b8:27:eb:45:67:89", Vendor: "Raspberry Pi Foundation"},
	{IP: "192.168.1.52", MAC: "3c:5a:b4:12:34:56"},
}

type Server struct {
	mu       sync.Mutex
	cfg      Config
	nextID   int
	scanning bool
	seen     map[string]time.Time
	requests int
	lastReq  string
	log      logrus.FieldLogger
	now      func() time.Time
}

func New(cfg Config, log logrus.FieldLogger) *Server {
	if cfg.Subnet == "" {
		cfg.Subnet = "192.168.1.0/24"
	}
	if cfg.Hosts == nil {
		cfg.Hosts = DefaultHosts
	}
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	return &Server{
		cfg:    cfg,
		nextID: 1,
		seen:   make(map[string]time.Time),
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Router returns the HTTP routes of the backend.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/scan/devices", s.handleScan).Methods(http.MethodPost)
	return r
}

// Requests returns how many scan requests were received.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// LastRequestID returns the X-Request-ID of the latest scan request.
func (s *Server) LastRequestID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReq
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "netpulse-backend"})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests++
	s.lastReq = r.Header.Get("X-Request-ID")
	if s.scanning {
		s.mu.Unlock()
		writeJSON(w, http.StatusConflict, map[string]string{"detail": "A scan is already running."})
		return
	}
	s.scanning = true
	id := s.nextID
	s.nextID++
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.scanning = false
		s.mu.Unlock()
	}()

	log := s.log.WithFields(logrus.Fields{"scan_id": id, "request_id": r.Header.Get("X-Request-ID")})
	start := s.now()

	if s.cfg.Delay > 0 {
		select {
		case <-time.After(s.cfg.Delay):
		case <-r.Context().Done():
			log.Info("client went away")
			return
		}
	}

	if s.cfg.FailStatus != 0 {
		log.WithField("status", s.cfg.FailStatus).Info("failing scan")
		w.WriteHeader(s.cfg.FailStatus)
		_, _ = w.Write([]byte(s.cfg.FailBody))
		return
	}
	if s.cfg.RawBody != "" {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(s.cfg.RawBody))
		return
	}

	resp := s.buildResponse(id, start)
	log.WithField("hosts", len(resp.Devices)).Info("scan complete")
	writeJSON(w, http.StatusOK, resp)
}

type scanResponse struct {
	Scan    scanMeta    `json:"scan"`
	Devices []deviceDTO `json:"devices"`
}

type scanMeta struct {
	ScanID    int       `json:"scan_id"`
	Subnet    string    `json:"subnet"`
	TsStart   time.Time `json:"ts_start"`
	TsEnd     time.Time `json:"ts_end"`
	HostCount int       `json:"host_count"`
}

type deviceDTO struct {
	IP        string    `json:"ip"`
	MAC       string    `json:"mac"`
	Hostname  *string   `json:"hostname"`
	Vendor    *string   `json:"vendor"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	IsNew     bool      `json:"is_new"`
}

func (s *Server) buildResponse(id int, start time.Time) scanResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	devices := make([]deviceDTO, 0, len(s.cfg.Hosts))
	for _, h := range s.cfg.Hosts {
		ts := s.now()
		first, known := s.seen[h.MAC]
		if !known {
			first = ts
			s.seen[h.MAC] = ts
		}
		devices = append(devices, deviceDTO{
			IP:        h.IP,
			MAC:       h.MAC,
			Hostname:  optional(h.Hostname),
			Vendor:    optional(h.Vendor),
			FirstSeen: first,
			LastSeen:  ts,
			IsNew:     !known,
		})
	}
	return scanResponse{
		Scan: scanMeta{
			ScanID:    id,
			Subnet:    s.cfg.Subnet,
			TsStart:   start,
			TsEnd:     s.now(),
			HostCount: len(devices),
		},
		Devices: devices,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
