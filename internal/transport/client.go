package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lu-zhengda/netpulse/internal/logging"
	"github.com/lu-zhengda/netpulse/internal/models"
	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds a whole request, independent of caller cancellation.
const DefaultTimeout = 95 * time.Second

const (
	scanPath   = "/scan/devices"
	healthPath = "/health"

	// maxErrorBody caps how much of a non-2xx body is kept in the error.
	maxErrorBody = 64 * 1024
)

// Client talks to the device-discovery backend.
type Client struct {
	baseURL   string
	timeout   time.Duration
	http      *http.Client
	log       logrus.FieldLogger
	userAgent string
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New creates a Client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		timeout:   DefaultTimeout,
		http:      &http.Client{},
		log:       logging.Discard(),
		userAgent: "netpulse",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// RequestScan issues one POST /scan/devices and decodes the result.
// Every failure is returned as *Error. Canceling ctx yields KindCanceled.
func (c *Client) RequestScan(ctx context.Context) (models.ScanResult, error) {
	var body scanResponseJSON
	reqID, err := c.do(ctx, http.MethodPost, scanPath, &body)
	if err != nil {
		return models.ScanResult{}, err
	}
	if body.Scan == nil {
		return models.ScanResult{}, &Error{
			Kind:      KindMalformed,
			RequestID: reqID,
			Err:       errors.New(`missing "scan" object`),
		}
	}

	res := body.toModel()
	c.log.WithFields(logrus.Fields{
		"request_id": reqID,
		"scan_id":    res.Metadata.ScanID,
		"hosts":      res.Metadata.HostCount,
	}).Info("scan response decoded")
	return res, nil
}

// Health describes the backend's /health response.
type Health struct {
	Status  string
	Service string
}

// Health queries GET /health with the same error classification as RequestScan.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var body healthJSON
	if _, err := c.do(ctx, http.MethodGet, healthPath, &body); err != nil {
		return Health{}, err
	}
	return Health{Status: body.Status, Service: body.Service}, nil
}

func (c *Client) do(parent context.Context, method, path string, out any) (string, error) {
	reqID := uuid.NewString()
	log := c.log.WithFields(logrus.Fields{"request_id": reqID, "path": path})

	if err := parent.Err(); err != nil {
		return reqID, c.classify(parent, reqID, err)
	}

	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return reqID, &Error{Kind: KindConnectivity, RequestID: reqID, Err: fmt.Errorf("failed to build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	log.Debug("sending request")
	resp, err := c.http.Do(req)
	if err != nil {
		te := c.classify(parent, reqID, err)
		log.WithField("kind", te.Kind).Warn("request failed")
		return reqID, te
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if err != nil && parent.Err() != nil {
			return reqID, c.classify(parent, reqID, err)
		}
		log.WithField("status", resp.StatusCode).Warn("backend rejected request")
		return reqID, &Error{
			Kind:       KindHTTPStatus,
			StatusCode: resp.StatusCode,
			Body:       string(raw),
			RequestID:  reqID,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if parent.Err() != nil || ctx.Err() != nil {
			return reqID, c.classify(parent, reqID, err)
		}
		if errors.Is(err, io.EOF) {
			err = errors.New("empty response body")
		}
		return reqID, &Error{Kind: KindMalformed, RequestID: reqID, Err: err}
	}
	return reqID, nil
}

// classify separates caller cancellation from network failure. The
// request deadline counts as connectivity, not cancellation.
func (c *Client) classify(parent context.Context, reqID string, err error) *Error {
	if errors.Is(parent.Err(), context.Canceled) {
		return &Error{Kind: KindCanceled, RequestID: reqID, Err: context.Canceled}
	}
	return &Error{Kind: KindConnectivity, RequestID: reqID, Err: err}
}
