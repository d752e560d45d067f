// Package availability tracks up/down state for the three remote services the
// conversation engine depends on (speech recognition, NPC dialogue, speech
// synthesis).
//
// The [Monitor] is a deliberately simple breaker: a probe marks a service up
// or down from one short health check, and any gateway that sees a call fail
// flips the flag down immediately via [Monitor.MarkDown]. There is no timed
// half-open recovery — a downed service stays down until the next explicit
// [Monitor.ProbeAll]. Gateways consult [Monitor.IsAvailable] before every
// call and short-circuit without a network attempt when the flag is down.
//
// All methods are safe for concurrent use.
package availability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/ekivoice/internal/observe"
)

// Kind identifies one of the three monitored services.
type Kind string

const (
	// KindASR is the speech recognition service.
	KindASR Kind = "asr"

	// KindDialogue is the NPC dialogue generation service.
	KindDialogue Kind = "dialogue"

	// KindSynthesis is the text-to-speech service.
	KindSynthesis Kind = "synthesis"
)

// String returns the service label used in logs and metrics.
func (k Kind) String() string { return string(k) }

// healthPaths maps each service to its health endpoint. The dialogue service
// is versioned; the audio services are not.
var healthPaths = map[Kind]string{
	KindASR:       "/health",
	KindDialogue:  "/api/v1/health",
	KindSynthesis: "/health",
}

// defaultProbeTimeout bounds a single health check.
const defaultProbeTimeout = time.Second

// Endpoint declares one monitored service.
type Endpoint struct {
	Kind    Kind
	BaseURL string
}

// Status is a point-in-time snapshot of one service's state.
type Status struct {
	Kind        Kind
	BaseURL     string
	Available   bool
	LastChecked time.Time
}

// state is the mutable per-service record, guarded by Monitor.mu.
type state struct {
	baseURL     string
	available   bool
	lastChecked time.Time
}

// Option is a functional option for configuring a [Monitor].
type Option func(*Monitor)

// WithProbeTimeout overrides the per-probe timeout. Defaults to 1 s.
func WithProbeTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		m.probeTimeout = d
	}
}

// WithHTTPClient replaces the HTTP client used for probes.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Monitor) {
		m.httpClient = c
	}
}

// WithMetrics sets the metrics sink for probe outcomes. Defaults to
// [observe.DefaultMetrics] when unset.
func WithMetrics(met *observe.Metrics) Option {
	return func(m *Monitor) {
		m.metrics = met
	}
}

// Monitor owns the availability flags for the three services. Services start
// out unavailable until the first [Monitor.ProbeAll].
type Monitor struct {
	probeTimeout time.Duration
	httpClient   *http.Client
	metrics      *observe.Metrics

	mu    sync.RWMutex
	svcs  map[Kind]*state
	order []Kind
}

// NewMonitor creates a [Monitor] for the given endpoints. Endpoint order is
// preserved for [Monitor.Snapshot] and [Monitor.StatusLine].
func NewMonitor(endpoints []Endpoint, opts ...Option) *Monitor {
	m := &Monitor{
		probeTimeout: defaultProbeTimeout,
		httpClient:   &http.Client{},
		svcs:         make(map[Kind]*state, len(endpoints)),
	}
	for _, ep := range endpoints {
		m.svcs[ep.Kind] = &state{baseURL: strings.TrimRight(ep.BaseURL, "/")}
		m.order = append(m.order, ep.Kind)
	}
	for _, o := range opts {
		o(m)
	}
	if m.metrics == nil {
		m.metrics = observe.DefaultMetrics()
	}
	return m
}

// ProbeAll health-checks every endpoint in parallel and updates the flags
// from the results: HTTP 200 means available, any other status or transport
// error means unavailable. Returns true when all services are up.
func (m *Monitor) ProbeAll(ctx context.Context) bool {
	g, ctx := errgroup.WithContext(ctx)
	for _, kind := range m.order {
		g.Go(func() error {
			up := m.probe(ctx, kind)
			m.metrics.RecordProbe(ctx, kind.String(), up)
			m.set(kind, up)
			return nil
		})
	}
	_ = g.Wait() // probes never return errors, they record state

	all := true
	for _, kind := range m.order {
		if !m.IsAvailable(kind) {
			all = false
		}
	}
	slog.Info("service probe complete", "all_available", all)
	return all
}

// probe issues one bounded health check and reports whether it passed.
func (m *Monitor) probe(ctx context.Context, kind Kind) bool {
	m.mu.RLock()
	base := m.svcs[kind].baseURL
	m.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+healthPaths[kind], nil)
	if err != nil {
		return false
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		slog.Debug("health probe failed", "service", kind, "err", err)
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// set records a probe result, logging state transitions.
func (m *Monitor) set(kind Kind, up bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.svcs[kind]
	if !ok {
		return
	}
	if s.available != up {
		if up {
			slog.Info("service recovered", "service", kind)
		} else {
			slog.Warn("service unavailable", "service", kind)
		}
	}
	s.available = up
	s.lastChecked = time.Now()
}

// IsAvailable reports the cached availability flag for kind. It never
// triggers a network attempt.
func (m *Monitor) IsAvailable(kind Kind) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.svcs[kind]
	return ok && s.available
}

// MarkDown flips kind to unavailable immediately. Gateways call this on any
// transport failure, timeout, or malformed response so subsequent calls
// short-circuit without waiting for the next probe cycle. Recovery requires
// an explicit [Monitor.ProbeAll].
func (m *Monitor) MarkDown(kind Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.svcs[kind]
	if !ok {
		return
	}
	if s.available {
		slog.Warn("service marked down after failed call", "service", kind)
	}
	s.available = false
	s.lastChecked = time.Now()
}

// BaseURL returns the configured base URL for kind, or "" for an unknown
// kind.
func (m *Monitor) BaseURL(kind Kind) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.svcs[kind]
	if !ok {
		return ""
	}
	return s.baseURL
}

// Snapshot returns the current state of every monitored service in
// registration order.
func (m *Monitor) Snapshot() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Status, 0, len(m.order))
	for _, kind := range m.order {
		s := m.svcs[kind]
		out = append(out, Status{
			Kind:        kind,
			BaseURL:     s.baseURL,
			Available:   s.available,
			LastChecked: s.lastChecked,
		})
	}
	return out
}

// statusMessages maps each downed service to its user-visible notice.
var statusMessages = map[Kind]string{
	KindASR:       "Speech recognition unavailable.",
	KindDialogue:  "NPC AI unavailable.",
	KindSynthesis: "Text-to-speech unavailable.",
}

// StatusLine formats the user-visible degradation notice: the message for the
// first unavailable service in registration order, or "" when everything is
// up.
func (m *Monitor) StatusLine() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, kind := range m.order {
		if !m.svcs[kind].available {
			if msg, ok := statusMessages[kind]; ok {
				return msg
			}
			return fmt.Sprintf("Service %s unavailable.", kind)
		}
	}
	return ""
}
