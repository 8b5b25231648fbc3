// Package security holds the in-process security controls around the
// emergency-access path: timing normalization, failed-attempt tracking and
// threshold-based event monitoring.
package security

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// EventCategory identifies a class of security-relevant events. Each category
// owns an independent counter.
type EventCategory string

const (
	EventFailedLogin            EventCategory = "failed_login"
	EventRateLimitHit           EventCategory = "rate_limit_hit"
	EventInvalidToken           EventCategory = "invalid_token"
	EventMFAFailure             EventCategory = "mfa_failure"
	EventSuspiciousActivity     EventCategory = "suspicious_activity"
	EventEmergencyAccessDenied  EventCategory = "emergency_access_denied"
	EventEmergencyAccessGranted EventCategory = "emergency_access_granted"
)

// AlertSeverity escalates with the per-key count relative to the threshold.
type AlertSeverity string

const (
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// Alert is raised when a per-key count crosses a severity tier.
type Alert struct {
	Category  EventCategory `json:"category"`
	Key       string        `json:"key"`
	Count     int           `json:"count"`
	Severity  AlertSeverity `json:"severity"`
	Timestamp time.Time     `json:"timestamp"`
}

// AlertCallback receives alerts synchronously. Panics and errors inside
// callbacks are contained; telemetry must never take down the request path.
type AlertCallback func(Alert)

const (
	maxAlerts        = 1000
	counterStaleAge  = 24 * time.Hour
	alertRetention   = 7 * 24 * time.Hour
	defaultThreshold = 10
)

// categoryCounter tracks one event category: a global count plus per-key
// breakdown (key is an IP, "email:x" or "user:x").
type categoryCounter struct {
	total       int
	perKey      map[string]int
	lastUpdated time.Time
	threshold   int
}

// Monitor counts security events per category and raises threshold alerts.
// Construct one per process and share it; all methods are safe for concurrent
// use.
type Monitor struct {
	mu        sync.Mutex
	counters  map[EventCategory]*categoryCounter
	alerts    []Alert
	callbacks []AlertCallback

	metrics *Metrics
	logger  *slog.Logger

	sweepInterval time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
}

// MonitorConfig sets per-category alert thresholds; categories not listed use
// the default of 10. Thresholds below 2 are raised to 2 so the three severity
// tiers land on distinct counts.
type MonitorConfig struct {
	Thresholds    map[EventCategory]int
	SweepInterval time.Duration
}

// NewMonitor creates a security monitor. metrics may be nil when Prometheus
// exposure is not wanted (tests).
func NewMonitor(config MonitorConfig, metrics *Metrics, logger *slog.Logger) *Monitor {
	if config.SweepInterval <= 0 {
		config.SweepInterval = time.Hour
	}

	categories := []EventCategory{
		EventFailedLogin,
		EventRateLimitHit,
		EventInvalidToken,
		EventMFAFailure,
		EventSuspiciousActivity,
		EventEmergencyAccessDenied,
		EventEmergencyAccessGranted,
	}

	counters := make(map[EventCategory]*categoryCounter, len(categories))
	for _, category := range categories {
		threshold := defaultThreshold
		if t, ok := config.Thresholds[category]; ok && t > 0 {
			threshold = t
		}
		if threshold < 2 {
			// At 1 the high and critical tiers collapse onto the same count.
			threshold = 2
		}
		counters[category] = &categoryCounter{
			perKey:    make(map[string]int),
			threshold: threshold,
		}
	}

	return &Monitor{
		counters:      counters,
		alerts:        make([]Alert, 0, 64),
		metrics:       metrics,
		logger:        logger,
		sweepInterval: config.SweepInterval,
		stopCh:        make(chan struct{}),
	}
}

// OnAlert registers a callback invoked for every raised alert.
func (m *Monitor) OnAlert(cb AlertCallback) {
	m.mu.Lock()
	m.callbacks = append(m.callbacks, cb)
	m.mu.Unlock()
}

// Record increments the counter for a category. keys typically holds the
// source IP and optionally an identity key such as "email:x" or "user:x";
// each key is counted and checked against the threshold independently.
func (m *Monitor) Record(category EventCategory, keys ...string) {
	counter, ok := m.counters[category]
	if !ok {
		return
	}

	if m.metrics != nil {
		m.metrics.EventsTotal.WithLabelValues(string(category)).Inc()
	}

	var raised []Alert

	m.mu.Lock()
	counter.total++
	counter.lastUpdated = time.Now()
	for _, key := range keys {
		if key == "" {
			continue
		}
		counter.perKey[key]++
		if alert, ok := tierAlert(category, key, counter.perKey[key], counter.threshold); ok {
			raised = append(raised, alert)
			m.appendAlertLocked(alert)
		}
	}
	callbacks := make([]AlertCallback, len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mu.Unlock()

	for _, alert := range raised {
		m.logger.Warn("security alert",
			slog.String("category", string(alert.Category)),
			slog.String("key", alert.Key),
			slog.Int("count", alert.Count),
			slog.String("severity", string(alert.Severity)),
		)
		if m.metrics != nil {
			m.metrics.AlertsTotal.WithLabelValues(string(alert.Category), string(alert.Severity)).Inc()
		}
		for _, cb := range callbacks {
			m.dispatch(cb, alert)
		}
	}
}

// tierAlert reports whether count has exactly reached a severity tier. Alerts
// fire once per tier crossing, not on every event past the threshold.
func tierAlert(category EventCategory, key string, count, threshold int) (Alert, bool) {
	var severity AlertSeverity
	switch count {
	case threshold:
		severity = SeverityMedium
	case (threshold*3 + 1) / 2: // ceil(1.5x)
		severity = SeverityHigh
	case threshold * 2:
		severity = SeverityCritical
	default:
		return Alert{}, false
	}

	return Alert{
		Category:  category,
		Key:       key,
		Count:     count,
		Severity:  severity,
		Timestamp: time.Now(),
	}, true
}

// dispatch invokes one callback, containing panics.
func (m *Monitor) dispatch(cb AlertCallback, alert Alert) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("alert callback panicked", slog.Any("panic", r))
		}
	}()
	cb(alert)
}

func (m *Monitor) appendAlertLocked(alert Alert) {
	if len(m.alerts) >= maxAlerts {
		// Drop the oldest to keep the buffer bounded
		m.alerts = m.alerts[1:]
	}
	m.alerts = append(m.alerts, alert)
}

// ResetOnSuccess clears failed-login counters for the given keys. A user who
// mistypes a password a few times and then succeeds should not keep inching
// toward an alert.
func (m *Monitor) ResetOnSuccess(keys ...string) {
	counter := m.counters[EventFailedLogin]

	m.mu.Lock()
	for _, key := range keys {
		delete(counter.perKey, key)
	}
	m.mu.Unlock()
}

// Count returns the per-key count for a category. Used by tests and the
// admin surface.
func (m *Monitor) Count(category EventCategory, key string) int {
	counter, ok := m.counters[category]
	if !ok {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return counter.perKey[key]
}

// Alerts returns a snapshot of the retained alerts, newest last.
func (m *Monitor) Alerts() []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Alert, len(m.alerts))
	copy(out, m.alerts)
	return out
}

// Start runs the periodic sweep until the context is cancelled or Stop is
// called.
func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Sweep()
		case <-m.stopCh:
			m.logger.Info("security monitor stopped")
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop signals the sweep loop to exit.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// Sweep zeroes counters idle for more than 24h and prunes alerts older than
// 7 days.
func (m *Monitor) Sweep() {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, counter := range m.counters {
		if counter.total > 0 && now.Sub(counter.lastUpdated) > counterStaleAge {
			counter.total = 0
			counter.perKey = make(map[string]int)
		}
	}

	cutoff := now.Add(-alertRetention)
	kept := m.alerts[:0]
	for _, alert := range m.alerts {
		if alert.Timestamp.After(cutoff) {
			kept = append(kept, alert)
		}
	}
	m.alerts = kept
}
