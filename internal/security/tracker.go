package security

import (
	"log/slog"
	"sync"
	"time"
)

// FailedAttemptTracker counts failed emergency-access attempts per source IP
// within a rolling window. It is a detection heuristic, not an authorization
// record: state is in-process only and acceptable to lose on restart.
// Blocking is left to the rate limiter; the tracker only raises warnings.
type FailedAttemptTracker struct {
	mu      sync.Mutex
	entries map[string]*attemptEntry

	window    time.Duration
	threshold int
	monitor   *Monitor
	logger    *slog.Logger
}

type attemptEntry struct {
	count        int
	firstAttempt time.Time
	warned       bool
}

// NewFailedAttemptTracker creates a tracker. With the zero values the window
// is 5 minutes and the warning threshold 5 attempts. monitor may be nil.
func NewFailedAttemptTracker(window time.Duration, threshold int, monitor *Monitor, logger *slog.Logger) *FailedAttemptTracker {
	if window <= 0 {
		window = 5 * time.Minute
	}
	if threshold <= 0 {
		threshold = 5
	}
	return &FailedAttemptTracker{
		entries:   make(map[string]*attemptEntry),
		window:    window,
		threshold: threshold,
		monitor:   monitor,
		logger:    logger,
	}
}

// RecordFailure increments the counter for an IP and returns the count within
// the current window. Crossing the threshold logs a security warning and
// records a suspicious-activity event once per window.
func (t *FailedAttemptTracker) RecordFailure(ip string) int {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[ip]
	if !ok || now.Sub(entry.firstAttempt) > t.window {
		entry = &attemptEntry{firstAttempt: now}
		t.entries[ip] = entry
	}
	entry.count++

	if entry.count >= t.threshold && !entry.warned {
		entry.warned = true
		t.logger.Warn("repeated failed emergency access attempts",
			slog.String("ip_address", ip),
			slog.Int("attempts", entry.count),
			slog.Duration("window", t.window),
		)
		if t.monitor != nil {
			t.monitor.Record(EventSuspiciousActivity, ip)
		}
	}

	return entry.count
}

// Count returns the number of failures recorded for an IP within the current
// window.
func (t *FailedAttemptTracker) Count(ip string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[ip]
	if !ok || time.Since(entry.firstAttempt) > t.window {
		return 0
	}
	return entry.count
}

// Reset clears the counter for an IP.
func (t *FailedAttemptTracker) Reset(ip string) {
	t.mu.Lock()
	delete(t.entries, ip)
	t.mu.Unlock()
}

// Purge drops entries whose window has elapsed. Called by the periodic sweep.
func (t *FailedAttemptTracker) Purge() int {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for ip, entry := range t.entries {
		if now.Sub(entry.firstAttempt) > t.window {
			delete(t.entries, ip)
			removed++
		}
	}
	return removed
}
