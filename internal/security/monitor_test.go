package security

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMonitor(thresholds map[EventCategory]int) *Monitor {
	return NewMonitor(MonitorConfig{Thresholds: thresholds}, nil, slog.Default())
}

func TestMonitor_RecordIncrementsGlobalAndPerKey(t *testing.T) {
	m := newTestMonitor(nil)

	m.Record(EventFailedLogin, "1.2.3.4", "email:a@example.com")
	m.Record(EventFailedLogin, "1.2.3.4")

	assert.Equal(t, 2, m.Count(EventFailedLogin, "1.2.3.4"))
	assert.Equal(t, 1, m.Count(EventFailedLogin, "email:a@example.com"))
	assert.Equal(t, 0, m.Count(EventRateLimitHit, "1.2.3.4"))
}

func TestMonitor_AlertAtThresholdIsMediumAndFiresOnce(t *testing.T) {
	m := newTestMonitor(map[EventCategory]int{EventFailedLogin: 10})

	var alerts []Alert
	m.OnAlert(func(a Alert) { alerts = append(alerts, a) })

	for i := 0; i < 10; i++ {
		m.Record(EventFailedLogin, "1.2.3.4")
	}

	require.Len(t, alerts, 1)
	assert.Equal(t, SeverityMedium, alerts[0].Severity)
	assert.Equal(t, 10, alerts[0].Count)
	assert.Equal(t, "1.2.3.4", alerts[0].Key)
}

func TestMonitor_ThresholdOfOneStillEscalatesToCritical(t *testing.T) {
	m := newTestMonitor(map[EventCategory]int{EventFailedLogin: 1})

	var alerts []Alert
	m.OnAlert(func(a Alert) { alerts = append(alerts, a) })

	// Clamped to 2: medium at 2, high at 3, critical at 4.
	for i := 0; i < 4; i++ {
		m.Record(EventFailedLogin, "1.2.3.4")
	}

	require.Len(t, alerts, 3)
	assert.Equal(t, SeverityMedium, alerts[0].Severity)
	assert.Equal(t, SeverityHigh, alerts[1].Severity)
	assert.Equal(t, SeverityCritical, alerts[2].Severity)
	assert.Equal(t, 4, alerts[2].Count)
}

func TestMonitor_SeverityEscalation(t *testing.T) {
	m := newTestMonitor(map[EventCategory]int{EventFailedLogin: 10})

	var alerts []Alert
	m.OnAlert(func(a Alert) { alerts = append(alerts, a) })

	// 20 events: medium at 10, high at 15 (1.5x), critical at 20 (2x)
	for i := 0; i < 20; i++ {
		m.Record(EventFailedLogin, "1.2.3.4")
	}

	require.Len(t, alerts, 3)
	assert.Equal(t, SeverityMedium, alerts[0].Severity)
	assert.Equal(t, SeverityHigh, alerts[1].Severity)
	assert.Equal(t, 15, alerts[1].Count)
	assert.Equal(t, SeverityCritical, alerts[2].Severity)
	assert.Equal(t, 20, alerts[2].Count)
}

func TestMonitor_CallbackPanicIsContained(t *testing.T) {
	m := newTestMonitor(map[EventCategory]int{EventFailedLogin: 1})

	m.OnAlert(func(Alert) { panic("boom") })

	var delivered bool
	m.OnAlert(func(Alert) { delivered = true })

	assert.NotPanics(t, func() {
		// Threshold 1 is clamped to 2, so two events are needed to fire.
		m.Record(EventFailedLogin, "1.2.3.4")
		m.Record(EventFailedLogin, "1.2.3.4")
	})
	assert.True(t, delivered)
}

func TestMonitor_ResetOnSuccessClearsFailedLoginKeys(t *testing.T) {
	m := newTestMonitor(nil)

	m.Record(EventFailedLogin, "1.2.3.4", "email:a@example.com")
	m.Record(EventFailedLogin, "1.2.3.4")

	m.ResetOnSuccess("1.2.3.4", "email:a@example.com")

	assert.Equal(t, 0, m.Count(EventFailedLogin, "1.2.3.4"))
	assert.Equal(t, 0, m.Count(EventFailedLogin, "email:a@example.com"))
}

func TestMonitor_AlertBufferBounded(t *testing.T) {
	m := newTestMonitor(map[EventCategory]int{EventInvalidToken: 1})

	// Every event from a fresh key lands exactly on the threshold tier
	for i := 0; i < maxAlerts+50; i++ {
		m.Record(EventInvalidToken, string(rune('a'+i%26))+"-"+time.Now().String())
	}

	assert.LessOrEqual(t, len(m.Alerts()), maxAlerts)
}

func TestMonitor_SweepZeroesStaleCounters(t *testing.T) {
	m := newTestMonitor(nil)

	m.Record(EventFailedLogin, "1.2.3.4")
	counter := m.counters[EventFailedLogin]
	counter.lastUpdated = time.Now().Add(-25 * time.Hour)

	m.Sweep()

	assert.Equal(t, 0, m.Count(EventFailedLogin, "1.2.3.4"))
}

func TestMonitor_SweepPrunesOldAlerts(t *testing.T) {
	m := newTestMonitor(map[EventCategory]int{EventFailedLogin: 1})

	// Threshold 1 is clamped to 2, so two events are needed to fire.
	m.Record(EventFailedLogin, "1.2.3.4")
	m.Record(EventFailedLogin, "1.2.3.4")
	require.Len(t, m.Alerts(), 1)

	m.mu.Lock()
	m.alerts[0].Timestamp = time.Now().Add(-8 * 24 * time.Hour)
	m.mu.Unlock()

	m.Sweep()
	assert.Empty(t, m.Alerts())
}

func TestMonitor_ConcurrentRecord(t *testing.T) {
	m := newTestMonitor(map[EventCategory]int{EventFailedLogin: 1000})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m.Record(EventFailedLogin, "1.2.3.4")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1000, m.Count(EventFailedLogin, "1.2.3.4"))
}
