package security

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics mirrors the monitor's counters into Prometheus so security events
// show up on dashboards alongside request metrics.
type Metrics struct {
	EventsTotal          *prometheus.CounterVec
	AlertsTotal          *prometheus.CounterVec
	EmergencyAccessTotal *prometheus.CounterVec
	RegistryLookups      *prometheus.CounterVec
}

// NewMetrics registers the security metric families on the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		EventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vida_security_events_total",
			Help: "Total number of security events recorded, by category",
		}, []string{"category"}),
		AlertsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vida_security_alerts_total",
			Help: "Total number of security alerts raised, by category and severity",
		}, []string{"category", "severity"}),
		EmergencyAccessTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vida_emergency_access_total",
			Help: "Total number of emergency access requests, by outcome and trust level",
		}, []string{"outcome", "trust_level"}),
		RegistryLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vida_registry_lookups_total",
			Help: "Total number of license verification lookups, by source",
		}, []string{"source"}),
	}
}
