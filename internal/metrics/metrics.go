// Package metrics exposes controller gauges and counters to Prometheus.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tanks"

type Metrics struct {
	registry *prometheus.Registry

	levelPercent  *prometheus.GaugeVec
	readingValid  *prometheus.GaugeVec
	safetyEvents  *prometheus.CounterVec
	startDenials  *prometheus.CounterVec
	pumpState     *prometheus.GaugeVec
	emergencyStop prometheus.Gauge
	alertFailures prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		levelPercent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "level_percent",
			Help:      "Last estimated water level per tank.",
		}, []string{"tank_id"}),
		readingValid: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reading_valid",
			Help:      "1 when the last tank reading came from a fresh sensor read.",
		}, []string{"tank_id"}),
		safetyEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "safety_events_total",
			Help:      "Safety events emitted, by type.",
		}, []string{"type"}),
		startDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pump_start_denials_total",
			Help:      "Pump start requests refused, by reason.",
		}, []string{"reason"}),
		pumpState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pump_state",
			Help:      "1 for the current state of each pump.",
		}, []string{"pump_id", "state"}),
		emergencyStop: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "emergency_stop_active",
			Help:      "1 while the emergency latch is engaged.",
		}),
		alertFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_failures_total",
			Help:      "Emergency notifications that could not be delivered.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.levelPercent,
		m.readingValid,
		m.safetyEvents,
		m.startDenials,
		m.pumpState,
		m.emergencyStop,
		m.alertFailures,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveLevel(tankID string, percent float64, valid bool) {
	if m == nil {
		return
	}
	m.levelPercent.WithLabelValues(tankID).Set(percent)
	v := 0.0
	if valid {
		v = 1
	}
	m.readingValid.WithLabelValues(tankID).Set(v)
}

func (m *Metrics) SafetyEvent(eventType string) {
	if m == nil {
		return
	}
	m.safetyEvents.WithLabelValues(eventType).Inc()
}

func (m *Metrics) StartDenied(reason string) {
	if m == nil {
		return
	}
	m.startDenials.WithLabelValues(reason).Inc()
}

// PumpState marks state as current for pumpID and clears the other states.
func (m *Metrics) PumpState(pumpID, state string, allStates []string) {
	if m == nil {
		return
	}
	for _, s := range allStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.pumpState.WithLabelValues(pumpID, s).Set(v)
	}
}

func (m *Metrics) EmergencyStop(active bool) {
	if m == nil {
		return
	}
	if active {
		m.emergencyStop.Set(1)
	} else {
		m.emergencyStop.Set(0)
	}
}

func (m *Metrics) AlertFailed() {
	if m == nil {
		return
	}
	m.alertFailures.Inc()
}
