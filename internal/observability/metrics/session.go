// Package metrics provides custom Prometheus metrics for the wildwatch session controller
// and its integrations.
package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SessionMetrics contains all Prometheus metrics related to the detection session.
type SessionMetrics struct {
	TicksTotal        *prometheus.CounterVec
	InferenceDuration *prometheus.HistogramVec
	InferenceErrors   *prometheus.CounterVec
	DetectionsTotal   *prometheus.CounterVec
	ReportsTotal      *prometheus.CounterVec
	ReportDuration    prometheus.Histogram
	GateState         *prometheus.GaugeVec
	CameraActive      prometheus.Gauge
	CooldownActive    prometheus.Gauge

	registry *prometheus.Registry

	speciesMu sync.Mutex
	species   map[string]struct{}
}

// MaxSpeciesLabels caps the distinct species label values. Species names come from the
// inference service; once the cap is reached new ones are counted as OtherSpeciesLabel.
const MaxSpeciesLabels = 200

// OtherSpeciesLabel is the species label for detections past MaxSpeciesLabels.
const OtherSpeciesLabel = "other"

// Gate states exported as the gate_state label.
var gateStates = []string{"idle", "awaiting_capture", "photo_captured", "submitting", "cooldown"}

// NewSessionMetrics creates a new instance of SessionMetrics.
// It returns an error if metric registration fails.
func NewSessionMetrics(registry *prometheus.Registry) (*SessionMetrics, error) {
	m := &SessionMetrics{registry: registry, species: make(map[string]struct{})}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register session metrics: %w", err)
	}
	return m, nil
}

func (m *SessionMetrics) initMetrics() {
	m.TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wildwatch_sampler_ticks_total",
			Help: "Sampler ticks partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	m.InferenceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wildwatch_inference_duration_seconds",
			Help:    "Time taken by inference requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"source"},
	)

	m.InferenceErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wildwatch_inference_errors_total",
			Help: "Inference failures partitioned by source and error category",
		},
		[]string{"source", "category"},
	)

	m.DetectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wildwatch_detections_total",
			Help: "Selected detections partitioned by species and condition.",
		},
		[]string{"species", "condition"},
	)

	m.ReportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wildwatch_reports_total",
			Help: "Report submissions partitioned by source and status",
		},
		[]string{"source", "status"},
	)

	m.ReportDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "wildwatch_report_duration_seconds",
		Help:    "Time taken to submit a report",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 8),
	})

	m.GateState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wildwatch_report_gate_state",
			Help: "Current report gate state (1 for the active state)",
		},
		[]string{"state"},
	)

	m.CameraActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wildwatch_camera_active",
		Help: "Whether the camera session is active (1) or not (0)",
	})

	m.CooldownActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wildwatch_cooldown_active",
		Help: "Whether the post-report cooldown is in effect (1) or not (0)",
	})

	for _, s := range gateStates {
		m.GateState.WithLabelValues(s).Set(0)
	}
	m.GateState.WithLabelValues("idle").Set(1)
}

// RecordTick counts one sampler tick. Safe on a nil receiver.
func (m *SessionMetrics) RecordTick(outcome string) {
	if m == nil {
		return
	}
	m.TicksTotal.WithLabelValues(outcome).Inc()
}

// ObserveInference records an inference round trip; category is empty on success.
func (m *SessionMetrics) ObserveInference(source string, d time.Duration, category string) {
	if m == nil {
		return
	}
	m.InferenceDuration.WithLabelValues(source).Observe(d.Seconds())
	if category != "" {
		m.InferenceErrors.WithLabelValues(source, category).Inc()
	}
}

// RecordDetection counts a selected detection. condition should already be normalised
// to the known condition set.
func (m *SessionMetrics) RecordDetection(species, condition string) {
	if m == nil {
		return
	}
	m.DetectionsTotal.WithLabelValues(m.speciesLabel(species), condition).Inc()
}

func (m *SessionMetrics) speciesLabel(species string) string {
	m.speciesMu.Lock()
	defer m.speciesMu.Unlock()
	if _, ok := m.species[species]; ok {
		return species
	}
	if len(m.species) >= MaxSpeciesLabels {
		return OtherSpeciesLabel
	}
	m.species[species] = struct{}{}
	return species
}

// RecordReport records a submission attempt.
func (m *SessionMetrics) RecordReport(source, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.ReportsTotal.WithLabelValues(source, status).Inc()
	m.ReportDuration.Observe(d.Seconds())
}

// SetGateState marks state as the only active gate state.
func (m *SessionMetrics) SetGateState(state string) {
	if m == nil {
		return
	}
	for _, s := range gateStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.GateState.WithLabelValues(s).Set(v)
	}
	m.CooldownActive.Set(boolToFloat(state == "cooldown"))
}

// SetCameraActive updates the camera gauge.
func (m *SessionMetrics) SetCameraActive(active bool) {
	if m == nil {
		return
	}
	m.CameraActive.Set(boolToFloat(active))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Collect implements the prometheus.Collector interface.
func (m *SessionMetrics) Collect(ch chan<- prometheus.Metric) {
	m.TicksTotal.Collect(ch)
	m.InferenceDuration.Collect(ch)
	m.InferenceErrors.Collect(ch)
	m.DetectionsTotal.Collect(ch)
	m.ReportsTotal.Collect(ch)
	ch <- m.ReportDuration
	m.GateState.Collect(ch)
	ch <- m.CameraActive
	ch <- m.CooldownActive
}

// Describe implements the prometheus.Collector interface.
func (m *SessionMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.TicksTotal.Describe(ch)
	m.InferenceDuration.Describe(ch)
	m.InferenceErrors.Describe(ch)
	m.DetectionsTotal.Describe(ch)
	m.ReportsTotal.Describe(ch)
	ch <- m.ReportDuration.Desc()
	m.GateState.Describe(ch)
	ch <- m.CameraActive.Desc()
	ch <- m.CooldownActive.Desc()
}
