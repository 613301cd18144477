package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pthm-cable/flowfield/systems"
)

// Metrics exports build counters. Label values are bounded to the phase names.
type Metrics struct {
	builds        prometheus.Counter
	buildErrors   prometheus.Counter
	phaseDuration *prometheus.HistogramVec
	cells         prometheus.Counter
	emptyCells    prometheus.Counter
	degenerate    prometheus.Counter
	resolution    prometheus.Gauge
	meanMagnitude prometheus.Gauge
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		builds: f.NewCounter(prometheus.CounterOpts{
			Name: "flowfield_builds_total",
			Help: "Completed flow field builds",
		}),
		buildErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "flowfield_build_errors_total",
			Help: "Builds rejected by validation",
		}),
		phaseDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flowfield_phase_duration_seconds",
			Help:    "Time spent per build phase",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"phase"}), // resolve, blur, total
		cells: f.NewCounter(prometheus.CounterOpts{
			Name: "flowfield_cells_resolved_total",
			Help: "Grid cells resolved across all builds",
		}),
		emptyCells: f.NewCounter(prometheus.CounterOpts{
			Name: "flowfield_empty_cells_total",
			Help: "Cells with no obstacle in range",
		}),
		degenerate: f.NewCounter(prometheus.CounterOpts{
			Name: "flowfield_degenerate_contributions_total",
			Help: "Obstacle contributions that fell back to a zero direction",
		}),
		resolution: f.NewGauge(prometheus.GaugeOpts{
			Name: "flowfield_resolution",
			Help: "Grid edge length of the last build",
		}),
		meanMagnitude: f.NewGauge(prometheus.GaugeOpts{
			Name: "flowfield_mean_magnitude",
			Help: "Mean direction magnitude of the last build",
		}),
	}
}

// ObserveBuild records a successful build.
func (m *Metrics) ObserveBuild(bs systems.BuildStats, fs FieldStats) {
	if m == nil {
		return
	}
	m.builds.Inc()
	m.phaseDuration.WithLabelValues("resolve").Observe(bs.ResolveDuration.Seconds())
	if bs.BlurDuration > 0 {
		m.phaseDuration.WithLabelValues("blur").Observe(bs.BlurDuration.Seconds())
	}
	m.phaseDuration.WithLabelValues("total").Observe(bs.TotalDuration.Seconds())
	m.cells.Add(float64(bs.Cells))
	m.emptyCells.Add(float64(bs.EmptyCells))
	m.degenerate.Add(float64(bs.Degenerate))
	m.resolution.Set(float64(bs.Resolution))
	m.meanMagnitude.Set(fs.MeanMag)
}

// ObserveError records a rejected build.
func (m *Metrics) ObserveError() {
	if m == nil {
		return
	}
	m.buildErrors.Inc()
}
