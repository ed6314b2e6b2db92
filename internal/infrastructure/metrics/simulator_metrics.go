// Package metrics holds the Prometheus collectors of the simulator.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Resolution outcomes used as the "outcome" label.
const (
	OutcomeKnown    = "known"
	OutcomeFallback = "fallback"
)

// SimulatorMetrics contains Prometheus metrics for simulated traffic and
// user ID resolution.
type SimulatorMetrics struct {
	Resolutions       *prometheus.CounterVec
	DirectoryUsers    prometheus.Gauge
	SimulatedRequests *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
}

// NewSimulatorMetrics creates and registers simulator metrics with the given registerer.
func NewSimulatorMetrics(registerer prometheus.Registerer) *SimulatorMetrics {
	metrics := &SimulatorMetrics{
		Resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dwidmapper_resolutions_total",
				Help: "Total number of userName to userID resolutions",
			},
			[]string{"outcome"}, // outcome: known/fallback
		),
		DirectoryUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dwidmapper_directory_users",
			Help: "Number of users in the loaded directory",
		}),
		SimulatedRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dwidmapper_simulated_requests_total",
				Help: "Total number of simulated requests served",
			},
			[]string{"route", "method", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dwidmapper_simulated_request_duration_seconds",
				Help:    "Time spent serving a simulated request",
				Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
			},
			[]string{"route"},
		),
	}

	registerer.MustRegister(
		metrics.Resolutions,
		metrics.DirectoryUsers,
		metrics.SimulatedRequests,
		metrics.RequestDuration,
	)

	return metrics
}

// ObserveRequest records one served simulated request.
func (m *SimulatorMetrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	m.SimulatedRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveResolution records one resolution.
func (m *SimulatorMetrics) ObserveResolution(fallback bool) {
	outcome := OutcomeKnown
	if fallback {
		outcome = OutcomeFallback
	}
	m.Resolutions.WithLabelValues(outcome).Inc()
}

// SetDirectorySize records the number of loaded users.
func (m *SimulatorMetrics) SetDirectorySize(n int) {
	m.DirectoryUsers.Set(float64(n))
}
