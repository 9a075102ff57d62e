// ABOUTME: Prometheus metrics for position obfuscation
// ABOUTME: Counts served requests by level and outcome and tracks noise displacement

package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the obfuscation metrics.
type Collector struct {
	gatherer prometheus.Gatherer

	Obfuscations *prometheus.CounterVec
	APICalls     prometheus.Counter
	SourceErrors prometheus.Counter
	Displacement prometheus.Histogram
}

// NewCollector registers the metrics against reg, defaulting to the global
// registry when nil. Registering twice on one registry reuses the existing
// collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	obfuscations, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "locguard_obfuscations_total",
		Help: "Positions served, labeled by privacy level and outcome.",
	}, []string{"level", "outcome"}), "locguard_obfuscations_total")
	if err != nil {
		return nil, err
	}

	apiCalls, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "locguard_api_calls_total",
		Help: "Geolocation API calls observed.",
	}), "locguard_api_calls_total")
	if err != nil {
		return nil, err
	}

	sourceErrors, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "locguard_source_errors_total",
		Help: "True-position fetches that failed.",
	}), "locguard_source_errors_total")
	if err != nil {
		return nil, err
	}

	displacement, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "locguard_noise_displacement_meters",
		Help:    "Distance between the true and the served position.",
		Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 50000},
	}), "locguard_noise_displacement_meters")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:     gatherer,
		Obfuscations: obfuscations,
		APICalls:     apiCalls,
		SourceErrors: sourceErrors,
		Displacement: displacement,
	}, nil
}

// ObserveObfuscation records one served position.
func (c *Collector) ObserveObfuscation(level, outcome string, displacement float64) {
	if c == nil {
		return
	}
	c.Obfuscations.WithLabelValues(level, outcome).Inc()
	if outcome == "fresh" || outcome == "cached" {
		c.Displacement.Observe(displacement)
	}
}

// IncAPICalls counts one geolocation API call.
func (c *Collector) IncAPICalls() {
	if c == nil {
		return
	}
	c.APICalls.Inc()
}

// IncSourceErrors counts one failed fetch.
func (c *Collector) IncSourceErrors() {
	if c == nil {
		return
	}
	c.SourceErrors.Inc()
}

// Handler exposes a /metrics handler for the collector's registry.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T, name string) (T, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return c, nil
}
