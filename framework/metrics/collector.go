package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/km-arc/go-component/framework/container"
)

// Collector is the Prometheus implementation of container.Observer.
//
// A nil *Collector is valid and records nothing, so callers can hold one
// unconditionally and skip construction when metrics are disabled.
type Collector struct {
	registry *prometheus.Registry

	buildDuration *prometheus.HistogramVec
	startDuration *prometheus.HistogramVec
	stopDuration  *prometheus.HistogramVec
	failures      *prometheus.CounterVec
	up            *prometheus.GaugeVec
}

var _ container.Observer = (*Collector)(nil)

// New creates a Collector registering its series on reg. A nil reg gets a
// fresh registry that also carries the Go and process collectors.
//
//	collector := metrics.New("inventory", nil)
//	repo := container.NewRepository(container.WithObserver(collector))
func New(namespace string, reg *prometheus.Registry) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		buildDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "component_build_duration_seconds",
				Help:      "Time spent in component build functions",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"type_id"},
		),
		startDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "component_start_duration_seconds",
				Help:      "Time spent in component Start calls",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"type_id"},
		),
		stopDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "component_stop_duration_seconds",
				Help:      "Time spent in component Stop calls",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"type_id"},
		),
		failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "component_failures_total",
				Help:      "Failed build, start and stop calls by component",
			},
			[]string{"type_id", "phase"}, // "build", "start", "stop"
		),
		up: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "component_up",
				Help:      "1 while a component with a Start hook is running",
			},
			[]string{"type_id"},
		),
	}
}

// Registry returns the registry the collector writes to.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) ComponentBuilt(id container.TypeID, took time.Duration, err error) {
	if c == nil {
		return
	}
	c.buildDuration.WithLabelValues(string(id)).Observe(took.Seconds())
	if err != nil {
		c.failures.WithLabelValues(string(id), "build").Inc()
	}
}

func (c *Collector) ComponentStarted(id container.TypeID, took time.Duration, err error) {
	if c == nil {
		return
	}
	c.startDuration.WithLabelValues(string(id)).Observe(took.Seconds())
	if err != nil {
		c.failures.WithLabelValues(string(id), "start").Inc()
		return
	}
	c.up.WithLabelValues(string(id)).Set(1)
}

func (c *Collector) ComponentStopped(id container.TypeID, took time.Duration, err error) {
	if c == nil {
		return
	}
	c.stopDuration.WithLabelValues(string(id)).Observe(took.Seconds())
	if err != nil {
		c.failures.WithLabelValues(string(id), "stop").Inc()
	}
	c.up.WithLabelValues(string(id)).Set(0)
}
