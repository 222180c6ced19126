package metric

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/c360/virtualsensor/errors"
)

// Namespace prefixes every metric owned by this module.
const Namespace = "virtualsensor"

// Registrar is implemented by registries that accept per-owner collectors.
type Registrar interface {
	RegisterCounterVec(owner, name string, vec *prometheus.CounterVec) error
	RegisterGaugeVec(owner, name string, vec *prometheus.GaugeVec) error
	RegisterHistogramVec(owner, name string, vec *prometheus.HistogramVec) error
	Unregister(owner, name string) bool
}

// ownedMetric identifies a collector by the component that registered it.
type ownedMetric struct {
	owner string
	name  string
}

func (k ownedMetric) String() string { return k.owner + "." + k.name }

// MetricsRegistry wraps a Prometheus registry holding the core sensor
// metrics, the Go runtime collectors and any per-sensor collectors.
type MetricsRegistry struct {
	// Metrics is registered on construction.
	Metrics *Metrics

	prom *prometheus.Registry

	mu    sync.Mutex
	owned map[ownedMetric]prometheus.Collector
}

// NewMetricsRegistry creates a registry with the core sensor metrics and
// the Go runtime collectors registered.
func NewMetricsRegistry() *MetricsRegistry {
	r := &MetricsRegistry{
		Metrics: NewMetrics(),
		prom:    prometheus.NewRegistry(),
		owned:   map[ownedMetric]prometheus.Collector{},
	}
	r.prom.MustRegister(r.Metrics.collectors()...)
	r.prom.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// PrometheusRegistry exposes the registry for gathering.
func (r *MetricsRegistry) PrometheusRegistry() *prometheus.Registry { return r.prom }

// CoreMetrics returns the metrics every sensor reports into.
func (r *MetricsRegistry) CoreMetrics() *Metrics { return r.Metrics }

// RegisterCounterVec registers vec under owner and name.
func (r *MetricsRegistry) RegisterCounterVec(owner, name string, vec *prometheus.CounterVec) error {
	return r.add(ownedMetric{owner, name}, vec, "RegisterCounterVec")
}

// RegisterGaugeVec registers vec under owner and name.
func (r *MetricsRegistry) RegisterGaugeVec(owner, name string, vec *prometheus.GaugeVec) error {
	return r.add(ownedMetric{owner, name}, vec, "RegisterGaugeVec")
}

// RegisterHistogramVec registers vec under owner and name.
func (r *MetricsRegistry) RegisterHistogramVec(owner, name string, vec *prometheus.HistogramVec) error {
	return r.add(ownedMetric{owner, name}, vec, "RegisterHistogramVec")
}

// add fails with an invalid-input error when the key is taken or when
// Prometheus already holds a collector with the same descriptor.
func (r *MetricsRegistry) add(key ownedMetric, c prometheus.Collector, op string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.owned[key]; taken {
		return errors.WrapInvalid(fmt.Errorf("metric %s already registered", key),
			"MetricsRegistry", op, "owner check")
	}

	err := r.prom.Register(c)
	var dup prometheus.AlreadyRegisteredError
	switch {
	case err == nil:
		r.owned[key] = c
		return nil
	case stderrors.As(err, &dup):
		return errors.WrapInvalid(err, "MetricsRegistry", op, "collector conflict for "+key.String())
	default:
		return errors.WrapFatal(err, "MetricsRegistry", op, "prometheus register")
	}
}

// Unregister removes the collector registered under owner and name and
// reports whether anything was removed.
func (r *MetricsRegistry) Unregister(owner, name string) bool {
	key := ownedMetric{owner, name}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.owned[key]
	if !ok || !r.prom.Unregister(c) {
		return false
	}
	delete(r.owned, key)
	return true
}
