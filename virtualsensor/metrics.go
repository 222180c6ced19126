package virtualsensor

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/virtualsensor/component"
	"github.com/c360/virtualsensor/metric"
)

// sensorMetrics holds Prometheus metrics for one sensor. A nil
// *sensorMetrics is valid and records nothing.
type sensorMetrics struct {
	sensorID string
	core     *metric.Metrics

	recordsPublished *prometheus.CounterVec // By output
	recordsDropped   *prometheus.CounterVec // By reason
	publishErrors    *prometheus.CounterVec // By output
	templates        *prometheus.CounterVec
	featureChanges   *prometheus.CounterVec // By output
}

// newSensorMetrics creates and registers sensor metrics with the provided registry.
func newSensorMetrics(registry *metric.MetricsRegistry, sensorID string) (*sensorMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	labels := prometheus.Labels{"sensor": sensorID}
	m := &sensorMetrics{
		sensorID: sensorID,
		core:     registry.CoreMetrics(),

		recordsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "records",
			Name:        "published_total",
			Help:        "Records delivered to an output channel",
			ConstLabels: labels,
		}, []string{"output"}),

		recordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "records",
			Name:        "dropped_total",
			Help:        "Records discarded without delivery",
			ConstLabels: labels,
		}, []string{"reason"}), // reason: not_started

		publishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "records",
			Name:        "publish_errors_total",
			Help:        "Records the record publisher failed to forward",
			ConstLabels: labels,
		}, []string{"output"}),

		templates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "templates",
			Name:        "registered_total",
			Help:        "Result templates registered",
			ConstLabels: labels,
		}, []string{}),

		featureChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "records",
			Name:        "feature_changes_total",
			Help:        "Feature of interest changes per output",
			ConstLabels: labels,
		}, []string{"output"}),
	}

	vecs := []struct {
		name string
		vec  *prometheus.CounterVec
	}{
		{"records_published", m.recordsPublished},
		{"records_dropped", m.recordsDropped},
		{"publish_errors", m.publishErrors},
		{"templates_registered", m.templates},
		{"feature_changes", m.featureChanges},
	}
	for _, v := range vecs {
		if err := registry.RegisterCounterVec(sensorID, v.name, v.vec); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *sensorMetrics) recordPublished(output string, n int) {
	if m == nil {
		return
	}
	m.recordsPublished.WithLabelValues(output).Add(float64(n))
}

func (m *sensorMetrics) recordDropped(reason string, n int) {
	if m == nil {
		return
	}
	m.recordsDropped.WithLabelValues(reason).Add(float64(n))
}

func (m *sensorMetrics) recordPublishError(output string) {
	if m == nil {
		return
	}
	m.publishErrors.WithLabelValues(output).Inc()
}

func (m *sensorMetrics) recordTemplate() {
	if m == nil {
		return
	}
	m.templates.WithLabelValues().Inc()
}

func (m *sensorMetrics) recordFeatureChange(output string) {
	if m == nil {
		return
	}
	m.featureChanges.WithLabelValues(output).Inc()
}

func (m *sensorMetrics) recordState(state component.State) {
	if m == nil {
		return
	}
	m.core.RecordSensorState(m.sensorID, int(state))
}

func (m *sensorMetrics) recordOutputs(n int) {
	if m == nil {
		return
	}
	m.core.RecordOutputs(m.sensorID, n)
}

func (m *sensorMetrics) recordSave(status string) {
	if m == nil {
		return
	}
	m.core.RecordStateSave(m.sensorID, status)
}

func (m *sensorMetrics) recordLoad(status string) {
	if m == nil {
		return
	}
	m.core.RecordStateLoad(m.sensorID, status)
}

func (m *sensorMetrics) recordDescriptionChange() {
	if m == nil {
		return
	}
	m.core.RecordDescriptionChange(m.sensorID)
}
