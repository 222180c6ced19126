package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the sensor metrics that every deployment exposes.
type Metrics struct {
	SensorState      *prometheus.GaugeVec
	Outputs          *prometheus.GaugeVec
	StateSaves       *prometheus.CounterVec
	StateLoads       *prometheus.CounterVec
	DescriptionEdits *prometheus.CounterVec
}

// NewMetrics creates the core metric set.
func NewMetrics() *Metrics {
	return &Metrics{
		SensorState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "sensor",
				Name:      "state",
				Help:      "Sensor lifecycle state (0=created, 1=initialized, 2=started, 3=stopped, 4=failed)",
			},
			[]string{"sensor"},
		),
		Outputs: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "sensor",
				Name:      "outputs",
				Help:      "Number of output channels registered on the sensor",
			},
			[]string{"sensor"},
		),
		StateSaves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "state",
				Name:      "saves_total",
				Help:      "Persisted state saves by result",
			},
			[]string{"sensor", "status"},
		),
		StateLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "state",
				Name:      "loads_total",
				Help:      "Persisted state loads by result",
			},
			[]string{"sensor", "status"},
		),
		DescriptionEdits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "description",
				Name:      "changes_total",
				Help:      "Sensor description replacements",
			},
			[]string{"sensor"},
		),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.SensorState,
		m.Outputs,
		m.StateSaves,
		m.StateLoads,
		m.DescriptionEdits,
	}
}

// RecordSensorState records the numeric lifecycle state of a sensor.
func (m *Metrics) RecordSensorState(sensor string, state int) {
	m.SensorState.WithLabelValues(sensor).Set(float64(state))
}

// RecordOutputs records how many channels a sensor has.
func (m *Metrics) RecordOutputs(sensor string, n int) {
	m.Outputs.WithLabelValues(sensor).Set(float64(n))
}

// RecordStateSave counts a save attempt; status is "success" or "error".
func (m *Metrics) RecordStateSave(sensor, status string) {
	m.StateSaves.WithLabelValues(sensor, status).Inc()
}

// RecordStateLoad counts a load attempt; status is "success", "empty" or "error".
func (m *Metrics) RecordStateLoad(sensor, status string) {
	m.StateLoads.WithLabelValues(sensor, status).Inc()
}

// RecordDescriptionChange counts a description replacement.
func (m *Metrics) RecordDescriptionChange(sensor string) {
	m.DescriptionEdits.WithLabelValues(sensor).Inc()
}
