package component

import "time"

// Discoverable is implemented by components that describe themselves at
// runtime.
type Discoverable interface {
	Meta() Metadata
	InputPorts() []Port
	OutputPorts() []Port
	ConfigSchema() ConfigSchema
	Health() HealthStatus
	DataFlow() FlowMetrics
}

// Metadata identifies a component.
type Metadata struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

// ConfigSchema lists the configuration properties a component accepts.
type ConfigSchema struct {
	Properties map[string]PropertySchema `json:"properties"`
	Required   []string                  `json:"required"`
}

// PropertySchema describes one configuration property. Type is one of
// "string", "int", "bool" or "enum"; Category is "basic" or "advanced".
type PropertySchema struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Default     any      `json:"default,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Category    string   `json:"category,omitempty"`
}

// HealthStatus is a component's own view of its health.
type HealthStatus struct {
	Healthy    bool          `json:"healthy"`
	LastCheck  time.Time     `json:"last_check"`
	ErrorCount int           `json:"error_count"`
	LastError  string        `json:"last_error,omitempty"`
	Uptime     time.Duration `json:"uptime"`
}

// FlowMetrics summarizes records through a component since it started.
type FlowMetrics struct {
	RecordsPerSecond float64   `json:"records_per_second"`
	ErrorRate        float64   `json:"error_rate"`
	LastActivity     time.Time `json:"last_activity"`
}
