package component

import (
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/c360/virtualsensor/metric"
)

// Dependencies carries the optional collaborators a component is built
// with. Any field may be nil.
type Dependencies struct {
	NATSConn        *nats.Conn
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
}

// GetLogger returns Logger, or slog.Default() when unset.
func (d *Dependencies) GetLogger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// GetLoggerWithComponent returns GetLogger tagged with a component attribute.
func (d *Dependencies) GetLoggerWithComponent(name string) *slog.Logger {
	return d.GetLogger().With("component", name)
}
