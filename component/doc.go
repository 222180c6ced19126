// Package component defines the lifecycle and discovery contract shared by
// long-running units such as virtual sensors.
//
// A component is created, initialized, started and stopped:
//
//	Initialize() error                  // setup only, no context
//	Start(ctx context.Context) error    // begin accepting work
//	Stop(timeout time.Duration) error   // graceful shutdown
//
// and describes itself through Discoverable: metadata, the ports it reads
// and writes, a configuration schema, health and data-flow figures.
//
// External collaborators arrive through Dependencies. Every field is
// optional; a nil logger falls back to slog.Default(), a nil metrics
// registry disables metrics and a nil NATS connection disables publishing.
package component
