package virtualsensor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/virtualsensor/errors"
	"github.com/c360/virtualsensor/statestore"
	"github.com/c360/virtualsensor/swe"
)

// Record is one published data record as forwarded to a RecordPublisher.
type Record struct {
	SensorID   string        `json:"sensor_id"`
	Output     string        `json:"output"`
	TemplateID string        `json:"template_id"`
	Timestamp  time.Time     `json:"timestamp"`
	Values     swe.DataBlock `json:"values"`
}

// RecordPublisher forwards records outside the process.
type RecordPublisher interface {
	PublishRecord(ctx context.Context, rec Record) error
}

// Subject returns the NATS subject for an output: {prefix}.{sensor}.{output}.
// The sensor id and the output name are each reduced to a single subject
// token without wildcards.
func Subject(prefix, sensorID, output string) string {
	return fmt.Sprintf("%s.%s.%s", prefix,
		statestore.SanitizeNamespace(sensorID),
		statestore.SanitizeNamespace(output))
}

// NATSPublisher publishes records and sensor events as JSON on NATS.
// Records go to Subject(prefix, sensor, output); events go to
// {prefix}.{sensor}._events.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
	logger *slog.Logger
}

// NewNATSPublisher creates a publisher on nc.
func NewNATSPublisher(nc *nats.Conn, prefix string, logger *slog.Logger) *NATSPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSPublisher{nc: nc, prefix: prefix, logger: logger}
}

// PublishRecord publishes rec on its output subject.
func (p *NATSPublisher) PublishRecord(ctx context.Context, rec Record) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	nc := p.nc
	if nc == nil {
		return errors.WrapTransient(errors.ErrNoConnection, "NATSPublisher", "PublishRecord", "connection check")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return errors.WrapInvalid(err, "NATSPublisher", "PublishRecord", "record marshaling")
	}

	subject := Subject(p.prefix, rec.SensorID, rec.Output)
	if err := nc.Publish(subject, data); err != nil {
		return errors.WrapTransient(err, "NATSPublisher", "PublishRecord", fmt.Sprintf("publish to %s", subject))
	}
	return nil
}

// PublishEvent publishes ev on the sensor's event subject. Failures are
// logged, never returned.
func (p *NATSPublisher) PublishEvent(ev Event) {
	nc := p.nc
	if nc == nil {
		return
	}

	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("Failed to marshal sensor event", "error", err, "type", ev.Type)
		return
	}

	subject := Subject(p.prefix, ev.SensorID, "_events")
	if err := nc.Publish(subject, data); err != nil {
		p.logger.Error("Failed to publish sensor event to NATS", "error", err, "subject", subject)
	}
}
