// Package virtualsensor is the root of a virtual sensor service: a sensor
// with no hardware behind it whose outputs are created on demand from the
// result templates clients register.
//
// # How it fits together
//
// A client registers a record structure (and optionally a wire encoding)
// and gets back a template identifier. The first registration of a given
// structure creates a named output channel; every later registration of an
// equal structure, even under another root name, gets the same channel
// back. Records published with the identifier fan out to the channel's
// subscribers and, when NATS is configured, onto a subject per output.
//
//	sensor, _ := virtualsensor.NewSensor(virtualsensor.Config{ID: "urn:osh:sensor:virtual01"}, deps)
//	id, _ := sensor.ResolveTemplate(schema, swe.TextEncoding())
//	_ = sensor.Publish(ctx, id, swe.DataBlock{time, 21.5})
//
// The sensor keeps a self-description document listing every output. The
// document is what gets persisted, so channel names and template
// identifiers survive a restart.
//
// # Packages
//
// Domain:
//   - swe: record structures, encodings, data blocks and features of interest
//   - fingerprint: structural digests of a structure plus encoding
//   - description: the self-description document and its synchronizer
//   - codec: JSON, CBOR and YAML encodings of the document
//   - virtualsensor: template registry, output channels, lifecycle, persistence
//
// Infrastructure:
//   - statestore: all-or-nothing keyed state on a directory, NATS KV, Redis or memory
//   - component: lifecycle, ports and discovery contracts
//   - metric: Prometheus registry and HTTP endpoint
//   - health: aggregated, sanitized health reports
//   - errors: transient, invalid and fatal error classification
//   - pkg/retry: backoff for transient startup failures
//
// The cmd/virtualsensor daemon wires a sensor to a state store, NATS and the
// metrics endpoint, restores the description on start and saves it on
// shutdown.
package virtualsensor
