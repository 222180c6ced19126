// Package virtualsensor implements a sensor whose outputs are defined at
// runtime by the clients feeding it.
//
// A client registers a result template (a schema plus an optional
// encoding) and receives an opaque template identifier of the form
// "{sensorID}#{outputName}". Records published against that identifier are
// delivered to the output channel's subscribers and, when configured, to a
// RecordPublisher such as NATS.
//
// Structurally identical schemas share one channel. Two schemas are the
// same shape when they have the same field names, kinds and definitions in
// the same order; the name of the root element does not count:
//
//	id, err := sensor.ResolveTemplate(schema, swe.TextEncoding())
//	if err != nil { ... }
//	err = sensor.Publish(ctx, id, swe.DataBlock{21.5})
//
// Publishing while the sensor is not started drops the records silently.
//
// The sensor keeps a self-description document listing every output. It
// is the only state that survives a restart:
//
//	if err := sensor.SaveState(ctx, store); err != nil { ... }
//	...
//	if err := restored.LoadState(ctx, store); err != nil { ... }
//
// After a load, channel names come from the document, so template
// identifiers issued before the restart stay valid.
package virtualsensor
