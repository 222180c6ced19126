// Package metric provides the Prometheus registry and HTTP endpoint shared by
// virtual sensors.
//
// A MetricsRegistry owns a private prometheus.Registry pre-loaded with the
// core sensor metrics (lifecycle state, published records, dropped records)
// plus the Go runtime and process collectors. Components register their own
// collectors under a "{service}.{metric}" key so duplicates are rejected
// before Prometheus sees them:
//
//	registry := metric.NewMetricsRegistry()
//	records := prometheus.NewCounterVec(opts, []string{"output"})
//	if err := registry.RegisterCounterVec(sensorID, "records", records); err != nil {
//	    return err
//	}
//
// Components accept a nil *MetricsRegistry and skip metrics entirely in
// that case.
//
// Server exposes the registry over HTTP:
//
//	server := metric.NewServer(9090, "/metrics", registry)
//	go func() {
//	    if err := server.Start(); err != nil {
//	        logger.Error("metrics server failed", "error", err)
//	    }
//	}()
//	defer server.Stop()
package metric
