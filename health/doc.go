// Package health turns component health into aggregated, sanitized status
// reports and serves them over HTTP.
//
// A Monitor holds the latest Status per component. The daemon refreshes it
// from each component's component.HealthStatus through FromComponentHealth,
// which strips URLs, paths, addresses and credentials from error messages
// before they leave the process.
//
// Aggregation rules:
//
//   - any unhealthy sub-status makes the aggregate unhealthy
//   - otherwise any degraded sub-status makes it degraded
//   - otherwise it is healthy
//
// Handler answers 200 for healthy and degraded systems and 503 for
// unhealthy ones, with the aggregate as a JSON body.
package health
