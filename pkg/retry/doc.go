// Package retry runs an operation with exponential backoff until it
// succeeds, fails with a non-transient error, or runs out of attempts.
//
// Retry decisions follow the errors package: an error classified as
// invalid or fatal ends the loop at once, anything else is retried.
//
// The daemon uses it to reach NATS and Redis at startup:
//
//	nc, err := retry.DoWithResult(ctx, retry.Quick(), func(ctx context.Context) (*nats.Conn, error) {
//	    return nats.Connect(url)
//	})
//
// Persisting the sensor description is never retried here; callers of
// SaveState decide for themselves.
package retry
