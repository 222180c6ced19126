// Package errors provides standardized error handling for virtual sensor components.
//
// # Overview
//
// Errors fall into three classes: Transient (temporary, retryable), Invalid
// (bad input or a contract violation by the caller, do not retry) and Fatal
// (unrecoverable for the current operation).
//
// The virtual sensor maps its failure modes onto these classes:
//
//   - Publishing to an unknown template identifier is Invalid
//     (wraps ErrUnknownTemplate).
//   - Saving or loading persisted state is Fatal; the error message carries
//     the module identity so operators can find the failing sensor.
//   - A missing persisted document is not an error at all; stores report it
//     with ErrKeyNotFound and the loader starts from empty state.
//
// # Usage
//
//	if err := store.Put(ctx, key, data); err != nil {
//	    return errors.WrapFatal(err, "Sensor", "SaveState", "write description")
//	}
//
//	if errors.IsInvalid(err) {
//	    // upstream protocol violation, report to the client
//	}
//
// Wrapped errors keep the chain intact, so errors.Is against the sentinels
// works through Wrap, WrapTransient, WrapInvalid and WrapFatal.
package errors
