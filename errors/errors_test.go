package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClass_String(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
	assert.Equal(t, "unknown", ErrorClass(42).String())
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
		fatal     bool
		invalid   bool
		class     ErrorClass
	}{
		{name: "nil", err: nil, class: ErrorTransient},
		{name: "no connection", err: ErrNoConnection, transient: true, class: ErrorTransient},
		{name: "deadline", err: context.DeadlineExceeded, transient: true, class: ErrorTransient},
		{name: "network text", err: fmt.Errorf("network unreachable"), transient: true, class: ErrorTransient},
		{name: "invalid config", err: ErrInvalidConfig, fatal: true, class: ErrorFatal},
		{name: "corrupted", err: fmt.Errorf("read: %w", ErrDataCorrupted), fatal: true, class: ErrorFatal},
		{name: "disk full text", err: fmt.Errorf("write: disk full"), fatal: true, class: ErrorFatal},
		{name: "unknown template", err: ErrUnknownTemplate, invalid: true, class: ErrorInvalid},
		{name: "unknown output wrapped", err: fmt.Errorf("lookup: %w", ErrUnknownOutput), invalid: true, class: ErrorInvalid},
		{name: "key not found", err: ErrKeyNotFound, class: ErrorTransient},
		{name: "unknown", err: fmt.Errorf("something odd"), class: ErrorTransient},
		{
			name:    "classification beats text",
			err:     WrapInvalid(fmt.Errorf("connection string malformed"), "Store", "Open", "parse"),
			invalid: true,
			class:   ErrorInvalid,
		},
		{
			name:  "outermost classification wins",
			err:   WrapFatal(WrapTransient(ErrNoConnection, "Store", "Read", "dial"), "Sensor", "LoadState", "open"),
			fatal: true,
			class: ErrorFatal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.transient, IsTransient(tt.err), "IsTransient")
			assert.Equal(t, tt.fatal, IsFatal(tt.err), "IsFatal")
			assert.Equal(t, tt.invalid, IsInvalid(tt.err), "IsInvalid")
			assert.Equal(t, tt.class, Classify(tt.err), "Classify")
		})
	}
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "Sensor", "SaveState", "encode"))

	err := Wrap(ErrStreamClosed, "Sensor", "SaveState", "encode description")
	assert.EqualError(t, err, "Sensor.SaveState: encode description failed: stream already closed")
	assert.True(t, errors.Is(err, ErrStreamClosed))
}

func TestWrapClassified(t *testing.T) {
	tests := []struct {
		name  string
		wrap  func(error, string, string, string) error
		class ErrorClass
	}{
		{"transient", WrapTransient, ErrorTransient},
		{"fatal", WrapFatal, ErrorFatal},
		{"invalid", WrapInvalid, ErrorInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, tt.wrap(nil, "c", "m", "a"))

			err := tt.wrap(ErrKeyNotFound, "KVStore", "InputStream", "get")
			var ce *ClassifiedError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.class, ce.Class)
			assert.Equal(t, "KVStore", ce.Component)
			assert.Equal(t, "InputStream", ce.Operation)
			assert.Equal(t, "KVStore.InputStream: get failed: key not found", ce.Error())
			assert.True(t, errors.Is(err, ErrKeyNotFound))
		})
	}
}

func TestClassifiedError_MessageFallback(t *testing.T) {
	ce := &ClassifiedError{Class: ErrorFatal, Err: ErrDataCorrupted}
	assert.Equal(t, "data corrupted", ce.Error())
	assert.Same(t, ErrDataCorrupted, ce.Unwrap())
}

func BenchmarkClassify(b *testing.B) {
	err := fmt.Errorf("read state: %w", ErrKeyNotFound)
	for i := 0; i < b.N; i++ {
		Classify(err)
	}
}
