package component

import (
	"context"
	"time"
)

// State is a position in the component lifecycle.
type State int

// Lifecycle states, in the order a component normally passes through them.
const (
	StateCreated State = iota
	StateInitialized
	StateStarted
	StateStopped
)

var stateNames = [...]string{
	StateCreated:     "created",
	StateInitialized: "initialized",
	StateStarted:     "started",
	StateStopped:     "stopped",
}

// String returns the lower-case state name, or "unknown".
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// LifecycleComponent is a Discoverable with explicit lifecycle control.
// Initialize does setup only; Start begins accepting work; Stop returns
// once the component is quiescent or the timeout expires.
type LifecycleComponent interface {
	Discoverable
	Initialize() error
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
}
