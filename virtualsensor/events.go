package virtualsensor

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies what changed on a sensor.
type EventType string

// Sensor event types
const (
	EventDescriptionChanged EventType = "description_changed"
	EventOutputAdded        EventType = "output_added"
	EventStateChanged       EventType = "state_changed"
)

// Event announces a change on a sensor.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	SensorID  string    `json:"sensor_id"`
	Output    string    `json:"output,omitempty"`
	State     string    `json:"state,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventHandler receives sensor events. Handlers are called synchronously
// and must not block.
type EventHandler interface {
	PublishEvent(Event)
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(Event)

// PublishEvent calls f(ev).
func (f EventHandlerFunc) PublishEvent(ev Event) {
	f(ev)
}

func newEvent(t EventType, sensorID string, at time.Time) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		SensorID:  sensorID,
		Timestamp: at,
	}
}

// SetEventHandler installs h, or detaches the current handler when h is nil.
func (s *Sensor) SetEventHandler(h EventHandler) {
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()
	s.events = h
}

// emit must not be called with s.mu held.
func (s *Sensor) emit(ev Event) {
	s.eventsMu.RLock()
	h := s.events
	s.eventsMu.RUnlock()
	if h == nil {
		return
	}
	h.PublishEvent(ev)
}
