package virtualsensor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/virtualsensor/codec"
	"github.com/c360/virtualsensor/component"
	"github.com/c360/virtualsensor/description"
	"github.com/c360/virtualsensor/errors"
	"github.com/c360/virtualsensor/fingerprint"
	"github.com/c360/virtualsensor/swe"
)

// Option configures a Sensor.
type Option func(*Sensor)

// WithEventHandler sets the handler receiving sensor events.
func WithEventHandler(h EventHandler) Option {
	return func(s *Sensor) {
		s.events = h
	}
}

// WithRecordPublisher forwards every published record to p. When
// Dependencies carries a NATS connection and no publisher is given, a
// NATSPublisher is used.
func WithRecordPublisher(p RecordPublisher) Option {
	return func(s *Sensor) {
		s.publisher = p
	}
}

// WithStateLocation advertises where the description is persisted as a
// "state" output port. backend names the store kind, location its
// directory, bucket or key prefix.
func WithStateLocation(backend, location string) Option {
	return func(s *Sensor) {
		s.statePort = &component.StatePort{Backend: backend, Location: location}
	}
}

// Sensor is a virtual sensor whose outputs are created on demand from
// client-supplied result templates.
type Sensor struct {
	cfg       Config
	codec     codec.Codec
	logger    *slog.Logger
	metrics   *sensorMetrics
	publisher RecordPublisher
	now       func() time.Time
	statePort *component.StatePort

	// lifecycleMu is held for reading across a whole Publish so Stop cannot
	// interleave with a delivery.
	lifecycleMu sync.RWMutex
	state       component.State
	startTime   time.Time

	// mu guards the registry. Resolve-or-create runs entirely under it.
	// Lock order: mu, then the synchronizer's internal lock.
	mu             sync.RWMutex
	outputs        map[string]*Output
	order          []string
	outputHashes   map[fingerprint.Fingerprint]string
	templateHashes map[fingerprint.Fingerprint]string
	templates      map[string]string // template id -> output name
	currentFoi     *swe.FeatureOfInterest

	desc *description.Synchronizer

	eventsMu sync.RWMutex
	events   EventHandler

	recordsPublished atomic.Uint64
	errorCount       atomic.Int64
	lastError        atomic.Value // string
	lastActivity     atomic.Int64 // unix nanos
}

// NewSensor creates a sensor from cfg. Unset optional fields take their
// DefaultConfig values.
func NewSensor(cfg Config, deps component.Dependencies, opts ...Option) (*Sensor, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c, err := codec.ByName(cfg.Codec)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Sensor", "NewSensor", "codec lookup")
	}

	metrics, err := newSensorMetrics(deps.MetricsRegistry, cfg.ID)
	if err != nil {
		return nil, errors.WrapFatal(err, "Sensor", "NewSensor", "metrics registration")
	}

	s := &Sensor{
		cfg:            cfg,
		codec:          c,
		logger:         deps.GetLoggerWithComponent("virtualsensor").With("sensor", cfg.ID),
		metrics:        metrics,
		now:            time.Now,
		state:          component.StateCreated,
		outputs:        make(map[string]*Output),
		outputHashes:   make(map[fingerprint.Fingerprint]string),
		templateHashes: make(map[fingerprint.Fingerprint]string),
		templates:      make(map[string]string),
	}
	s.desc = description.NewSynchronizer(cfg.ID, cfg.Name, s)

	for _, opt := range opts {
		opt(s)
	}
	if s.publisher == nil && deps.NATSConn != nil {
		s.publisher = NewNATSPublisher(deps.NATSConn, cfg.SubjectPrefix, s.logger)
	}

	s.metrics.recordState(s.state)
	return s, nil
}

// ID returns the configured sensor id used in template identifiers.
func (s *Sensor) ID() string {
	return s.cfg.ID
}

// Name returns the description's name, falling back to the configured one.
func (s *Sensor) Name() string {
	if name := s.desc.Name(); name != "" {
		return name
	}
	return s.cfg.Name
}

// Config returns the effective configuration.
func (s *Sensor) Config() Config {
	return s.cfg
}

// Initialize prepares the sensor. It does no I/O.
func (s *Sensor) Initialize() error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.state == component.StateStarted {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Sensor", "Initialize", "check running state")
	}
	s.setStateLocked(component.StateInitialized)
	return nil
}

// Start moves the sensor to the started state; records are accepted from
// now on.
func (s *Sensor) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.WrapTransient(err, "Sensor", "Start", "context check")
	}

	s.lifecycleMu.Lock()
	if s.state == component.StateStarted {
		s.lifecycleMu.Unlock()
		return errors.WrapFatal(errors.ErrAlreadyStarted, "Sensor", "Start", "check running state")
	}
	s.setStateLocked(component.StateStarted)
	s.startTime = s.now()
	s.lifecycleMu.Unlock()

	s.logger.Info("Virtual sensor started", "outputs", len(s.Outputs()))
	s.emitState(component.StateStarted)
	return nil
}

// Stop moves the sensor to the stopped state. It waits for in-flight
// deliveries to finish; if that takes longer than timeout it returns an
// error while the stop still completes in the background. A timeout <= 0
// waits indefinitely.
func (s *Sensor) Stop(timeout time.Duration) error {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	done := make(chan bool, 1)
	go func() {
		s.lifecycleMu.Lock()
		defer s.lifecycleMu.Unlock()
		if s.state != component.StateStarted {
			done <- false
			return
		}
		s.setStateLocked(component.StateStopped)
		done <- true
	}()

	select {
	case stopped := <-done:
		if stopped {
			s.logger.Info("Virtual sensor stopped")
			s.emitState(component.StateStopped)
		}
		return nil
	case <-expired:
		return errors.WrapTransient(fmt.Errorf("shutdown timeout after %v", timeout), "Sensor", "Stop", "shutdown")
	}
}

func (s *Sensor) setStateLocked(state component.State) {
	s.state = state
	s.metrics.recordState(state)
}

func (s *Sensor) emitState(state component.State) {
	ev := newEvent(EventStateChanged, s.cfg.ID, s.now())
	ev.State = state.String()
	s.emit(ev)
}

// State returns the current lifecycle state.
func (s *Sensor) State() component.State {
	s.lifecycleMu.RLock()
	defer s.lifecycleMu.RUnlock()
	return s.state
}

// Outputs returns the output channels keyed by name.
func (s *Sensor) Outputs() map[string]*Output {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*Output, len(s.outputs))
	for name, o := range s.outputs {
		out[name] = o
	}
	return out
}

// Output returns the channel called name.
func (s *Sensor) Output(name string) (*Output, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.outputs[name]
	return o, ok
}

// OutputNames returns channel names in creation order.
func (s *Sensor) OutputNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Description returns a copy of the current self-description.
func (s *Sensor) Description() *description.Document {
	return s.desc.Snapshot()
}

// LastUpdated returns when the description last changed.
func (s *Sensor) LastUpdated() time.Time {
	return s.desc.LastUpdated()
}

// SetUniqueIdentifier sets the description's unique id.
func (s *Sensor) SetUniqueIdentifier(id string) {
	s.desc.SetUniqueIdentifier(id)
}

// UniqueIdentifier returns the description's unique id.
func (s *Sensor) UniqueIdentifier() string {
	return s.desc.UniqueIdentifier()
}

// UpdateDescription replaces the self-description with one supplied by a
// client. Its outputs become the declared outputs that name future
// channels, and an EventDescriptionChanged is published.
func (s *Sensor) UpdateDescription(doc *description.Document) error {
	if doc == nil {
		return errors.WrapInvalid(errors.ErrNoDescription, "Sensor", "UpdateDescription", "document check")
	}
	// DescriptionChanged does the rest.
	s.desc.Replace(doc)
	return nil
}

// DescriptionChanged implements description.ChangeListener.
func (s *Sensor) DescriptionChanged(_ *description.Document, at time.Time) {
	s.mu.Lock()
	s.rebuildOutputHashesLocked()
	s.mu.Unlock()

	s.metrics.recordDescriptionChange()
	s.logger.Info("Sensor description updated", "unique_id", s.desc.UniqueIdentifier())
	s.emit(newEvent(EventDescriptionChanged, s.cfg.ID, at))
}

func (s *Sensor) noteError(err error) {
	s.errorCount.Add(1)
	s.lastError.Store(err.Error())
}

// Meta returns component metadata
func (s *Sensor) Meta() component.Metadata {
	return component.Metadata{
		Name:        s.Name(),
		Type:        "sensor",
		Description: s.cfg.Description,
		Version:     "1.0.0",
	}
}

// InputPorts returns no ports; records arrive through Publish.
func (s *Sensor) InputPorts() []component.Port {
	return []component.Port{}
}

// OutputPorts returns one NATS port per output channel, plus the state
// port when a state location was given.
func (s *Sensor) OutputPorts() []component.Port {
	names := s.OutputNames()
	sort.Strings(names)
	ports := make([]component.Port, 0, len(names)+1)
	for _, name := range names {
		ports = append(ports, component.Port{
			Name:        name,
			Direction:   component.DirectionOutput,
			Description: fmt.Sprintf("Records of output %s", name),
			Config:      component.NATSPort{Subject: Subject(s.cfg.SubjectPrefix, s.cfg.ID, name)},
		})
	}
	if s.statePort != nil {
		sp := *s.statePort
		sp.Key = s.cfg.StateKey
		ports = append(ports, component.Port{
			Name:        "state",
			Direction:   component.DirectionOutput,
			Required:    true,
			Description: "Persisted sensor description",
			Config:      sp,
		})
	}
	return ports
}

// ConfigSchema returns the configuration schema
func (s *Sensor) ConfigSchema() component.ConfigSchema {
	def := DefaultConfig()
	return component.ConfigSchema{
		Properties: map[string]component.PropertySchema{
			"id":             {Type: "string", Description: "Sensor id, prefix of template identifiers", Category: "basic"},
			"name":           {Type: "string", Description: "Display name", Category: "basic"},
			"description":    {Type: "string", Description: "Free text description", Category: "basic"},
			"state_key":      {Type: "string", Description: "Store key of the persisted description", Default: def.StateKey, Category: "advanced"},
			"codec":          {Type: "enum", Description: "Persisted description format", Default: def.Codec, Enum: []string{codec.NameJSON, codec.NameCBOR, codec.NameYAML}, Category: "advanced"},
			"subject_prefix": {Type: "string", Description: "NATS subject prefix for records", Default: def.SubjectPrefix, Category: "advanced"},
		},
		Required: []string{"id"},
	}
}

// Health returns current health status
func (s *Sensor) Health() component.HealthStatus {
	s.lifecycleMu.RLock()
	running := s.state == component.StateStarted
	start := s.startTime
	s.lifecycleMu.RUnlock()

	status := component.HealthStatus{
		Healthy:    running,
		LastCheck:  s.now(),
		ErrorCount: int(s.errorCount.Load()),
	}
	if msg, ok := s.lastError.Load().(string); ok {
		status.LastError = msg
	}
	if running {
		status.Uptime = s.now().Sub(start)
	}
	return status
}

// DataFlow returns current data flow metrics
func (s *Sensor) DataFlow() component.FlowMetrics {
	var flow component.FlowMetrics
	if last := s.lastActivity.Load(); last > 0 {
		flow.LastActivity = time.Unix(0, last)
	}

	s.lifecycleMu.RLock()
	start := s.startTime
	s.lifecycleMu.RUnlock()

	records := s.recordsPublished.Load()
	if !start.IsZero() {
		if elapsed := s.now().Sub(start).Seconds(); elapsed > 0 {
			flow.RecordsPerSecond = float64(records) / elapsed
			flow.ErrorRate = float64(s.errorCount.Load()) / elapsed
		}
	}
	return flow
}

var _ component.LifecycleComponent = (*Sensor)(nil)
var _ description.ChangeListener = (*Sensor)(nil)
