package virtualsensor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/virtualsensor/component"
	"github.com/c360/virtualsensor/description"
	"github.com/c360/virtualsensor/errors"
	"github.com/c360/virtualsensor/fingerprint"
	"github.com/c360/virtualsensor/metric"
	"github.com/c360/virtualsensor/swe"
)

const testSensorID = "urn:test:sensor:virtual01"

func testDeps() component.Dependencies {
	return component.Dependencies{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func newTestSensor(t *testing.T, opts ...Option) *Sensor {
	t.Helper()
	s, err := NewSensor(Config{ID: testSensorID}, testDeps(), opts...)
	require.NoError(t, err)
	return s
}

func startedSensor(t *testing.T, opts ...Option) *Sensor {
	t.Helper()
	s := newTestSensor(t, opts...)
	require.NoError(t, s.Initialize())
	require.NoError(t, s.Start(context.Background()))
	return s
}

// eventRecorder collects sensor events.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) PublishEvent(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) ofType(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func temperatureSchema() *swe.Component {
	return swe.Record("", swe.Quantity("temperature", "urn:x:temp", ""))
}

func pressureSchema() *swe.Component {
	return swe.Record("", swe.Quantity("pressure", "", ""))
}

func weatherSchema() *swe.Component {
	return swe.Record("weather",
		swe.Scalar("time", swe.KindTime, "http://www.opengis.net/def/property/OGC/0/SamplingTime"),
		swe.Quantity("temperature", "http://sensorml.com/ont/swe/property/AirTemperature", "Cel"),
		swe.Quantity("humidity", "http://sensorml.com/ont/swe/property/RelativeHumidity", "%"),
	)
}

func TestNewSensor_Defaults(t *testing.T) {
	s := newTestSensor(t)

	cfg := s.Config()
	assert.Equal(t, testSensorID, s.ID())
	assert.Equal(t, DefaultStateKey, cfg.StateKey)
	assert.Equal(t, "json", cfg.Codec)
	assert.Equal(t, "sensors", cfg.SubjectPrefix)
	assert.Equal(t, testSensorID, s.Name())
	assert.Equal(t, component.StateCreated, s.State())
	assert.Empty(t, s.Outputs())
	assert.Equal(t, testSensorID, s.UniqueIdentifier())
}

func TestNewSensor_InvalidConfig(t *testing.T) {
	_, err := NewSensor(Config{ID: "bad#id"}, testDeps())
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestSensor_Lifecycle(t *testing.T) {
	rec := &eventRecorder{}
	s := newTestSensor(t, WithEventHandler(rec))
	ctx := context.Background()

	require.NoError(t, s.Initialize())
	assert.Equal(t, component.StateInitialized, s.State())

	require.NoError(t, s.Start(ctx))
	assert.Equal(t, component.StateStarted, s.State())
	assert.True(t, s.Health().Healthy)

	err := s.Start(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))

	err = s.Initialize()
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	require.NoError(t, s.Stop(time.Second))
	assert.Equal(t, component.StateStopped, s.State())
	assert.False(t, s.Health().Healthy)

	// stopping twice is a no-op
	require.NoError(t, s.Stop(time.Second))

	states := rec.ofType(EventStateChanged)
	require.Len(t, states, 2)
	assert.Equal(t, "started", states[0].State)
	assert.Equal(t, "stopped", states[1].State)
	assert.Equal(t, testSensorID, states[0].SensorID)
	assert.NotEmpty(t, states[0].ID)
}

func TestSensor_StartCanceledContext(t *testing.T) {
	s := newTestSensor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Start(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.NotEqual(t, component.StateStarted, s.State())
}

func TestSensor_ConcreteScenario(t *testing.T) {
	s := startedSensor(t)

	id0, err := s.ResolveTemplate(temperatureSchema(), nil)
	require.NoError(t, err)
	assert.Equal(t, testSensorID+"#output0", id0)
	assert.Equal(t, "output0", OutputNameFromTemplateID(id0))

	again, err := s.ResolveTemplate(temperatureSchema(), nil)
	require.NoError(t, err)
	assert.Equal(t, id0, again)
	assert.Len(t, s.Outputs(), 1)

	id1, err := s.ResolveTemplate(pressureSchema(), nil)
	require.NoError(t, err)
	assert.Equal(t, testSensorID+"#output1", id1)
	assert.Len(t, s.Outputs(), 2)

	out, ok := s.Output("output0")
	require.True(t, ok)
	delivered := 0
	unsubscribe := out.Subscribe(func(OutputEvent) { delivered++ })
	defer unsubscribe()

	require.NoError(t, s.Stop(time.Second))
	assert.NoError(t, s.Publish(context.Background(), id0, swe.DataBlock{21.5}))
	assert.Zero(t, delivered)
	assert.Zero(t, out.RecordCount())
}

func TestSensor_ResolveTemplate_Idempotent(t *testing.T) {
	rec := &eventRecorder{}
	s := newTestSensor(t, WithEventHandler(rec))

	first, err := s.ResolveTemplate(weatherSchema(), swe.TextEncoding())
	require.NoError(t, err)

	// root name carries no identity
	renamed := weatherSchema()
	renamed.Name = "somethingElse"
	second, err := s.ResolveTemplate(renamed, swe.TextEncoding())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"output0"}, s.OutputNames())
	assert.Equal(t, []string{first}, s.TemplateIDs())
	assert.Len(t, rec.ofType(EventOutputAdded), 1)
	assert.Equal(t, "output0", rec.ofType(EventOutputAdded)[0].Output)
}

func TestSensor_ResolveTemplate_DistinctSchemas(t *testing.T) {
	s := newTestSensor(t)

	const n = 6
	want := make([]string, 0, n)
	for i := 0; i < n; i++ {
		schema := swe.Record("", swe.Quantity(fmt.Sprintf("field%d", i), "", "m"))
		id, err := s.ResolveTemplate(schema, nil)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("%s#output%d", testSensorID, i), id)
		want = append(want, fmt.Sprintf("output%d", i))
	}

	assert.Equal(t, want, s.OutputNames())
	assert.Len(t, s.Outputs(), n)
	assert.Len(t, s.Description().Outputs, n)
}

func TestSensor_ResolveTemplate_SameSchemaOtherEncoding(t *testing.T) {
	s := newTestSensor(t)

	textID, err := s.ResolveTemplate(weatherSchema(), swe.TextEncoding())
	require.NoError(t, err)
	binID, err := s.ResolveTemplate(weatherSchema(), swe.BinaryEncoding(
		swe.ComponentMember("/time", "double"),
		swe.ComponentMember("/temperature", "float32"),
		swe.ComponentMember("/humidity", "float32"),
	))
	require.NoError(t, err)

	// one channel per structure; the template id derives from the channel name
	assert.Equal(t, textID, binID)
	assert.Len(t, s.Outputs(), 1)
	assert.Len(t, s.templateHashes, 2)
}

func TestSensor_ResolveTemplate_InvalidSchema(t *testing.T) {
	s := newTestSensor(t)

	_, err := s.ResolveTemplate(nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	bad := swe.Record("", &swe.Component{Name: "x", Kind: "float"})
	_, err = s.ResolveTemplate(bad, nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.Empty(t, s.Outputs())
}

func TestSensor_ResolveTemplate_Concurrent(t *testing.T) {
	rec := &eventRecorder{}
	s := newTestSensor(t, WithEventHandler(rec))

	const workers = 32
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := s.ResolveTemplate(weatherSchema(), swe.TextEncoding())
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Len(t, s.Outputs(), 1)
	assert.Len(t, rec.ofType(EventOutputAdded), 1)
}

func TestSensor_ResolveOutputName_ReadOnly(t *testing.T) {
	s := newTestSensor(t)

	assert.Equal(t, "output0", s.ResolveOutputName(weatherSchema()))
	assert.Equal(t, "output0", s.ResolveOutputName(pressureSchema()))
	assert.Empty(t, s.Outputs())

	_, err := s.ResolveTemplate(weatherSchema(), nil)
	require.NoError(t, err)
	assert.Equal(t, "output0", s.ResolveOutputName(weatherSchema()))
	assert.Equal(t, "output1", s.ResolveOutputName(pressureSchema()))
}

func TestSensor_UpdateDescription_DeclaredOutputsWin(t *testing.T) {
	rec := &eventRecorder{}
	s := newTestSensor(t, WithEventHandler(rec))

	declared := weatherSchema()
	err := s.UpdateDescription(&description.Document{
		UniqueID: "urn:osh:sensor:weather01",
		Name:     "Weather Station",
		Outputs: []description.Output{
			{Name: "weather", Component: declared},
			{Name: "output0", Component: pressureSchema()},
		},
	})
	require.NoError(t, err)
	assert.Len(t, rec.ofType(EventDescriptionChanged), 1)
	assert.Equal(t, "Weather Station", s.Name())
	assert.Equal(t, "urn:osh:sensor:weather01", s.UniqueIdentifier())

	id, err := s.ResolveTemplate(weatherSchema(), swe.TextEncoding())
	require.NoError(t, err)
	assert.Equal(t, testSensorID+"#weather", id)

	// a fresh structure skips the name reserved by a declared output
	id, err = s.ResolveTemplate(temperatureSchema(), nil)
	require.NoError(t, err)
	assert.Equal(t, testSensorID+"#output1", id)

	doc := s.Description()
	require.Len(t, doc.Outputs, 3)
	assert.Equal(t, "weather", doc.Outputs[0].Name)
	require.NotNil(t, doc.Outputs[0].Stream, "registered output is wrapped with its encoding")
	assert.Equal(t, swe.TextEncoding(), doc.Outputs[0].Stream.Encoding)
	assert.Nil(t, doc.Outputs[1].Stream, "untouched declared output stays bare")
	assert.Equal(t, "output1", doc.Outputs[2].Name)
}

func TestSensor_UpdateDescription_Nil(t *testing.T) {
	s := newTestSensor(t)
	err := s.UpdateDescription(nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestSensor_UpdateDescription_KeepsLiveChannels(t *testing.T) {
	s := newTestSensor(t)

	id, err := s.ResolveTemplate(weatherSchema(), nil)
	require.NoError(t, err)

	require.NoError(t, s.UpdateDescription(description.NewDocument("urn:new", "")))
	assert.Equal(t, testSensorID, s.Name(), "empty description name falls back to the configured one")

	again, err := s.ResolveTemplate(weatherSchema(), nil)
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.Len(t, s.Outputs(), 1)

	// re-registering puts the live channel back into the new description
	doc := s.Description()
	require.Len(t, doc.Outputs, 1)
	assert.Equal(t, "output0", doc.Outputs[0].Name)
	require.NotNil(t, doc.Outputs[0].Stream)
	assert.Equal(t, fingerprint.Of(weatherSchema(), nil).String(), doc.Outputs[0].Stream.Fingerprint)
}

func TestSensor_UpdateDescription_DeclaredNameHeldByOtherChannel(t *testing.T) {
	s := newTestSensor(t)

	tempID, err := s.ResolveTemplate(temperatureSchema(), nil)
	require.NoError(t, err)
	require.Equal(t, testSensorID+"#output0", tempID)

	require.NoError(t, s.UpdateDescription(&description.Document{
		Outputs: []description.Output{{Name: "output0", Component: pressureSchema()}},
	}))

	pressureID, err := s.ResolveTemplate(pressureSchema(), nil)
	require.NoError(t, err)
	assert.Equal(t, testSensorID+"#output1", pressureID)
	require.Len(t, s.Outputs(), 2)

	out0, _ := s.Output("output0")
	out1, _ := s.Output("output1")
	assert.Equal(t, fingerprint.Of(temperatureSchema(), nil), out0.Fingerprint())
	assert.Equal(t, fingerprint.Of(pressureSchema(), nil), out1.Fingerprint())

	// the live channel keeps its identifier and takes over its entry
	again, err := s.ResolveTemplate(temperatureSchema(), nil)
	require.NoError(t, err)
	assert.Equal(t, tempID, again)

	doc := s.Description()
	require.Len(t, doc.Outputs, 2)
	assert.Equal(t, "output0", doc.Outputs[0].Name)
	require.NotNil(t, doc.Outputs[0].Stream)
	assert.Equal(t, out0.Fingerprint().String(), doc.Outputs[0].Stream.Fingerprint)
	assert.Equal(t, "output1", doc.Outputs[1].Name)
}

func TestSensor_ResolveTemplate_RejectsControlCharacters(t *testing.T) {
	s := newTestSensor(t)

	_, err := s.ResolveTemplate(swe.Record("", swe.Quantity("x", "urn:u\x1eb\x1fcount", "")), nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	enc := swe.BinaryEncoding(swe.ComponentMember("/x\x1f", "float32"))
	_, err = s.ResolveTemplate(swe.Record("", swe.Quantity("x", "urn:u", "")), enc)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	_, err = s.ResolveTemplate(swe.Record("", swe.Quantity("x", "urn:u", "")), &swe.Encoding{Kind: "morse"})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	assert.Empty(t, s.Outputs())
}

func TestSensor_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	deps := testDeps()
	deps.MetricsRegistry = registry

	s, err := NewSensor(Config{ID: testSensorID}, deps)
	require.NoError(t, err)
	ctx := context.Background()

	id, err := s.ResolveTemplate(weatherSchema(), nil)
	require.NoError(t, err)
	require.NoError(t, s.Publish(ctx, id, swe.DataBlock{1.0, 20.0, 55.0}))

	require.NoError(t, s.Initialize())
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Publish(ctx, id, swe.DataBlock{1.0, 20.0, 55.0}, swe.DataBlock{2.0, 21.0, 54.0}))

	assert.Equal(t, 2.0, testutil.ToFloat64(s.metrics.recordsPublished.WithLabelValues("output0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.recordsDropped.WithLabelValues("not_started")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.templates.WithLabelValues()))

	core := registry.CoreMetrics()
	assert.Equal(t, 1.0, testutil.ToFloat64(core.Outputs.WithLabelValues(testSensorID)))
	assert.Equal(t, float64(component.StateStarted), testutil.ToFloat64(core.SensorState.WithLabelValues(testSensorID)))

	// a second sensor with the same id cannot register its metrics
	_, err = NewSensor(Config{ID: testSensorID}, deps)
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}

func TestSensor_Discoverable(t *testing.T) {
	s := newTestSensor(t, WithStateLocation("file", "/var/lib/virtualsensor"))

	_, err := s.ResolveTemplate(weatherSchema(), nil)
	require.NoError(t, err)
	_, err = s.ResolveTemplate(pressureSchema(), nil)
	require.NoError(t, err)

	meta := s.Meta()
	assert.Equal(t, "sensor", meta.Type)
	assert.Empty(t, s.InputPorts())

	ports := s.OutputPorts()
	require.Len(t, ports, 3)
	assert.Equal(t, "output0", ports[0].Name)
	assert.Equal(t, "nats", ports[0].Config.Type())
	assert.Equal(t, "sensors.urn_test_sensor_virtual01.output0", ports[0].Config.(component.NATSPort).Subject)
	assert.Equal(t, "output1", ports[1].Name)

	state := ports[2]
	assert.Equal(t, "state", state.Name)
	assert.True(t, state.Config.IsExclusive())
	assert.Equal(t, "state:file:/var/lib/virtualsensor/"+DefaultStateKey, state.Config.ResourceID())

	schema := s.ConfigSchema()
	assert.Contains(t, schema.Properties, "codec")
	assert.Equal(t, []string{"id"}, schema.Required)
}

func TestSensor_DataFlow(t *testing.T) {
	s := startedSensor(t)
	id, err := s.ResolveTemplate(weatherSchema(), nil)
	require.NoError(t, err)

	require.NoError(t, s.Publish(context.Background(), id, swe.DataBlock{1.0, 2.0, 3.0}))

	flow := s.DataFlow()
	assert.False(t, flow.LastActivity.IsZero())

	err = s.Publish(context.Background(), testSensorID+"#missing", swe.DataBlock{1.0})
	require.Error(t, err)
	health := s.Health()
	assert.Equal(t, 1, health.ErrorCount)
	assert.Contains(t, health.LastError, "missing")
}
