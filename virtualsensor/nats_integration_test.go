//go:build integration

package virtualsensor

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/c360/virtualsensor/statestore"
	"github.com/c360/virtualsensor/swe"
)

type NATSSensorSuite struct {
	suite.Suite
	container testcontainers.Container
	conn      *nats.Conn
	js        jetstream.JetStream
}

func TestNATSSensorSuite(t *testing.T) {
	suite.Run(t, new(NATSSensorSuite))
}

func (s *NATSSensorSuite) SetupSuite() {
	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "nats:latest",
		ExposedPorts: []string{"4222/tcp"},
		WaitingFor:   wait.ForListeningPort("4222/tcp"),
		Cmd:          []string{"-js"},
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	s.Require().NoError(err)
	s.container = container

	host, err := container.Host(ctx)
	s.Require().NoError(err)
	port, err := container.MappedPort(ctx, "4222")
	s.Require().NoError(err)

	// Wait for NATS to be fully ready
	time.Sleep(200 * time.Millisecond)

	s.conn, err = nats.Connect(fmt.Sprintf("nats://%s:%s", host, port.Port()))
	s.Require().NoError(err)
	s.js, err = jetstream.New(s.conn)
	s.Require().NoError(err)
}

func (s *NATSSensorSuite) TearDownSuite() {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
}

func (s *NATSSensorSuite) TestRecordsAndEventsPublished() {
	records, err := s.conn.SubscribeSync("sensors.urn_test_sensor_virtual01.output0")
	s.Require().NoError(err)
	defer records.Unsubscribe()
	events, err := s.conn.SubscribeSync("sensors.urn_test_sensor_virtual01._events")
	s.Require().NoError(err)
	defer events.Unsubscribe()

	deps := testDeps()
	deps.NATSConn = s.conn
	sensor, err := NewSensor(Config{ID: testSensorID}, deps,
		WithEventHandler(NewNATSPublisher(s.conn, "sensors", nil)))
	s.Require().NoError(err)

	ctx := context.Background()
	s.Require().NoError(sensor.Initialize())
	s.Require().NoError(sensor.Start(ctx))

	id, err := sensor.ResolveTemplate(weatherSchema(), swe.TextEncoding())
	s.Require().NoError(err)
	s.Require().NoError(sensor.Publish(ctx, id, swe.DataBlock{1.0, 20.5, 40.0}))
	s.Require().NoError(s.conn.Flush())

	msg, err := records.NextMsg(2 * time.Second)
	s.Require().NoError(err)
	var rec Record
	s.Require().NoError(json.Unmarshal(msg.Data, &rec))
	s.Equal(testSensorID, rec.SensorID)
	s.Equal("output0", rec.Output)
	s.Equal(id, rec.TemplateID)
	s.Len(rec.Values, 3)

	var types []EventType
	for i := 0; i < 2; i++ {
		msg, err := events.NextMsg(2 * time.Second)
		s.Require().NoError(err)
		var ev Event
		s.Require().NoError(json.Unmarshal(msg.Data, &ev))
		types = append(types, ev.Type)
	}
	s.Equal([]EventType{EventStateChanged, EventOutputAdded}, types)

	s.Require().NoError(sensor.Stop(time.Second))
}

func (s *NATSSensorSuite) TestStateInKeyValueBucket() {
	ctx := context.Background()
	store, err := statestore.NewKVStore(ctx, s.js, "sensor_state_it", testSensorID)
	s.Require().NoError(err)

	first, err := NewSensor(Config{ID: testSensorID, Codec: "cbor"}, testDeps())
	s.Require().NoError(err)
	ids := populate(s.T(), first)
	s.Require().NoError(first.SaveState(ctx, store))

	second, err := NewSensor(Config{ID: testSensorID, Codec: "cbor"}, testDeps())
	s.Require().NoError(err)
	s.Require().NoError(second.LoadState(ctx, store))
	s.Equal(first.OutputNames(), second.OutputNames())

	id, err := second.ResolveTemplate(weatherSchema(), swe.TextEncoding())
	s.Require().NoError(err)
	s.Equal(ids["weather"], id)

	s.Require().NoError(second.Cleanup(ctx, store))
}
