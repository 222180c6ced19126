package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_UpdateGetRemove(t *testing.T) {
	m := NewMonitor()

	m.Update("sensor", Status{Status: StatusHealthy, Healthy: true})
	st, ok := m.Get("sensor")
	require.True(t, ok)
	assert.Equal(t, "sensor", st.Component)
	assert.False(t, st.Timestamp.IsZero())

	m.Remove("sensor")
	_, ok = m.Get("sensor")
	assert.False(t, ok)
}

func TestMonitor_AggregateHealthOrdered(t *testing.T) {
	m := NewMonitor()
	m.Update("store", NewHealthy("", "ok"))
	m.Update("sensor", NewDegraded("", "errors"))

	agg := m.AggregateHealth("virtualsensor")
	assert.Equal(t, StatusDegraded, agg.Status)
	require.Len(t, agg.SubStatuses, 2)
	assert.Equal(t, "sensor", agg.SubStatuses[0].Component)
	assert.Equal(t, "store", agg.SubStatuses[1].Component)
}

func TestMonitor_ConcurrentUpdates(t *testing.T) {
	m := NewMonitor()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				m.Update("sensor", NewHealthy("", ""))
			} else {
				_ = m.AggregateHealth("system")
			}
		}(i)
	}
	wg.Wait()
	_, ok := m.Get("sensor")
	assert.True(t, ok)
}

func TestMonitor_Handler(t *testing.T) {
	m := NewMonitor()
	healthy := true
	h := m.Handler("virtualsensor", func(m *Monitor) {
		if healthy {
			m.Update("sensor", NewHealthy("", "running"))
		} else {
			m.Update("sensor", NewUnhealthy("", "stopped"))
		}
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var agg Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &agg))
	assert.Equal(t, StatusHealthy, agg.Status)
	assert.Equal(t, "virtualsensor", agg.Component)

	healthy = false
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
