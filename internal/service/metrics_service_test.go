package service

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceSnapshot(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/screens/:screenId", http.StatusOK, 5*time.Millisecond)
	m.ObserveBackendCall(http.MethodGet, "organizations", http.StatusOK, 3*time.Millisecond)
	m.ObserveBackendCall(http.MethodGet, "", 0, time.Second)
	m.RecordFetch("charities", FetchApplied)
	m.RecordFetch("charities", FetchStale)
	m.RecordMutation("charities", "verify", "success")
	m.ScreenOpened()
	m.ScreenOpened()
	m.ScreenClosed()

	snap := m.Snapshot()
	assert.Equal(t, uint64(1), snap.RequestsTotal)
	assert.Equal(t, uint64(2), snap.BackendCalls)
	assert.Equal(t, uint64(1), snap.StaleDiscards)
	assert.Equal(t, uint64(1), snap.MutationsTotal)
	assert.Equal(t, int64(1), snap.OpenScreens)
	assert.Greater(t, snap.Goroutines, 0)
}

func TestMetricsServiceHandlerExposesCollectors(t *testing.T) {
	m := NewMetricsService()
	m.RecordFetch("users", FetchStale)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `screen_fetches_total{kind="users",outcome="stale"} 1`)
}

func TestMetricsServiceNilIsSafe(t *testing.T) {
	var m *MetricsService
	m.RecordFetch("users", FetchApplied)
	m.ScreenOpened()
	assert.Equal(t, MetricsSnapshot{}, m.Snapshot())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
