package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusfab/fabric/internal/balancer"
	"github.com/nexusfab/fabric/internal/config"
	"github.com/nexusfab/fabric/internal/logger"
	"github.com/nexusfab/fabric/internal/pool"
	"github.com/nexusfab/fabric/internal/registry"
	"github.com/nexusfab/fabric/internal/resilience"
	"github.com/nexusfab/fabric/theme"
)

func testLogger() *logger.StyledLogger {
	return logger.NewStyledLogger(slog.New(slog.NewTextHandler(io.Discard, nil)), theme.Default())
}

type fakeConn struct{}

func (fakeConn) Healthy(ctx context.Context) bool { return true }
func (fakeConn) Close() error                     { return nil }

func newTestFabric(t *testing.T) *registry.Fabric {
	t.Helper()
	cfg := config.DefaultConfig()
	connFactory := func(e *balancer.Endpoint) pool.Factory {
		return func(ctx context.Context) (pool.Conn, error) { return fakeConn{}, nil }
	}
	transport := func(service string, bal *balancer.Balancer, p *pool.Pool) resilience.Continuation {
		return func(ctx context.Context, call *resilience.CallDescriptor) (interface{}, error) {
			return map[string]interface{}{"service": call.Service, "method": call.Method}, nil
		}
	}
	fabric, err := registry.NewFabric(cfg, testLogger(), connFactory, nil, transport)
	require.NoError(t, err)
	return fabric
}

func TestHandleHealthz_ReturnsOK(t *testing.T) {
	srv := NewServer(":0", newTestFabric(t), testLogger())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleCall_Success(t *testing.T) {
	srv := NewServer(":0", newTestFabric(t), testLogger())

	body, _ := json.Marshal(map[string]interface{}{
		"service": "planner", "method": "HealthCheck", "payload": map[string]interface{}{},
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/call", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	result, ok := out["result"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "planner", result["service"])
}

func TestHandleCall_UnknownServiceMapsToInternalError(t *testing.T) {
	srv := NewServer(":0", newTestFabric(t), testLogger())

	body, _ := json.Marshal(map[string]interface{}{
		"service": "nonexistent", "method": "HealthCheck",
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/call", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var envelope errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.NotEmpty(t, envelope.Message)
}

func TestHandleCall_MalformedBodyReturnsBadRequest(t *testing.T) {
	srv := NewServer(":0", newTestFabric(t), testLogger())

	req := httptest.NewRequest(http.MethodPost, "/v1/call", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	srv.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleMetricsJSON_ReportsEveryService(t *testing.T) {
	srv := NewServer(":0", newTestFabric(t), testLogger())

	req := httptest.NewRequest(http.MethodGet, "/v1/metrics/json", nil)
	rec := httptest.NewRecorder()
	srv.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Contains(t, out, "planner")
	assert.Contains(t, out, "analyst")
	assert.Contains(t, out, "executor")
}

func TestHandleWorkflow_PipelineStreamsStepEvents(t *testing.T) {
	srv := NewServer(":0", newTestFabric(t), testLogger())

	body, _ := json.Marshal(map[string]interface{}{
		"type": "pipeline",
		"steps": []map[string]interface{}{
			{"service": "planner", "method": "HealthCheck"},
			{"service": "analyst", "method": "HealthCheck"},
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/workflow", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"service":"planner"`)
	assert.Contains(t, rec.Body.String(), `"service":"analyst"`)
}
