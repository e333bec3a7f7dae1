package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sajjad-MoBe/txlog/internal/command"
	txErr "github.com/sajjad-MoBe/txlog/internal/errors"
	"github.com/sajjad-MoBe/txlog/internal/logentry"
	"github.com/sajjad-MoBe/txlog/internal/logfile"
	"github.com/sajjad-MoBe/txlog/internal/metrics"
	"github.com/sajjad-MoBe/txlog/internal/storage"
)

type mockLogService struct {
	mock.Mock
}

func (m *mockLogService) LogFiles() ([]logfile.FileInfo, error) {
	args := m.Called()
	return args.Get(0).([]logfile.FileInfo), args.Error(1)
}

func (m *mockLogService) Entries(ctx context.Context, version int64, limit int) ([]logentry.LogEntry, error) {
	args := m.Called(version, limit)
	return args.Get(0).([]logentry.LogEntry), args.Error(1)
}

func (m *mockLogService) Recover(ctx context.Context) (RecoveryReport, error) {
	args := m.Called()
	return args.Get(0).(RecoveryReport), args.Error(1)
}

func (m *mockLogService) LastRecovery() (RecoveryReport, bool) {
	args := m.Called()
	return args.Get(0).(RecoveryReport), args.Bool(1)
}

type staticChecker struct{ status string }

func (c staticChecker) Check(context.Context) HealthStatus {
	return HealthStatus{Status: c.status}
}

func setupTestRouter(logs LogService, checkers map[string]HealthChecker) http.Handler {
	health := NewHealthManager()
	for name, checker := range checkers {
		health.RegisterChecker(name, checker)
	}
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	handler := NewHandler(logs, health, zerolog.Nop())
	return Router(handler, collector, reg, zerolog.Nop())
}

func serve(router http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name           string
		status         string
		expectedStatus int
		expectedBody   string
	}{
		{name: "healthy", status: "ok", expectedStatus: http.StatusOK, expectedBody: "ok"},
		{name: "unhealthy", status: "error", expectedStatus: http.StatusServiceUnavailable, expectedBody: "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouter(new(mockLogService), map[string]HealthChecker{"log": staticChecker{tt.status}})
			rec := serve(router, http.MethodGet, "/health")

			assert.Equal(t, tt.expectedStatus, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, tt.expectedBody, body["status"])
			assert.Contains(t, body["components"], "log")
		})
	}
}

func TestListEntries(t *testing.T) {
	entries := []logentry.LogEntry{
		logentry.NewStart(logentry.LatestVersion, 1, 2, 3, 4, nil, logentry.NewLogPosition(0, 16)),
		logentry.NewCommit(logentry.LatestVersion, 9, 0),
	}

	tests := []struct {
		name           string
		target         string
		mockVersion    int64
		mockLimit      int
		mockEntries    []logentry.LogEntry
		mockError      error
		expectedStatus int
		expectedType   string
	}{
		{
			name:           "default limit",
			target:         "/api/v1/logs/0/entries",
			mockVersion:    0,
			mockLimit:      defaultEntryLimit,
			mockEntries:    entries,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "explicit limit",
			target:         "/api/v1/logs/3/entries?limit=1",
			mockVersion:    3,
			mockLimit:      1,
			mockEntries:    entries[:1],
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing version",
			target:         "/api/v1/logs/7/entries",
			mockVersion:    7,
			mockLimit:      defaultEntryLimit,
			mockEntries:    []logentry.LogEntry(nil),
			mockError:      txErr.Newf(txErr.ErrorTypeNotFound, "log version 7 not found"),
			expectedStatus: http.StatusNotFound,
			expectedType:   "NOT_FOUND",
		},
		{
			name:           "corrupt file",
			target:         "/api/v1/logs/2/entries",
			mockVersion:    2,
			mockLimit:      defaultEntryLimit,
			mockEntries:    []logentry.LogEntry(nil),
			mockError:      txErr.Newf(txErr.ErrorTypeUnknownEntryType, "unknown log entry type 9"),
			expectedStatus: http.StatusUnprocessableEntity,
			expectedType:   "UNKNOWN_ENTRY_TYPE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := new(mockLogService)
			logs.On("Entries", tt.mockVersion, tt.mockLimit).Return(tt.mockEntries, tt.mockError)
			rec := serve(setupTestRouter(logs, nil), http.MethodGet, tt.target)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			body := decode(t, rec)
			if tt.expectedType != "" {
				assert.Equal(t, tt.expectedType, body["error"].(map[string]interface{})["type"])
			} else {
				assert.Len(t, body["entries"], len(tt.mockEntries))
			}
			logs.AssertExpectations(t)
		})
	}
}

func TestListEntriesRejectsBadParameters(t *testing.T) {
	router := setupTestRouter(new(mockLogService), nil)
	for _, target := range []string{
		"/api/v1/logs/abc/entries",
		"/api/v1/logs/-1/entries",
		"/api/v1/logs/0/entries?limit=0",
		"/api/v1/logs/0/entries?limit=5000",
		"/api/v1/logs/0/entries?limit=x",
	} {
		rec := serve(router, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestRecoveryEndpoints(t *testing.T) {
	logs := new(mockLogService)
	logs.On("LastRecovery").Return(RecoveryReport{}, false).Once()
	router := setupTestRouter(logs, nil)

	rec := serve(router, http.MethodGet, "/api/v1/recovery")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	logs.On("Recover").Return(RecoveryReport{}, errors.New("disk gone")).Once()
	rec = serve(router, http.MethodPost, "/api/v1/recovery")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL", decode(t, rec)["error"].(map[string]interface{})["type"])

	logs.AssertExpectations(t)
}

func TestRecoveryMiddlewareHandlesPanics(t *testing.T) {
	logs := new(mockLogService)
	logs.On("LogFiles").Run(func(mock.Arguments) { panic("boom") })

	rec := serve(setupTestRouter(logs, nil), http.MethodGet, "/api/v1/logs")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	router := setupTestRouter(new(mockLogService), map[string]HealthChecker{"log": staticChecker{"ok"}})
	serve(router, http.MethodGet, "/health")

	rec := serve(router, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `txlog_http_requests_total{method="GET",path="/health",status="200"} 1`)
}

func TestServiceAgainstLogFiles(t *testing.T) {
	manager, err := logfile.NewManager(t.TempDir(), logfile.Config{}, storage.NewReaderFactory())
	require.NoError(t, err)
	defer manager.Close()

	for txID := int64(1); txID <= 3; txID++ {
		start := logentry.NewStart(logentry.LatestVersion, 1, 1, 0, txID-1, nil, logentry.UnspecifiedPosition)
		_, err := manager.AppendTransaction(start, []command.Command{storage.NodeCreate(txID)},
			logentry.NewCommit(logentry.LatestVersion, txID, 0))
		require.NoError(t, err)
	}

	service := NewService(manager, nil, zerolog.Nop())
	router := setupTestRouter(service, map[string]HealthChecker{"log": NewLogHealthChecker(manager)})

	rec := serve(router, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(router, http.MethodGet, "/api/v1/logs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["files"], 1)

	rec = serve(router, http.MethodGet, "/api/v1/logs/0/entries?limit=4")
	require.Equal(t, http.StatusOK, rec.Code)
	views := decode(t, rec)["entries"].([]interface{})
	require.Len(t, views, 4)
	assert.Equal(t, "TX_START", views[0].(map[string]interface{})["type"])
	assert.Equal(t, "V3_0_10", views[0].(map[string]interface{})["version"])
	assert.Equal(t, "COMMAND", views[1].(map[string]interface{})["type"])
	assert.Equal(t, float64(1), views[2].(map[string]interface{})["tx_id"])

	rec = serve(router, http.MethodPost, "/api/v1/recovery")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `"applied":3`))

	rec = serve(router, http.MethodGet, "/api/v1/recovery")
	require.Equal(t, http.StatusOK, rec.Code)
	report, ok := service.LastRecovery()
	require.True(t, ok)
	assert.Equal(t, int64(3), report.Store.Nodes)
}
