package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sajjad-MoBe/txlog/internal/api"
	"github.com/sajjad-MoBe/txlog/internal/command"
	txErr "github.com/sajjad-MoBe/txlog/internal/errors"
	"github.com/sajjad-MoBe/txlog/internal/logentry"
	"github.com/sajjad-MoBe/txlog/internal/logfile"
	"github.com/sajjad-MoBe/txlog/internal/metrics"
	"github.com/sajjad-MoBe/txlog/internal/storage"
)

func testRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, RetryDelay: time.Millisecond, Timeout: time.Second}
}

func setupServer(t *testing.T) *Client {
	m, err := logfile.NewManager(t.TempDir(), logfile.Config{SyncOnCommit: true}, storage.NewReaderFactory())
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	start := logentry.NewStart(logentry.LatestVersion, 1, 1, 1000, 0, nil, logentry.UnspecifiedPosition)
	commit := logentry.NewCommit(logentry.LatestVersion, 1, 2000)
	_, err = m.AppendTransaction(start, []command.Command{storage.NodeCreate(1)}, commit)
	require.NoError(t, err)

	health := api.NewHealthManager()
	health.RegisterChecker("log", api.NewLogHealthChecker(m))
	reg := prometheus.NewRegistry()
	handler := api.NewHandler(api.NewService(m, nil, zerolog.Nop()), health, zerolog.Nop())
	srv := httptest.NewServer(api.Router(handler, metrics.NewCollector(reg), reg, zerolog.Nop()))
	t.Cleanup(srv.Close)

	return NewClient(srv.URL, testRetryConfig())
}

func TestClientAgainstServer(t *testing.T) {
	c := setupServer(t)
	ctx := context.Background()

	healthy, err := c.Healthy(ctx)
	require.NoError(t, err)
	assert.True(t, healthy)

	files, err := c.Logs(ctx)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, int64(0), files[0].Version)
	assert.Equal(t, logfile.CurrentFormatVersion, files[0].Header.FormatVersion)

	entries, err := c.Entries(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, logentry.TypeTxStart.String(), entries[0].Type)
	require.NotNil(t, entries[2].TxID)
	assert.Equal(t, int64(1), *entries[2].TxID)

	entries, err = c.Entries(ctx, 0, 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestClientRecovery(t *testing.T) {
	c := setupServer(t)
	ctx := context.Background()

	_, err := c.LastRecovery(ctx)
	assert.True(t, txErr.IsNotFound(err))

	report, err := c.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Result.LastCommittedTxID)
	assert.Equal(t, 1, report.Result.Applied)
	assert.Equal(t, int64(1), report.Store.Nodes)

	last, err := c.LastRecovery(ctx)
	require.NoError(t, err)
	assert.Equal(t, report.Result.LastCommittedTxID, last.Result.LastCommittedTxID)
}

func TestClientTypedErrors(t *testing.T) {
	c := setupServer(t)

	_, err := c.Entries(context.Background(), -1, 0)
	assert.True(t, txErr.IsInvalidInput(err))

	_, err = c.Entries(context.Background(), 42, 0)
	assert.True(t, txErr.IsNotFound(err))
}

func TestClientRetriesUnavailable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"files":[]}`))
	}))
	defer srv.Close()

	files, err := NewClient(srv.URL, testRetryConfig()).Logs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, testRetryConfig()).Logs(context.Background())
	require.Error(t, err)
	assert.True(t, isStatus(err, http.StatusServiceUnavailable))
	assert.Equal(t, int32(3), calls.Load())
}

func TestNewClientAddsScheme(t *testing.T) {
	c := NewClient("localhost:8080/", RetryConfig{})
	assert.Equal(t, "http://localhost:8080", c.baseURL)
	assert.Equal(t, 1, c.retryConfig.MaxRetries)
}
