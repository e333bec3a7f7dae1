package cmd

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sajjad-MoBe/txlog/internal/api"
	"github.com/sajjad-MoBe/txlog/internal/command"
	"github.com/sajjad-MoBe/txlog/internal/logentry"
	"github.com/sajjad-MoBe/txlog/internal/logfile"
	"github.com/sajjad-MoBe/txlog/internal/metrics"
	"github.com/sajjad-MoBe/txlog/internal/storage"
)

// writeLog creates a log directory holding one node per transaction.
func writeLog(t *testing.T, txs int, torn bool) string {
	dir := t.TempDir()
	m, err := logfile.NewManager(dir, logfile.Config{SyncOnCommit: true}, storage.NewReaderFactory())
	require.NoError(t, err)

	for txID := int64(1); txID <= int64(txs); txID++ {
		start := logentry.NewStart(logentry.LatestVersion, 1, 1, 1000+txID, txID-1, nil, logentry.UnspecifiedPosition)
		commit := logentry.NewCommit(logentry.LatestVersion, txID, 2000+txID)
		cmds := []command.Command{storage.NodeCreate(txID), storage.PropertySet(txID, "n", []byte{byte(txID)})}
		_, err := m.AppendTransaction(start, cmds, commit)
		require.NoError(t, err)
	}
	if torn {
		start := logentry.NewStart(logentry.LatestVersion, 1, 1, 9999, int64(txs), nil, logentry.UnspecifiedPosition)
		require.NoError(t, m.Append(start, logentry.NewCommand(logentry.LatestVersion, storage.NodeCreate(100))))
	}
	require.NoError(t, m.Close())
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--log-level", "error"))
	err := root.Execute()
	return out.String(), err
}

func TestInspectPrintsEntries(t *testing.T) {
	dir := writeLog(t, 2, false)

	out, err := run(t, "inspect", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "== "+logfile.FileName(0))
	assert.Contains(t, out, "Commit[txId=1")
	assert.Contains(t, out, "Commit[txId=2")
}

func TestInspectLimit(t *testing.T) {
	dir := writeLog(t, 3, false)

	out, err := run(t, "inspect", "--dir", dir, "--limit", "2")
	require.NoError(t, err)

	var entries int
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if !strings.HasPrefix(line, "==") {
			entries++
		}
	}
	assert.Equal(t, 2, entries)
}

func TestInspectMissingDirectory(t *testing.T) {
	_, err := run(t, "inspect", "--dir", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	dir := writeLog(t, 3, false)

	out, err := run(t, "verify", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "transactions 3 (last tx 3)")
	assert.Contains(t, out, "(tail false)")
	assert.Contains(t, out, "OK")
}

func TestVerifyReportsTornTail(t *testing.T) {
	dir := writeLog(t, 2, true)

	out, err := run(t, "verify", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "transactions 2 (last tx 2)")
	assert.Contains(t, out, "(tail true)")
}

func TestVerifyFailsOnUnknownVersion(t *testing.T) {
	dir := writeLog(t, 1, false)
	path := filepath.Join(dir, logfile.FileName(0))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.Write([]byte{0x7f, byte(logentry.TypeTxStart), 0, 0, 0, 0})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = run(t, "verify", "--dir", dir)
	assert.Error(t, err)
}

func TestRecoverPrintsReport(t *testing.T) {
	dir := writeLog(t, 3, true)

	out, err := run(t, "recover", "--dir", dir)
	require.NoError(t, err)

	var report struct {
		Result struct {
			LastCommittedTxID int64 `json:"last_committed_tx_id"`
			Applied           int   `json:"applied"`
			TornTail          bool  `json:"torn_tail"`
		} `json:"result"`
		Store storage.StoreMetrics `json:"store"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, int64(3), report.Result.LastCommittedTxID)
	assert.Equal(t, 3, report.Result.Applied)
	assert.True(t, report.Result.TornTail)
	assert.Equal(t, int64(3), report.Store.Nodes)
}

func TestConfigFileIsUsed(t *testing.T) {
	dir := writeLog(t, 1, false)
	cfgPath := filepath.Join(t.TempDir(), "txlog.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("wal:\n  dir: "+dir+"\n"), 0644))

	out, err := run(t, "verify", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "transactions 1 (last tx 1)")
}

func TestInvalidConfigIsRejected(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "txlog.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("wal:\n  max_files: -1\n"), 0644))

	_, err := run(t, "verify", "--config", cfgPath)
	assert.Error(t, err)
}

func TestStatusQueriesServer(t *testing.T) {
	dir := writeLog(t, 2, false)
	m, err := logfile.NewManager(dir, logfile.Config{}, storage.NewReaderFactory())
	require.NoError(t, err)
	defer m.Close()

	reg := prometheus.NewRegistry()
	health := api.NewHealthManager()
	health.RegisterChecker("log", api.NewLogHealthChecker(m))
	handler := api.NewHandler(api.NewService(m, nil, zerolog.Nop()), health, zerolog.Nop())
	srv := httptest.NewServer(api.Router(handler, metrics.NewCollector(reg), reg, zerolog.Nop()))
	defer srv.Close()

	out, err := run(t, "status", "--addr", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "healthy true")
	assert.Contains(t, out, logfile.FileName(1))
	assert.Contains(t, out, "recovery none")
}

func TestVerifySkipsInvalidBytes(t *testing.T) {
	dir := t.TempDir()
	m, err := logfile.NewManager(dir, logfile.Config{SyncOnCommit: true}, storage.NewReaderFactory())
	require.NoError(t, err)
	for txID := int64(1); txID <= 2; txID++ {
		start := logentry.NewStart(logentry.LatestVersion, 1, 1, 1000+txID, txID-1, nil, logentry.UnspecifiedPosition)
		commit := logentry.NewCommit(logentry.LatestVersion, txID, 2000+txID)
		_, err = m.AppendTransaction(start, []command.Command{storage.NodeCreate(txID)}, commit)
		require.NoError(t, err)
		if txID == 1 {
			require.NoError(t, m.Rotate())
		}
	}
	require.NoError(t, m.Close())

	f, err := os.OpenFile(filepath.Join(dir, logfile.FileName(0)), os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.Write([]byte{0x7f, 0x7f, 0x7f})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = run(t, "verify", "--dir", dir)
	require.Error(t, err)

	out, err := run(t, "verify", "--dir", dir, "--skip-invalid")
	require.NoError(t, err)
	assert.Contains(t, out, "transactions 2 (last tx 2)")
	assert.Contains(t, out, "skipped      3 bytes in 3 invalid entries")
}
