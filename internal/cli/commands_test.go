package cli

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sequential-trader/internal/storage"
)

func execute(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "")
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "none.env")))
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	n := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)
	for sc.Scan() {
		n++
	}
	return n
}

func onlyFile(t *testing.T, dir string) string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	return filepath.Join(dir, entries[0].Name())
}

func TestRunCommand_MockRun(t *testing.T) {
	dir := t.TempDir()
	logDir := filepath.Join(dir, "logs")
	csvPath := filepath.Join(dir, "ledger.csv")
	dbPath := filepath.Join(dir, "runs.db")

	out, err := execute(t, context.Background(), "run",
		"--ticker", "KXFED", "--start-date", "2024-03-01", "--days", "3", "--mock",
		"--log-dir", logDir, "--csv", csvPath, "--db", dbPath)
	require.NoError(t, err)

	assert.Contains(t, out, "Steps:          3")
	assert.Contains(t, out, "Final portfolio value: $")
	assert.Contains(t, out, "Run id: ")

	assert.Equal(t, 3, countLines(t, onlyFile(t, logDir)))
	assert.Equal(t, 4, countLines(t, csvPath))

	store, err := storage.Open(dbPath)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "KXFED", runs[0].Name)
	assert.Equal(t, storage.StatusCompleted, runs[0].Status)
}

func TestRunCommand_ConfigFileWithOverrides(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
run:
  markets: [A, B]
  start_date: 2024-01-01
  days: 10
agent:
  name: random
  params:
    seed: 3
news:
  sources: []
`), 0644))
	logDir := filepath.Join(dir, "logs")

	out, err := execute(t, context.Background(), "run", "--config", cfgPath, "--days", "2", "--log-dir", logDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Steps:          2")
	assert.Equal(t, 2, countLines(t, onlyFile(t, logDir)))
}

func TestRunCommand_FailsBeforeRunning(t *testing.T) {
	logDir := filepath.Join(t.TempDir(), "logs")

	_, err := execute(t, context.Background(), "run", "--ticker", "KXFED", "--start-date", "01/03/2024", "--mock", "--log-dir", logDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid date")

	_, err = execute(t, context.Background(), "run", "--ticker", "KXFED", "--start-date", "2024-03-01", "--log-dir", logDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")

	// Nothing was recorded.
	_, statErr := os.Stat(logDir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunCommand_InterruptedStillReports(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := execute(t, ctx, "run", "--ticker", "KXFED", "--start-date", "2024-03-01", "--mock",
		"--log-dir", filepath.Join(t.TempDir(), "logs"))
	require.NoError(t, err)
	assert.Contains(t, out, "Steps:          0")
	assert.Contains(t, out, "interrupted")
	assert.Contains(t, out, "Final portfolio value: $1000.00")
}

func TestSummarizeCommand(t *testing.T) {
	dir := t.TempDir()
	logDir := filepath.Join(dir, "logs")
	_, err := execute(t, context.Background(), "run",
		"--ticker", "KXFED", "--start-date", "2024-03-01", "--days", "4", "--mock", "--log-dir", logDir)
	require.NoError(t, err)

	csvPath := filepath.Join(dir, "from-log.csv")
	out, err := execute(t, context.Background(), "summarize", "--log", onlyFile(t, logDir), "--csv", csvPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Steps:          4")
	assert.Contains(t, out, "Final portfolio value: $")
	assert.Equal(t, 5, countLines(t, csvPath))

	_, err = execute(t, context.Background(), "summarize")
	assert.Error(t, err)
}

func TestRunsCommand(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "runs.db")
	for i := 0; i < 2; i++ {
		_, err := execute(t, context.Background(), "run", "--ticker", "KXFED", "--start-date", "2024-03-01",
			"--days", "1", "--mock", "--log-dir", filepath.Join(dir, "logs"), "--db", dbPath)
		require.NoError(t, err)
	}

	out, err := execute(t, context.Background(), "runs", "--db", dbPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[1], storage.StatusCompleted)
}
