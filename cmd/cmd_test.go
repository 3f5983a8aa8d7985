package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Mohsinsiddi/alchscan/internal/collector"
	"github.com/Mohsinsiddi/alchscan/internal/config"
	"github.com/Mohsinsiddi/alchscan/internal/keys"
	"github.com/Mohsinsiddi/alchscan/internal/logging"
	"github.com/Mohsinsiddi/alchscan/internal/providers"
	"github.com/Mohsinsiddi/alchscan/test/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddr = "0x1f9090aae28b8a3dceadf281b0f12828e676c326"

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	c, err := config.Load(t.TempDir(), nil)
	require.NoError(t, err)
	c.Address = testAddr
	c.BaseURL = baseURL
	c.Output = filepath.Join(t.TempDir(), "transactions.txt")
	require.NoError(t, c.Validate())
	return c
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	trimmed := strings.TrimSuffix(string(data), "\n")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}

func useKeystore(t *testing.T, s keys.Store) {
	t.Helper()
	prev := openKeystore
	openKeystore = func() keys.Store { return s }
	t.Cleanup(func() { openKeystore = prev })
}

// executeCommand runs the root command with args and returns stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return stdout.String(), err
}

// ---------------------------------------------------------------------------
// runCollect
// ---------------------------------------------------------------------------

func TestRunCollectWritesFixtureHistory(t *testing.T) {
	srv := fixtures.NewAlchemyServer(t, fixtures.TwoPageHistory())
	c := testConfig(t, srv.URL)

	var progress int
	res, err := runCollect(context.Background(), c, "KEY", logging.Discard(), func(p collector.Progress) { progress++ })
	require.NoError(t, err)

	assert.Len(t, res.Records, 3)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, 2, srv.Requests())
	assert.Equal(t, 2, progress)

	lines := readLines(t, c.Output)
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"asset":"ETH"`)
	assert.Contains(t, lines[1], `"asset":"USDC"`)
	assert.Contains(t, lines[2], `"value":32`)
}

func TestRunCollectMaxRecordsTruncates(t *testing.T) {
	srv := fixtures.NewAlchemyServer(t, fixtures.TwoPageHistory())
	c := testConfig(t, srv.URL)
	c.MaxRecords = 2

	res, err := runCollect(context.Background(), c, "KEY", logging.Discard(), nil)
	require.NoError(t, err)
	assert.Len(t, res.Records, 2)
	assert.Equal(t, 1, srv.Requests(), "limit reached after the first page")
	assert.Len(t, readLines(t, c.Output), 2)
}

func TestRunCollectCacheServesSecondRun(t *testing.T) {
	srv := fixtures.NewAlchemyServer(t, fixtures.TwoPageHistory())
	c := testConfig(t, srv.URL)
	c.Cache = filepath.Join(t.TempDir(), "cache", "pages.db")

	_, err := runCollect(context.Background(), c, "KEY", logging.Discard(), nil)
	require.NoError(t, err)
	require.Equal(t, 2, srv.Requests())

	res, err := runCollect(context.Background(), c, "KEY", logging.Discard(), nil)
	require.NoError(t, err)
	assert.Len(t, res.Records, 3)
	assert.Equal(t, 2, srv.Requests(), "second run is served from the cache")
}

func TestRunCollectWritesMetricsFile(t *testing.T) {
	srv := fixtures.NewAlchemyServer(t, fixtures.TwoPageHistory())
	c := testConfig(t, srv.URL)
	c.MetricsFile = filepath.Join(t.TempDir(), "alchscan.prom")

	_, err := runCollect(context.Background(), c, "KEY", logging.Discard(), nil)
	require.NoError(t, err)

	data, err := os.ReadFile(c.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `alchscan_fetch_pages_total{direction="from"} 2`)
	assert.Contains(t, string(data), `alchscan_fetch_records_total{direction="from"} 3`)
}

func TestRunCollectRPCErrorWritesNothing(t *testing.T) {
	srv := fixtures.NewAlchemyServer(t, map[string]string{"": "rpc_error.json"})
	c := testConfig(t, srv.URL)

	_, err := runCollect(context.Background(), c, "KEY", logging.Discard(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, providers.ErrRPC)
	assert.NoFileExists(t, c.Output)
}

func TestRunCollectMalformedIsWarningUnlessStrict(t *testing.T) {
	srv := fixtures.NewAlchemyServer(t, map[string]string{"": "no_result.json"})

	c := testConfig(t, srv.URL)
	res, err := runCollect(context.Background(), c, "KEY", logging.Discard(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Len(t, res.Warnings, 1)
	assert.Empty(t, readLines(t, c.Output))

	strict := testConfig(t, srv.URL)
	strict.Strict = true
	_, err = runCollect(context.Background(), strict, "KEY", logging.Discard(), nil)
	assert.ErrorIs(t, err, providers.ErrMalformed)
	assert.NoFileExists(t, strict.Output)
}

// ---------------------------------------------------------------------------
// rendering helpers
// ---------------------------------------------------------------------------

func TestErrorLineHints(t *testing.T) {
	assert.Contains(t, errorLine(fmt.Errorf("%w: bad", config.ErrInvalid)), "config show")
	assert.Contains(t, errorLine(fmt.Errorf("%w -32602: nope", providers.ErrRPC)), "API key")
	assert.Contains(t, errorLine(fmt.Errorf("stream x: %w", providers.ErrMalformed)), "--strict")
	assert.Contains(t, errorLine(context.Canceled), "nothing was written")

	plain := errorLine(errors.New("boom"))
	assert.Contains(t, plain, "boom")
	assert.NotContains(t, plain, "→")
}

func TestConfigPairsMasksAPIKey(t *testing.T) {
	c := testConfig(t, "")
	c.APIKey = "vHX215j9gH01Qc94IYLX"

	out := fmt.Sprint(configPairs(c))
	assert.NotContains(t, out, c.APIKey)
	assert.Contains(t, out, "vHX2")
	assert.Contains(t, out, "unlimited")

	c.APIKey = ""
	assert.Contains(t, fmt.Sprint(configPairs(c)), "(keychain)")
}

// ---------------------------------------------------------------------------
// commands
// ---------------------------------------------------------------------------

func TestKeyCommands(t *testing.T) {
	ks := keys.NewInMemoryKeystore()
	useKeystore(t, ks)
	dir := t.TempDir()

	out, err := executeCommand(t, "key", "show", "--config", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No API key stored")

	out, err = executeCommand(t, "key", "set", "vHX215j9gH01Qc94IYLX", "--config", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "vHX2")
	assert.NotContains(t, out, "vHX215j9gH01Qc94IYLX")

	stored, err := ks.Get(keys.APIKeyRef)
	require.NoError(t, err)
	assert.Equal(t, "vHX215j9gH01Qc94IYLX", stored)

	out, err = executeCommand(t, "key", "show", "--config", dir)
	require.NoError(t, err)
	assert.Contains(t, out, keys.APIKeyRef)

	out, err = executeCommand(t, "key", "delete", "--config", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "removed")
	_, err = ks.Get(keys.APIKeyRef)
	assert.ErrorIs(t, err, keys.ErrNotFound)
}

func TestConfigInitThenShow(t *testing.T) {
	dir := t.TempDir()

	out, err := executeCommand(t, "config", "init", "--config", dir)
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, "config.yaml"))
	assert.FileExists(t, filepath.Join(dir, "config.yaml"))

	out, err = executeCommand(t, "config", "show", "--config", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Current Configuration")
	assert.Contains(t, out, "ethereum")
	assert.Contains(t, out, filepath.Join(dir, "config.yaml"))
}

func TestCacheStatsWithoutCache(t *testing.T) {
	dir := t.TempDir()
	_, err := executeCommand(t, "cache", "stats", "--config", dir)
	require.Error(t, err, "no cache path configured")

	path := filepath.Join(dir, "missing.db")
	out, err := executeCommand(t, "cache", "stats", "--config", dir, "--cache", path)
	require.NoError(t, err)
	assert.Contains(t, out, "No cache")
	assert.NoFileExists(t, path)
}

func TestCollectCommandUsesKeychainKey(t *testing.T) {
	ks := keys.NewInMemoryKeystore()
	require.NoError(t, ks.Set(keys.APIKeyRef, "KEY"))
	useKeystore(t, ks)

	srv := fixtures.NewAlchemyServer(t, fixtures.TwoPageHistory())
	dir := t.TempDir()
	output := filepath.Join(dir, "out.jsonl")

	out, err := executeCommand(t, "collect", testAddr,
		"--config", dir,
		"--base-url", srv.URL,
		"--output", output,
		"--concurrency", "2",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "Collection complete")
	assert.Contains(t, out, "Wrote 3 records")
	assert.Contains(t, out, "0x1f9090aaE28b8a3dCeaDf281B0F12828e676c326", "address is shown checksummed")
	assert.Len(t, readLines(t, output), 3)
}
