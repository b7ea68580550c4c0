package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vargaseous/sec-mcptest/config"
	"github.com/vargaseous/sec-mcptest/errors"
	"github.com/vargaseous/sec-mcptest/internal/daemon/server"
	"github.com/vargaseous/sec-mcptest/internal/daemon/store"
	"github.com/vargaseous/sec-mcptest/internal/daemon/store/redisstore"
	"github.com/vargaseous/sec-mcptest/internal/daemon/store/sqlitestore"
	"github.com/vargaseous/sec-mcptest/testutil"
)

var datasetPath = filepath.Join("..", "internal", "dataset", "testdata", "facilities.geojson")

// run executes the root command with args and returns its stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// startAPI serves the State API on a memory store and returns a config
// file pointing clients at it.
func startAPI(t *testing.T) string {
	t.Helper()

	cfg, err := config.LoadFromBytes([]byte("store:\n  backend: memory\n"), "yaml")
	require.NoError(t, err)
	cfg.Dataset.Path = datasetPath

	backend := store.NewMemory()
	svc := newService(cfg, backend, testutil.QuietLogger())
	ts := httptest.NewServer(server.New(svc, backend, testutil.QuietLogger()).Handler())
	t.Cleanup(func() {
		ts.Close()
		backend.Close()
	})

	return testutil.WriteFile(t, "viewsync.yml", fmt.Sprintf(`
store:
  backend: memory
client:
  base_url: %s
  timeout: 2s
dataset:
  path: %s
`, ts.URL, datasetPath))
}

func TestOpenBackend(t *testing.T) {
	cfg := config.Default()

	cfg.Store.Backend = config.BackendMemory
	b, err := openBackend(cfg)
	require.NoError(t, err)
	assert.IsType(t, &store.Memory{}, b)
	b.Close()

	cfg.Store.Backend = config.BackendSQLite
	cfg.Store.SQLite.Path = filepath.Join(t.TempDir(), "state.db")
	b, err = openBackend(cfg)
	require.NoError(t, err)
	assert.IsType(t, &sqlitestore.Store{}, b)
	b.Close()

	mr := miniredis.RunT(t)
	cfg.Store.Backend = config.BackendRedis
	cfg.Store.Redis.Addr = mr.Addr()
	b, err = openBackend(cfg)
	require.NoError(t, err)
	assert.IsType(t, &redisstore.Store{}, b)
	assert.NoError(t, b.Ping(context.Background()))
	b.Close()

	cfg.Store.Backend = "etcd"
	_, err = openBackend(cfg)
	assert.Error(t, err)
}

func TestCommandsAgainstRunningAPI(t *testing.T) {
	cfgPath := startAPI(t)

	out, err := run(t, "", "--config", cfgPath, "filters", "clinic", "hospital")
	require.NoError(t, err)
	assert.Equal(t, "clinic\nhospital\n", out)

	out, err = run(t, "", "--config", cfgPath, "map", "--lat", "1.3", "--lng", "103.8", "--zoom", "14")
	require.NoError(t, err)
	assert.Equal(t, "center=1.30000,103.80000 zoom=14\n", out)

	out, err = run(t, "", "--config", cfgPath, "state", "get")
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, []interface{}{"clinic", "hospital"}, doc["selected_fclasses"])
	assert.Equal(t, []interface{}{1.3, 103.8}, doc["map_center"])
	assert.Equal(t, float64(14), doc["zoom_level"])

	out, err = run(t, "", "--config", cfgPath, "fclasses")
	require.NoError(t, err)
	assert.Equal(t, "clinic\nhospital\ndentist\n", out)

	out, err = run(t, "", "--config", cfgPath, "health")
	require.NoError(t, err)
	assert.Equal(t, "status=healthy store=connected\n", out)

	out, err = run(t, "", "--config", cfgPath, "state", "reset")
	require.NoError(t, err)
	assert.Equal(t, "State reset to defaults\n", out)

	out, err = run(t, "", "--config", cfgPath, "--json", "filters")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)
}

func TestStateSetFromStdin(t *testing.T) {
	cfgPath := startAPI(t)

	out, err := run(t, `{"selected_fclasses":["dentist"],"map_center":null}`, "--config", cfgPath, "state", "set")
	require.NoError(t, err)
	assert.JSONEq(t, `{"selected_fclasses":["dentist"],"map_center":null,"zoom_level":12}`, out)

	_, err = run(t, `{"selected_fclasses":"dentist"}`, "--config", cfgPath, "state", "set")
	assert.True(t, errors.Is(err, errors.ErrCodeValidation), "got %v", err)
}

func TestFiltersRejectsAllWithClasses(t *testing.T) {
	cfgPath := startAPI(t)

	_, err := run(t, "", "--config", cfgPath, "filters", "--all", "clinic")
	assert.True(t, errors.Is(err, errors.ErrCodeValidation))
}

func TestFallsBackToStoreWithoutAPI(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	url := down.URL
	down.Close()

	cfgPath := testutil.WriteFile(t, "viewsync.yml", fmt.Sprintf(`
store:
  backend: sqlite
  sqlite:
    path: %s
client:
  base_url: %s
  timeout: 500ms
dataset:
  path: %s
`, filepath.Join(t.TempDir(), "state.db"), url, datasetPath))

	_, err := run(t, "", "--config", cfgPath, "filters", "dentist")
	require.NoError(t, err)

	// A second process sees the write through the same sqlite file.
	out, err := run(t, "", "--config", cfgPath, "filters")
	require.NoError(t, err)
	assert.Equal(t, "dentist\n", out)
}

func TestMCPConfigCmd(t *testing.T) {
	out, err := run(t, "", "--config", "/etc/viewsync.yml", "mcp", "config")
	require.NoError(t, err)

	var cfg map[string]map[string]struct {
		Args []string `json:"args"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, []string{"mcp", "--config", "/etc/viewsync.yml"}, cfg["mcpServers"]["viewsync"].Args)
}

func TestConfigCommands(t *testing.T) {
	out, err := run(t, "", "config", "schema")
	require.NoError(t, err)
	assert.Contains(t, out, `"store"`)

	cfgPath := testutil.WriteFile(t, "viewsync.yml", "store:\n  backend: memory\n  key: view\n")
	out, err = run(t, "", "--config", cfgPath, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "# Source: "+cfgPath)
	assert.Contains(t, out, "key: view")
	assert.Contains(t, out, "op_timeout: 2s")
}

func TestPathsJSON(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())

	out, err := run(t, "", "--json", "paths")
	require.NoError(t, err)

	var got PathsOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, filepath.Join(got.StateDir, "viewsync.pid"), got.PidFile)
	assert.Equal(t, filepath.Join(got.StateDir, "state.db"), got.SQLitePath)
}
