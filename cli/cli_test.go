package cli

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vargaseous/sec-mcptest/errors"
)

func TestStandardFlags(t *testing.T) {
	cmd := NewStandardCommand("viewsync", "test")
	cmd.Run = func(*cobra.Command, []string) {}
	cmd.SetArgs([]string{"-v", "--json", "--config", "custom.yml"})
	require.NoError(t, cmd.Execute())

	opts := GetOptions(cmd)
	assert.Equal(t, CommandOptions{ConfigFile: "custom.yml", Verbose: true, JSONOutput: true}, opts)
}

func TestLoadConfigFromFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "viewsync.yml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  backend: memory\n"), 0o644))

	cmd := NewStandardCommand("viewsync", "test")
	require.NoError(t, cmd.ParseFlags([]string{"--config", path}))

	cfg, used, err := LoadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, "memory", cfg.Store.Backend)
}

func TestLoadConfigMissingFile(t *testing.T) {
	cmd := NewStandardCommand("viewsync", "test")
	require.NoError(t, cmd.ParseFlags([]string{"--config", filepath.Join(t.TempDir(), "nope.yml")}))

	_, _, err := LoadConfig(cmd)
	assert.True(t, errors.Is(err, errors.ErrCodeConfigNotFound))
}

func TestErrorHandler(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"api", errors.APIUnavailable("http://localhost:8000", stderrors.New("refused")), "State API is not reachable at http://localhost:8000"},
		{"store", errors.StoreUnavailable("get", stderrors.New("dial tcp")), "backing store is unavailable"},
		{"validation", errors.Validation("zoom", "must be an integer"), "Error:"},
		{"config", errors.ConfigNotFound("/tmp/viewsync.yml"), "configuration file /tmp/viewsync.yml not found"},
		{"plain", stderrors.New("boom"), "Error: boom"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			err := NewErrorHandler(&out, false).Handle(tc.err)
			assert.Equal(t, tc.err, err)
			assert.Contains(t, out.String(), tc.want)
		})
	}

	var out bytes.Buffer
	assert.NoError(t, NewErrorHandler(&out, true).Handle(nil))
	assert.Empty(t, out.String())
}

func TestErrorHandlerVerboseDetails(t *testing.T) {
	var out bytes.Buffer
	_ = NewErrorHandler(&out, true).Handle(errors.ConfigNotFound("/tmp/x.yml"))
	assert.Contains(t, out.String(), `"code": "CONFIG_NOT_FOUND"`)
}

func TestVersionCommandJSON(t *testing.T) {
	root := NewStandardCommand("viewsync", "test")
	root.AddCommand(NewVersionCommand("viewsync"))

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version", "--json"})
	require.NoError(t, root.Execute())

	var info map[string]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.Equal(t, "dev", info["version"])
	assert.NotEmpty(t, info["go_version"])
}

func TestStyledHelp(t *testing.T) {
	root := NewStandardCommand("viewsync", "Shared view state")
	sub := &cobra.Command{Use: "serve", Short: "Run the State API", Run: func(*cobra.Command, []string) {}}
	sub.Flags().String("addr", ":8000", "Listen address")
	root.AddCommand(sub)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"serve", "--help"})
	require.NoError(t, root.Execute())

	help := out.String()
	assert.Contains(t, help, "VIEWSYNC SERVE")
	assert.Contains(t, help, "--addr")
	assert.Contains(t, help, "(default: :8000)")
}
