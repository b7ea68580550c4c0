package profiling

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackDisabledRecordsNothing(t *testing.T) {
	reset()
	Track("noop")()

	var out bytes.Buffer
	Summarize(&out)
	assert.Empty(t, out.String())
}

func TestTrackAccumulates(t *testing.T) {
	reset()
	t.Cleanup(reset)
	Enable()

	Track("get_state")()
	Track("get_state")()
	Track("list_classes")()

	var out bytes.Buffer
	Summarize(&out)
	assert.Contains(t, out.String(), "--- Timing")
	assert.Contains(t, out.String(), "- get_state x2")
	assert.Contains(t, out.String(), "- list_classes x1")
}

func TestAttachWritesProfiles(t *testing.T) {
	reset()
	t.Cleanup(reset)

	dir := t.TempDir()
	cpu := filepath.Join(dir, "cpu.pprof")
	mem := filepath.Join(dir, "mem.pprof")

	var preRan bool
	root := &cobra.Command{
		Use:               "viewsync",
		PersistentPreRunE: func(*cobra.Command, []string) error { preRan = true; return nil },
		RunE: func(*cobra.Command, []string) error {
			Track("work")()
			return nil
		},
	}
	New().Attach(root)

	var errOut bytes.Buffer
	root.SetErr(&errOut)
	root.SetArgs([]string{"--cpu-profile", cpu, "--mem-profile", mem, "--timing"})
	require.NoError(t, root.Execute())

	assert.True(t, preRan, "existing pre-run hook still runs")
	for _, path := range []string{cpu, mem} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.NotZero(t, info.Size())
	}
	assert.Contains(t, errOut.String(), "CPU profile written to "+cpu)
	assert.Contains(t, errOut.String(), "- work x1")
}
