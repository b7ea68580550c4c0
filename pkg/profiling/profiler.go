// Package profiling adds --cpu-profile, --mem-profile and --timing to a
// cobra command tree.
package profiling

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/spf13/cobra"
)

// Profiler holds the profiling flags and the open CPU profile.
type Profiler struct {
	cpuPath string
	memPath string
	timing  bool

	cpuFile *os.File
}

// New creates a Profiler.
func New() *Profiler {
	return &Profiler{}
}

// Attach registers the flags on root and chains the start/stop hooks into
// its persistent pre- and post-run.
func (p *Profiler) Attach(root *cobra.Command) {
	root.PersistentFlags().StringVar(&p.cpuPath, "cpu-profile", "", "Write a CPU profile to file")
	root.PersistentFlags().StringVar(&p.memPath, "mem-profile", "", "Write a heap profile to file on exit")
	root.PersistentFlags().BoolVar(&p.timing, "timing", false, "Print a timing summary on exit")

	pre, post := root.PersistentPreRunE, root.PersistentPostRunE
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := p.start(); err != nil {
			return err
		}
		if pre != nil {
			return pre(cmd, args)
		}
		return nil
	}
	root.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		if post != nil {
			err = post(cmd, args)
		}
		p.stop(cmd)
		return err
	}
}

func (p *Profiler) start() error {
	if p.timing {
		Enable()
	}
	if p.cpuPath == "" {
		return nil
	}

	f, err := os.Create(p.cpuPath)
	if err != nil {
		return fmt.Errorf("could not create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return fmt.Errorf("could not start CPU profile: %w", err)
	}
	p.cpuFile = f
	return nil
}

// stop writes whatever was requested. Failures are reported, not returned;
// the command itself already finished.
func (p *Profiler) stop(cmd *cobra.Command) {
	errOut := cmd.ErrOrStderr()

	if p.cpuFile != nil {
		pprof.StopCPUProfile()
		p.cpuFile.Close()
		p.cpuFile = nil
		fmt.Fprintf(errOut, "CPU profile written to %s\n", p.cpuPath)
	}

	if p.memPath != "" {
		if err := writeHeapProfile(p.memPath); err != nil {
			fmt.Fprintf(errOut, "could not write memory profile: %v\n", err)
		} else {
			fmt.Fprintf(errOut, "Memory profile written to %s\n", p.memPath)
		}
	}

	if p.timing {
		Summarize(errOut)
	}
}

func writeHeapProfile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	runtime.GC()
	return pprof.WriteHeapProfile(f)
}
