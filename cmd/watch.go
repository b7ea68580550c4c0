package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/vargaseous/sec-mcptest/config"
	"github.com/vargaseous/sec-mcptest/internal/dataset"
	"github.com/vargaseous/sec-mcptest/internal/notify"
	"github.com/vargaseous/sec-mcptest/internal/poll"
	"github.com/vargaseous/sec-mcptest/logging"
	"github.com/vargaseous/sec-mcptest/tui"
	"github.com/vargaseous/sec-mcptest/tui/watch"
)

func newWatchCmd() *cobra.Command {
	var (
		plain    bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the view state as other clients change it",
		Long: `Poll for change events and re-render the current filters, map view and
matching facilities whenever another client writes. Falls back to plain
line output when stdout is not a terminal.`,
		Example: `  viewsync watch
  viewsync watch --plain --interval 250ms`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withSession(cmd, func(_ context.Context, s *session) error {
				if interval > 0 {
					s.cfg.Poll.Interval = config.Duration(interval)
				}

				checker, closeChecker, err := changeChecker(s)
				if err != nil {
					return err
				}
				defer closeChecker()

				out := cmd.OutOrStdout()
				if plain || !isTerminal(out) {
					return watchPlain(ctx, s, checker, out)
				}
				return watchTUI(ctx, s, checker)
			})
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "Print one line per change instead of the interactive view")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Time between change checks, overrides poll.interval")
	return cmd
}

// changeChecker subscribes to the store's change channel. A memory store
// lives inside the server process, so its changes are followed through the
// State API's event stream instead.
func changeChecker(s *session) (poll.Checker, func(), error) {
	logger := logging.NewLogger("notify")
	wait := s.cfg.Poll.CheckTimeout.Std()

	if s.cfg.Store.Backend == config.BackendMemory {
		if s.backend != nil {
			return notify.NewBridge(s.backend, s.cfg.Store.Channel, wait, logger), func() {}, nil
		}
		return notify.NewStreamChecker(s.client.StreamChanges, "events", wait, logger), func() {}, nil
	}

	backend := s.backend
	release := func() {}
	if backend == nil {
		var err error
		backend, err = openBackend(s.cfg)
		if err != nil {
			return nil, nil, err
		}
		release = func() { _ = backend.Close() }
	}
	return notify.NewBridge(backend, s.cfg.Store.Channel, wait, logger), release, nil
}

func watchTUI(ctx context.Context, s *session, checker poll.Checker) error {
	tui.InitializeTUI()

	loop := poll.New(checker, s.cfg.Poll.Interval.Std(), nil, logging.NewLogger("poll"))
	defer checker.Close()

	facilities := dataset.New(s.cfg.Dataset.Path, s.cfg.Dataset.ClassField)
	model := watch.New(ctx, s.client, loop, facilities, loop.Interval())

	_, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// watchPlain prints the document once and again after every change.
func watchPlain(ctx context.Context, s *session, checker poll.Checker, out io.Writer) error {
	render := func(ctx context.Context) error {
		doc, err := s.client.GetState(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, watch.Summary(doc))
		return nil
	}

	if err := render(ctx); err != nil {
		return err
	}

	loop := poll.New(checker, s.cfg.Poll.Interval.Std(), render, logging.NewLogger("poll"))
	if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
