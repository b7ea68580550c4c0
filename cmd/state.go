package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vargaseous/sec-mcptest/cli"
	"github.com/vargaseous/sec-mcptest/errors"
	"github.com/vargaseous/sec-mcptest/state"
)

func newStateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Read, replace or reset the whole view state",
	}
	cmd.AddCommand(newStateGetCmd(), newStateSetCmd(), newStateResetCmd())
	return cmd
}

func newStateGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Print the current state document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				doc, err := s.client.GetState(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, doc)
			})
		},
	}
}

func newStateSetCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Replace the whole state document",
		Long: `Replace the whole state document with JSON read from --file, or from
stdin when --file is "-". Missing zoom_level defaults to 12.`,
		Example: `  viewsync state set --file view.json
  echo '{"selected_fclasses":["clinic"],"map_center":null}' | viewsync state set`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			doc, err := state.DecodeDocument(raw)
			if err != nil {
				return err
			}
			return withSession(cmd, func(ctx context.Context, s *session) error {
				saved, err := s.client.ReplaceState(ctx, doc)
				if err != nil {
					return err
				}
				return printJSON(cmd, saved)
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSON document to store, - for stdin")
	return cmd
}

func newStateResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Reset the view state to its defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				if err := s.client.ResetState(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "State reset to defaults")
				return nil
			})
		},
	}
}

func newFiltersCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "filters [fclass...]",
		Short: "Show or set the selected facility classes",
		Long: `Without arguments, print the selected facility classes. With arguments,
select exactly those classes. --all clears the selection so every class
is shown.`,
		Example: `  viewsync filters
  viewsync filters clinic hospital
  viewsync filters --all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all && len(args) > 0 {
				return errors.Validation("fclass", "--all takes no classes")
			}
			return withSession(cmd, func(ctx context.Context, s *session) error {
				if !all && len(args) == 0 {
					doc, err := s.client.GetState(ctx)
					if err != nil {
						return err
					}
					return printClasses(cmd, doc.SelectedFClasses, "(all classes)")
				}

				if args == nil {
					args = []string{}
				}
				classes, err := s.client.SetFilters(ctx, args)
				if err != nil {
					return err
				}
				return printClasses(cmd, classes, "(all classes)")
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Clear the selection and show every class")
	return cmd
}

func newMapCmd() *cobra.Command {
	var (
		lat, lng float64
		zoom     int
	)

	cmd := &cobra.Command{
		Use:     "map",
		Short:   "Set the map center and zoom",
		Example: `  viewsync map --lat 1.3521 --lng 103.8198 --zoom 12`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				view, err := s.client.SetMapView(ctx, state.MapView{Center: state.LatLng{lat, lng}, Zoom: zoom})
				if err != nil {
					return err
				}
				if cli.GetOptions(cmd).JSONOutput {
					return printJSON(cmd, view)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "center=%.5f,%.5f zoom=%d\n", view.Center[0], view.Center[1], view.Zoom)
				return nil
			})
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "Center latitude")
	cmd.Flags().Float64Var(&lng, "lng", 0, "Center longitude")
	cmd.Flags().IntVar(&zoom, "zoom", state.DefaultZoom, "Zoom level")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lng")
	return cmd
}

func newFClassesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fclasses",
		Short: "List the facility classes found in the dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				classes, err := s.client.ListFacilityClasses(ctx)
				if err != nil {
					return err
				}
				return printClasses(cmd, classes, "(no classes in dataset)")
			})
		},
	}
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the State API and its store are up",
		Long:  "Print the health status. Exits non-zero when the store is disconnected.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				h, err := s.client.Health(ctx)
				if err != nil {
					return err
				}
				if cli.GetOptions(cmd).JSONOutput {
					if err := printJSON(cmd, h); err != nil {
						return err
					}
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "status=%s store=%s\n", h.Status, h.Store)
				}
				if !h.Healthy() {
					return errors.New(errors.ErrCodeStoreUnavailable, "store disconnected").
						WithDetail("operation", "health")
				}
				return nil
			})
		},
	}
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

// printClasses prints one class per line, or a JSON array with --json.
func printClasses(cmd *cobra.Command, classes []string, empty string) error {
	if cli.GetOptions(cmd).JSONOutput {
		if classes == nil {
			classes = []string{}
		}
		return printJSON(cmd, classes)
	}
	if len(classes) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), empty)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), strings.Join(classes, "\n"))
	return nil
}

func readInput(stdin io.Reader, file string) ([]byte, error) {
	if file == "" || file == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file, err)
	}
	return data, nil
}
