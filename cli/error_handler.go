package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/vargaseous/sec-mcptest/errors"
	"github.com/vargaseous/sec-mcptest/tui/theme"
)

// ErrorHandler prints user-facing messages for command failures.
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates a new error handler writing to out.
func NewErrorHandler(out io.Writer, verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		Out:     out,
	}
}

// Handle prints a message for err based on its code and returns err.
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}

	t := theme.DefaultTheme
	label := lipgloss.NewStyle().Bold(true).Foreground(t.Colors.Red).Render("Error:")
	syncErr, _ := errors.As(err)

	switch errors.GetCode(err) {
	case errors.ErrCodeAPIUnavailable:
		fmt.Fprintf(h.Out, "%s State API is not reachable at %v\n", label, syncErr.Details["base_url"])
		fmt.Fprintln(h.Out, t.Muted.Render("Start it with 'viewsync serve' or set client.base_url."))

	case errors.ErrCodeStoreUnavailable:
		fmt.Fprintf(h.Out, "%s the backing store is unavailable during %v\n", label, syncErr.Details["operation"])
		fmt.Fprintln(h.Out, t.Muted.Render("Check store.backend and the store address in viewsync.yml."))

	case errors.ErrCodeValidation:
		fmt.Fprintf(h.Out, "%s %s\n", label, syncErr.Message)

	case errors.ErrCodeConfigNotFound:
		fmt.Fprintf(h.Out, "%s configuration file %v not found\n", label, syncErr.Details["path"])

	case errors.ErrCodeConfigInvalid:
		fmt.Fprintf(h.Out, "%s invalid configuration: %s\n", label, syncErr.Message)
		if syncErr.Cause != nil {
			fmt.Fprintln(h.Out, t.Muted.Render(syncErr.Cause.Error()))
		}

	case errors.ErrCodeDataUnavailable:
		fmt.Fprintf(h.Out, "%s facility dataset %v cannot be read\n", label, syncErr.Details["path"])
		fmt.Fprintln(h.Out, t.Muted.Render("Check dataset.path in viewsync.yml."))

	default:
		fmt.Fprintf(h.Out, "%s %v\n", label, err)
	}

	if h.Verbose && syncErr != nil {
		fmt.Fprintf(h.Out, "\nError details:\n%s\n", syncErr.ToJSON())
	}
	return err
}
