package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/platefire/expedite/internal/config"
	"github.com/platefire/expedite/internal/harness"
)

// NewSimulateCommand creates the simulate command. It runs a YAML dispatch
// scenario against an in-memory engine and prints what the printers would
// have received.
func NewSimulateCommand(opts *RootOptions) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "simulate <scenario.yaml>",
		Short:         "Run a dispatch scenario and show the resulting tickets",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := &OutputFormatter{
				Format:    opts.Format,
				Writer:    cmd.OutOrStdout(),
				ErrWriter: cmd.ErrOrStderr(),
				Verbose:   opts.Verbose,
			}

			scenario, err := harness.LoadScenario(args[0])
			if err != nil {
				_ = f.Error("E_SCENARIO", err.Error(), nil)
				return WrapExitError(ExitCommandError, "loading scenario", err)
			}
			f.VerboseLog("running scenario %s: %s", scenario.Name, scenario.Description)

			var cfg *config.Config
			if configPath != "" {
				cfg, err = config.Load(configPath)
				if err != nil {
					_ = f.Error("E_CONFIG", err.Error(), nil)
					return WrapExitError(ExitCommandError, "loading config", err)
				}
			}

			result, err := harness.RunWithConfig(scenario, cfg)
			if err != nil {
				_ = f.Error("E_RUN", err.Error(), nil)
				return WrapExitError(ExitCommandError, "running scenario", err)
			}

			if outErr := f.Success(result, func(w io.Writer) {
				renderResult(w, scenario.Name, result)
			}); outErr != nil {
				return outErr
			}

			if !result.Pass {
				return WrapExitError(ExitFailure, "scenario expectations not met", nil)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "engine configuration (CUE) to run the scenario against")
	return cmd
}

func renderResult(w io.Writer, name string, result *harness.Result) {
	status := "PASS"
	if !result.Pass {
		status = "FAIL"
	}
	fmt.Fprintf(w, "scenario %s: %s\n\n", name, status)

	for _, e := range result.Trace {
		if e.Error != "" {
			fmt.Fprintf(w, "  [%d] %-10s %-6s error=%s\n", e.Step, e.Action, e.Order, e.Error)
			continue
		}
		fmt.Fprintf(w, "  [%d] %-10s %-6s %s\n", e.Step, e.Action, e.Order, e.Detail)
	}

	if len(result.Tickets) > 0 {
		fmt.Fprintf(w, "\ntickets (%d):\n", len(result.Tickets))
		for _, t := range result.Tickets {
			fmt.Fprintln(w)
			fmt.Fprint(w, t)
		}
	}

	for _, msg := range result.Errors {
		fmt.Fprintf(w, "\nFAIL: %s\n", msg)
	}
}
