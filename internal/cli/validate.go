package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/platefire/expedite/internal/config"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "validate <config.cue>",
		Short:         "Validate an engine configuration file",
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

			cfg, err := config.Load(args[0])
			if err != nil {
				_ = f.Error("E_CONFIG", err.Error(), nil)
				return WrapExitError(ExitFailure, "config validation failed", err)
			}

			return f.Success(cfg, func(w io.Writer) {
				fmt.Fprintf(w, "%s: valid\n", args[0])
				fmt.Fprintf(w, "  devices:        %d\n", len(cfg.Devices))
				fmt.Fprintf(w, "  assignments:    %d\n", len(cfg.Assignments))
				if cfg.DefaultDevice != "" {
					fmt.Fprintf(w, "  default device: %s\n", cfg.DefaultDevice)
				} else {
					fmt.Fprintf(w, "  default device: (none, unrouted items rejected)\n")
				}
				fmt.Fprintf(w, "  urgent priority: %d\n", cfg.UrgentPriority)
				fmt.Fprintf(w, "  retry: %d attempts, %s backoff\n", cfg.Retry.Attempts, cfg.Retry.Backoff())
			})
		},
	}
	return cmd
}
