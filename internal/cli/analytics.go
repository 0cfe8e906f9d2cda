package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/platefire/expedite/internal/audit"
)

// NewAnalyticsCommand creates the analytics command, aggregate counts over
// a window of the audit trail.
func NewAnalyticsCommand(opts *RootOptions) *cobra.Command {
	var db, since, until string

	cmd := &cobra.Command{
		Use:           "analytics",
		Short:         "Summarize audit activity",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := &OutputFormatter{
				Format:    opts.Format,
				Writer:    cmd.OutOrStdout(),
				ErrWriter: cmd.ErrOrStderr(),
				Verbose:   opts.Verbose,
			}

			store, err := openAuditDB(db)
			if err != nil {
				_ = f.Error("E_DB", err.Error(), nil)
				return WrapExitError(ExitCommandError, "opening audit database", err)
			}
			defer store.Close()

			from, err := parseTimeFlag(since)
			if err != nil {
				return WrapExitError(ExitCommandError, "parsing --since", err)
			}
			to, err := parseTimeFlag(until)
			if err != nil {
				return WrapExitError(ExitCommandError, "parsing --until", err)
			}

			stats, err := store.Analytics(cmd.Context(), from, to)
			if err != nil {
				_ = f.Error("E_QUERY", err.Error(), nil)
				return WrapExitError(ExitCommandError, "computing analytics", err)
			}

			return f.Success(stats, func(w io.Writer) {
				fmt.Fprintf(w, "total operations: %d\n", stats.TotalOperations)
				fmt.Fprintf(w, "errors: %d, warnings: %d\n", stats.ErrorCount, stats.WarningCount)

				fmt.Fprintln(w, "by action:")
				actions := make([]string, 0, len(stats.ByAction))
				for a := range stats.ByAction {
					actions = append(actions, string(a))
				}
				sort.Strings(actions)
				for _, a := range actions {
					fmt.Fprintf(w, "  %-18s %d\n", a, stats.ByAction[audit.Action(a)])
				}

				fmt.Fprintln(w, "by user:")
				users := make([]string, 0, len(stats.ByUser))
				for u := range stats.ByUser {
					users = append(users, u)
				}
				sort.Strings(users)
				for _, u := range users {
					fmt.Fprintf(w, "  %-18s %d\n", u, stats.ByUser[u])
				}
			})
		},
	}

	cmd.Flags().StringVar(&db, "db", "", "audit database path (default $EXPEDITE_DB)")
	cmd.Flags().StringVar(&since, "since", "", "window start (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&until, "until", "", "window end (RFC 3339 or YYYY-MM-DD)")

	return cmd
}
