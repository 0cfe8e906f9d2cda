package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/platefire/expedite/internal/audit"
)

// auditFlags holds the query filters for the audit command.
type auditFlags struct {
	db     string
	order  string
	action string
	level  string
	user   string
	search string
	since  string
	until  string
	limit  int
}

// NewAuditCommand creates the audit command, a read-only view over the
// audit database.
func NewAuditCommand(opts *RootOptions) *cobra.Command {
	flags := &auditFlags{}

	cmd := &cobra.Command{
		Use:           "audit",
		Short:         "Query the audit trail",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := &OutputFormatter{
				Format:    opts.Format,
				Writer:    cmd.OutOrStdout(),
				ErrWriter: cmd.ErrOrStderr(),
				Verbose:   opts.Verbose,
			}

			store, err := openAuditDB(flags.db)
			if err != nil {
				_ = f.Error("E_DB", err.Error(), nil)
				return WrapExitError(ExitCommandError, "opening audit database", err)
			}
			defer store.Close()

			filter := audit.Filter{
				OrderID: flags.order,
				Action:  audit.Action(flags.action),
				Level:   audit.Level(flags.level),
				UserID:  flags.user,
				Search:  flags.search,
				Limit:   flags.limit,
			}
			if filter.From, err = parseTimeFlag(flags.since); err != nil {
				return WrapExitError(ExitCommandError, "parsing --since", err)
			}
			if filter.To, err = parseTimeFlag(flags.until); err != nil {
				return WrapExitError(ExitCommandError, "parsing --until", err)
			}

			entries, err := store.Query(cmd.Context(), filter)
			if err != nil {
				_ = f.Error("E_QUERY", err.Error(), nil)
				return WrapExitError(ExitCommandError, "querying audit trail", err)
			}

			return f.Success(entries, func(w io.Writer) {
				renderEntries(w, entries)
			})
		},
	}

	cmd.Flags().StringVar(&flags.db, "db", "", "audit database path (default $EXPEDITE_DB)")
	cmd.Flags().StringVar(&flags.order, "order", "", "filter by order id")
	cmd.Flags().StringVar(&flags.action, "action", "", "filter by action")
	cmd.Flags().StringVar(&flags.level, "level", "", "filter by severity level")
	cmd.Flags().StringVar(&flags.user, "user", "", "filter by performing user id")
	cmd.Flags().StringVar(&flags.search, "search", "", "free-text search")
	cmd.Flags().StringVar(&flags.since, "since", "", "entries at or after this time (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&flags.until, "until", "", "entries before this time (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().IntVar(&flags.limit, "limit", 50, "maximum entries returned (0 = no limit)")

	return cmd
}

func renderEntries(w io.Writer, entries []audit.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "no matching entries")
		return
	}
	for _, e := range entries {
		order := e.OrderNumber
		if order == "" {
			order = "-"
		}
		fmt.Fprintf(w, "%s  %-8s %-18s #%-6s %s (%s)\n",
			e.Timestamp.Format(time.RFC3339), e.Level, e.Action, order, e.Description, e.PerformedBy)
	}
	fmt.Fprintf(w, "%d entries\n", len(entries))
}

// openAuditDB resolves the database path from the flag or environment.
func openAuditDB(path string) (*audit.Store, error) {
	if path == "" {
		path = os.Getenv("EXPEDITE_DB")
	}
	if path == "" {
		return nil, fmt.Errorf("no database: pass --db or set EXPEDITE_DB")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("audit database: %w", err)
	}
	return audit.Open(path)
}

// parseTimeFlag accepts RFC 3339 timestamps or bare dates.
func parseTimeFlag(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither RFC 3339 nor YYYY-MM-DD", s)
	}
	return t.UTC(), nil
}
