package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/gymlog/internal/report"
)

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	Database string
	GymID    string // optional - one gym only
	Limit    int
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print the gym event log",
		Long: `Print the event log in insertion order, one sentence per event.

Examples:
  gymlog events
  gymlog events --gym e4a5b7d2f3c14b9e8a6d0c1f2e3d4c5b.16 --limit 50
  gymlog events --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.GymID, "gym", "", "only events of this gym id")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of events (0 = all)")

	return cmd
}

func runEvents(opts *EventsOptions, cmd *cobra.Command) error {
	cfg, err := opts.settings(cmd)
	if err != nil {
		return err
	}
	log := opts.logger(cmd.ErrOrStderr(), cfg)

	st, err := openStore(opts.Database, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore(st, log)

	events, err := report.BuildEvents(cmd.Context(), st, opts.GymID, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}
	if err := opts.formatter(cmd).Success(events); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}
	return nil
}
