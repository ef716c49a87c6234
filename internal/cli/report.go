package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/gymlog/internal/config"
	"github.com/roach88/gymlog/internal/report"
	"github.com/roach88/gymlog/internal/store"
)

// ReportOptions holds flags shared by the report subcommands.
type ReportOptions struct {
	*RootOptions
	Database string
	Limit    int
}

// NewReportCommand creates the report command and its subcommands.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Read-only reports over the gym store",
		Long: `Print read-only reports over the stored projections.

Examples:
  gymlog report teams
  gymlog report trainers --limit 20
  gymlog report owners --format json
  gymlog report gyms --db ./gymlog.db`,
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")

	cmd.AddCommand(newReportSubcommand(opts, "teams", "Gym count per controlling team", false,
		func(cmd *cobra.Command, st *store.Store, _ int) (any, error) {
			return report.BuildTeams(cmd.Context(), st)
		}))
	cmd.AddCommand(newReportSubcommand(opts, "trainers", "Trainers ranked by level", true,
		func(cmd *cobra.Command, st *store.Store, limit int) (any, error) {
			return report.BuildTopTrainers(cmd.Context(), st, limit)
		}))
	cmd.AddCommand(newReportSubcommand(opts, "owners", "Trainers ranked by gyms garrisoned", true,
		func(cmd *cobra.Command, st *store.Store, limit int) (any, error) {
			return report.BuildTopOwners(cmd.Context(), st, limit)
		}))
	cmd.AddCommand(newReportSubcommand(opts, "gyms", "Every gym with its garrison", false,
		func(cmd *cobra.Command, st *store.Store, _ int) (any, error) {
			return report.BuildGyms(cmd.Context(), st)
		}))

	return cmd
}

type buildFunc func(cmd *cobra.Command, st *store.Store, limit int) (any, error)

func newReportSubcommand(opts *ReportOptions, name, short string, limited bool, build buildFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:           name,
		Short:         short,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(opts, cmd, limited, build)
		},
	}
	if limited {
		cmd.Flags().IntVar(&opts.Limit, "limit", 0, "number of rows (default from config)")
	}
	return cmd
}

func runReport(opts *ReportOptions, cmd *cobra.Command, limited bool, build buildFunc) error {
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

	limit := 0
	if limited {
		limit = reportLimit(opts.Limit, cfg)
	}

	data, err := build(cmd, st, limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build report", err)
	}
	if err := opts.formatter(cmd).Success(data); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}
	return nil
}

func reportLimit(flag int, cfg *config.Config) int {
	if flag > 0 {
		return flag
	}
	return cfg.ReportLimit
}
