package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/gymlog/internal/diff"
	"github.com/roach88/gymlog/internal/gym"
	"github.com/roach88/gymlog/internal/metrics"
	"github.com/roach88/gymlog/internal/reconcile"
	"github.com/roach88/gymlog/internal/snapshot"
)

// ReconcileOptions holds flags for the reconcile command.
type ReconcileOptions struct {
	*RootOptions
	Database    string
	NoHeartbeat bool
	Policy      string
	MetricsFile string

	// PassIDs overrides the pass id generator (for testing).
	PassIDs reconcile.PassIDGenerator
	// Clock overrides the reconciliation clock (for testing).
	Clock diff.Clock
}

// BatchResult is the outcome of one batch file.
type BatchResult struct {
	File    string            `json:"file"`
	Summary reconcile.Summary `json:"summary"`
}

// ReconcileResult holds every batch reconciled by one invocation.
type ReconcileResult struct {
	Batches  []BatchResult `json:"batches"`
	Failures int           `json:"failures"`
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	return newReconcileCommand(&ReconcileOptions{RootOptions: rootOpts})
}

func newReconcileCommand(opts *ReconcileOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile FILE...",
		Short: "Reconcile batches of gym snapshots",
		Long: `Reconcile one or more batch files of provider gym records.

Each file is one reconciliation pass: every gym is diffed against its stored
projection, the resulting events are appended to the log, and the projection
and memberships are replaced. Files ending in .yaml or .yml are read as YAML
sequences, everything else as a JSON array.

With --metrics-file the pass counters are written in the Prometheus text
format once every batch has run, for the node exporter textfile collector.

Exit codes:
  0 - Every gym reconciled
  1 - Some gyms were skipped (malformed records or storage faults)
  2 - Command error (unreadable batch, database not found, etc.)

Examples:
  gymlog reconcile --db ./gymlog.db batch.json
  gymlog reconcile --policy modified --no-heartbeat batches/*.json
  gymlog reconcile --format json batch.yaml
  gymlog reconcile --metrics-file /var/lib/node_exporter/gymlog.prom batch.json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().BoolVar(&opts.NoHeartbeat, "no-heartbeat", false, "do not log a no-change event for unchanged gyms")
	cmd.Flags().StringVar(&opts.Policy, "policy", "", "diff trigger policy: always|modified (default from config)")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write pass metrics to this file in Prometheus text format")

	return cmd
}

func runReconcile(opts *ReconcileOptions, files []string, cmd *cobra.Command) error {
	ctx := cmd.Context()

	cfg, err := opts.settings(cmd)
	if err != nil {
		return err
	}
	log := opts.logger(cmd.ErrOrStderr(), cfg)

	policy := cfg.Policy()
	if opts.Policy != "" {
		policy, err = diff.ParsePolicy(opts.Policy)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid flags", err)
		}
	}
	heartbeat := cfg.Heartbeat && !opts.NoHeartbeat

	// An unreadable file fails the command before any pass is applied.
	raws := make([]rawBatch, 0, len(files))
	for _, file := range files {
		recs, err := snapshot.ReadBatchFile(file)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read batch", err)
		}
		raws = append(raws, rawBatch{file: file, records: recs})
	}

	st, err := openStore(opts.Database, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore(st, log)

	rec := metrics.New()
	r, err := reconcile.New(st,
		reconcile.WithLogger(log),
		reconcile.WithHeartbeat(heartbeat),
		reconcile.WithPolicy(policy),
		reconcile.WithMetrics(rec),
		reconcile.WithPassIDs(opts.PassIDs),
		reconcile.WithClock(opts.Clock),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create reconciler", err)
	}

	result := ReconcileResult{Batches: make([]BatchResult, 0, len(raws))}
	for _, b := range raws {
		log.Info("reconciling batch", "file", b.file, "records", len(b.records))
		sum, err := r.ReconcileBatch(ctx, b.records)
		result.Batches = append(result.Batches, BatchResult{File: b.file, Summary: sum})
		result.Failures += len(sum.Failures)
		if err != nil {
			_ = opts.formatter(cmd).Success(result)
			writeMetricsFile(opts.MetricsFile, rec, log)
			return WrapExitError(ExitCommandError, "reconciliation interrupted", err)
		}
	}

	if opts.MetricsFile != "" {
		if err := rec.WriteTextfile(opts.MetricsFile); err != nil {
			return WrapExitError(ExitCommandError, "failed to write metrics", err)
		}
	}

	if err := opts.formatter(cmd).Success(result); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}
	if result.Failures > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d gym failures", result.Failures))
	}
	return nil
}

// WriteText renders one summary block per batch.
func (r ReconcileResult) WriteText(w io.Writer) error {
	for _, b := range r.Batches {
		s := b.Summary
		fmt.Fprintf(w, "%s: pass %s\n", b.File, s.PassID)
		fmt.Fprintf(w, "  gyms: %d inserted, %d updated, %d unchanged, %d skipped\n",
			s.GymsInserted, s.GymsUpdated, s.GymsUnchanged, s.GymsSkipped)
		fmt.Fprintf(w, "  events: %d", s.EventsEmitted)
		kinds := make([]string, 0, len(s.EventsByKind))
		for k := range s.EventsByKind {
			kinds = append(kinds, string(k))
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			fmt.Fprintf(w, " %s=%d", k, s.EventsByKind[gym.EventKind(k)])
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  trainers: %d, creatures: %d, memberships dropped: %d\n",
			s.TrainersUpserted, s.CreaturesUpserted, s.MembershipsDropped)
		for _, f := range s.Failures {
			if _, err := fmt.Fprintf(w, "  FAIL %s\n", f.Error()); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeMetricsFile is the best-effort variant used when the command is
// already failing.
func writeMetricsFile(path string, rec *metrics.Recorder, log *slog.Logger) {
	if path == "" {
		return
	}
	if err := rec.WriteTextfile(path); err != nil {
		log.Warn("failed to write metrics", "path", path, "error", err)
	}
}

type rawBatch struct {
	file    string
	records []json.RawMessage
}
