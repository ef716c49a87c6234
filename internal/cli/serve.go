package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/gymlog/internal/metrics"
	"github.com/roach88/gymlog/internal/web"
)

const shutdownTimeout = 5 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Database string
	Addr     string

	// Listener overrides listening on Addr (for testing).
	Listener net.Listener
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return newServeCommand(&ServeOptions{RootOptions: rootOpts})
}

func newServeCommand(opts *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the gym map endpoint and metrics",
		Long: `Serve read-only HTTP endpoints over the gym store:

  GET /gyms?after=<unix seconds>  gyms modified strictly after the timestamp
  GET /metrics                    Prometheus metrics, including live gym counts
                                  per team and log event counts per kind
  GET /healthz                    liveness

The server stops on SIGINT or SIGTERM.

Examples:
  gymlog serve --db ./gymlog.db --addr :8080`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default from config)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

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

	addr := opts.Addr
	if addr == "" {
		addr = cfg.HTTPAddr
	}
	ln := opts.Listener
	if ln == nil {
		ln, err = net.Listen("tcp", addr)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to listen", err)
		}
	}

	rec := metrics.New(metrics.WithRuntimeCollectors(), metrics.WithStoreStats(st))
	srv := &http.Server{
		Handler:           web.NewServer(st, rec.Handler(), log).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("serving", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitCommandError, "server failed", err)
		}
		return nil
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitCommandError, "shutdown failed", err)
	}
	return nil
}
