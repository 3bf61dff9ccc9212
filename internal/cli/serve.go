package cli

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/keyringdb/internal/httpapi"
	"github.com/roach88/keyringdb/internal/metrics"
	"github.com/roach88/keyringdb/internal/notify"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr    string
	Metrics bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the database over HTTP",
		Long: `Serve the address grammar over HTTP until interrupted.

  GET    /v1/<address>   query (blob addresses stream the file)
  POST   /v1/<address>   insert a JSON object
  PATCH  /v1/<address>   update with a JSON object
  DELETE /v1/<address>   delete
  GET    /changes        server-sent change notifications
  GET    /metrics        Prometheus metrics (when enabled)`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "expose Prometheus metrics (overrides metrics.enabled)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg := opts.Config
	if opts.Addr != "" {
		cfg.Server.Addr = opts.Addr
	}
	if opts.Metrics {
		cfg.Metrics.Enabled = true
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(prometheus.NewRegistry())
	}
	changes := notify.NewBroadcaster(slog.Default())

	e, err := openEnv(cmd.Context(), opts.RootOptions, serveOptions(m, changes)...)
	if err != nil {
		return err
	}
	defer e.close()

	srv := httpapi.NewServer(
		httpapi.NewHandler(e.provider, httpapi.WithChanges(changes)),
		httpapi.ServerOptions{
			Addr:        cfg.Server.Addr,
			Metrics:     m,
			MetricsPath: cfg.Metrics.Path,
		},
	)

	l, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}

	w := cmd.ErrOrStderr()
	green := color.New(color.FgGreen)
	green.Fprint(w, "▶ ")
	fmt.Fprintf(w, "Database:  %s (%s)\n", cfg.Database.Path, cfg.Database.Driver)
	green.Fprint(w, "▶ ")
	fmt.Fprintf(w, "HTTP:      http://%s/v1/\n", l.Addr())
	if m != nil {
		green.Fprint(w, "▶ ")
		fmt.Fprintf(w, "Metrics:   http://%s%s\n", l.Addr(), cfg.Metrics.Path)
	}
	if cfg.Database.ReadOnly {
		color.New(color.FgYellow).Fprintln(w, "▶ read-only: writes are rejected")
	}

	return srv.Serve(cmd.Context(), l)
}
