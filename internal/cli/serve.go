package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/matzehuels/flowcore/pkg/debug"
	"github.com/matzehuels/flowcore/pkg/flowcore"
	promhooks "github.com/matzehuels/flowcore/pkg/observability/prometheus"
)

const shutdownTimeout = 5 * time.Second

type serveOpts struct {
	engineOpts
	addr     string
	readOnly bool
	metrics  bool
}

func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve [state]",
		Short: "Serve the debug API over a loaded diagram",
		Long: `Serve loads a state file and exposes the engine's inspection API over
HTTP. Commands can be emitted with POST /commands unless --read-only is set.
With --metrics engine metrics are served at /metrics.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), args[0], opts)
		},
	}

	opts.register(cmd)
	opts.registerPersist(cmd)
	cmd.Flags().StringVar(&opts.addr, "addr", "127.0.0.1:7070", "listen address")
	cmd.Flags().BoolVar(&opts.readOnly, "read-only", false, "reject commands")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", false, "serve Prometheus metrics at /metrics")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, statePath string, opts serveOpts) error {
	logger := loggerFromContext(ctx)

	var (
		extra    []flowcore.Option
		gatherer prom.Gatherer
	)
	if opts.metrics {
		reg := prom.NewRegistry()
		hooks, err := promhooks.New(reg)
		if err != nil {
			return err
		}
		// Measurement hooks are global; engine and command hooks stay
		// scoped to this engine.
		hooks.Install()
		extra = append(extra, flowcore.WithHooks(hooks, hooks))
		gatherer = reg
	}

	eng, err := c.openEngine(ctx, statePath, opts.engineOpts, nil, extra...)
	if err != nil {
		return err
	}
	defer eng.Close()

	ln, err := net.Listen("tcp", opts.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", opts.addr, err)
	}
	srv := &http.Server{
		Handler:           debug.NewHandler(eng.Debug(), debug.Options{Logger: logger, Gatherer: gatherer, ReadOnly: opts.readOnly}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	printInfo(c.Out, "Debug API listening on %s", StyleHighlight.Render("http://"+ln.Addr().String()))
	spin := newSpinner(ctx, c.Out, "serving, press ctrl+c to stop")
	spin.Start()
	defer spin.Stop()

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		printError(c.Out, "shutdown: %v", err)
		return err
	}
	return nil
}
