// Package cli implements the flowcore command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/flowcore/pkg/adapter/file"
	"github.com/matzehuels/flowcore/pkg/adapter/memory"
	"github.com/matzehuels/flowcore/pkg/buildinfo"
	"github.com/matzehuels/flowcore/pkg/config"
	"github.com/matzehuels/flowcore/pkg/flowcore"
	fio "github.com/matzehuels/flowcore/pkg/io"
	"github.com/matzehuels/flowcore/pkg/render"
)

// =============================================================================
// Constants
// =============================================================================

const (
	appName = "flowcore"

	// defaultReadyTimeout bounds the wait for initial measurements. The CLI
	// has no measurement producer, so unsized entities finish on the
	// engine's init timeout.
	defaultReadyTimeout = time.Second
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Out    io.Writer
}

// New creates a CLI that logs to w.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "flowcore drives a diagram state engine from the command line",
		Long:         `flowcore loads a diagram state, runs commands against it through the engine's middleware pipeline, and renders or serves the result.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if c.Out == nil {
				c.Out = cmd.OutOrStdout()
			}
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.replayCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.browseCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Engine Factory
// =============================================================================

// engineOpts are the flags shared by every command that loads a state.
type engineOpts struct {
	configPath   string
	readyTimeout time.Duration
	persist      bool // write every change back to the state file
}

func (o *engineOpts) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.configPath, "config", "c", "", "engine config file (TOML)")
	cmd.Flags().DurationVar(&o.readyTimeout, "ready-timeout", defaultReadyTimeout, "maximum wait for initial measurements")
}

func (o *engineOpts) registerPersist(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.persist, "persist", false, "write every change back to the state file")
}

// engine is a started FlowCore. Close also stops persisting.
type engine struct {
	*flowcore.FlowCore
	closers []func() error
}

func (e *engine) Close() error {
	err := e.FlowCore.Close()
	for _, c := range e.closers {
		if cerr := c(); err == nil {
			err = cerr
		}
	}
	return err
}

// openEngine loads statePath, builds an engine over it and waits until the
// startup measurement phase completed. With persist set the state file is
// rewritten after every committed change.
func (c *CLI) openEngine(ctx context.Context, statePath string, o engineOpts, renderer render.Renderer, extra ...flowcore.Option) (*engine, error) {
	logger := loggerFromContext(ctx)

	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return nil, err
		}
	}
	if cfg.Init.Timeout == 0 {
		cfg.Init.Timeout = o.readyTimeout
	}

	var (
		adapter flowcore.ModelAdapter
		closers []func() error
	)
	if o.persist {
		fa, err := file.Open(statePath, logger)
		if err != nil {
			return nil, err
		}
		adapter, closers = fa, append(closers, fa.Close)
	} else {
		state, err := fio.ImportState(statePath)
		if err != nil {
			return nil, err
		}
		adapter = memory.New(state)
	}

	opts := append([]flowcore.Option{flowcore.WithLogger(logger), flowcore.WithConfig(cfg)}, extra...)
	core, err := flowcore.New(adapter, renderer, opts...)
	if err != nil {
		for _, c := range closers {
			c()
		}
		return nil, err
	}
	eng := &engine{FlowCore: core, closers: closers}

	prog := newProgress(logger)
	if err := core.Start(ctx); err != nil {
		eng.Close()
		return nil, err
	}
	select {
	case <-core.Ready():
	case <-ctx.Done():
		eng.Close()
		return nil, ctx.Err()
	case <-time.After(cfg.Init.Timeout + time.Second):
		eng.Close()
		return nil, fmt.Errorf("engine not ready after %s", cfg.Init.Timeout)
	}
	info := core.Debug().Info()
	prog.done(fmt.Sprintf("Loaded %d nodes and %d edges", info.Nodes, info.Edges))

	return eng, nil
}
