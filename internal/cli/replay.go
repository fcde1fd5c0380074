package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	fio "github.com/matzehuels/flowcore/pkg/io"
	"github.com/matzehuels/flowcore/pkg/model"
	"github.com/matzehuels/flowcore/pkg/transaction"
)

type replayOpts struct {
	engineOpts
	output      string // state file to write, defaults to stdout
	transaction string // run the whole script in one named transaction
	keepGoing   bool   // continue after a failing command
}

func (c *CLI) replayCommand() *cobra.Command {
	var opts replayOpts

	cmd := &cobra.Command{
		Use:   "replay [state] [script]",
		Short: "Run a command script against a diagram state",
		Long: `Replay loads a state file, emits every command of a script through the
engine and writes the resulting state.

Scripts are JSON arrays of command envelopes or one envelope per line:

  {"command": "select", "payload": {"nodeIds": ["a"]}}
  {"command": "moveNodesBy", "payload": {"nodeIds": ["a"], "delta": {"x": 10, "y": 0}}}`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runReplay(cmd.Context(), args[0], args[1], opts)
		},
	}

	opts.register(cmd)
	opts.registerPersist(cmd)
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output state file (.json or .toml), defaults to stdout")
	cmd.Flags().StringVarP(&opts.transaction, "transaction", "t", "", "run the script as one transaction with this name")
	cmd.Flags().BoolVar(&opts.keepGoing, "keep-going", false, "continue after a failing command")

	return cmd
}

func (c *CLI) runReplay(ctx context.Context, statePath, scriptPath string, opts replayOpts) error {
	logger := loggerFromContext(ctx)

	cmds, err := fio.ImportScript(scriptPath)
	if err != nil {
		return err
	}

	eng, err := c.openEngine(ctx, statePath, opts.engineOpts, nil)
	if err != nil {
		return err
	}
	defer eng.Close()

	prog := newProgress(logger)
	failed := 0
	emitAll := func(ctx context.Context) error {
		for i, cmd := range cmds {
			err := eng.Emit(ctx, cmd)
			if err == nil {
				continue
			}
			if !opts.keepGoing {
				return fmt.Errorf("command %d (%s): %w", i+1, cmd.CommandName(), err)
			}
			failed++
			logger.Warn("command failed", "index", i+1, "command", cmd.CommandName(), "err", err)
		}
		return nil
	}

	if opts.transaction != "" {
		res, err := eng.Transaction(ctx, opts.transaction, func(ctx context.Context, _ *transaction.Context) error {
			return emitAll(ctx)
		})
		if err != nil {
			return err
		}
		logger.Debug("transaction committed", "name", res.Name, "updates", res.CommandsCount, "actions", res.ActionTypes)
	} else if err := emitAll(ctx); err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Replayed %d commands", len(cmds)))

	state := eng.State()
	if opts.persist && opts.output == "" {
		printSuccess(c.Out, "Updated state in place")
		printFile(c.Out, statePath)
		printStats(c.Out, len(state.Nodes), len(state.Edges), countSelected(state))
	} else if err := writeState(c, state, opts.output); err != nil {
		return err
	}
	if failed > 0 {
		printWarning(c.Out, "%d of %d commands failed", failed, len(cmds))
	}
	return nil
}

// writeState writes s to path, or as JSON to the CLI's output.
func writeState(c *CLI, s model.State, path string) error {
	if path == "" {
		return fio.WriteState(s, c.Out, fio.FormatJSON)
	}
	if err := fio.ExportState(s, path); err != nil {
		return err
	}
	printSuccess(c.Out, "Wrote state")
	printFile(c.Out, path)
	printStats(c.Out, len(s.Nodes), len(s.Edges), countSelected(s))
	return nil
}

func countSelected(s model.State) int {
	n := 0
	for _, node := range s.Nodes {
		if node.Selected {
			n++
		}
	}
	for _, e := range s.Edges {
		if e.Selected {
			n++
		}
	}
	return n
}
