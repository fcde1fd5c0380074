package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/flowcore/pkg/flowcore"
	"github.com/matzehuels/flowcore/pkg/model"
)

type inspectOpts struct {
	engineOpts
	nodes bool // list every node
}

func (c *CLI) inspectCommand() *cobra.Command {
	var opts inspectOpts

	cmd := &cobra.Command{
		Use:   "inspect [state]",
		Short: "Summarize a diagram state as the engine sees it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInspect(cmd.Context(), args[0], opts)
		},
	}

	opts.register(cmd)
	cmd.Flags().BoolVar(&opts.nodes, "nodes", false, "list every node")

	return cmd
}

func (c *CLI) runInspect(ctx context.Context, statePath string, opts inspectOpts) error {
	eng, err := c.openEngine(ctx, statePath, opts.engineOpts, nil)
	if err != nil {
		return err
	}
	defer eng.Close()

	printInfoSummary(c.Out, eng.Debug().Info())
	if opts.nodes {
		fmt.Fprintln(c.Out)
		fmt.Fprintln(c.Out, nodeTable(eng.FlowCore, eng.State().Nodes))
	}
	return nil
}

func printInfoSummary(w io.Writer, info flowcore.Info) {
	fmt.Fprintln(w, StyleTitle.Render("Diagram"))
	printKeyValue(w, "nodes", strconv.Itoa(info.Nodes))
	printKeyValue(w, "edges", strconv.Itoa(info.Edges))
	printKeyValue(w, "selected", fmt.Sprintf("%d nodes, %d edges", info.SelectedNodes, info.SelectedEdges))
	vp := info.Viewport
	printKeyValue(w, "viewport", fmt.Sprintf("(%g, %g) × %g", vp.X, vp.Y, vp.Scale))
	printKeyValue(w, "init phase", info.InitPhase)
	printKeyValue(w, "spatial entries", strconv.Itoa(info.SpatialEntries))
	printKeyValue(w, "middlewares", strings.Join(info.Middlewares, ", "))
	printKeyValue(w, "commands", strconv.Itoa(len(info.Commands)))
	if len(info.PendingMeasurements) > 0 {
		printWarning(w, "pending measurements: %s", strings.Join(info.PendingMeasurements, ", "))
	}
}

// nodeTable renders one row per node with its group, bounds and overlaps.
func nodeTable(f *flowcore.FlowCore, nodes []model.Node) string {
	rows := make([][]string, 0, len(nodes))
	for _, n := range nodes {
		rows = append(rows, nodeRow(f, n))
	}
	return newTable("ID", "Group", "Position", "Size", "Z", "Selected", "Overlaps").Rows(rows...).Render()
}

func nodeRow(f *flowcore.FlowCore, n model.Node) []string {
	size := "unmeasured"
	if n.Size != nil {
		size = fmt.Sprintf("%g × %g", n.Size.Width, n.Size.Height)
	}
	group := n.GroupID
	if n.IsGroup {
		group = strings.TrimSpace(group + " [group]")
	}
	selected := ""
	if n.Selected {
		selected = iconSuccess
	}
	var overlaps []string
	for _, o := range f.OverlappingNodes(n.ID) {
		overlaps = append(overlaps, o.ID)
	}
	return []string{
		n.ID,
		group,
		fmt.Sprintf("%g, %g", n.Position.X, n.Position.Y),
		size,
		strconv.Itoa(n.ZOrder),
		selected,
		strings.Join(overlaps, ", "),
	}
}
