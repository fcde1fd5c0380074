package cli

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/matzehuels/flowcore/pkg/command"
	"github.com/matzehuels/flowcore/pkg/flowcore"
	"github.com/matzehuels/flowcore/pkg/model"
)

var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

const nudge = 10.0

type browseOpts struct {
	engineOpts
	output string
}

func (c *CLI) browseCommand() *cobra.Command {
	var opts browseOpts

	cmd := &cobra.Command{
		Use:   "browse [state]",
		Short: "Interactively select and move nodes",
		Long: `Browse lists the diagram's nodes. Every key press is a command emitted
through the engine, so middlewares such as snapping apply as usual.

  ↑/↓ or j/k   move the cursor
  space        toggle selection of the node under the cursor
  a            select all
  h/l, H/L     move the selection left/right/up/down
  d            delete the selection
  q            quit (writes the state with -o)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			eng, err := c.openEngine(ctx, args[0], opts.engineOpts, nil)
			if err != nil {
				return err
			}
			defer eng.Close()

			if _, err := tea.NewProgram(NewNodeListModel(ctx, eng.FlowCore), tea.WithContext(ctx)).Run(); err != nil {
				return err
			}
			if opts.output == "" {
				return nil
			}
			return writeState(c, eng.State(), opts.output)
		},
	}

	opts.register(cmd)
	opts.registerPersist(cmd)
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "state file to write on quit")

	return cmd
}

// =============================================================================
// NodeListModel - Interactive node list
// =============================================================================

// NodeListModel is the bubbletea model behind browse. It reads nodes from
// the engine on every render and changes them only through commands.
type NodeListModel struct {
	ctx    context.Context
	core   *flowcore.FlowCore
	Cursor int
	Height int
	Offset int
	Err    error
}

// NewNodeListModel creates a list over core's nodes.
func NewNodeListModel(ctx context.Context, core *flowcore.FlowCore) NodeListModel {
	return NodeListModel{ctx: ctx, core: core, Height: 15}
}

func (m NodeListModel) Init() tea.Cmd {
	return nil
}

func (m NodeListModel) nodes() []model.Node {
	return m.core.State().Nodes
}

func (m NodeListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		nodes := m.nodes()
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(nodes)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case " ", "space":
			if m.Cursor < len(nodes) {
				n := nodes[m.Cursor]
				if n.Selected {
					m.Err = m.core.Emit(m.ctx, command.Deselect{NodeIDs: []string{n.ID}})
				} else {
					m.Err = m.core.Emit(m.ctx, command.Select{NodeIDs: []string{n.ID}, PreserveSelection: true})
				}
			}
		case "a":
			m.Err = m.core.Emit(m.ctx, command.SelectAll{})
		case "h", "l", "H", "L":
			m.Err = m.moveSelection(msg.String())
		case "d":
			m.Err = m.core.Emit(m.ctx, command.DeleteSelection{})
			if n := len(m.nodes()); m.Cursor >= n {
				m.Cursor = max(n-1, 0)
			}
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-6, 5)
	}
	return m, nil
}

func (m NodeListModel) moveSelection(key string) error {
	var ids []string
	for _, n := range m.core.Lookup().SelectedNodes() {
		ids = append(ids, n.ID)
	}
	if len(ids) == 0 {
		return nil
	}
	delta := map[string]model.Point{
		"h": {X: -nudge}, "l": {X: nudge},
		"H": {Y: -nudge}, "L": {Y: nudge},
	}[key]
	return m.core.Emit(m.ctx, command.MoveNodesBy{NodeIDs: ids, Delta: delta})
}

func (m NodeListModel) View() string {
	var b strings.Builder
	nodes := m.nodes()

	b.WriteString(StyleTitle.Render("Nodes"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  space select  h/l/H/L move  d delete  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(nodes))
	for i := m.Offset; i < end; i++ {
		n := nodes[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		mark := " "
		if n.Selected {
			mark = StyleSuccess.Render("●")
		}
		line := fmt.Sprintf("%s%s %-20s %s", cursor, mark, n.ID,
			listDimStyle.Render(fmt.Sprintf("(%g, %g)", n.Position.X, n.Position.Y)))
		if i == m.Cursor {
			b.WriteString(listSelectedStyle.Render(line))
		} else {
			b.WriteString(listNormalStyle.Render(line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", min(m.Cursor+1, len(nodes)), len(nodes))))
	if m.Err != nil {
		b.WriteString("\n")
		b.WriteString(StyleWarning.Render(m.Err.Error()))
	}
	return b.String()
}
