package command

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/flowcore/pkg/action"
	"github.com/matzehuels/flowcore/pkg/config"
	"github.com/matzehuels/flowcore/pkg/errors"
	"github.com/matzehuels/flowcore/pkg/lookup"
	"github.com/matzehuels/flowcore/pkg/model"
)

// Env is what the built-in commands need from the engine.
type Env interface {
	State() model.State
	Lookup() *lookup.Lookup
	Config() config.Config
	ActionState() *action.State
	ApplyUpdate(ctx context.Context, update model.StateUpdate, actionType model.ActionType) error
	// Redraw re-renders the committed state, e.g. after the temporary edge
	// moved without a state change.
	Redraw()
}

// Builtins implements the built-in command vocabulary over an Env.
type Builtins struct {
	env    Env
	logger *log.Logger

	mu        sync.Mutex
	clipboard clipboard
}

// NewBuiltins creates the built-in command set.
func NewBuiltins(env Env, logger *log.Logger) *Builtins {
	if logger == nil {
		logger = log.Default()
	}
	return &Builtins{env: env, logger: logger}
}

// BuiltinNames lists every built-in command name.
var BuiltinNames = []string{
	NameSelect, NameDeselect, NameDeselectAll, NameSelectAll, NameSelectEnd,
	NameAddNodes, NameUpdateNode, NameUpdateNodes, NameDeleteNodes,
	NameMoveNodesBy, NameMoveNodes, NameResizeStart, NameResizeNode, NameResizeEnd,
	NameRotateNodeTo, NameChangeZOrder, NameAddToGroup, NameRemoveFromGroup,
	NameAddEdges, NameUpdateEdge, NameUpdateEdges, NameDeleteEdges,
	NameStartLinking, NameMoveTemporaryEdge, NameFinishLinking,
	NameAddPorts, NameUpdatePorts, NameDeletePorts,
	NameAddEdgeLabels, NameUpdateEdgeLabels, NameDeleteEdgeLabels,
	NameMoveViewport, NameMoveViewportBy, NameZoom, NameCenterOnNode, NameCenterOnRect, NameResizeViewport,
	NameCopy, NamePaste, NameCut, NameDeleteSelection, NameInit,
}

// RegisterBuiltins registers the built-in commands on h. The returned
// function unregisters all of them.
func RegisterBuiltins(h *Handler, b *Builtins) (unregister func()) {
	offs := make([]func(), 0, len(BuiltinNames))
	for _, name := range BuiltinNames {
		offs = append(offs, h.Register(name, b.Handle))
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}

// Handle executes one built-in command.
func (b *Builtins) Handle(ctx context.Context, cmd model.Command) error {
	switch c := cmd.(type) {
	case Select:
		return b.selectItems(ctx, c)
	case Deselect:
		return b.deselect(ctx, c)
	case DeselectAll:
		return b.setAllSelected(ctx, false)
	case SelectAll:
		return b.setAllSelected(ctx, true)
	case SelectEnd:
		return b.apply(ctx, model.StateUpdate{}, model.ActionSelectEnd)
	case AddNodes:
		return b.addNodes(ctx, c)
	case UpdateNode:
		c.Update.ID = c.ID
		return b.updateNodes(ctx, []model.NodeUpdate{c.Update}, model.ActionUpdateNode)
	case UpdateNodes:
		return b.updateNodes(ctx, c.Updates, model.ActionUpdateNode)
	case DeleteNodes:
		return b.deleteNodes(ctx, c.IDs, nil, model.ActionDeleteNodes)
	case MoveNodesBy:
		return b.moveNodesBy(ctx, c)
	case MoveNodes:
		return b.moveNodes(ctx, c)
	case ResizeStart:
		b.env.ActionState().StartResize(c.ID)
		return nil
	case ResizeEnd:
		b.env.ActionState().EndResize(c.ID)
		return nil
	case ResizeNode:
		return b.resizeNode(ctx, c)
	case RotateNodeTo:
		return b.rotateNodeTo(ctx, c)
	case ChangeZOrder:
		return b.changeZOrder(ctx, c)
	case AddToGroup:
		return b.addToGroup(ctx, c)
	case RemoveFromGroup:
		return b.removeFromGroup(ctx, c)
	case AddEdges:
		return b.addEdges(ctx, c)
	case UpdateEdge:
		c.Update.ID = c.ID
		return b.updateEdges(ctx, []model.EdgeUpdate{c.Update})
	case UpdateEdges:
		return b.updateEdges(ctx, c.Updates)
	case DeleteEdges:
		return b.deleteEdges(ctx, c.IDs)
	case StartLinking:
		return b.startLinking(c)
	case MoveTemporaryEdge:
		return b.moveTemporaryEdge(c)
	case FinishLinking:
		return b.finishLinking(ctx, c)
	case AddPorts:
		return b.addPorts(ctx, c)
	case UpdatePorts:
		return b.updatePorts(ctx, c)
	case DeletePorts:
		return b.deletePorts(ctx, c)
	case AddEdgeLabels:
		return b.addEdgeLabels(ctx, c)
	case UpdateEdgeLabels:
		return b.updateEdgeLabels(ctx, c)
	case DeleteEdgeLabels:
		return b.deleteEdgeLabels(ctx, c)
	case MoveViewport:
		return b.moveViewport(ctx, c.X, c.Y)
	case MoveViewportBy:
		if c.DX == 0 && c.DY == 0 {
			return nil
		}
		vp := b.env.State().Metadata.Viewport
		return b.moveViewport(ctx, vp.X+c.DX, vp.Y+c.DY)
	case Zoom:
		return b.zoom(ctx, c)
	case CenterOnNode:
		return b.centerOnNode(ctx, c)
	case CenterOnRect:
		return b.centerOnRect(ctx, c.Rect)
	case ResizeViewport:
		return b.resizeViewport(ctx, c)
	case Copy:
		b.copySelection()
		return nil
	case Paste:
		return b.paste(ctx, c)
	case Cut:
		b.copySelection()
		return b.deleteSelection(ctx)
	case DeleteSelection:
		return b.deleteSelection(ctx)
	case Init:
		return b.apply(ctx, model.StateUpdate{}, model.ActionInit)
	}
	return errors.New(errors.ErrCodeInvalidCommand, "unsupported command type %T", cmd)
}

func (b *Builtins) apply(ctx context.Context, u model.StateUpdate, actionType model.ActionType) error {
	return b.env.ApplyUpdate(ctx, u, actionType)
}

// noop logs a command that had nothing to do.
func (b *Builtins) noop(name, reason string) error {
	b.logger.Debug("command skipped", "command", name, "reason", reason)
	return nil
}
