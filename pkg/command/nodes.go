package command

import (
	"context"
	"slices"

	"github.com/matzehuels/flowcore/pkg/errors"
	"github.com/matzehuels/flowcore/pkg/model"
)

func (b *Builtins) addNodes(ctx context.Context, c AddNodes) error {
	if len(c.Nodes) == 0 {
		return b.noop(NameAddNodes, "no nodes")
	}
	ids := make([]string, len(c.Nodes))
	for i, n := range c.Nodes {
		ids[i] = n.ID
	}
	if err := errors.ValidateUniqueIDs("node", ids); err != nil {
		return err
	}
	return b.apply(ctx, model.StateUpdate{NodesToAdd: c.Nodes}, model.ActionAddNodes)
}

func (b *Builtins) updateNodes(ctx context.Context, updates []model.NodeUpdate, actionType model.ActionType) error {
	lk := b.env.Lookup()
	var u model.StateUpdate
	for _, nu := range updates {
		if nu.IsEmpty() {
			continue
		}
		if _, ok := lk.Node(nu.ID); !ok {
			continue
		}
		u.NodesToUpdate = append(u.NodesToUpdate, nu)
	}
	if u.IsEmpty() {
		return b.noop(string(actionType), "no known nodes to update")
	}
	return b.apply(ctx, u, actionType)
}

// deleteNodes removes ids, their descendants and their edges. Extra edge
// ids are removed in the same update.
func (b *Builtins) deleteNodes(ctx context.Context, ids, extraEdges []string, actionType model.ActionType) error {
	lk := b.env.Lookup()

	seen := make(map[string]bool)
	var nodes []string
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			nodes = append(nodes, id)
		}
	}
	for _, id := range ids {
		if _, ok := lk.Node(id); !ok {
			continue
		}
		add(id)
		for _, d := range lk.AllDescendants(id) {
			add(d.ID)
		}
	}

	edgeSeen := make(map[string]bool)
	var edges []string
	addEdge := func(id string) {
		if !edgeSeen[id] {
			edgeSeen[id] = true
			edges = append(edges, id)
		}
	}
	for _, id := range nodes {
		for _, e := range lk.ConnectedEdges(id) {
			addEdge(e.ID)
		}
	}
	for _, id := range extraEdges {
		if _, ok := lk.Edge(id); ok {
			addEdge(id)
		}
	}

	if len(nodes) == 0 && len(edges) == 0 {
		return b.noop(string(actionType), "nothing to delete")
	}
	return b.apply(ctx, model.StateUpdate{NodesToRemove: nodes, EdgesToRemove: edges}, actionType)
}

func (b *Builtins) deleteSelection(ctx context.Context) error {
	lk := b.env.Lookup()
	var nodes, edges []string
	for _, n := range lk.SelectedNodes() {
		nodes = append(nodes, n.ID)
	}
	for _, e := range lk.SelectedEdges() {
		edges = append(edges, e.ID)
	}
	return b.deleteNodes(ctx, nodes, edges, model.ActionDeleteSelection)
}

func (b *Builtins) moveNodesBy(ctx context.Context, c MoveNodesBy) error {
	if c.Delta == (model.Point{}) {
		return b.noop(NameMoveNodesBy, "zero delta")
	}
	lk := b.env.Lookup()

	seen := make(map[string]bool)
	var u model.StateUpdate
	move := func(n model.Node) {
		if seen[n.ID] {
			return
		}
		seen[n.ID] = true
		u.NodesToUpdate = append(u.NodesToUpdate, model.NodeUpdate{ID: n.ID, Position: model.Ptr(n.Position.Add(c.Delta))})
	}
	for _, id := range c.NodeIDs {
		n, ok := lk.Node(id)
		if !ok {
			continue
		}
		move(n)
		for _, d := range lk.AllDescendants(id) {
			move(d)
		}
	}
	if u.IsEmpty() {
		return b.noop(NameMoveNodesBy, "no known nodes")
	}
	return b.apply(ctx, u, model.ActionMoveNodesBy)
}

func (b *Builtins) moveNodes(ctx context.Context, c MoveNodes) error {
	lk := b.env.Lookup()
	var u model.StateUpdate
	for _, p := range c.Positions {
		n, ok := lk.Node(p.ID)
		if !ok || n.Position == p.Position {
			continue
		}
		u.NodesToUpdate = append(u.NodesToUpdate, model.NodeUpdate{ID: p.ID, Position: model.Ptr(p.Position)})
	}
	if u.IsEmpty() {
		return b.noop(NameMoveNodes, "positions unchanged")
	}
	return b.apply(ctx, u, model.ActionMoveNodes)
}

func (b *Builtins) resizeNode(ctx context.Context, c ResizeNode) error {
	n, ok := b.env.Lookup().Node(c.ID)
	if !ok || (!c.Measured && !n.CanResize()) {
		return b.noop(NameResizeNode, "unknown or fixed-size node")
	}
	if c.Size.Width < 0 || c.Size.Height < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "negative size for node %q", c.ID)
	}

	size := c.Size
	if !c.Measured {
		cfg := b.env.Config()
		size.Width = max(size.Width, cfg.Resize.MinWidth)
		size.Height = max(size.Height, cfg.Resize.MinHeight)
		if cfg.Resize.Snap {
			size.Width = max(cfg.SnapToGrid(size.Width), cfg.Resize.MinWidth)
			size.Height = max(cfg.SnapToGrid(size.Height), cfg.Resize.MinHeight)
		}
	}

	nu := model.NodeUpdate{ID: c.ID}
	if n.Size == nil || *n.Size != size {
		nu.Size = &size
	}
	if c.Position != nil && *c.Position != n.Position {
		nu.Position = model.Ptr(*c.Position)
	}
	if nu.IsEmpty() {
		return b.noop(NameResizeNode, "size unchanged")
	}
	return b.apply(ctx, model.StateUpdate{NodesToUpdate: []model.NodeUpdate{nu}}, model.ActionResizeNode)
}

func (b *Builtins) rotateNodeTo(ctx context.Context, c RotateNodeTo) error {
	n, ok := b.env.Lookup().Node(c.ID)
	if !ok || !n.CanRotate() {
		return b.noop(NameRotateNodeTo, "unknown or fixed node")
	}
	angle := model.NormalizeAngle(b.env.Config().SnapAngle(c.Angle))
	if angle == model.NormalizeAngle(n.Angle) {
		return b.noop(NameRotateNodeTo, "angle unchanged")
	}
	return b.apply(ctx, model.StateUpdate{
		NodesToUpdate: []model.NodeUpdate{{ID: c.ID, Angle: model.Ptr(angle)}},
	}, model.ActionRotateNodeTo)
}

func (b *Builtins) changeZOrder(ctx context.Context, c ChangeZOrder) error {
	state := b.env.State()
	lk := b.env.Lookup()

	nodeIDs, edgeIDs := c.NodeIDs, c.EdgeIDs
	if len(nodeIDs) == 0 && len(edgeIDs) == 0 {
		for _, n := range lk.SelectedNodes() {
			nodeIDs = append(nodeIDs, n.ID)
		}
		for _, e := range lk.SelectedEdges() {
			edgeIDs = append(edgeIDs, e.ID)
		}
	}

	lo, hi := 0, 0
	for i, n := range state.Nodes {
		if i == 0 || n.ZOrder < lo {
			lo = n.ZOrder
		}
		if i == 0 || n.ZOrder > hi {
			hi = n.ZOrder
		}
	}
	for _, e := range state.Edges {
		lo = min(lo, e.ZOrder)
		hi = max(hi, e.ZOrder)
	}

	var z func(i, total int) int
	switch c.Direction {
	case BringToFront:
		z = func(i, _ int) int { return hi + 1 + i }
	case SendToBack:
		z = func(i, total int) int { return lo - total + i }
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown z direction %q", c.Direction)
	}

	var nodes []model.Node
	for _, id := range nodeIDs {
		if n, ok := lk.Node(id); ok {
			nodes = append(nodes, n)
		}
	}
	// Keep the relative order of the moved nodes.
	slices.SortStableFunc(nodes, func(a, b model.Node) int { return a.ZOrder - b.ZOrder })

	var u model.StateUpdate
	total := len(nodes)
	for i, n := range nodes {
		u.NodesToUpdate = append(u.NodesToUpdate, model.NodeUpdate{ID: n.ID, ZOrder: model.Ptr(z(i, total))})
	}
	var edges []model.Edge
	for _, id := range edgeIDs {
		if e, ok := lk.Edge(id); ok {
			edges = append(edges, e)
		}
	}
	for i, e := range edges {
		u.EdgesToUpdate = append(u.EdgesToUpdate, model.EdgeUpdate{ID: e.ID, ZOrder: model.Ptr(z(i, len(edges)))})
	}
	if u.IsEmpty() {
		return b.noop(NameChangeZOrder, "nothing to restack")
	}
	return b.apply(ctx, u, model.ActionChangeZOrder)
}

func (b *Builtins) addToGroup(ctx context.Context, c AddToGroup) error {
	cfg := b.env.Config()
	if !cfg.Grouping.Enabled {
		return b.noop(NameAddToGroup, "grouping disabled")
	}
	lk := b.env.Lookup()
	group, ok := lk.Node(c.GroupID)
	if !ok || !group.IsGroup {
		return b.noop(NameAddToGroup, "unknown group")
	}
	if !cfg.Grouping.AllowNested && group.GroupID != "" {
		return b.noop(NameAddToGroup, "nested groups disabled")
	}

	var u model.StateUpdate
	for _, id := range c.NodeIDs {
		n, ok := lk.Node(id)
		if !ok || n.GroupID == c.GroupID {
			continue
		}
		if n.IsGroup && !cfg.Grouping.AllowNested {
			continue
		}
		if lk.WouldCreateCircularDependency(id, c.GroupID) {
			b.logger.Debug("refusing circular group membership", "node", id, "group", c.GroupID)
			continue
		}
		u.NodesToUpdate = append(u.NodesToUpdate, model.NodeUpdate{ID: id, GroupID: model.Ptr(c.GroupID)})
	}
	if u.IsEmpty() {
		return b.noop(NameAddToGroup, "membership unchanged")
	}
	return b.apply(ctx, u, model.ActionChangeGroup)
}

func (b *Builtins) removeFromGroup(ctx context.Context, c RemoveFromGroup) error {
	lk := b.env.Lookup()
	var u model.StateUpdate
	for _, id := range c.NodeIDs {
		if n, ok := lk.Node(id); ok && n.GroupID != "" {
			u.NodesToUpdate = append(u.NodesToUpdate, model.NodeUpdate{ID: id, GroupID: model.Ptr("")})
		}
	}
	if u.IsEmpty() {
		return b.noop(NameRemoveFromGroup, "no grouped nodes")
	}
	return b.apply(ctx, u, model.ActionChangeGroup)
}
