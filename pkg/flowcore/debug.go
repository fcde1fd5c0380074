package flowcore

import (
	"context"

	"github.com/matzehuels/flowcore/pkg/config"
	"github.com/matzehuels/flowcore/pkg/model"
)

// Info is a point-in-time summary of the engine.
type Info struct {
	Nodes               int            `json:"nodes"`
	Edges               int            `json:"edges"`
	SelectedNodes       int            `json:"selectedNodes"`
	SelectedEdges       int            `json:"selectedEdges"`
	Viewport            model.Viewport `json:"viewport"`
	Middlewares         []string       `json:"middlewares"`
	Commands            []string       `json:"commands"`
	TransactionDepth    int            `json:"transactionDepth"`
	CurrentTransaction  string         `json:"currentTransaction,omitempty"`
	InitPhase           string         `json:"initPhase"`
	PendingMeasurements []string       `json:"pendingMeasurements,omitempty"`
	PendingEvents       int            `json:"pendingEvents"`
	SpatialEntries      int            `json:"spatialEntries"`
	Linking             bool           `json:"linking"`
}

// Debug is an inspection handle over a running engine. Everything except
// Emit is read-only.
type Debug struct {
	f *FlowCore
}

// Debug returns the inspection handle. Nothing is exposed until the caller
// serves it, e.g. with package debug.
func (f *FlowCore) Debug() *Debug { return &Debug{f: f} }

// Info summarizes the engine.
func (d *Debug) Info() Info {
	f := d.f
	state := f.State()
	info := Info{
		Nodes:               len(state.Nodes),
		Edges:               len(state.Edges),
		SelectedNodes:       len(f.lookup.SelectedNodes()),
		SelectedEdges:       len(f.lookup.SelectedEdges()),
		Viewport:            state.Metadata.Viewport,
		Middlewares:         f.middlewares.Names(),
		Commands:            f.commands.Names(),
		TransactionDepth:    f.txm.Depth(),
		InitPhase:           f.init.Phase(),
		PendingMeasurements: f.tracker.Pending(),
		PendingEvents:       len(f.events.Pending()),
		SpatialEntries:      f.Spatial().Len(),
	}
	if tx := f.txm.Current(); tx != nil {
		info.CurrentTransaction = tx.Name()
	}
	_, info.Linking = f.action.Linking()
	return info
}

// State returns the committed state.
func (d *Debug) State() model.State { return d.f.State() }

// Config returns the current configuration.
func (d *Debug) Config() config.Config { return d.f.Config() }

// Node returns one node.
func (d *Debug) Node(id string) (model.Node, bool) { return d.f.lookup.Node(id) }

// Edge returns one edge.
func (d *Debug) Edge(id string) (model.Edge, bool) { return d.f.lookup.Edge(id) }

// Children returns the direct children of a group.
func (d *Debug) Children(id string) []model.Node { return d.f.lookup.Children(id) }

// ConnectedEdges returns the edges touching a node.
func (d *Debug) ConnectedEdges(id string) []model.Edge { return d.f.lookup.ConnectedEdges(id) }

// Overlapping returns the nodes overlapping id.
func (d *Debug) Overlapping(id string) []model.Node { return d.f.OverlappingNodes(id) }

// InRange returns the nodes intersecting r.
func (d *Debug) InRange(r model.Rect) []model.Node { return d.f.NodesInRange(r) }

// Emit dispatches a command, for driving the engine from a debug client.
func (d *Debug) Emit(ctx context.Context, cmd model.Command) error { return d.f.Emit(ctx, cmd) }
