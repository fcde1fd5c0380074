package model

import (
	"maps"
	"slices"
)

// ActionType names the operation that produced a state update, e.g.
// "changeSelection" or "moveNodesBy". Middlewares use it to decide whether
// they are interested in an update.
type ActionType string

// Action types produced by the built-in commands and the updater.
const (
	ActionInit            ActionType = "init"
	ActionChangeSelection ActionType = "changeSelection"
	ActionMoveNodesBy     ActionType = "moveNodesBy"
	ActionMoveNodes       ActionType = "moveNodes"
	ActionResizeNode      ActionType = "resizeNode"
	ActionRotateNodeTo    ActionType = "rotateNodeTo"
	ActionAddNodes        ActionType = "addNodes"
	ActionUpdateNode      ActionType = "updateNode"
	ActionDeleteNodes     ActionType = "deleteNodes"
	ActionAddEdges        ActionType = "addEdges"
	ActionUpdateEdge      ActionType = "updateEdge"
	ActionDeleteEdges     ActionType = "deleteEdges"
	ActionAddPorts        ActionType = "addPorts"
	ActionUpdatePorts     ActionType = "updatePorts"
	ActionDeletePorts     ActionType = "deletePorts"
	ActionAddEdgeLabels   ActionType = "addEdgeLabels"
	ActionUpdateLabels    ActionType = "updateEdgeLabels"
	ActionDeleteLabels    ActionType = "deleteEdgeLabels"
	ActionChangeZOrder    ActionType = "changeZOrder"
	ActionChangeGroup     ActionType = "changeGroup"
	ActionMoveViewport    ActionType = "moveViewport"
	ActionZoom            ActionType = "zoom"
	ActionPaste           ActionType = "paste"
	ActionDeleteSelection ActionType = "deleteSelection"
	ActionSelectEnd       ActionType = "selectEnd"
	ActionFinishLinking   ActionType = "finishLinking"
	ActionMeasurements    ActionType = "applyMeasurements"
)

// Command is a named request to mutate diagram state. Concrete commands live
// in package command; the interface sits here so that transactions can carry
// commands without importing the handler.
type Command interface {
	CommandName() string
}

// PortSide is the side of a node a port is attached to.
type PortSide string

const (
	PortSideTop    PortSide = "top"
	PortSideRight  PortSide = "right"
	PortSideBottom PortSide = "bottom"
	PortSideLeft   PortSide = "left"
)

// PortType says whether a port can start a link, end one, or both.
type PortType string

const (
	PortTypeSource PortType = "source"
	PortTypeTarget PortType = "target"
	PortTypeBoth   PortType = "both"
)

// Port is a connection point on a node. Size and Position stay nil until a
// measurement producer reports them; Position is relative to the node.
type Port struct {
	ID       string   `json:"id" toml:"id"`
	NodeID   string   `json:"nodeId" toml:"node_id"`
	Side     PortSide `json:"side,omitempty" toml:"side"`
	Type     PortType `json:"type,omitempty" toml:"type"`
	Size     *Size    `json:"size,omitempty" toml:"size"`
	Position *Point   `json:"position,omitempty" toml:"position"`
}

// EdgeLabel is a label placed along an edge. PositionOnEdge is in [0,1].
type EdgeLabel struct {
	ID             string  `json:"id" toml:"id"`
	PositionOnEdge float64 `json:"positionOnEdge" toml:"position_on_edge"`
	Size           *Size   `json:"size,omitempty" toml:"size"`
	Position       *Point  `json:"position,omitempty" toml:"position"`
}

// Node is a diagram vertex. A node with IsGroup set may contain other nodes,
// which point at it through GroupID.
type Node struct {
	ID             string         `json:"id" toml:"id"`
	Position       Point          `json:"position" toml:"position"`
	Size           *Size          `json:"size,omitempty" toml:"size"`
	Angle          float64        `json:"angle,omitempty" toml:"angle"`
	GroupID        string         `json:"groupId,omitempty" toml:"group_id"`
	IsGroup        bool           `json:"isGroup,omitempty" toml:"is_group"`
	Selected       bool           `json:"selected,omitempty" toml:"selected"`
	MeasuredPorts  []Port         `json:"measuredPorts,omitempty" toml:"ports"`
	MeasuredBounds *Rect          `json:"measuredBounds,omitempty" toml:"-"`
	ZOrder         int            `json:"zOrder,omitempty" toml:"z_order"`
	Resizable      *bool          `json:"resizable,omitempty" toml:"resizable"`
	Rotatable      *bool          `json:"rotatable,omitempty" toml:"rotatable"`
	Data           map[string]any `json:"data,omitempty" toml:"data"`
}

// CanResize reports whether resize commands apply to the node. Unset means yes.
func (n Node) CanResize() bool { return n.Resizable == nil || *n.Resizable }

// CanRotate reports whether rotate commands apply to the node. Unset means yes.
func (n Node) CanRotate() bool { return n.Rotatable == nil || *n.Rotatable }

// Rect returns the axis-aligned rectangle of the unrotated node.
// Nodes without a size yield a zero-area rectangle at their position.
func (n Node) Rect() Rect {
	r := Rect{X: n.Position.X, Y: n.Position.Y}
	if n.Size != nil {
		r.Width = n.Size.Width
		r.Height = n.Size.Height
	}
	return r
}

// Bounds returns the axis-aligned bounding box of the node, accounting for
// rotation. MeasuredBounds wins when present.
func (n Node) Bounds() Rect {
	if n.MeasuredBounds != nil {
		return *n.MeasuredBounds
	}
	return RotatedBounds(n.Rect(), n.Angle)
}

// Port returns the measured port with the given id.
func (n Node) Port(id string) (Port, bool) {
	for _, p := range n.MeasuredPorts {
		if p.ID == id {
			return p, true
		}
	}
	return Port{}, false
}

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	n.Size = clonePtr(n.Size)
	n.MeasuredBounds = clonePtr(n.MeasuredBounds)
	n.MeasuredPorts = clonePorts(n.MeasuredPorts)
	n.Resizable = clonePtr(n.Resizable)
	n.Rotatable = clonePtr(n.Rotatable)
	n.Data = maps.Clone(n.Data)
	return n
}

// Edge connects two nodes, optionally through ports.
type Edge struct {
	ID             string         `json:"id" toml:"id"`
	Source         string         `json:"source" toml:"source"`
	Target         string         `json:"target" toml:"target"`
	SourcePort     string         `json:"sourcePort,omitempty" toml:"source_port"`
	TargetPort     string         `json:"targetPort,omitempty" toml:"target_port"`
	Selected       bool           `json:"selected,omitempty" toml:"selected"`
	MeasuredLabels []EdgeLabel    `json:"measuredLabels,omitempty" toml:"labels"`
	ZOrder         int            `json:"zOrder,omitempty" toml:"z_order"`
	Routing        string         `json:"routing,omitempty" toml:"routing"`
	Temporary      bool           `json:"temporary,omitempty" toml:"-"`
	Data           map[string]any `json:"data,omitempty" toml:"data"`
}

// Label returns the measured label with the given id.
func (e Edge) Label(id string) (EdgeLabel, bool) {
	for _, l := range e.MeasuredLabels {
		if l.ID == id {
			return l, true
		}
	}
	return EdgeLabel{}, false
}

// Clone returns a deep copy of the edge.
func (e Edge) Clone() Edge {
	e.MeasuredLabels = cloneLabels(e.MeasuredLabels)
	e.Data = maps.Clone(e.Data)
	return e
}

// Viewport is the visible pan/zoom window. Width and Height are zero until
// the host reports the size of the drawing surface.
type Viewport struct {
	X      float64 `json:"x" toml:"x"`
	Y      float64 `json:"y" toml:"y"`
	Scale  float64 `json:"scale" toml:"scale"`
	Width  float64 `json:"width,omitempty" toml:"width"`
	Height float64 `json:"height,omitempty" toml:"height"`
}

// HasSize reports whether the surface size is known.
func (v Viewport) HasSize() bool { return v.Width > 0 && v.Height > 0 }

// Metadata holds diagram-wide data that is not a node or an edge.
type Metadata struct {
	Viewport    Viewport       `json:"viewport" toml:"viewport"`
	Middlewares map[string]any `json:"middlewares,omitempty" toml:"middlewares"`
}

// Clone returns a deep copy of the metadata.
func (m Metadata) Clone() Metadata {
	m.Middlewares = maps.Clone(m.Middlewares)
	return m
}

// DefaultMetadata returns metadata with an identity viewport.
func DefaultMetadata() Metadata {
	return Metadata{Viewport: Viewport{Scale: 1}}
}

// State is the committed diagram snapshot.
type State struct {
	Nodes    []Node   `json:"nodes"`
	Edges    []Edge   `json:"edges"`
	Metadata Metadata `json:"metadata"`
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := State{
		Nodes:    make([]Node, len(s.Nodes)),
		Edges:    make([]Edge, len(s.Edges)),
		Metadata: s.Metadata.Clone(),
	}
	for i, n := range s.Nodes {
		out.Nodes[i] = n.Clone()
	}
	for i, e := range s.Edges {
		out.Edges[i] = e.Clone()
	}
	return out
}

// Node returns the node with the given id using a linear scan. Hot paths
// should go through the lookup package instead.
func (s State) Node(id string) (Node, bool) {
	i := slices.IndexFunc(s.Nodes, func(n Node) bool { return n.ID == id })
	if i < 0 {
		return Node{}, false
	}
	return s.Nodes[i], true
}

// Edge returns the edge with the given id using a linear scan.
func (s State) Edge(id string) (Edge, bool) {
	i := slices.IndexFunc(s.Edges, func(e Edge) bool { return e.ID == id })
	if i < 0 {
		return Edge{}, false
	}
	return s.Edges[i], true
}

// Ptr returns a pointer to v. It keeps partial update literals short.
func Ptr[T any](v T) *T { return &v }

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func clonePorts(ports []Port) []Port {
	if ports == nil {
		return nil
	}
	out := make([]Port, len(ports))
	for i, p := range ports {
		p.Size = clonePtr(p.Size)
		p.Position = clonePtr(p.Position)
		out[i] = p
	}
	return out
}

func cloneLabels(labels []EdgeLabel) []EdgeLabel {
	if labels == nil {
		return nil
	}
	out := make([]EdgeLabel, len(labels))
	for i, l := range labels {
		l.Size = clonePtr(l.Size)
		l.Position = clonePtr(l.Position)
		out[i] = l
	}
	return out
}
