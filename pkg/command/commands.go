package command

import "github.com/matzehuels/flowcore/pkg/model"

// Command names.
const (
	NameSelect            = "select"
	NameDeselect          = "deselect"
	NameDeselectAll       = "deselectAll"
	NameSelectAll         = "selectAll"
	NameSelectEnd         = "selectEnd"
	NameAddNodes          = "addNodes"
	NameUpdateNode        = "updateNode"
	NameUpdateNodes       = "updateNodes"
	NameDeleteNodes       = "deleteNodes"
	NameMoveNodesBy       = "moveNodesBy"
	NameMoveNodes         = "moveNodes"
	NameResizeStart       = "resizeStart"
	NameResizeNode        = "resizeNode"
	NameResizeEnd         = "resizeEnd"
	NameRotateNodeTo      = "rotateNodeTo"
	NameChangeZOrder      = "changeZOrder"
	NameAddToGroup        = "addToGroup"
	NameRemoveFromGroup   = "removeFromGroup"
	NameAddEdges          = "addEdges"
	NameUpdateEdge        = "updateEdge"
	NameUpdateEdges       = "updateEdges"
	NameDeleteEdges       = "deleteEdges"
	NameStartLinking      = "startLinking"
	NameMoveTemporaryEdge = "moveTemporaryEdge"
	NameFinishLinking     = "finishLinking"
	NameAddPorts          = "addPorts"
	NameUpdatePorts       = "updatePorts"
	NameDeletePorts       = "deletePorts"
	NameAddEdgeLabels     = "addEdgeLabels"
	NameUpdateEdgeLabels  = "updateEdgeLabels"
	NameDeleteEdgeLabels  = "deleteEdgeLabels"
	NameMoveViewport      = "moveViewport"
	NameMoveViewportBy    = "moveViewportBy"
	NameZoom              = "zoom"
	NameCenterOnNode      = "centerOnNode"
	NameCenterOnRect      = "centerOnRect"
	NameResizeViewport    = "resizeViewport"
	NameCopy              = "copy"
	NamePaste             = "paste"
	NameCut               = "cut"
	NameDeleteSelection   = "deleteSelection"
	NameInit              = "init"
)

// Select selects the given nodes and edges. Without PreserveSelection
// everything else is deselected.
type Select struct {
	NodeIDs           []string `json:"nodeIds,omitempty"`
	EdgeIDs           []string `json:"edgeIds,omitempty"`
	PreserveSelection bool     `json:"preserveSelection,omitempty"`
}

// Deselect deselects the given nodes and edges.
type Deselect struct {
	NodeIDs []string `json:"nodeIds,omitempty"`
	EdgeIDs []string `json:"edgeIds,omitempty"`
}

type (
	DeselectAll struct{}
	SelectAll   struct{}
	// SelectEnd marks the end of a selection gesture. It runs an empty
	// update so middlewares can react to the final selection.
	SelectEnd struct{}
)

// AddNodes adds nodes. Adding an existing id replaces the node.
type AddNodes struct {
	Nodes []model.Node `json:"nodes"`
}

// UpdateNode applies a partial update to one node.
type UpdateNode struct {
	ID     string           `json:"id"`
	Update model.NodeUpdate `json:"update"`
}

// UpdateNodes applies partial updates to several nodes.
type UpdateNodes struct {
	Updates []model.NodeUpdate `json:"updates"`
}

// DeleteNodes removes nodes, their descendants and every connected edge.
type DeleteNodes struct {
	IDs []string `json:"ids"`
}

// MoveNodesBy translates nodes by Delta. Descendants of moved groups move
// with them.
type MoveNodesBy struct {
	NodeIDs []string    `json:"nodeIds"`
	Delta   model.Point `json:"delta"`
}

// NodePosition is an absolute target position.
type NodePosition struct {
	ID       string      `json:"id"`
	Position model.Point `json:"position"`
}

// MoveNodes sets absolute positions.
type MoveNodes struct {
	Positions []NodePosition `json:"positions"`
}

// ResizeStart and ResizeEnd bracket a user resize gesture. While a node is
// being resized, measured sizes reported for it are ignored.
type ResizeStart struct {
	ID string `json:"id"`
}

type ResizeEnd struct {
	ID string `json:"id"`
}

// ResizeNode sets a node's size and, optionally, its position. Measured
// marks a size reported by a measurement producer: it skips the resizable
// flag, the minimum size and grid snapping.
type ResizeNode struct {
	ID       string       `json:"id"`
	Size     model.Size   `json:"size"`
	Position *model.Point `json:"position,omitempty"`
	Measured bool         `json:"measured,omitempty"`
}

// RotateNodeTo sets a node's angle in degrees.
type RotateNodeTo struct {
	ID    string  `json:"id"`
	Angle float64 `json:"angle"`
}

// ZDirection says where ChangeZOrder moves items.
type ZDirection string

const (
	BringToFront ZDirection = "bringToFront"
	SendToBack   ZDirection = "sendToBack"
)

// ChangeZOrder restacks nodes and edges. Empty id lists use the selection.
type ChangeZOrder struct {
	NodeIDs   []string   `json:"nodeIds,omitempty"`
	EdgeIDs   []string   `json:"edgeIds,omitempty"`
	Direction ZDirection `json:"direction"`
}

// AddToGroup moves nodes into a group.
type AddToGroup struct {
	GroupID string   `json:"groupId"`
	NodeIDs []string `json:"nodeIds"`
}

// RemoveFromGroup detaches nodes from their groups.
type RemoveFromGroup struct {
	NodeIDs []string `json:"nodeIds"`
}

// AddEdges adds edges. Edges whose endpoints do not exist are skipped.
type AddEdges struct {
	Edges []model.Edge `json:"edges"`
}

// UpdateEdge applies a partial update to one edge.
type UpdateEdge struct {
	ID     string           `json:"id"`
	Update model.EdgeUpdate `json:"update"`
}

// UpdateEdges applies partial updates to several edges.
type UpdateEdges struct {
	Updates []model.EdgeUpdate `json:"updates"`
}

// DeleteEdges removes edges.
type DeleteEdges struct {
	IDs []string `json:"ids"`
}

// StartLinking begins drawing an edge from a node (and port).
type StartLinking struct {
	SourceNode string      `json:"sourceNode"`
	SourcePort string      `json:"sourcePort,omitempty"`
	Position   model.Point `json:"position"`
}

// MoveTemporaryEdge moves the loose end of the edge being drawn.
type MoveTemporaryEdge struct {
	Position model.Point `json:"position"`
}

// FinishLinking commits the edge being drawn. An empty target, or a target
// equal to the source, cancels the link.
type FinishLinking struct {
	TargetNode string `json:"targetNode,omitempty"`
	TargetPort string `json:"targetPort,omitempty"`
}

// AddPorts adds ports to a node. Existing ids are replaced.
type AddPorts struct {
	NodeID string       `json:"nodeId"`
	Ports  []model.Port `json:"ports"`
}

// PortUpdate is a partial port.
type PortUpdate struct {
	ID       string          `json:"id"`
	Side     *model.PortSide `json:"side,omitempty"`
	Type     *model.PortType `json:"type,omitempty"`
	Size     *model.Size     `json:"size,omitempty"`
	Position *model.Point    `json:"position,omitempty"`
}

// UpdatePorts applies partial updates to a node's ports.
type UpdatePorts struct {
	NodeID string       `json:"nodeId"`
	Ports  []PortUpdate `json:"ports"`
}

// DeletePorts removes ports and the edges attached to them.
type DeletePorts struct {
	NodeID  string   `json:"nodeId"`
	PortIDs []string `json:"portIds"`
}

// AddEdgeLabels adds labels to an edge. Existing ids are replaced.
type AddEdgeLabels struct {
	EdgeID string            `json:"edgeId"`
	Labels []model.EdgeLabel `json:"labels"`
}

// LabelUpdate is a partial edge label.
type LabelUpdate struct {
	ID             string       `json:"id"`
	PositionOnEdge *float64     `json:"positionOnEdge,omitempty"`
	Size           *model.Size  `json:"size,omitempty"`
	Position       *model.Point `json:"position,omitempty"`
}

// UpdateEdgeLabels applies partial updates to an edge's labels.
type UpdateEdgeLabels struct {
	EdgeID string        `json:"edgeId"`
	Labels []LabelUpdate `json:"labels"`
}

// DeleteEdgeLabels removes labels from an edge.
type DeleteEdgeLabels struct {
	EdgeID   string   `json:"edgeId"`
	LabelIDs []string `json:"labelIds"`
}

// MoveViewport sets the viewport origin.
type MoveViewport struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// MoveViewportBy pans the viewport.
type MoveViewportBy struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// Zoom multiplies the scale by Factor, keeping the client point Center
// fixed on screen. The result is clamped to the configured zoom range.
type Zoom struct {
	Factor float64     `json:"factor"`
	Center model.Point `json:"center"`
}

// CenterOnNode pans so that the node's center is in the middle of the
// viewport.
type CenterOnNode struct {
	ID string `json:"id"`
}

// CenterOnRect pans so that the rectangle's center is in the middle of the
// viewport.
type CenterOnRect struct {
	Rect model.Rect `json:"rect"`
}

// ResizeViewport records the size of the drawing surface.
type ResizeViewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type (
	// Copy copies the selected nodes and the edges between them.
	Copy struct{}
	// Cut copies the selection and deletes it.
	Cut struct{}
	// DeleteSelection deletes the selected nodes, their descendants, their
	// edges and the selected edges.
	DeleteSelection struct{}
	// Init announces that the diagram finished initializing.
	Init struct{}
)

// Paste inserts the clipboard with fresh ids. With Position set, the
// pasted items' bounding box starts there; otherwise they are offset from
// the originals.
type Paste struct {
	Position *model.Point `json:"position,omitempty"`
}

func (Select) CommandName() string            { return NameSelect }
func (Deselect) CommandName() string          { return NameDeselect }
func (DeselectAll) CommandName() string       { return NameDeselectAll }
func (SelectAll) CommandName() string         { return NameSelectAll }
func (SelectEnd) CommandName() string         { return NameSelectEnd }
func (AddNodes) CommandName() string          { return NameAddNodes }
func (UpdateNode) CommandName() string        { return NameUpdateNode }
func (UpdateNodes) CommandName() string       { return NameUpdateNodes }
func (DeleteNodes) CommandName() string       { return NameDeleteNodes }
func (MoveNodesBy) CommandName() string       { return NameMoveNodesBy }
func (MoveNodes) CommandName() string         { return NameMoveNodes }
func (ResizeStart) CommandName() string       { return NameResizeStart }
func (ResizeNode) CommandName() string        { return NameResizeNode }
func (ResizeEnd) CommandName() string         { return NameResizeEnd }
func (RotateNodeTo) CommandName() string      { return NameRotateNodeTo }
func (ChangeZOrder) CommandName() string      { return NameChangeZOrder }
func (AddToGroup) CommandName() string        { return NameAddToGroup }
func (RemoveFromGroup) CommandName() string   { return NameRemoveFromGroup }
func (AddEdges) CommandName() string          { return NameAddEdges }
func (UpdateEdge) CommandName() string        { return NameUpdateEdge }
func (UpdateEdges) CommandName() string       { return NameUpdateEdges }
func (DeleteEdges) CommandName() string       { return NameDeleteEdges }
func (StartLinking) CommandName() string      { return NameStartLinking }
func (MoveTemporaryEdge) CommandName() string { return NameMoveTemporaryEdge }
func (FinishLinking) CommandName() string     { return NameFinishLinking }
func (AddPorts) CommandName() string          { return NameAddPorts }
func (UpdatePorts) CommandName() string       { return NameUpdatePorts }
func (DeletePorts) CommandName() string       { return NameDeletePorts }
func (AddEdgeLabels) CommandName() string     { return NameAddEdgeLabels }
func (UpdateEdgeLabels) CommandName() string  { return NameUpdateEdgeLabels }
func (DeleteEdgeLabels) CommandName() string  { return NameDeleteEdgeLabels }
func (MoveViewport) CommandName() string      { return NameMoveViewport }
func (MoveViewportBy) CommandName() string    { return NameMoveViewportBy }
func (Zoom) CommandName() string              { return NameZoom }
func (CenterOnNode) CommandName() string      { return NameCenterOnNode }
func (CenterOnRect) CommandName() string      { return NameCenterOnRect }
func (ResizeViewport) CommandName() string    { return NameResizeViewport }
func (Copy) CommandName() string              { return NameCopy }
func (Paste) CommandName() string             { return NamePaste }
func (Cut) CommandName() string               { return NameCut }
func (DeleteSelection) CommandName() string   { return NameDeleteSelection }
func (Init) CommandName() string              { return NameInit }
