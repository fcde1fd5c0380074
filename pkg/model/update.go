package model

import (
	"maps"
	"slices"
)

// NodeUpdate is a partial node. Nil fields are left unchanged. A non-nil
// GroupID pointing at "" removes the node from its group. MeasuredPorts and
// Data replace the stored value when non-nil.
type NodeUpdate struct {
	ID             string         `json:"id"`
	Position       *Point         `json:"position,omitempty"`
	Size           *Size          `json:"size,omitempty"`
	Angle          *float64       `json:"angle,omitempty"`
	GroupID        *string        `json:"groupId,omitempty"`
	IsGroup        *bool          `json:"isGroup,omitempty"`
	Selected       *bool          `json:"selected,omitempty"`
	MeasuredPorts  []Port         `json:"measuredPorts,omitempty"`
	MeasuredBounds *Rect          `json:"measuredBounds,omitempty"`
	ZOrder         *int           `json:"zOrder,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u NodeUpdate) IsEmpty() bool {
	return u.Position == nil && u.Size == nil && u.Angle == nil && u.GroupID == nil &&
		u.IsGroup == nil && u.Selected == nil && u.MeasuredPorts == nil &&
		u.MeasuredBounds == nil && u.ZOrder == nil && u.Data == nil
}

// Merge folds next into u. Fields set in next win.
func (u NodeUpdate) Merge(next NodeUpdate) NodeUpdate {
	if next.Position != nil {
		u.Position = next.Position
	}
	if next.Size != nil {
		u.Size = next.Size
	}
	if next.Angle != nil {
		u.Angle = next.Angle
	}
	if next.GroupID != nil {
		u.GroupID = next.GroupID
	}
	if next.IsGroup != nil {
		u.IsGroup = next.IsGroup
	}
	if next.Selected != nil {
		u.Selected = next.Selected
	}
	if next.MeasuredPorts != nil {
		u.MeasuredPorts = next.MeasuredPorts
	}
	if next.MeasuredBounds != nil {
		u.MeasuredBounds = next.MeasuredBounds
	}
	if next.ZOrder != nil {
		u.ZOrder = next.ZOrder
	}
	if next.Data != nil {
		u.Data = next.Data
	}
	return u
}

// ApplyTo returns n with the update applied. n is not modified.
func (u NodeUpdate) ApplyTo(n Node) Node {
	n = n.Clone()
	if u.Position != nil {
		n.Position = *u.Position
	}
	if u.Size != nil {
		n.Size = clonePtr(u.Size)
	}
	if u.Angle != nil {
		n.Angle = *u.Angle
	}
	if u.GroupID != nil {
		n.GroupID = *u.GroupID
	}
	if u.IsGroup != nil {
		n.IsGroup = *u.IsGroup
	}
	if u.Selected != nil {
		n.Selected = *u.Selected
	}
	if u.MeasuredPorts != nil {
		n.MeasuredPorts = clonePorts(u.MeasuredPorts)
	}
	if u.MeasuredBounds != nil {
		n.MeasuredBounds = clonePtr(u.MeasuredBounds)
	}
	if u.ZOrder != nil {
		n.ZOrder = *u.ZOrder
	}
	if u.Data != nil {
		n.Data = maps.Clone(u.Data)
	}
	return n
}

// EdgeUpdate is a partial edge. Nil fields are left unchanged.
type EdgeUpdate struct {
	ID             string         `json:"id"`
	Source         *string        `json:"source,omitempty"`
	Target         *string        `json:"target,omitempty"`
	SourcePort     *string        `json:"sourcePort,omitempty"`
	TargetPort     *string        `json:"targetPort,omitempty"`
	Selected       *bool          `json:"selected,omitempty"`
	MeasuredLabels []EdgeLabel    `json:"measuredLabels,omitempty"`
	ZOrder         *int           `json:"zOrder,omitempty"`
	Routing        *string        `json:"routing,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u EdgeUpdate) IsEmpty() bool {
	return u.Source == nil && u.Target == nil && u.SourcePort == nil && u.TargetPort == nil &&
		u.Selected == nil && u.MeasuredLabels == nil && u.ZOrder == nil && u.Routing == nil &&
		u.Data == nil
}

// Merge folds next into u. Fields set in next win.
func (u EdgeUpdate) Merge(next EdgeUpdate) EdgeUpdate {
	if next.Source != nil {
		u.Source = next.Source
	}
	if next.Target != nil {
		u.Target = next.Target
	}
	if next.SourcePort != nil {
		u.SourcePort = next.SourcePort
	}
	if next.TargetPort != nil {
		u.TargetPort = next.TargetPort
	}
	if next.Selected != nil {
		u.Selected = next.Selected
	}
	if next.MeasuredLabels != nil {
		u.MeasuredLabels = next.MeasuredLabels
	}
	if next.ZOrder != nil {
		u.ZOrder = next.ZOrder
	}
	if next.Routing != nil {
		u.Routing = next.Routing
	}
	if next.Data != nil {
		u.Data = next.Data
	}
	return u
}

// ApplyTo returns e with the update applied. e is not modified.
func (u EdgeUpdate) ApplyTo(e Edge) Edge {
	e = e.Clone()
	if u.Source != nil {
		e.Source = *u.Source
	}
	if u.Target != nil {
		e.Target = *u.Target
	}
	if u.SourcePort != nil {
		e.SourcePort = *u.SourcePort
	}
	if u.TargetPort != nil {
		e.TargetPort = *u.TargetPort
	}
	if u.Selected != nil {
		e.Selected = *u.Selected
	}
	if u.MeasuredLabels != nil {
		e.MeasuredLabels = cloneLabels(u.MeasuredLabels)
	}
	if u.ZOrder != nil {
		e.ZOrder = *u.ZOrder
	}
	if u.Routing != nil {
		e.Routing = *u.Routing
	}
	if u.Data != nil {
		e.Data = maps.Clone(u.Data)
	}
	return e
}

// MetadataUpdate is a partial metadata. Middlewares entries are merged key by key.
type MetadataUpdate struct {
	Viewport    *Viewport      `json:"viewport,omitempty"`
	Middlewares map[string]any `json:"middlewares,omitempty"`
}

// Merge folds next into u.
func (u MetadataUpdate) Merge(next MetadataUpdate) MetadataUpdate {
	if next.Viewport != nil {
		u.Viewport = next.Viewport
	}
	if next.Middlewares != nil {
		merged := maps.Clone(u.Middlewares)
		if merged == nil {
			merged = make(map[string]any, len(next.Middlewares))
		}
		maps.Copy(merged, next.Middlewares)
		u.Middlewares = merged
	}
	return u
}

// ApplyTo returns m with the update applied.
func (u MetadataUpdate) ApplyTo(m Metadata) Metadata {
	m = m.Clone()
	if u.Viewport != nil {
		m.Viewport = *u.Viewport
	}
	if u.Middlewares != nil {
		if m.Middlewares == nil {
			m.Middlewares = make(map[string]any, len(u.Middlewares))
		}
		maps.Copy(m.Middlewares, u.Middlewares)
	}
	return m
}

// StateUpdate is a sparse patch over a [State]. It is never a full replacement.
type StateUpdate struct {
	NodesToAdd     []Node          `json:"nodesToAdd,omitempty"`
	NodesToUpdate  []NodeUpdate    `json:"nodesToUpdate,omitempty"`
	NodesToRemove  []string        `json:"nodesToRemove,omitempty"`
	EdgesToAdd     []Edge          `json:"edgesToAdd,omitempty"`
	EdgesToUpdate  []EdgeUpdate    `json:"edgesToUpdate,omitempty"`
	EdgesToRemove  []string        `json:"edgesToRemove,omitempty"`
	MetadataUpdate *MetadataUpdate `json:"metadataUpdate,omitempty"`
}

// IsEmpty reports whether the patch has no entries at all.
func (u StateUpdate) IsEmpty() bool {
	return len(u.NodesToAdd) == 0 && len(u.NodesToUpdate) == 0 && len(u.NodesToRemove) == 0 &&
		len(u.EdgesToAdd) == 0 && len(u.EdgesToUpdate) == 0 && len(u.EdgesToRemove) == 0 &&
		u.MetadataUpdate == nil
}

// Apply returns a new state with the update applied in add, update, remove
// order. Adding an id that already exists replaces the stored entity; updates
// for unknown ids are ignored. The input state is not modified.
func Apply(state State, u StateUpdate) State {
	return State{
		Nodes:    applyNodes(state.Nodes, u),
		Edges:    applyEdges(state.Edges, u),
		Metadata: applyMetadata(state.Metadata, u.MetadataUpdate),
	}
}

func applyNodes(nodes []Node, u StateUpdate) []Node {
	if len(u.NodesToAdd) == 0 && len(u.NodesToUpdate) == 0 && len(u.NodesToRemove) == 0 {
		return nodes
	}
	out := slices.Clone(nodes)
	index := make(map[string]int, len(out)+len(u.NodesToAdd))
	for i, n := range out {
		index[n.ID] = i
	}
	for _, n := range u.NodesToAdd {
		if i, ok := index[n.ID]; ok {
			out[i] = n.Clone()
			continue
		}
		index[n.ID] = len(out)
		out = append(out, n.Clone())
	}
	for _, upd := range u.NodesToUpdate {
		if i, ok := index[upd.ID]; ok {
			out[i] = upd.ApplyTo(out[i])
		}
	}
	if len(u.NodesToRemove) > 0 {
		remove := toSet(u.NodesToRemove)
		out = slices.DeleteFunc(out, func(n Node) bool { return remove[n.ID] })
	}
	return out
}

func applyEdges(edges []Edge, u StateUpdate) []Edge {
	if len(u.EdgesToAdd) == 0 && len(u.EdgesToUpdate) == 0 && len(u.EdgesToRemove) == 0 {
		return edges
	}
	out := slices.Clone(edges)
	index := make(map[string]int, len(out)+len(u.EdgesToAdd))
	for i, e := range out {
		index[e.ID] = i
	}
	for _, e := range u.EdgesToAdd {
		if i, ok := index[e.ID]; ok {
			out[i] = e.Clone()
			continue
		}
		index[e.ID] = len(out)
		out = append(out, e.Clone())
	}
	for _, upd := range u.EdgesToUpdate {
		if i, ok := index[upd.ID]; ok {
			out[i] = upd.ApplyTo(out[i])
		}
	}
	if len(u.EdgesToRemove) > 0 {
		remove := toSet(u.EdgesToRemove)
		out = slices.DeleteFunc(out, func(e Edge) bool { return remove[e.ID] })
	}
	return out
}

func applyMetadata(m Metadata, u *MetadataUpdate) Metadata {
	if u == nil {
		return m
	}
	return u.ApplyTo(m)
}

// MergeUpdates folds updates into one patch. Adds and removes are
// concatenated; partial updates for the same id are merged with later fields
// winning, keeping the order in which ids were first seen.
func MergeUpdates(updates ...StateUpdate) StateUpdate {
	var out StateUpdate
	nodeIdx := make(map[string]int)
	edgeIdx := make(map[string]int)

	for _, u := range updates {
		out.NodesToAdd = append(out.NodesToAdd, u.NodesToAdd...)
		out.NodesToRemove = append(out.NodesToRemove, u.NodesToRemove...)
		out.EdgesToAdd = append(out.EdgesToAdd, u.EdgesToAdd...)
		out.EdgesToRemove = append(out.EdgesToRemove, u.EdgesToRemove...)

		for _, nu := range u.NodesToUpdate {
			if i, ok := nodeIdx[nu.ID]; ok {
				out.NodesToUpdate[i] = out.NodesToUpdate[i].Merge(nu)
				continue
			}
			nodeIdx[nu.ID] = len(out.NodesToUpdate)
			out.NodesToUpdate = append(out.NodesToUpdate, nu)
		}
		for _, eu := range u.EdgesToUpdate {
			if i, ok := edgeIdx[eu.ID]; ok {
				out.EdgesToUpdate[i] = out.EdgesToUpdate[i].Merge(eu)
				continue
			}
			edgeIdx[eu.ID] = len(out.EdgesToUpdate)
			out.EdgesToUpdate = append(out.EdgesToUpdate, eu)
		}
		if u.MetadataUpdate != nil {
			var base MetadataUpdate
			if out.MetadataUpdate != nil {
				base = *out.MetadataUpdate
			}
			merged := base.Merge(*u.MetadataUpdate)
			out.MetadataUpdate = &merged
		}
	}
	return out
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
