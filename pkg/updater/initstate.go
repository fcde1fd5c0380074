package updater

import (
	"slices"

	"github.com/matzehuels/flowcore/pkg/model"
)

// InitState accumulates measurements reported during startup. It is not
// safe for concurrent use; the InitUpdater serializes access.
type InitState struct {
	nodeSizes  map[string]model.Size
	ports      map[string][]model.Port // added during startup, by node
	portRects  map[entityKey]PortRect
	labels     map[string][]model.EdgeLabel // added during startup, by edge
	labelSizes map[entityKey]model.Size

	nodes       map[string]bool    // snapshot nodes; value: measured
	knownPorts  map[entityKey]bool // value: measured
	knownLabels map[entityKey]bool
}

// NewInitState returns an empty InitState.
func NewInitState() *InitState {
	return &InitState{
		nodeSizes:   make(map[string]model.Size),
		ports:       make(map[string][]model.Port),
		portRects:   make(map[entityKey]PortRect),
		labels:      make(map[string][]model.EdgeLabel),
		labelSizes:  make(map[entityKey]model.Size),
		nodes:       make(map[string]bool),
		knownPorts:  make(map[entityKey]bool),
		knownLabels: make(map[entityKey]bool),
	}
}

// CollectAlreadyMeasuredItems seeds the state with the entities of state,
// marking those whose geometry is already valid as measured. Only nodes seen
// here count towards AllEntitiesHaveMeasurements.
func (s *InitState) CollectAlreadyMeasuredItems(state model.State) {
	for _, n := range state.Nodes {
		s.nodes[n.ID] = s.nodes[n.ID] || IsValidSize(n.Size)
		for _, p := range n.MeasuredPorts {
			k := entityKey{n.ID, p.ID}
			s.knownPorts[k] = s.knownPorts[k] || (IsValidSize(p.Size) && IsValidPosition(p.Position))
		}
	}
	for _, e := range state.Edges {
		for _, l := range e.MeasuredLabels {
			k := entityKey{e.ID, l.ID}
			s.knownLabels[k] = s.knownLabels[k] || IsValidSize(l.Size)
		}
	}
}

// AddNodeSize records a measured node size. Sizes for nodes outside the
// seeded snapshot are kept for ApplyToDiagramState but measure nothing.
func (s *InitState) AddNodeSize(nodeID string, size model.Size) {
	s.nodeSizes[nodeID] = size
	if _, tracked := s.nodes[nodeID]; tracked && IsValidSize(&size) {
		s.nodes[nodeID] = true
	}
}

// AddPort records a port added during startup. A later port with the same
// id replaces the earlier one.
func (s *InitState) AddPort(p model.Port) {
	list := s.ports[p.NodeID]
	if i := slices.IndexFunc(list, func(x model.Port) bool { return x.ID == p.ID }); i >= 0 {
		list[i] = p
	} else {
		list = append(list, p)
	}
	s.ports[p.NodeID] = list

	k := entityKey{p.NodeID, p.ID}
	if r, ok := s.portRects[k]; ok {
		s.knownPorts[k] = IsValidSize(&r.Size) && IsValidPosition(&r.Position)
		return
	}
	s.knownPorts[k] = s.knownPorts[k] || (IsValidSize(p.Size) && IsValidPosition(p.Position))
}

// AddPortRects records measured port geometry.
func (s *InitState) AddPortRects(nodeID string, rects []PortRect) {
	for _, r := range rects {
		k := entityKey{nodeID, r.PortID}
		s.portRects[k] = r
		if IsValidSize(&r.Size) && IsValidPosition(&r.Position) {
			s.knownPorts[k] = true
		}
	}
}

// AddLabel records a label added during startup.
func (s *InitState) AddLabel(edgeID string, l model.EdgeLabel) {
	list := s.labels[edgeID]
	if i := slices.IndexFunc(list, func(x model.EdgeLabel) bool { return x.ID == l.ID }); i >= 0 {
		list[i] = l
	} else {
		list = append(list, l)
	}
	s.labels[edgeID] = list

	k := entityKey{edgeID, l.ID}
	if size, ok := s.labelSizes[k]; ok {
		s.knownLabels[k] = IsValidSize(&size)
		return
	}
	s.knownLabels[k] = s.knownLabels[k] || IsValidSize(l.Size)
}

// AddLabelSize records a measured label size.
func (s *InitState) AddLabelSize(edgeID, labelID string, size model.Size) {
	k := entityKey{edgeID, labelID}
	s.labelSizes[k] = size
	if IsValidSize(&size) {
		s.knownLabels[k] = true
	}
}

// AllEntitiesHaveMeasurements reports whether at least nodeCount nodes are
// tracked and every tracked node, port and label has valid geometry.
func (s *InitState) AllEntitiesHaveMeasurements(nodeCount int) bool {
	return s.NodesMeasured(nodeCount) && s.PortsMeasured() && s.LabelsMeasured()
}

// NodesMeasured reports whether at least nodeCount nodes are tracked and
// all of them have a valid size.
func (s *InitState) NodesMeasured(nodeCount int) bool {
	return len(s.nodes) >= nodeCount && allTrue(s.nodes)
}

// PortsMeasured reports whether every known port has valid geometry.
func (s *InitState) PortsMeasured() bool { return allTrue(s.knownPorts) }

// LabelsMeasured reports whether every known label has a valid size.
func (s *InitState) LabelsMeasured() bool { return allTrue(s.knownLabels) }

func allTrue[K comparable](m map[K]bool) bool {
	for _, ok := range m {
		if !ok {
			return false
		}
	}
	return true
}

// Release drops whatever was recorded for the entity a refers to, so a
// newer report handled elsewhere is not overwritten by ApplyToDiagramState.
// Geometry recorded for a released port or label is returned as follow-up
// calls for whoever takes the entity over.
func (s *InitState) Release(a Arrival) []Arrival {
	switch a.Kind {
	case KindNodeSize:
		delete(s.nodeSizes, a.OwnerID)
	case KindPortRect:
		for _, r := range a.Rects {
			delete(s.portRects, entityKey{a.OwnerID, r.PortID})
		}
	case KindLabelSize:
		delete(s.labelSizes, entityKey{a.OwnerID, a.LabelID})
	case KindPort:
		k := entityKey{a.OwnerID, a.Port.ID}
		s.ports[a.OwnerID] = slices.DeleteFunc(s.ports[a.OwnerID], func(p model.Port) bool { return p.ID == k.id })
		delete(s.knownPorts, k)
		if r, ok := s.portRects[k]; ok {
			delete(s.portRects, k)
			return []Arrival{{Kind: KindPortRect, OwnerID: a.OwnerID, Rects: []PortRect{r}}}
		}
	case KindLabel:
		k := entityKey{a.OwnerID, a.Label.ID}
		s.labels[a.OwnerID] = slices.DeleteFunc(s.labels[a.OwnerID], func(l model.EdgeLabel) bool { return l.ID == k.id })
		delete(s.knownLabels, k)
		if size, ok := s.labelSizes[k]; ok {
			delete(s.labelSizes, k)
			return []Arrival{{Kind: KindLabelSize, OwnerID: a.OwnerID, LabelID: k.id, Size: size}}
		}
	}
	return nil
}

// ApplyToDiagramState returns state with every recorded measurement merged
// in. Ports and labels added during startup win over stored ones with the
// same id. changed is false when nothing was recorded for any entity of
// state.
func (s *InitState) ApplyToDiagramState(state model.State) (next model.State, changed bool) {
	next = state.Clone()
	for i, n := range next.Nodes {
		if size, ok := s.nodeSizes[n.ID]; ok && (n.Size == nil || *n.Size != size) {
			n.Size = model.Ptr(size)
			changed = true
		}
		if added := s.ports[n.ID]; len(added) > 0 {
			n.MeasuredPorts = mergeByID(n.MeasuredPorts, added, func(p model.Port) string { return p.ID })
			changed = true
		}
		for j, p := range n.MeasuredPorts {
			r, ok := s.portRects[entityKey{n.ID, p.ID}]
			if !ok {
				continue
			}
			p.Size = model.Ptr(r.Size)
			p.Position = model.Ptr(r.Position)
			p.NodeID = n.ID
			n.MeasuredPorts[j] = p
			changed = true
		}
		next.Nodes[i] = n
	}
	for i, e := range next.Edges {
		if added := s.labels[e.ID]; len(added) > 0 {
			e.MeasuredLabels = mergeByID(e.MeasuredLabels, added, func(l model.EdgeLabel) string { return l.ID })
			changed = true
		}
		for j, l := range e.MeasuredLabels {
			size, ok := s.labelSizes[entityKey{e.ID, l.ID}]
			if !ok {
				continue
			}
			l.Size = model.Ptr(size)
			e.MeasuredLabels[j] = l
			changed = true
		}
		next.Edges[i] = e
	}
	return next, changed
}

// mergeByID replaces items of base by id and appends the rest of added.
func mergeByID[T any](base, added []T, id func(T) string) []T {
	out := slices.Clone(base)
	for _, a := range added {
		if i := slices.IndexFunc(out, func(x T) bool { return id(x) == id(a) }); i >= 0 {
			out[i] = a
			continue
		}
		out = append(out, a)
	}
	return out
}
