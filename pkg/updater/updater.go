// Package updater merges geometry reported by external measurement
// producers (node sizes, ports, edge labels) into diagram state.
//
// Measurements go through two updaters. While the diagram starts up, the
// [InitUpdater] collects every report and commits them in a single state
// write once the diagram has settled. Afterwards the [InternalUpdater] turns
// reports into regular commands, batched by a [BatchStrategy]. The
// [CompositeUpdater] routes each call to whichever of the two is
// responsible for that kind of measurement.
//
// # Lifecycle
//
//	collecting ──(all measured, or stabilized + timeout)──▶ finishing ──▶ initialized
//
// Reports that arrive while finishing are buffered in a [LateArrivalQueue]
// and replayed on the internal updater, in arrival order, once the initial
// state has been written.
package updater

import (
	"context"
	"errors"
	"math"

	"github.com/matzehuels/flowcore/pkg/action"
	"github.com/matzehuels/flowcore/pkg/lookup"
	"github.com/matzehuels/flowcore/pkg/model"
	"github.com/matzehuels/flowcore/pkg/transaction"
)

var (
	// ErrAlreadyInitialized is returned by the InitUpdater once the initial
	// measurements have been committed.
	ErrAlreadyInitialized = errors.New("updater already initialized")

	// ErrAlreadyStarted is returned by a second InitUpdater.Start.
	ErrAlreadyStarted = errors.New("updater already started")

	// ErrStabilityCancelled is returned by StabilityDetector.Wait after Stop.
	ErrStabilityCancelled = errors.New("stability wait cancelled")
)

// Updater receives measurements.
type Updater interface {
	ApplyNodeSize(ctx context.Context, nodeID string, size model.Size) error
	AddPort(ctx context.Context, nodeID string, port model.Port) error
	ApplyPortsSizesAndPositions(ctx context.Context, nodeID string, rects []PortRect) error
	AddEdgeLabel(ctx context.Context, edgeID string, label model.EdgeLabel) error
	ApplyEdgeLabelSize(ctx context.Context, edgeID, labelID string, size model.Size) error
}

// PortRect is the measured geometry of one port, relative to its node.
type PortRect struct {
	PortID   string      `json:"portId"`
	Size     model.Size  `json:"size"`
	Position model.Point `json:"position"`
}

// Kind identifies one of the Updater methods.
type Kind int

const (
	KindNodeSize Kind = iota
	KindPort
	KindPortRect
	KindLabel
	KindLabelSize
)

// Kinds lists every Kind.
var Kinds = []Kind{KindNodeSize, KindPort, KindPortRect, KindLabel, KindLabelSize}

func (k Kind) String() string {
	switch k {
	case KindNodeSize:
		return "nodeSize"
	case KindPort:
		return "port"
	case KindPortRect:
		return "portRect"
	case KindLabel:
		return "label"
	case KindLabelSize:
		return "labelSize"
	}
	return "unknown"
}

// Engine is what the updaters need from the diagram engine.
type Engine interface {
	State() model.State
	// SetState replaces the committed state without running middlewares.
	SetState(ctx context.Context, state model.State) error
	// UpdateState commits fn applied to the committed state without running
	// middlewares. No other update commits between the read and the write.
	UpdateState(ctx context.Context, fn func(model.State) model.State) error
	Emit(ctx context.Context, cmd model.Command) error
	Transaction(ctx context.Context, name string, fn transaction.Func, opts ...transaction.Option) (transaction.Result, error)
	Lookup() *lookup.Lookup
	ActionState() *action.State
}

// IsValidSize reports whether s is a usable measured size.
func IsValidSize(s *model.Size) bool {
	return s != nil && s.Width > 0 && s.Height > 0 && !math.IsInf(s.Width, 0) && !math.IsInf(s.Height, 0)
}

// IsValidPosition reports whether p is a usable measured position.
func IsValidPosition(p *model.Point) bool {
	return p != nil && !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

type entityKey struct {
	owner string // node or edge id
	id    string // port or label id
}
