package updater

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/flowcore/pkg/model"
)

// CompositeUpdater sends each call to the InitUpdater until that kind of
// measurement has finished initializing, and to the InternalUpdater after.
type CompositeUpdater struct {
	init     *InitUpdater
	internal Updater
	logger   *log.Logger
}

// NewCompositeUpdater combines init and internal.
func NewCompositeUpdater(init *InitUpdater, internal Updater, logger *log.Logger) *CompositeUpdater {
	if logger == nil {
		logger = log.Default()
	}
	return &CompositeUpdater{init: init, internal: internal, logger: logger}
}

// Init returns the startup updater.
func (c *CompositeUpdater) Init() *InitUpdater { return c.init }

// route sends a to the InitUpdater while its kind is unfinished. Declined
// and finished calls go to the internal updater, together with whatever the
// InitUpdater had collected for the same entity.
func (c *CompositeUpdater) route(ctx context.Context, a Arrival) error {
	if !c.init.IsFinished(a.Kind) {
		err := a.Replay(ctx, c.init)
		if err == nil {
			return nil
		}
		c.logger.Debug("init updater declined measurement", "kind", a.Kind, "err", err)
	}
	handed := c.init.release(a)
	if err := a.Replay(ctx, c.internal); err != nil {
		return err
	}
	for _, h := range handed {
		if err := h.Replay(ctx, c.internal); err != nil {
			return err
		}
	}
	return nil
}

// ApplyNodeSize implements Updater.
func (c *CompositeUpdater) ApplyNodeSize(ctx context.Context, nodeID string, size model.Size) error {
	return c.route(ctx, Arrival{Kind: KindNodeSize, OwnerID: nodeID, Size: size})
}

// AddPort implements Updater.
func (c *CompositeUpdater) AddPort(ctx context.Context, nodeID string, port model.Port) error {
	return c.route(ctx, Arrival{Kind: KindPort, OwnerID: nodeID, Port: port})
}

// ApplyPortsSizesAndPositions implements Updater.
func (c *CompositeUpdater) ApplyPortsSizesAndPositions(ctx context.Context, nodeID string, rects []PortRect) error {
	return c.route(ctx, Arrival{Kind: KindPortRect, OwnerID: nodeID, Rects: rects})
}

// AddEdgeLabel implements Updater.
func (c *CompositeUpdater) AddEdgeLabel(ctx context.Context, edgeID string, label model.EdgeLabel) error {
	return c.route(ctx, Arrival{Kind: KindLabel, OwnerID: edgeID, Label: label})
}

// ApplyEdgeLabelSize implements Updater.
func (c *CompositeUpdater) ApplyEdgeLabelSize(ctx context.Context, edgeID, labelID string, size model.Size) error {
	return c.route(ctx, Arrival{Kind: KindLabelSize, OwnerID: edgeID, LabelID: labelID, Size: size})
}
