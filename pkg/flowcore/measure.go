package flowcore

import (
	"context"

	"github.com/matzehuels/flowcore/pkg/measure"
	"github.com/matzehuels/flowcore/pkg/model"
	"github.com/matzehuels/flowcore/pkg/updater"
)

// signalling reports sizes to the measurement tracker before routing them,
// so transactions waiting for re-measurement resolve.
type signalling struct {
	next    updater.Updater
	tracker *measure.Tracker
}

func (s signalling) ApplyNodeSize(ctx context.Context, nodeID string, size model.Size) error {
	err := s.next.ApplyNodeSize(ctx, nodeID, size)
	if updater.IsValidSize(&size) {
		s.tracker.Signal(nodeID)
	}
	return err
}

func (s signalling) AddPort(ctx context.Context, nodeID string, port model.Port) error {
	return s.next.AddPort(ctx, nodeID, port)
}

func (s signalling) ApplyPortsSizesAndPositions(ctx context.Context, nodeID string, rects []updater.PortRect) error {
	return s.next.ApplyPortsSizesAndPositions(ctx, nodeID, rects)
}

func (s signalling) AddEdgeLabel(ctx context.Context, edgeID string, label model.EdgeLabel) error {
	return s.next.AddEdgeLabel(ctx, edgeID, label)
}

func (s signalling) ApplyEdgeLabelSize(ctx context.Context, edgeID, labelID string, size model.Size) error {
	err := s.next.ApplyEdgeLabelSize(ctx, edgeID, labelID, size)
	if updater.IsValidSize(&size) {
		s.tracker.Signal(edgeID)
	}
	return err
}
