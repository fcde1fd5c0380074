package command

import (
	"context"

	"github.com/matzehuels/flowcore/pkg/errors"
	"github.com/matzehuels/flowcore/pkg/model"
)

func (b *Builtins) setViewport(ctx context.Context, vp model.Viewport, actionType model.ActionType) error {
	if vp == b.env.State().Metadata.Viewport {
		return b.noop(string(actionType), "viewport unchanged")
	}
	return b.apply(ctx, model.StateUpdate{
		MetadataUpdate: &model.MetadataUpdate{Viewport: &vp},
	}, actionType)
}

func (b *Builtins) moveViewport(ctx context.Context, x, y float64) error {
	vp := b.env.State().Metadata.Viewport
	vp.X, vp.Y = x, y
	return b.setViewport(ctx, vp, model.ActionMoveViewport)
}

// zoom keeps the flow point under c.Center at the same screen position.
func (b *Builtins) zoom(ctx context.Context, c Zoom) error {
	if c.Factor <= 0 {
		return b.noop(NameZoom, "non-positive factor")
	}
	vp := b.env.State().Metadata.Viewport
	if vp.Scale <= 0 {
		vp.Scale = 1
	}
	scale := b.env.Config().ClampZoom(vp.Scale * c.Factor)
	fx := (c.Center.X - vp.X) / vp.Scale
	fy := (c.Center.Y - vp.Y) / vp.Scale
	vp.X = c.Center.X - fx*scale
	vp.Y = c.Center.Y - fy*scale
	vp.Scale = scale
	return b.setViewport(ctx, vp, model.ActionZoom)
}

func (b *Builtins) centerOnNode(ctx context.Context, c CenterOnNode) error {
	n, ok := b.env.Lookup().Node(c.ID)
	if !ok || n.Size == nil {
		return b.noop(NameCenterOnNode, "unknown node or node without size")
	}
	return b.centerOn(ctx, n.Rect().Center(), NameCenterOnNode)
}

func (b *Builtins) centerOnRect(ctx context.Context, r model.Rect) error {
	if r.Empty() {
		return b.noop(NameCenterOnRect, "empty rect")
	}
	return b.centerOn(ctx, r.Center(), NameCenterOnRect)
}

func (b *Builtins) centerOn(ctx context.Context, p model.Point, name string) error {
	vp := b.env.State().Metadata.Viewport
	if !vp.HasSize() {
		return b.noop(name, "viewport size unknown")
	}
	scale := vp.Scale
	if scale <= 0 {
		scale = 1
	}
	vp.X = vp.Width/2 - p.X*scale
	vp.Y = vp.Height/2 - p.Y*scale
	return b.setViewport(ctx, vp, model.ActionMoveViewport)
}

func (b *Builtins) resizeViewport(ctx context.Context, c ResizeViewport) error {
	if c.Width < 0 || c.Height < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "viewport size must not be negative, got %vx%v", c.Width, c.Height)
	}
	vp := b.env.State().Metadata.Viewport
	vp.Width, vp.Height = c.Width, c.Height
	return b.setViewport(ctx, vp, model.ActionMoveViewport)
}
