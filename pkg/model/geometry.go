package model

import "math"

// epsilon absorbs floating point noise from rotations.
const epsilon = 1e-9

// Point is a position in flow coordinates.
type Point struct {
	X float64 `json:"x" toml:"x"`
	Y float64 `json:"y" toml:"y"`
}

// Add returns p translated by d.
func (p Point) Add(d Point) Point { return Point{X: p.X + d.X, Y: p.Y + d.Y} }

// Size is a width/height pair.
type Size struct {
	Width  float64 `json:"width" toml:"width"`
	Height float64 `json:"height" toml:"height"`
}

// Rect is an axis-aligned rectangle.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Right returns the x coordinate of the right edge.
func (r Rect) Right() float64 { return r.X + r.Width }

// Bottom returns the y coordinate of the bottom edge.
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Center returns the center point.
func (r Rect) Center() Point { return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2} }

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// Intersects reports whether r and o overlap with positive area. Rectangles
// that only touch along an edge or a corner do not intersect.
func (r Rect) Intersects(o Rect) bool {
	if r.Empty() || o.Empty() {
		return false
	}
	return r.X < o.Right() && o.X < r.Right() && r.Y < o.Bottom() && o.Y < r.Bottom()
}

// Contains reports whether p lies inside r (edges included).
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.Right() && p.Y >= r.Y && p.Y <= r.Bottom()
}

// Union returns the smallest rectangle containing r and o.
func (r Rect) Union(o Rect) Rect {
	x := math.Min(r.X, o.X)
	y := math.Min(r.Y, o.Y)
	return Rect{
		X:      x,
		Y:      y,
		Width:  math.Max(r.Right(), o.Right()) - x,
		Height: math.Max(r.Bottom(), o.Bottom()) - y,
	}
}

// BoundsOf returns the union of the bounds of nodes. ok is false when nodes is empty.
func BoundsOf(nodes []Node) (r Rect, ok bool) {
	for i, n := range nodes {
		b := n.Bounds()
		if i == 0 {
			r = b
			continue
		}
		r = r.Union(b)
	}
	return r, len(nodes) > 0
}

// Corners returns the four corners of r rotated by angle degrees around its
// center, in clockwise order starting at the top-left corner.
func Corners(r Rect, angle float64) [4]Point {
	c := r.Center()
	pts := [4]Point{
		{X: r.X, Y: r.Y},
		{X: r.Right(), Y: r.Y},
		{X: r.Right(), Y: r.Bottom()},
		{X: r.X, Y: r.Bottom()},
	}
	if NormalizeAngle(angle) == 0 {
		return pts
	}
	rad := angle * math.Pi / 180
	sin, cos := math.Sincos(rad)
	for i, p := range pts {
		dx, dy := p.X-c.X, p.Y-c.Y
		pts[i] = Point{X: c.X + dx*cos - dy*sin, Y: c.Y + dx*sin + dy*cos}
	}
	return pts
}

// RotatedBounds returns the axis-aligned bounding box of r rotated by angle
// degrees around its center.
func RotatedBounds(r Rect, angle float64) Rect {
	if NormalizeAngle(angle) == 0 {
		return r
	}
	pts := Corners(r, angle)
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := minX, minY
	for _, p := range pts[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// OrientedIntersect reports whether rectangle a rotated by angleA and b
// rotated by angleB overlap with positive area, using the separating axis
// theorem. Touching rectangles do not intersect.
func OrientedIntersect(a Rect, angleA float64, b Rect, angleB float64) bool {
	if a.Empty() || b.Empty() {
		return false
	}
	pa := Corners(a, angleA)
	pb := Corners(b, angleB)
	for _, poly := range [2][4]Point{pa, pb} {
		for i := 0; i < 2; i++ {
			edge := Point{X: poly[i+1].X - poly[i].X, Y: poly[i+1].Y - poly[i].Y}
			axis := Point{X: -edge.Y, Y: edge.X}
			minA, maxA := project(pa, axis)
			minB, maxB := project(pb, axis)
			if maxA <= minB+epsilon || maxB <= minA+epsilon {
				return false
			}
		}
	}
	return true
}

func project(pts [4]Point, axis Point) (lo, hi float64) {
	lo = math.Inf(1)
	hi = math.Inf(-1)
	for _, p := range pts {
		v := p.X*axis.X + p.Y*axis.Y
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// NormalizeAngle maps angle into [0, 360).
func NormalizeAngle(angle float64) float64 {
	a := math.Mod(angle, 360)
	if a < 0 {
		a += 360
	}
	if math.Abs(a) < epsilon || math.Abs(a-360) < epsilon {
		return 0
	}
	return a
}
