package dot

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/flowcore/pkg/config"
	"github.com/matzehuels/flowcore/pkg/model"
)

// pointsPerUnit converts diagram units to Graphviz inches.
const pointsPerUnit = 72.0

// Options configures DOT generation.
type Options struct {
	// Detailed adds position, size and data to node labels.
	// When false, only the node ID is shown.
	Detailed bool
	// Pinned fixes nodes at their diagram positions (neato with pos!).
	Pinned bool
	// Routing selects the spline style: bezier, straight or orthogonal.
	// Empty means bezier.
	Routing string
}

// ToDOT converts nodes and edges to Graphviz DOT source.
func ToDOT(nodes []model.Node, edges []model.Edge, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	if opts.Pinned {
		buf.WriteString("  layout=neato;\n")
	} else {
		buf.WriteString("  rankdir=LR;\n")
		buf.WriteString("  compound=true;\n")
	}
	buf.WriteString("  bgcolor=\"transparent\";\n")
	fmt.Fprintf(&buf, "  splines=%s;\n", splines(opts.Routing))
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("\n")

	w := &writer{buf: &buf, opts: opts, children: make(map[string][]model.Node), visited: make(map[string]bool)}
	groups := make(map[string]bool)
	for _, n := range nodes {
		if n.IsGroup {
			groups[n.ID] = true
		}
	}
	var roots []model.Node
	for _, n := range nodes {
		if n.GroupID != "" && groups[n.GroupID] && n.GroupID != n.ID {
			w.children[n.GroupID] = append(w.children[n.GroupID], n)
			continue
		}
		roots = append(roots, n)
	}
	for _, n := range roots {
		w.node(n, 1)
	}
	// Members of a group cycle are unreachable from the roots.
	for _, n := range nodes {
		if !w.visited[n.ID] {
			w.node(model.Node{ID: n.ID, Selected: n.Selected}, 1)
		}
	}

	buf.WriteString("\n")
	for _, e := range edges {
		attrs := []string{}
		if e.Selected {
			attrs = append(attrs, "color=blue", "penwidth=2")
		}
		if e.Temporary {
			attrs = append(attrs, "style=dashed")
		}
		if len(e.MeasuredLabels) > 0 {
			ids := make([]string, len(e.MeasuredLabels))
			for i, l := range e.MeasuredLabels {
				ids[i] = l.ID
			}
			attrs = append(attrs, fmt.Sprintf("label=%q", strings.Join(ids, ", ")))
		}
		if len(attrs) == 0 {
			fmt.Fprintf(&buf, "  %q -> %q;\n", e.Source, e.Target)
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q [%s];\n", e.Source, e.Target, strings.Join(attrs, ", "))
	}

	buf.WriteString("}\n")
	return buf.String()
}

type writer struct {
	buf      *bytes.Buffer
	opts     Options
	children map[string][]model.Node
	visited  map[string]bool
}

func (w *writer) node(n model.Node, depth int) {
	if w.visited[n.ID] {
		return
	}
	w.visited[n.ID] = true
	indent := strings.Repeat("  ", depth)

	if !n.IsGroup {
		fmt.Fprintf(w.buf, "%s%q [%s];\n", indent, n.ID, strings.Join(w.attrs(n), ", "))
		return
	}

	fmt.Fprintf(w.buf, "%ssubgraph %q {\n", indent, "cluster_"+n.ID)
	fmt.Fprintf(w.buf, "%s  label=%q;\n", indent, n.ID)
	if n.Selected {
		fmt.Fprintf(w.buf, "%s  color=blue;\n", indent)
		fmt.Fprintf(w.buf, "%s  penwidth=2;\n", indent)
	}
	anchor := []string{"shape=point", "style=invis"}
	if pos, ok := w.pos(n); ok {
		anchor = append(anchor, pos)
	}
	fmt.Fprintf(w.buf, "%s  %q [%s];\n", indent, n.ID, strings.Join(anchor, ", "))
	for _, c := range w.children[n.ID] {
		w.node(c, depth+1)
	}
	fmt.Fprintf(w.buf, "%s}\n", indent)
}

func (w *writer) attrs(n model.Node) []string {
	attrs := []string{fmt.Sprintf("label=%q", fmtLabel(n, w.opts.Detailed))}
	if n.Selected {
		attrs = append(attrs, "color=blue", "penwidth=2")
	}
	if n.Size == nil {
		attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=lightgrey")
	}
	if pos, ok := w.pos(n); ok {
		attrs = append(attrs, pos)
	}
	return attrs
}

func (w *writer) pos(n model.Node) (string, bool) {
	if !w.opts.Pinned {
		return "", false
	}
	c := n.Rect().Center()
	// Graphviz y grows upwards.
	return fmt.Sprintf("pos=\"%.2f,%.2f!\"", c.X/pointsPerUnit, -c.Y/pointsPerUnit), true
}

func fmtLabel(n model.Node, detailed bool) string {
	if !detailed {
		return n.ID
	}

	parts := []string{fmt.Sprintf("pos: %g,%g", n.Position.X, n.Position.Y)}
	if n.Size != nil {
		parts = append(parts, fmt.Sprintf("size: %gx%g", n.Size.Width, n.Size.Height))
	}
	if n.Angle != 0 {
		parts = append(parts, fmt.Sprintf("angle: %g", n.Angle))
	}
	for _, k := range slices.Sorted(maps.Keys(n.Data)) {
		parts = append(parts, fmt.Sprintf("%s: %v", k, n.Data[k]))
	}

	return n.ID + "\n" + strings.Join(parts, "\n")
}

func splines(routing string) string {
	switch routing {
	case config.RoutingStraight:
		return "line"
	case config.RoutingOrthogonal:
		return "ortho"
	}
	return "spline"
}

// RenderSVG renders DOT source to SVG using Graphviz.
func RenderSVG(dot string) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`, w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(tag))
}

// Renderer keeps the DOT source of the most recent frame. It implements
// render.Renderer and is safe for concurrent use.
type Renderer struct {
	opts Options

	mu     sync.RWMutex
	last   string
	frames int
}

// NewRenderer creates a renderer with no frame.
func NewRenderer(opts Options) *Renderer {
	return &Renderer{opts: opts}
}

// Draw implements render.Renderer.
func (r *Renderer) Draw(nodes []model.Node, edges []model.Edge, _ model.Viewport) {
	src := ToDOT(nodes, edges, r.opts)
	r.mu.Lock()
	r.last = src
	r.frames++
	r.mu.Unlock()
}

// DOT returns the source of the last frame, or "" before the first.
func (r *Renderer) DOT() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// Frames counts Draw calls.
func (r *Renderer) Frames() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frames
}

// SVG renders the last frame.
func (r *Renderer) SVG() ([]byte, error) {
	src := r.DOT()
	if src == "" {
		return nil, fmt.Errorf("no frame drawn yet")
	}
	return RenderSVG(src)
}
